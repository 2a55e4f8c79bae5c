package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/edusys/exam-ranking-api/internal/models"
)

const studentColumns = `s.id, s.student_id, s.name, s.grade_level, s.class_id, c.class_name, s.status, s.created_at, s.updated_at`

const studentJoins = ` FROM students s LEFT JOIN classes c ON c.id = s.class_id`

// StudentRepository resolves students for the import pipeline.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository creates a new student repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByStudentID resolves a student by the external school number.
func (r *StudentRepository) FindByStudentID(ctx context.Context, studentID string) (*models.Student, error) {
	query := "SELECT " + studentColumns + studentJoins + " WHERE s.student_id = $1"
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, studentID); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByStudentIDs resolves a batch of external school numbers, keyed by
// number. Unknown numbers are simply absent from the result.
func (r *StudentRepository) FindByStudentIDs(ctx context.Context, studentIDs []string) (map[string]models.Student, error) {
	result := make(map[string]models.Student, len(studentIDs))
	if len(studentIDs) == 0 {
		return result, nil
	}
	placeholders := make([]string, len(studentIDs))
	args := make([]interface{}, len(studentIDs))
	for i, id := range studentIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf("SELECT "+studentColumns+studentJoins+" WHERE s.student_id IN (%s)", strings.Join(placeholders, ","))
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch students: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var student models.Student
		if err := rows.StructScan(&student); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		result[student.StudentID] = student
	}
	return result, rows.Err()
}
