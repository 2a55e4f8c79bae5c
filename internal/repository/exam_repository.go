package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/edusys/exam-ranking-api/internal/models"
)

// ExamRepository reads exam metadata and per-exam subject configuration.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository creates a new exam repository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// FindByID returns the exam with the given ID.
func (r *ExamRepository) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	const query = `SELECT id, name, academic_year, grade_level, date, created_at, updated_at
        FROM exams WHERE id = $1`
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, id); err != nil {
		return nil, err
	}
	return &exam, nil
}

// ListSubjects returns the configured subjects for an exam. An exam with no
// configuration yields an empty slice; callers fall back to the grade-level
// default max score table.
func (r *ExamRepository) ListSubjects(ctx context.Context, examID string) ([]models.ExamSubject, error) {
	const query = `SELECT id, exam_id, subject_code, subject_name, max_score
        FROM exam_subjects WHERE exam_id = $1 ORDER BY subject_code`
	var subjects []models.ExamSubject
	if err := r.db.SelectContext(ctx, &subjects, query, examID); err != nil {
		return nil, fmt.Errorf("list exam subjects: %w", err)
	}
	return subjects, nil
}
