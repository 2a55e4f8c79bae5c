package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edusys/exam-ranking-api/internal/models"
)

const scoreColumns = `sc.id, sc.student_id, sc.exam_id, sc.subject_code, sc.score_value,
        sc.grade_rank_in_subject, sc.class_rank_in_subject, sc.total_score_rank_in_grade, sc.total_score_rank_in_class,
        sc.created_at, sc.updated_at,
        st.student_id AS student_number, st.name AS student_name, st.grade_level, st.class_id, c.class_name`

const scoreJoins = ` FROM scores sc
        JOIN students st ON st.id = sc.student_id
        LEFT JOIN classes c ON c.id = st.class_id`

// ScoreRepository handles score record persistence for the ranking core.
type ScoreRepository struct {
	db *sqlx.DB
}

// NewScoreRepository creates a new score repository.
func NewScoreRepository(db *sqlx.DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

func scoreWhere(filter models.ScoreFilter) (string, []interface{}) {
	clause := " WHERE sc.exam_id = $1"
	args := []interface{}{filter.ExamID}
	if filter.GradeLevel != "" {
		clause += fmt.Sprintf(" AND st.grade_level = $%d", len(args)+1)
		args = append(args, filter.GradeLevel)
	}
	if filter.ClassID != "" {
		clause += fmt.Sprintf(" AND st.class_id = $%d", len(args)+1)
		args = append(args, filter.ClassID)
	}
	if filter.SubjectCode != "" {
		clause += fmt.Sprintf(" AND sc.subject_code = $%d", len(args)+1)
		args = append(args, filter.SubjectCode)
	}
	return clause, args
}

// List returns score records matching the filter, with the student's grade
// and class denormalised onto each row.
func (r *ScoreRepository) List(ctx context.Context, filter models.ScoreFilter) ([]models.Score, error) {
	where, args := scoreWhere(filter)
	query := "SELECT " + scoreColumns + scoreJoins + where + " ORDER BY sc.subject_code, st.student_id"
	var scores []models.Score
	if err := r.db.SelectContext(ctx, &scores, query, args...); err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	return scores, nil
}

// ListPaged returns a page of score records plus the total match count.
func (r *ScoreRepository) ListPaged(ctx context.Context, filter models.ScoreFilter, page, pageSize int) ([]models.Score, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 20
	}
	where, args := scoreWhere(filter)
	query := fmt.Sprintf("SELECT "+scoreColumns+scoreJoins+where+" ORDER BY sc.subject_code, st.student_id LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)
	var scores []models.Score
	if err := r.db.SelectContext(ctx, &scores, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list scores: %w", err)
	}
	var total int
	countQuery := "SELECT COUNT(*)" + scoreJoins + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count scores: %w", err)
	}
	return scores, total, nil
}

// ListByExamAndStudents returns the exam's scores for the given student
// primary keys, keyed by (student primary key, subject code).
func (r *ScoreRepository) ListByExamAndStudents(ctx context.Context, examID string, studentIDs []string) (map[[2]string]models.Score, error) {
	result := make(map[[2]string]models.Score, len(studentIDs))
	if len(studentIDs) == 0 {
		return result, nil
	}
	placeholders := make([]string, len(studentIDs))
	args := make([]interface{}, 0, len(studentIDs)+1)
	args = append(args, examID)
	for i, id := range studentIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}
	query := fmt.Sprintf("SELECT "+scoreColumns+scoreJoins+" WHERE sc.exam_id = $1 AND sc.student_id IN (%s)", strings.Join(placeholders, ","))
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch existing scores: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var score models.Score
		if err := rows.StructScan(&score); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		result[[2]string{score.StudentID, score.SubjectCode}] = score
	}
	return result, rows.Err()
}

// DistinctGrades returns the grade levels appearing among an exam's scores.
func (r *ScoreRepository) DistinctGrades(ctx context.Context, examID string) ([]string, error) {
	const query = `SELECT DISTINCT st.grade_level FROM scores sc
        JOIN students st ON st.id = sc.student_id
        WHERE sc.exam_id = $1 ORDER BY st.grade_level`
	var grades []string
	if err := r.db.SelectContext(ctx, &grades, query, examID); err != nil {
		return nil, fmt.Errorf("distinct grades: %w", err)
	}
	return grades, nil
}

// BulkUpdateRankFields persists the four rank fields for the provided
// records inside one transaction and returns the number of rows updated.
// Callers are expected to pass bounded batches.
func (r *ScoreRepository) BulkUpdateRankFields(ctx context.Context, scores []models.Score) (int, error) {
	if len(scores) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin rank update: %w", err)
	}
	const query = `UPDATE scores
        SET grade_rank_in_subject = $1, class_rank_in_subject = $2,
            total_score_rank_in_grade = $3, total_score_rank_in_class = $4,
            updated_at = $5
        WHERE id = $6`
	now := time.Now().UTC()
	updated := 0
	for i := range scores {
		s := &scores[i]
		if _, err := tx.ExecContext(ctx, query, s.GradeRankInSubject, s.ClassRankInSubject, s.TotalScoreRankInGrade, s.TotalScoreRankInClass, now, s.ID); err != nil {
			tx.Rollback() //nolint:errcheck
			return updated, fmt.Errorf("update rank fields: %w", err)
		}
		updated++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit rank update: %w", err)
	}
	return updated, nil
}

// BulkWrite applies staged creates and value updates inside a single
// transaction. Any failure, including a residual uniqueness conflict among
// the creates, rolls back the whole batch.
func (r *ScoreRepository) BulkWrite(ctx context.Context, creates []models.Score, updates []models.ScoreValueUpdate) (int, error) {
	if len(creates) == 0 && len(updates) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin bulk write: %w", err)
	}
	now := time.Now().UTC()
	const insertQuery = `INSERT INTO scores (id, student_id, exam_id, subject_code, score_value, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for i := range creates {
		s := &creates[i]
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx, insertQuery, s.ID, s.StudentID, s.ExamID, s.SubjectCode, s.ScoreValue, now, now); err != nil {
			tx.Rollback() //nolint:errcheck
			return 0, fmt.Errorf("insert score: %w", err)
		}
	}
	const updateQuery = `UPDATE scores SET score_value = $1, updated_at = $2 WHERE id = $3`
	for _, u := range updates {
		if _, err := tx.ExecContext(ctx, updateQuery, u.ScoreValue, now, u.ID); err != nil {
			tx.Rollback() //nolint:errcheck
			return 0, fmt.Errorf("update score: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit bulk write: %w", err)
	}
	return len(creates) + len(updates), nil
}
