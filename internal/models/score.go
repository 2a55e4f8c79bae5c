package models

import "time"

// Score records a student's result for one subject in one exam. The four
// rank fields are derived data owned exclusively by the ranking engine; they
// go stale whenever any score in the same exam/grade partition changes.
type Score struct {
	ID          string  `db:"id" json:"id"`
	StudentID   string  `db:"student_id" json:"student_id"`
	ExamID      string  `db:"exam_id" json:"exam_id"`
	SubjectCode string  `db:"subject_code" json:"subject_code"`
	ScoreValue  float64 `db:"score_value" json:"score_value"`

	GradeRankInSubject    *int `db:"grade_rank_in_subject" json:"grade_rank_in_subject,omitempty"`
	ClassRankInSubject    *int `db:"class_rank_in_subject" json:"class_rank_in_subject,omitempty"`
	TotalScoreRankInGrade *int `db:"total_score_rank_in_grade" json:"total_score_rank_in_grade,omitempty"`
	TotalScoreRankInClass *int `db:"total_score_rank_in_class" json:"total_score_rank_in_class,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	// Denormalised student columns joined onto every listed row so the
	// ranking engine can partition by grade and class without extra reads.
	StudentNumber string  `db:"student_number" json:"student_number"`
	StudentName   string  `db:"student_name" json:"student_name"`
	GradeLevel    string  `db:"grade_level" json:"grade_level"`
	ClassID       *string `db:"class_id" json:"class_id,omitempty"`
	ClassName     *string `db:"class_name" json:"class_name,omitempty"`
}

// ScoreFilter narrows score listings. ExamID is always required; the other
// fields may be combined freely.
type ScoreFilter struct {
	ExamID      string
	GradeLevel  string
	ClassID     string
	SubjectCode string
}

// ScoreValueUpdate stages an update of an existing score's value.
type ScoreValueUpdate struct {
	ID         string
	ScoreValue float64
}
