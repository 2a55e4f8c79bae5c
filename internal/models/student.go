package models

import "time"

// Grade level codes. J1-J3 are the junior grades, S1-S3 the senior grades.
const (
	GradeJunior1 = "J1"
	GradeJunior2 = "J2"
	GradeJunior3 = "J3"
	GradeSenior1 = "S1"
	GradeSenior2 = "S2"
	GradeSenior3 = "S3"
)

// GradeLevels lists every recognised grade level code.
var GradeLevels = []string{GradeJunior1, GradeJunior2, GradeJunior3, GradeSenior1, GradeSenior2, GradeSenior3}

// Student represents a student as seen by the ranking and analysis core.
// Records are owned by the roster CRUD layer; this service only reads them.
type Student struct {
	ID         string    `db:"id" json:"id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	Name       string    `db:"name" json:"name"`
	GradeLevel string    `db:"grade_level" json:"grade_level"`
	ClassID    *string   `db:"class_id" json:"class_id,omitempty"`
	ClassName  *string   `db:"class_name" json:"class_name,omitempty"`
	Status     string    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Class groups students within a grade level.
type Class struct {
	ID         string `db:"id" json:"id"`
	GradeLevel string `db:"grade_level" json:"grade_level"`
	ClassName  string `db:"class_name" json:"class_name"`
}
