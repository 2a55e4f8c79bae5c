package models

import "time"

// Subject codes recognised by the import pipeline and the analysis views.
// Column headers outside this set are ignored during bulk import.
const (
	SubjectChinese   = "chinese"
	SubjectMath      = "math"
	SubjectEnglish   = "english"
	SubjectPolitics  = "politics"
	SubjectHistory   = "history"
	SubjectPhysics   = "physics"
	SubjectChemistry = "chemistry"
	SubjectBiology   = "biology"
	SubjectGeography = "geography"
	SubjectPE        = "pe"
)

// SubjectCodes lists every recognised subject code in display order.
var SubjectCodes = []string{
	SubjectChinese, SubjectMath, SubjectEnglish,
	SubjectPolitics, SubjectHistory, SubjectPhysics,
	SubjectChemistry, SubjectBiology, SubjectGeography, SubjectPE,
}

// IsValidSubject reports whether code is a recognised subject code.
func IsValidSubject(code string) bool {
	for _, c := range SubjectCodes {
		if c == code {
			return true
		}
	}
	return false
}

// Exam represents a single assessment event targeting one grade level.
type Exam struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	AcademicYear string    `db:"academic_year" json:"academic_year"`
	GradeLevel   string    `db:"grade_level" json:"grade_level"`
	Date         time.Time `db:"date" json:"date"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ExamSubject configures the maximum achievable score of a subject within an exam.
type ExamSubject struct {
	ID          string  `db:"id" json:"id"`
	ExamID      string  `db:"exam_id" json:"exam_id"`
	SubjectCode string  `db:"subject_code" json:"subject_code"`
	SubjectName string  `db:"subject_name" json:"subject_name"`
	MaxScore    float64 `db:"max_score" json:"max_score"`
}

// DefaultMaxScores maps grade level to subject code to the default maximum
// score used when an exam carries no explicit subject configuration.
type DefaultMaxScores map[string]map[string]float64

// MaxScore returns the default maximum for the grade/subject pair, falling
// back to 100 when neither the grade nor the subject is configured.
func (d DefaultMaxScores) MaxScore(gradeLevel, subjectCode string) float64 {
	if grade, ok := d[gradeLevel]; ok {
		if max, ok := grade[subjectCode]; ok {
			return max
		}
	}
	return 100
}

// DefaultMaxScoreTable returns the stock per-grade default max score table.
func DefaultMaxScoreTable() DefaultMaxScores {
	junior := map[string]float64{
		SubjectChinese: 120, SubjectMath: 120, SubjectEnglish: 120,
		SubjectPolitics: 90, SubjectHistory: 90, SubjectPhysics: 100,
		SubjectChemistry: 100, SubjectBiology: 100, SubjectGeography: 100, SubjectPE: 70,
	}
	senior := map[string]float64{
		SubjectChinese: 150, SubjectMath: 150, SubjectEnglish: 150,
		SubjectPolitics: 100, SubjectHistory: 100, SubjectPhysics: 100,
		SubjectChemistry: 100, SubjectBiology: 100, SubjectGeography: 100, SubjectPE: 60,
	}
	return DefaultMaxScores{
		GradeJunior1: junior, GradeJunior2: junior, GradeJunior3: junior,
		GradeSenior1: senior, GradeSenior2: senior, GradeSenior3: senior,
	}
}
