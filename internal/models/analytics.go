package models

import "github.com/edusys/exam-ranking-api/internal/stats"

// SubjectStats summarises one subject's scores within an analysis scope.
type SubjectStats struct {
	SubjectCode  string             `json:"subject_code"`
	Mean         float64            `json:"mean"`
	Stdev        float64            `json:"stdev"`
	Max          float64            `json:"max"`
	Min          float64            `json:"min"`
	Count        int                `json:"count"`
	MaxScore     float64            `json:"max_score"`
	Distribution stats.Distribution `json:"distribution"`
}

// StudentTotal is one row of the total-score ranking table inside an
// analysis payload. Rank is computed within the analysis scope; GradeRank is
// the stored total_score_rank_in_grade from the last recompute, when present.
type StudentTotal struct {
	StudentID    string  `json:"student_id"`
	StudentName  string  `json:"student_name"`
	TotalScore   float64 `json:"total_score"`
	SubjectCount int     `json:"subject_count"`
	Rank         int     `json:"rank"`
	GradeRank    *int    `json:"grade_rank,omitempty"`
}

// ClassAnalysis is the descriptive summary for one class in one exam.
type ClassAnalysis struct {
	ExamID            string             `json:"exam_id"`
	ClassID           string             `json:"class_id"`
	TotalStudents     int                `json:"total_students"`
	Subjects          []SubjectStats     `json:"subjects"`
	Rankings          []StudentTotal     `json:"rankings"`
	ClassAvgTotal     float64            `json:"class_avg_total"`
	ClassMaxTotal     float64            `json:"class_max_total"`
	ClassMinTotal     float64            `json:"class_min_total"`
	TotalMaxScore     float64            `json:"total_max_score"`
	TotalDistribution stats.Distribution `json:"total_distribution"`
	Percentiles       map[string]float64 `json:"percentiles"`
}

// ClassTotalSummary compares one class against its grade peers.
type ClassTotalSummary struct {
	ClassID      string  `json:"class_id"`
	ClassName    string  `json:"class_name"`
	StudentCount int     `json:"student_count"`
	AvgTotal     float64 `json:"avg_total"`
	MaxTotal     float64 `json:"max_total"`
	MinTotal     float64 `json:"min_total"`
}

// GradeAnalysis is the descriptive summary for one grade level in one exam.
type GradeAnalysis struct {
	ExamID            string              `json:"exam_id"`
	GradeLevel        string              `json:"grade_level"`
	TotalStudents     int                 `json:"total_students"`
	Subjects          []SubjectStats      `json:"subjects"`
	Classes           []ClassTotalSummary `json:"classes"`
	TotalMaxScore     float64             `json:"total_max_score"`
	TotalDistribution stats.Distribution  `json:"total_distribution"`
	Percentiles       map[string]float64  `json:"percentiles"`
}
