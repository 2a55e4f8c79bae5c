package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edusys/exam-ranking-api/internal/models"
	"github.com/edusys/exam-ranking-api/internal/stats"
)

type rankScoreStore interface {
	List(ctx context.Context, filter models.ScoreFilter) ([]models.Score, error)
	DistinctGrades(ctx context.Context, examID string) ([]string, error)
	BulkUpdateRankFields(ctx context.Context, scores []models.Score) (int, error)
}

type examReader interface {
	FindByID(ctx context.Context, id string) (*models.Exam, error)
}

// RecomputeResult reports the outcome of one recompute run. A failed run may
// still have committed batches for earlier grades or subjects; re-running is
// always safe because recompute is idempotent.
type RecomputeResult struct {
	Success       bool     `json:"success"`
	Message       string   `json:"message"`
	UpdatedCount  int      `json:"updated_count"`
	GradeLevels   []string `json:"grade_levels,omitempty"`
	ExecutionTime float64  `json:"execution_time"`
}

// RankingService recomputes the four rank dimensions of every score record
// for an exam: total score within grade and class, and per-subject within
// grade and class. Rank fields are derived data owned entirely by this
// engine.
type RankingService struct {
	scores    rankScoreStore
	exams     examReader
	validate  *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	batchSize int
}

// NewRankingService constructs the ranking engine.
func NewRankingService(scores rankScoreStore, exams examReader, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, batchSize int) *RankingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &RankingService{scores: scores, exams: exams, validate: validate, metrics: metrics, logger: logger, batchSize: batchSize}
}

// RecomputeExam recomputes ranks for the exam. When gradeLevel is empty,
// every grade appearing among the exam's scores is processed. Each grade is
// written in bounded batches; a write failure stops the run and is reported
// with the count committed so far.
func (s *RankingService) RecomputeExam(ctx context.Context, examID, gradeLevel string) *RecomputeResult {
	start := time.Now()
	result := &RecomputeResult{}

	if err := s.validate.Var(gradeLevel, "omitempty,oneof=J1 J2 J3 S1 S2 S3"); err != nil {
		result.Message = fmt.Sprintf("invalid grade level %q", gradeLevel)
		result.ExecutionTime = time.Since(start).Seconds()
		return result
	}

	if _, err := s.exams.FindByID(ctx, examID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			result.Message = fmt.Sprintf("exam %s not found", examID)
		} else {
			result.Message = fmt.Sprintf("load exam %s: %v", examID, err)
		}
		result.ExecutionTime = time.Since(start).Seconds()
		return result
	}

	var grades []string
	if gradeLevel != "" {
		grades = []string{gradeLevel}
	} else {
		var err error
		grades, err = s.scores.DistinctGrades(ctx, examID)
		if err != nil {
			result.Message = fmt.Sprintf("resolve grades: %v", err)
			result.ExecutionTime = time.Since(start).Seconds()
			return result
		}
	}
	result.GradeLevels = grades

	for _, grade := range grades {
		updated, err := s.recomputeGrade(ctx, examID, grade)
		result.UpdatedCount += updated
		if err != nil {
			result.Message = fmt.Sprintf("grade %s: %v", grade, err)
			result.ExecutionTime = time.Since(start).Seconds()
			s.logger.Error("ranking recompute failed",
				zap.String("exam_id", examID),
				zap.String("grade_level", grade),
				zap.Int("updated_count", result.UpdatedCount),
				zap.Error(err))
			return result
		}
		s.logger.Info("grade ranking updated",
			zap.String("exam_id", examID),
			zap.String("grade_level", grade),
			zap.Int("updated_count", updated))
	}

	result.Success = true
	result.ExecutionTime = time.Since(start).Seconds()
	result.Message = fmt.Sprintf("ranking update complete: %d records in %.2fs", result.UpdatedCount, result.ExecutionTime)
	if s.metrics != nil {
		s.metrics.ObserveRankingRun(time.Since(start), result.UpdatedCount)
	}
	return result
}

// rankEntry is one student (or one student's subject score) inside a
// ranking partition.
type rankEntry struct {
	studentID string
	value     float64
}

func (s *RankingService) recomputeGrade(ctx context.Context, examID, gradeLevel string) (int, error) {
	rows, err := s.scores.List(ctx, models.ScoreFilter{ExamID: examID, GradeLevel: gradeLevel})
	if err != nil {
		return 0, fmt.Errorf("list scores: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	// Total score per student over existing subjects only: a missing
	// subject contributes nothing, it is not a zero.
	totals := make(map[string]float64)
	classOf := make(map[string]*string)
	for i := range rows {
		r := &rows[i]
		totals[r.StudentID] += r.ScoreValue
		if _, ok := classOf[r.StudentID]; !ok {
			classOf[r.StudentID] = r.ClassID
		}
	}

	gradeTotalRank := rankByValue(totalEntries(totals))

	classTotalRank := make(map[string]map[string]int)
	for classID, entries := range partitionByClass(totalEntries(totals), classOf) {
		classTotalRank[classID] = rankByValue(entries)
	}

	subjectRows := make(map[string][]rankEntry)
	for i := range rows {
		r := &rows[i]
		subjectRows[r.SubjectCode] = append(subjectRows[r.SubjectCode], rankEntry{studentID: r.StudentID, value: r.ScoreValue})
	}

	gradeSubjectRank := make(map[string]map[string]int)
	classSubjectRank := make(map[string]map[string]map[string]int)
	for subject, entries := range subjectRows {
		gradeSubjectRank[subject] = rankByValue(entries)
		perClass := make(map[string]map[string]int)
		for classID, classEntries := range partitionByClass(entries, classOf) {
			perClass[classID] = rankByValue(classEntries)
		}
		classSubjectRank[subject] = perClass
	}

	for i := range rows {
		r := &rows[i]
		r.TotalScoreRankInGrade = rankPtr(gradeTotalRank, r.StudentID)
		r.GradeRankInSubject = rankPtr(gradeSubjectRank[r.SubjectCode], r.StudentID)
		if r.ClassID != nil {
			r.TotalScoreRankInClass = rankPtr(classTotalRank[*r.ClassID], r.StudentID)
			r.ClassRankInSubject = rankPtr(classSubjectRank[r.SubjectCode][*r.ClassID], r.StudentID)
		} else {
			// Students without a class assignment carry no class-scope
			// ranks.
			r.TotalScoreRankInClass = nil
			r.ClassRankInSubject = nil
		}
	}

	updated := 0
	for offset := 0; offset < len(rows); offset += s.batchSize {
		end := offset + s.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		n, err := s.scores.BulkUpdateRankFields(ctx, rows[offset:end])
		updated += n
		if err != nil {
			return updated, fmt.Errorf("bulk rank write: %w", err)
		}
	}
	return updated, nil
}

func totalEntries(totals map[string]float64) []rankEntry {
	entries := make([]rankEntry, 0, len(totals))
	for id, total := range totals {
		entries = append(entries, rankEntry{studentID: id, value: total})
	}
	return entries
}

func partitionByClass(entries []rankEntry, classOf map[string]*string) map[string][]rankEntry {
	partitions := make(map[string][]rankEntry)
	for _, e := range entries {
		classID := classOf[e.studentID]
		if classID == nil {
			continue
		}
		partitions[*classID] = append(partitions[*classID], e)
	}
	return partitions
}

// rankByValue assigns competition ranks over the entries, sorting by value
// descending with student ID as a stable tiebreak so reruns over unchanged
// scores always produce identical output.
func rankByValue(entries []rankEntry) map[string]int {
	sorted := append([]rankEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].value != sorted[j].value {
			return sorted[i].value > sorted[j].value
		}
		return sorted[i].studentID < sorted[j].studentID
	})
	values := make([]float64, len(sorted))
	for i, e := range sorted {
		values[i] = e.value
	}
	ranked := stats.CompetitionRank(values)
	result := make(map[string]int, len(sorted))
	for i, e := range sorted {
		result[e.studentID] = ranked[i].Rank
	}
	return result
}

func rankPtr(ranks map[string]int, studentID string) *int {
	if ranks == nil {
		return nil
	}
	if rank, ok := ranks[studentID]; ok {
		return &rank
	}
	return nil
}
