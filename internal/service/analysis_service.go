package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/edusys/exam-ranking-api/internal/models"
	"github.com/edusys/exam-ranking-api/internal/stats"
	appErrors "github.com/edusys/exam-ranking-api/pkg/errors"
)

var analysisPercentiles = []float64{25, 50, 75}

type analysisScoreStore interface {
	List(ctx context.Context, filter models.ScoreFilter) ([]models.Score, error)
}

type examSubjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	ListSubjects(ctx context.Context, examID string) ([]models.ExamSubject, error)
}

// AnalysisService produces descriptive summaries of exam results at class
// and grade scope: per-subject mean/stdev/distribution, total-score ranking
// tables, and percentile markers.
type AnalysisService struct {
	scores   analysisScoreStore
	exams    examSubjectReader
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	cacheTTL time.Duration
	defaults models.DefaultMaxScores
}

// NewAnalysisService constructs the analysis service. cache may be nil; a
// nil defaults table falls back to the stock per-grade table.
func NewAnalysisService(scores analysisScoreStore, exams examSubjectReader, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cacheTTL time.Duration, defaults models.DefaultMaxScores) *AnalysisService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	if defaults == nil {
		defaults = models.DefaultMaxScoreTable()
	}
	return &AnalysisService{scores: scores, exams: exams, cache: cache, metrics: metrics, logger: logger, cacheTTL: cacheTTL, defaults: defaults}
}

// AnalyzeClass summarises one class's results in one exam.
func (s *AnalysisService) AnalyzeClass(ctx context.Context, examID, classID string) (*models.ClassAnalysis, error) {
	cacheKey := fmt.Sprintf("analysis:class:%s:%s", examID, classID)
	if s.cache != nil && s.cache.Enabled() {
		var cached models.ClassAnalysis
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	maxScores, gradeLevel, err := s.subjectMaxScores(ctx, examID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	scores, err := s.scores.List(ctx, models.ScoreFilter{ExamID: examID, ClassID: classID})
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("list_class_scores", time.Since(start))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class scores")
	}
	if len(scores) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no scores for class %s in exam %s", classID, examID))
	}

	analysis := &models.ClassAnalysis{ExamID: examID, ClassID: classID}
	bySubject, byStudent := groupScores(scores)
	analysis.TotalStudents = len(byStudent)

	maxScoreOf := maxScoreLookup(maxScores, s.defaults, gradeLevel)
	for _, subject := range orderedSubjects(bySubject) {
		analysis.Subjects = append(analysis.Subjects, subjectStats(subject, bySubject[subject], maxScoreOf(subject)))
	}

	totals := studentTotals(byStudent)
	rankTotals(totals)
	analysis.Rankings = totals

	totalValues := make([]float64, 0, len(totals))
	for _, t := range totals {
		totalValues = append(totalValues, t.TotalScore)
	}
	summary := stats.MeanStdev(totalValues)
	analysis.ClassAvgTotal = summary.Mean
	analysis.ClassMaxTotal = maxOf(totalValues)
	analysis.ClassMinTotal = minOf(totalValues)

	analysis.TotalMaxScore = totalMaxScore(bySubject, maxScoreOf)
	analysis.TotalDistribution = stats.Distribute(totalValues, analysis.TotalMaxScore)
	pcts, err := stats.Percentiles(totalValues, analysisPercentiles)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "percentile computation failed")
	}
	analysis.Percentiles = wirePercentiles(pcts)

	if s.cache != nil && s.cache.Enabled() {
		if err := s.cache.Set(ctx, cacheKey, analysis, s.cacheTTL); err != nil {
			s.logger.Warn("class analysis cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return analysis, nil
}

// AnalyzeGrade summarises one grade level's results in one exam, including a
// per-class comparison table.
func (s *AnalysisService) AnalyzeGrade(ctx context.Context, examID, gradeLevel string) (*models.GradeAnalysis, error) {
	cacheKey := fmt.Sprintf("analysis:grade:%s:%s", examID, gradeLevel)
	if s.cache != nil && s.cache.Enabled() {
		var cached models.GradeAnalysis
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	maxScores, examGrade, err := s.subjectMaxScores(ctx, examID)
	if err != nil {
		return nil, err
	}
	if gradeLevel == "" {
		gradeLevel = examGrade
	}

	start := time.Now()
	scores, err := s.scores.List(ctx, models.ScoreFilter{ExamID: examID, GradeLevel: gradeLevel})
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("list_grade_scores", time.Since(start))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade scores")
	}
	if len(scores) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no scores for grade %s in exam %s", gradeLevel, examID))
	}

	analysis := &models.GradeAnalysis{ExamID: examID, GradeLevel: gradeLevel}
	bySubject, byStudent := groupScores(scores)
	analysis.TotalStudents = len(byStudent)

	maxScoreOf := maxScoreLookup(maxScores, s.defaults, gradeLevel)
	for _, subject := range orderedSubjects(bySubject) {
		analysis.Subjects = append(analysis.Subjects, subjectStats(subject, bySubject[subject], maxScoreOf(subject)))
	}

	totals := studentTotals(byStudent)
	totalValues := make([]float64, 0, len(totals))
	for _, t := range totals {
		totalValues = append(totalValues, t.TotalScore)
	}
	analysis.TotalMaxScore = totalMaxScore(bySubject, maxScoreOf)
	analysis.TotalDistribution = stats.Distribute(totalValues, analysis.TotalMaxScore)
	pcts, err := stats.Percentiles(totalValues, analysisPercentiles)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "percentile computation failed")
	}
	analysis.Percentiles = wirePercentiles(pcts)
	analysis.Classes = classSummaries(scores, byStudent)

	if s.cache != nil && s.cache.Enabled() {
		if err := s.cache.Set(ctx, cacheKey, analysis, s.cacheTTL); err != nil {
			s.logger.Warn("grade analysis cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return analysis, nil
}

// InvalidateExam drops cached analyses for the exam after new scores land.
func (s *AnalysisService) InvalidateExam(ctx context.Context, examID string) {
	if s.cache == nil || !s.cache.Enabled() {
		return
	}
	for _, pattern := range []string{
		fmt.Sprintf("analysis:class:%s:*", examID),
		fmt.Sprintf("analysis:grade:%s:*", examID),
	} {
		if err := s.cache.Invalidate(ctx, pattern); err != nil {
			s.logger.Warn("analysis cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
		}
	}
}

// subjectMaxScores resolves the per-subject full marks for the exam,
// preferring explicit exam subject rows and falling back to the grade-level
// defaults table.
func (s *AnalysisService) subjectMaxScores(ctx context.Context, examID string) (map[string]float64, string, error) {
	exam, err := s.exams.FindByID(ctx, examID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("exam %s not found", examID))
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	subjects, err := s.exams.ListSubjects(ctx, examID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam subjects")
	}
	maxScores := make(map[string]float64, len(subjects))
	for _, sub := range subjects {
		maxScores[sub.SubjectCode] = sub.MaxScore
	}
	return maxScores, exam.GradeLevel, nil
}

// wirePercentiles keys percentile markers as "p25"-style strings. Float keys
// would not survive JSON encoding, which both the HTTP layer and the redis
// cache rely on.
func wirePercentiles(pcts map[float64]float64) map[string]float64 {
	out := make(map[string]float64, len(pcts))
	for p, v := range pcts {
		out[fmt.Sprintf("p%g", p)] = v
	}
	return out
}

func maxScoreLookup(maxScores map[string]float64, defaults models.DefaultMaxScores, gradeLevel string) func(subject string) float64 {
	return func(subject string) float64 {
		if max, ok := maxScores[subject]; ok && max > 0 {
			return max
		}
		return defaults.MaxScore(gradeLevel, subject)
	}
}

func groupScores(scores []models.Score) (map[string][]float64, map[string][]models.Score) {
	bySubject := make(map[string][]float64)
	byStudent := make(map[string][]models.Score)
	for _, sc := range scores {
		bySubject[sc.SubjectCode] = append(bySubject[sc.SubjectCode], sc.ScoreValue)
		byStudent[sc.StudentID] = append(byStudent[sc.StudentID], sc)
	}
	return bySubject, byStudent
}

func orderedSubjects(bySubject map[string][]float64) []string {
	ordered := make([]string, 0, len(bySubject))
	for _, subject := range models.SubjectCodes {
		if _, ok := bySubject[subject]; ok {
			ordered = append(ordered, subject)
		}
	}
	return ordered
}

func subjectStats(subject string, values []float64, maxScore float64) models.SubjectStats {
	summary := stats.MeanStdev(values)
	return models.SubjectStats{
		SubjectCode:  subject,
		Mean:         summary.Mean,
		Stdev:        summary.Stdev,
		Max:          maxOf(values),
		Min:          minOf(values),
		Count:        len(values),
		MaxScore:     maxScore,
		Distribution: stats.Distribute(values, maxScore),
	}
}

// studentTotals sums each student's existing subject scores. Missing
// subjects simply contribute nothing; totals over different subject counts
// are comparable by design of the grading process.
func studentTotals(byStudent map[string][]models.Score) []models.StudentTotal {
	totals := make([]models.StudentTotal, 0, len(byStudent))
	for _, scores := range byStudent {
		t := models.StudentTotal{
			StudentID:   scores[0].StudentNumber,
			StudentName: scores[0].StudentName,
			GradeRank:   scores[0].TotalScoreRankInGrade,
		}
		for _, sc := range scores {
			t.TotalScore += sc.ScoreValue
			t.SubjectCount++
		}
		totals = append(totals, t)
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].TotalScore != totals[j].TotalScore {
			return totals[i].TotalScore > totals[j].TotalScore
		}
		return totals[i].StudentID < totals[j].StudentID
	})
	return totals
}

// rankTotals assigns competition ranks in place over an already sorted
// totals slice.
func rankTotals(totals []models.StudentTotal) {
	values := make([]float64, len(totals))
	for i, t := range totals {
		values[i] = t.TotalScore
	}
	for i, r := range stats.CompetitionRank(values) {
		totals[i].Rank = r.Rank
	}
}

func classSummaries(scores []models.Score, byStudent map[string][]models.Score) []models.ClassTotalSummary {
	type classAgg struct {
		name   string
		totals []float64
	}
	classTotals := make(map[string]*classAgg)
	for _, studentScores := range byStudent {
		first := studentScores[0]
		if first.ClassID == nil {
			continue
		}
		agg, ok := classTotals[*first.ClassID]
		if !ok {
			agg = &classAgg{}
			if first.ClassName != nil {
				agg.name = *first.ClassName
			}
			classTotals[*first.ClassID] = agg
		}
		var total float64
		for _, sc := range studentScores {
			total += sc.ScoreValue
		}
		agg.totals = append(agg.totals, total)
	}

	summaries := make([]models.ClassTotalSummary, 0, len(classTotals))
	for classID, agg := range classTotals {
		summary := stats.MeanStdev(agg.totals)
		summaries = append(summaries, models.ClassTotalSummary{
			ClassID:      classID,
			ClassName:    agg.name,
			StudentCount: len(agg.totals),
			AvgTotal:     summary.Mean,
			MaxTotal:     maxOf(agg.totals),
			MinTotal:     minOf(agg.totals),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].AvgTotal != summaries[j].AvgTotal {
			return summaries[i].AvgTotal > summaries[j].AvgTotal
		}
		return summaries[i].ClassID < summaries[j].ClassID
	})
	return summaries
}

func maxOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

func minOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

func totalMaxScore(bySubject map[string][]float64, maxScoreOf func(string) float64) float64 {
	var total float64
	for subject := range bySubject {
		total += maxScoreOf(subject)
	}
	return total
}
