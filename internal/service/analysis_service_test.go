package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edusys/exam-ranking-api/internal/models"
	appErrors "github.com/edusys/exam-ranking-api/pkg/errors"
)

type mockAnalysisScoreStore struct {
	scores  []models.Score
	listErr error
	filters []models.ScoreFilter
}

func (m *mockAnalysisScoreStore) List(ctx context.Context, filter models.ScoreFilter) ([]models.Score, error) {
	m.filters = append(m.filters, filter)
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []models.Score
	for _, sc := range m.scores {
		if filter.ClassID != "" && (sc.ClassID == nil || *sc.ClassID != filter.ClassID) {
			continue
		}
		if filter.GradeLevel != "" && sc.GradeLevel != filter.GradeLevel {
			continue
		}
		out = append(out, sc)
	}
	return out, nil
}

func analysisRow(id, studentID, number, name, subject string, value float64, classID *string, className *string, gradeRank *int) models.Score {
	return models.Score{
		ID:                    id,
		StudentID:             studentID,
		ExamID:                "exam-1",
		SubjectCode:           subject,
		ScoreValue:            value,
		GradeLevel:            models.GradeJunior1,
		ClassID:               classID,
		ClassName:             className,
		StudentNumber:         number,
		StudentName:           name,
		TotalScoreRankInGrade: gradeRank,
	}
}

func intPtr(i int) *int { return &i }

func newAnalysisFixture(store *mockAnalysisScoreStore, subjects []models.ExamSubject) *AnalysisService {
	exams := &mockExamReader{
		exam:     &models.Exam{ID: "exam-1", GradeLevel: models.GradeJunior1},
		subjects: subjects,
	}
	return NewAnalysisService(store, exams, nil, nil, zap.NewNop(), 0, nil)
}

func TestAnalyzeClassSubjectStats(t *testing.T) {
	classA := strPtr("class-a")
	nameA := strPtr("Class 1-A")
	store := &mockAnalysisScoreStore{scores: []models.Score{
		analysisRow("s1", "stu-a", "20230001", "Alice Chen", models.SubjectMath, 114, classA, nameA, intPtr(2)),
		analysisRow("s2", "stu-b", "20230002", "Bob Lin", models.SubjectMath, 96, classA, nameA, intPtr(5)),
		analysisRow("s3", "stu-a", "20230001", "Alice Chen", models.SubjectEnglish, 108, classA, nameA, intPtr(2)),
		analysisRow("s4", "stu-b", "20230002", "Bob Lin", models.SubjectEnglish, 84, classA, nameA, intPtr(5)),
	}}
	svc := newAnalysisFixture(store, []models.ExamSubject{
		{ExamID: "exam-1", SubjectCode: models.SubjectMath, MaxScore: 120},
		{ExamID: "exam-1", SubjectCode: models.SubjectEnglish, MaxScore: 120},
	})

	analysis, err := svc.AnalyzeClass(context.Background(), "exam-1", "class-a")
	require.NoError(t, err)

	assert.Equal(t, 2, analysis.TotalStudents)
	require.Len(t, analysis.Subjects, 2)

	// Subjects come back in canonical enumeration order: math before english.
	math := analysis.Subjects[0]
	english := analysis.Subjects[1]
	assert.Equal(t, models.SubjectEnglish, english.SubjectCode)
	assert.Equal(t, models.SubjectMath, math.SubjectCode)
	assert.InDelta(t, 105.0, math.Mean, 1e-9)
	assert.Equal(t, 120.0, math.MaxScore)
	assert.Equal(t, 114.0, math.Max)
	assert.Equal(t, 96.0, math.Min)
	// 114/120 = 95% lands in the top band, 96/120 = 80% in good.
	assert.Equal(t, 1, math.Distribution.Top)
	assert.Equal(t, 1, math.Distribution.Good)

	require.Len(t, analysis.Rankings, 2)
	assert.Equal(t, "20230001", analysis.Rankings[0].StudentID)
	assert.Equal(t, 222.0, analysis.Rankings[0].TotalScore)
	assert.Equal(t, 1, analysis.Rankings[0].Rank)
	require.NotNil(t, analysis.Rankings[0].GradeRank)
	assert.Equal(t, 2, *analysis.Rankings[0].GradeRank)

	assert.Equal(t, 240.0, analysis.TotalMaxScore)
	assert.InDelta(t, 201.0, analysis.ClassAvgTotal, 1e-9)
	assert.Equal(t, 222.0, analysis.ClassMaxTotal)
	assert.Equal(t, 180.0, analysis.ClassMinTotal)
	assert.InDelta(t, 201.0, analysis.Percentiles["p50"], 1e-9)
}

func TestAnalyzeClassPayloadEncodesToJSON(t *testing.T) {
	classA := strPtr("class-a")
	store := &mockAnalysisScoreStore{scores: []models.Score{
		analysisRow("s1", "stu-a", "20230001", "Alice Chen", models.SubjectMath, 114, classA, nil, nil),
		analysisRow("s2", "stu-b", "20230002", "Bob Lin", models.SubjectMath, 96, classA, nil, nil),
	}}
	svc := newAnalysisFixture(store, nil)

	analysis, err := svc.AnalyzeClass(context.Background(), "exam-1", "class-a")
	require.NoError(t, err)

	// The payload crosses both the HTTP layer and the redis cache as JSON,
	// so it must round-trip with the percentile markers intact.
	raw, err := json.Marshal(analysis)
	require.NoError(t, err)
	var decoded models.ClassAnalysis
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded.Percentiles, 3)
	assert.InDelta(t, 105.0, decoded.Percentiles["p50"], 1e-9)
	assert.Contains(t, decoded.Percentiles, "p25")
	assert.Contains(t, decoded.Percentiles, "p75")
}

func TestAnalyzeClassTiedTotalsShareRank(t *testing.T) {
	classA := strPtr("class-a")
	store := &mockAnalysisScoreStore{scores: []models.Score{
		analysisRow("s1", "stu-a", "20230001", "Alice Chen", models.SubjectMath, 95, classA, nil, nil),
		analysisRow("s2", "stu-b", "20230002", "Bob Lin", models.SubjectMath, 95, classA, nil, nil),
		analysisRow("s3", "stu-c", "20230003", "Cara Wu", models.SubjectMath, 90, classA, nil, nil),
	}}
	svc := newAnalysisFixture(store, nil)

	analysis, err := svc.AnalyzeClass(context.Background(), "exam-1", "class-a")
	require.NoError(t, err)

	require.Len(t, analysis.Rankings, 3)
	assert.Equal(t, 1, analysis.Rankings[0].Rank)
	assert.Equal(t, 1, analysis.Rankings[1].Rank)
	assert.Equal(t, 3, analysis.Rankings[2].Rank)
}

func TestAnalyzeClassFallsBackToDefaultMaxScores(t *testing.T) {
	classA := strPtr("class-a")
	store := &mockAnalysisScoreStore{scores: []models.Score{
		analysisRow("s1", "stu-a", "20230001", "Alice Chen", models.SubjectChinese, 110, classA, nil, nil),
	}}
	svc := newAnalysisFixture(store, nil)

	analysis, err := svc.AnalyzeClass(context.Background(), "exam-1", "class-a")
	require.NoError(t, err)

	// Junior chinese defaults to 120 full marks when the exam defines no
	// subject rows.
	require.Len(t, analysis.Subjects, 1)
	assert.Equal(t, 120.0, analysis.Subjects[0].MaxScore)
}

func TestAnalyzeClassInjectedDefaultsTable(t *testing.T) {
	classA := strPtr("class-a")
	store := &mockAnalysisScoreStore{scores: []models.Score{
		analysisRow("s1", "stu-a", "20230001", "Alice Chen", models.SubjectMath, 48, classA, nil, nil),
	}}
	exams := &mockExamReader{exam: &models.Exam{ID: "exam-1", GradeLevel: models.GradeJunior1}}
	fixture := models.DefaultMaxScores{models.GradeJunior1: {models.SubjectMath: 50}}
	svc := NewAnalysisService(store, exams, nil, nil, zap.NewNop(), 0, fixture)

	analysis, err := svc.AnalyzeClass(context.Background(), "exam-1", "class-a")
	require.NoError(t, err)
	require.Len(t, analysis.Subjects, 1)
	assert.Equal(t, 50.0, analysis.Subjects[0].MaxScore)
	// 48/50 = 96% lands in the top band under the substituted table.
	assert.Equal(t, 1, analysis.Subjects[0].Distribution.Top)
}

func TestAnalyzeClassNoScores(t *testing.T) {
	svc := newAnalysisFixture(&mockAnalysisScoreStore{}, nil)

	_, err := svc.AnalyzeClass(context.Background(), "exam-1", "class-missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAnalyzeGradeClassComparison(t *testing.T) {
	classA := strPtr("class-a")
	classB := strPtr("class-b")
	nameA := strPtr("Class 1-A")
	nameB := strPtr("Class 1-B")
	store := &mockAnalysisScoreStore{scores: []models.Score{
		analysisRow("s1", "stu-a", "20230001", "Alice Chen", models.SubjectMath, 100, classA, nameA, nil),
		analysisRow("s2", "stu-b", "20230002", "Bob Lin", models.SubjectMath, 80, classA, nameA, nil),
		analysisRow("s3", "stu-c", "20230003", "Cara Wu", models.SubjectMath, 95, classB, nameB, nil),
		analysisRow("s4", "stu-d", "20230004", "Dan Hsu", models.SubjectMath, 65, nil, nil, nil),
	}}
	svc := newAnalysisFixture(store, []models.ExamSubject{
		{ExamID: "exam-1", SubjectCode: models.SubjectMath, MaxScore: 100},
	})

	analysis, err := svc.AnalyzeGrade(context.Background(), "exam-1", models.GradeJunior1)
	require.NoError(t, err)

	assert.Equal(t, 4, analysis.TotalStudents)
	require.Len(t, analysis.Subjects, 1)
	assert.Equal(t, 4, analysis.Subjects[0].Count)

	// The classless student counts toward grade stats but no class summary.
	require.Len(t, analysis.Classes, 2)
	assert.Equal(t, "class-b", analysis.Classes[0].ClassID)
	assert.Equal(t, "Class 1-B", analysis.Classes[0].ClassName)
	assert.InDelta(t, 95.0, analysis.Classes[0].AvgTotal, 1e-9)
	assert.Equal(t, "class-a", analysis.Classes[1].ClassID)
	assert.Equal(t, 2, analysis.Classes[1].StudentCount)
	assert.InDelta(t, 90.0, analysis.Classes[1].AvgTotal, 1e-9)
}

func TestAnalyzeGradeNonPositiveMaxScoreFallsBack(t *testing.T) {
	classA := strPtr("class-a")
	store := &mockAnalysisScoreStore{scores: []models.Score{
		analysisRow("s1", "stu-a", "20230001", "Alice Chen", models.SubjectMath, 10, classA, nil, nil),
		analysisRow("s2", "stu-b", "20230002", "Bob Lin", models.SubjectMath, 5, classA, nil, nil),
	}}
	svc := newAnalysisFixture(store, []models.ExamSubject{
		{ExamID: "exam-1", SubjectCode: models.SubjectMath, MaxScore: -1},
	})

	analysis, err := svc.AnalyzeGrade(context.Background(), "exam-1", models.GradeJunior1)
	require.NoError(t, err)

	// A misconfigured non-positive full mark never divides the
	// distribution; the grade-level default takes over.
	require.Len(t, analysis.Subjects, 1)
	assert.Equal(t, 120.0, analysis.Subjects[0].MaxScore)
	assert.Equal(t, 2, analysis.Subjects[0].Distribution.Fail)
}

func TestAnalyzeGradeDefaultsToExamGrade(t *testing.T) {
	classA := strPtr("class-a")
	store := &mockAnalysisScoreStore{scores: []models.Score{
		analysisRow("s1", "stu-a", "20230001", "Alice Chen", models.SubjectMath, 88, classA, nil, nil),
	}}
	svc := newAnalysisFixture(store, nil)

	analysis, err := svc.AnalyzeGrade(context.Background(), "exam-1", "")
	require.NoError(t, err)
	assert.Equal(t, models.GradeJunior1, analysis.GradeLevel)
	require.NotEmpty(t, store.filters)
	assert.Equal(t, models.GradeJunior1, store.filters[len(store.filters)-1].GradeLevel)
}
