package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edusys/exam-ranking-api/internal/models"
	"github.com/edusys/exam-ranking-api/internal/service"
)

type fakeAnalysisStore struct {
	scores []models.Score
}

func (f *fakeAnalysisStore) List(ctx context.Context, filter models.ScoreFilter) ([]models.Score, error) {
	return f.scores, nil
}

func newAnalysisFixture() *AnalysisHandler {
	classA := "class-a"
	store := &fakeAnalysisStore{scores: []models.Score{
		{
			ID: "s1", StudentID: "stu-a", ExamID: "exam-1",
			SubjectCode: models.SubjectMath, ScoreValue: 95,
			GradeLevel: models.GradeJunior1, ClassID: &classA,
			StudentNumber: "20230001", StudentName: "Alice Chen",
		},
		{
			ID: "s2", StudentID: "stu-b", ExamID: "exam-1",
			SubjectCode: models.SubjectMath, ScoreValue: 82,
			GradeLevel: models.GradeJunior1, ClassID: &classA,
			StudentNumber: "20230002", StudentName: "Bob Lin",
		},
	}}
	exams := &fakeExamReader{exam: &models.Exam{ID: "exam-1", GradeLevel: models.GradeJunior1}}
	svc := service.NewAnalysisService(store, exams, nil, nil, zap.NewNop(), 0, nil)
	return NewAnalysisHandler(svc)
}

func TestAnalysisHandlerClassRequiresParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newAnalysisFixture()

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/analysis/class?examId=exam-1", nil)

	h.Class(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalysisHandlerClassSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newAnalysisFixture()

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/analysis/class?examId=exam-1&classId=class-a", nil)

	h.Class(c)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data models.ClassAnalysis `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, 2, envelope.Data.TotalStudents)
	require.Len(t, envelope.Data.Rankings, 2)
	assert.Equal(t, "20230001", envelope.Data.Rankings[0].StudentID)
	assert.Equal(t, 1, envelope.Data.Rankings[0].Rank)
}

func TestAnalysisHandlerGradeSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newAnalysisFixture()

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/analysis/grade?examId=exam-1", nil)

	h.Grade(c)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data models.GradeAnalysis `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, models.GradeJunior1, envelope.Data.GradeLevel)
	require.Len(t, envelope.Data.Classes, 1)
	assert.Equal(t, "class-a", envelope.Data.Classes[0].ClassID)
}

func TestAnalysisHandlerExportClassCSV(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newAnalysisFixture()

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/analysis/class/export?examId=exam-1&classId=class-a&format=csv", nil)

	h.ExportClass(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "class_class-a_rankings.csv")
	assert.Contains(t, rec.Body.String(), "20230001")
}

func TestAnalysisHandlerExportClassBadFormat(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newAnalysisFixture()

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/analysis/class/export?examId=exam-1&classId=class-a&format=xml", nil)

	h.ExportClass(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
