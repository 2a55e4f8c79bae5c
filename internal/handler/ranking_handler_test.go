package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edusys/exam-ranking-api/internal/models"
	"github.com/edusys/exam-ranking-api/internal/service"
)

type fakeRankStore struct {
	scores []models.Score
}

func (f *fakeRankStore) List(ctx context.Context, filter models.ScoreFilter) ([]models.Score, error) {
	return f.scores, nil
}

func (f *fakeRankStore) DistinctGrades(ctx context.Context, examID string) ([]string, error) {
	return []string{models.GradeJunior1}, nil
}

func (f *fakeRankStore) BulkUpdateRankFields(ctx context.Context, scores []models.Score) (int, error) {
	return len(scores), nil
}

type fakeTrigger struct {
	status service.TriggerStatus
}

func (f *fakeTrigger) Submit(ctx context.Context, examID, gradeLevel string) service.TriggerStatus {
	return f.status
}

func newRankingFixture(status service.TriggerStatus) *RankingHandler {
	classA := "class-a"
	store := &fakeRankStore{scores: []models.Score{{
		ID: "s1", StudentID: "stu-a", ExamID: "exam-1",
		SubjectCode: models.SubjectMath, ScoreValue: 95,
		GradeLevel: models.GradeJunior1, ClassID: &classA,
	}}}
	exams := &fakeExamReader{exam: &models.Exam{ID: "exam-1", GradeLevel: models.GradeJunior1}}
	svc := service.NewRankingService(store, exams, nil, nil, zap.NewNop(), 1000)
	return NewRankingHandler(svc, &fakeTrigger{status: status})
}

func TestRankingHandlerRecompute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newRankingFixture(service.StatusAsyncSubmitted)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/rankings/recompute", strings.NewReader(`{"exam_id":"exam-1"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Recompute(c)
	require.Equal(t, http.StatusOK, rec.Code)

	var result service.RecomputeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.UpdatedCount)
}

func TestRankingHandlerRecomputeInvalidPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newRankingFixture(service.StatusAsyncSubmitted)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/rankings/recompute", strings.NewReader(`{}`))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Recompute(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRankingHandlerRecomputeAsyncSubmitted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newRankingFixture(service.StatusAsyncSubmitted)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/rankings/recompute/async", strings.NewReader(`{"exam_id":"exam-1"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	h.RecomputeAsync(c)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "async_submitted")
}

func TestRankingHandlerRecomputeAsyncDegraded(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newRankingFixture(service.StatusRedisUnavailable)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/rankings/recompute/async", strings.NewReader(`{"exam_id":"exam-1"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	h.RecomputeAsync(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis_unavailable")
}
