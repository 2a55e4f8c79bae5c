package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
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

type fakeScoreStore struct {
	scores     []models.Score
	total      int
	err        error
	lastFilter models.ScoreFilter
}

func (f *fakeScoreStore) ListPaged(ctx context.Context, filter models.ScoreFilter, page, pageSize int) ([]models.Score, int, error) {
	f.lastFilter = filter
	return f.scores, f.total, f.err
}

func (f *fakeScoreStore) ListByExamAndStudents(ctx context.Context, examID string, studentIDs []string) (map[[2]string]models.Score, error) {
	return map[[2]string]models.Score{}, nil
}

func (f *fakeScoreStore) BulkWrite(ctx context.Context, creates []models.Score, updates []models.ScoreValueUpdate) (int, error) {
	return len(creates) + len(updates), nil
}

type fakeStudentResolver struct {
	students map[string]models.Student
}

func (f *fakeStudentResolver) FindByStudentIDs(ctx context.Context, studentIDs []string) (map[string]models.Student, error) {
	out := make(map[string]models.Student)
	for _, number := range studentIDs {
		if st, ok := f.students[number]; ok {
			out[number] = st
		}
	}
	return out, nil
}

type fakeExamReader struct {
	exam *models.Exam
	err  error
}

func (f *fakeExamReader) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.exam, nil
}

func (f *fakeExamReader) ListSubjects(ctx context.Context, examID string) ([]models.ExamSubject, error) {
	return nil, nil
}

func newImportService(store *fakeScoreStore) *service.ImportService {
	students := &fakeStudentResolver{students: map[string]models.Student{
		"20230001": {ID: "uuid-1", StudentID: "20230001", Name: "Alice Chen", GradeLevel: models.GradeJunior1},
	}}
	exams := &fakeExamReader{exam: &models.Exam{ID: "exam-1", GradeLevel: models.GradeJunior1}}
	return service.NewImportService(store, students, exams, nil, nil, zap.NewNop(), 200, 20)
}

func TestScoreHandlerListRequiresExamID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewScoreHandler(&fakeScoreStore{}, newImportService(&fakeScoreStore{}))

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/scores", nil)

	h.List(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScoreHandlerListSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &fakeScoreStore{scores: []models.Score{{ID: "s1", SubjectCode: models.SubjectMath}}, total: 1}
	h := NewScoreHandler(store, newImportService(&fakeScoreStore{}))

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/scores?examId=exam-1&gradeLevel=J1&page=2", nil)

	h.List(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "exam-1", store.lastFilter.ExamID)
	assert.Equal(t, models.GradeJunior1, store.lastFilter.GradeLevel)

	var envelope struct {
		Pagination models.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, 2, envelope.Pagination.Page)
	assert.Equal(t, 1, envelope.Pagination.TotalCount)
}

func multipartUpload(t *testing.T, examID, csvBody string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	require.NoError(t, writer.WriteField("examId", examID))
	part, err := writer.CreateFormFile("file", "scores.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(csvBody))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return buf, writer.FormDataContentType()
}

func TestScoreHandlerImport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &fakeScoreStore{}
	h := NewScoreHandler(store, newImportService(store))

	body, contentType := multipartUpload(t, "exam-1", "student_id,student_name,math\n20230001,Alice Chen,95\n")
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/scores/import", body)
	c.Request.Header.Set("Content-Type", contentType)

	h.Import(c)
	require.Equal(t, http.StatusOK, rec.Code)

	var result service.ImportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.ImportedCount)
	// No trigger is wired in this fixture, so the degraded status surfaces.
	assert.Equal(t, service.StatusQueueNotInstalled, result.RankingUpdateStatus)
}

func TestScoreHandlerImportMissingFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewScoreHandler(&fakeScoreStore{}, newImportService(&fakeScoreStore{}))

	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	require.NoError(t, writer.WriteField("examId", "exam-1"))
	require.NoError(t, writer.Close())

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/scores/import", buf)
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())

	h.Import(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScoreHandlerTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewScoreHandler(&fakeScoreStore{}, newImportService(&fakeScoreStore{}))

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/scores/import/template", nil)

	h.Template(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "score_import_template.csv")
	assert.Contains(t, rec.Body.String(), "student_id,student_name")
}
