package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edusys/exam-ranking-api/internal/models"
	"github.com/edusys/exam-ranking-api/internal/service"
	appErrors "github.com/edusys/exam-ranking-api/pkg/errors"
	"github.com/edusys/exam-ranking-api/pkg/response"
)

// ScoreStore lists score records for the read endpoints.
type ScoreStore interface {
	ListPaged(ctx context.Context, filter models.ScoreFilter, page, pageSize int) ([]models.Score, int, error)
}

// ScoreHandler exposes score listing and bulk import endpoints.
type ScoreHandler struct {
	scores  ScoreStore
	imports *service.ImportService
}

// NewScoreHandler constructs the score handler.
func NewScoreHandler(scores ScoreStore, imports *service.ImportService) *ScoreHandler {
	return &ScoreHandler{scores: scores, imports: imports}
}

// List godoc
// @Summary List score records
// @Tags Scores
// @Produce json
// @Param examId query string true "Exam ID"
// @Param gradeLevel query string false "Filter by grade level"
// @Param classId query string false "Filter by class"
// @Param subjectCode query string false "Filter by subject"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /scores [get]
func (h *ScoreHandler) List(c *gin.Context) {
	examID := c.Query("examId")
	if examID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "examId is required"))
		return
	}
	filter := models.ScoreFilter{
		ExamID:      examID,
		GradeLevel:  c.Query("gradeLevel"),
		ClassID:     c.Query("classId"),
		SubjectCode: c.Query("subjectCode"),
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	scores, total, err := h.scores.ListPaged(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scores, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total})
}

// Import godoc
// @Summary Bulk import scores from a CSV upload
// @Tags Scores
// @Accept multipart/form-data
// @Produce json
// @Param examId formData string true "Exam ID"
// @Param file formData file true "CSV file"
// @Success 200 {object} service.ImportResult
// @Router /scores/import [post]
func (h *ScoreHandler) Import(c *gin.Context) {
	examID := c.PostForm("examId")
	if examID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "examId is required"))
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to open upload"))
		return
	}
	defer file.Close()

	result, err := h.imports.ImportCSV(c.Request.Context(), examID, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	// Partial and complete failures alike carry HTTP 200: the result body
	// is the contract.
	c.JSON(http.StatusOK, result)
}

// Template godoc
// @Summary Download the CSV import template
// @Tags Scores
// @Produce text/csv
// @Success 200 {file} file
// @Router /scores/import/template [get]
func (h *ScoreHandler) Template(c *gin.Context) {
	data, err := h.imports.Template()
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="score_import_template.csv"`)
	c.Data(http.StatusOK, "text/csv", data)
}
