package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edusys/exam-ranking-api/internal/service"
	appErrors "github.com/edusys/exam-ranking-api/pkg/errors"
	"github.com/edusys/exam-ranking-api/pkg/response"
)

// RankingHandler exposes ranking recompute endpoints.
type RankingHandler struct {
	rankings *service.RankingService
	trigger  service.RankingTrigger
}

// NewRankingHandler constructs the ranking handler.
func NewRankingHandler(rankings *service.RankingService, trigger service.RankingTrigger) *RankingHandler {
	return &RankingHandler{rankings: rankings, trigger: trigger}
}

type recomputeRequest struct {
	ExamID     string `json:"exam_id" binding:"required"`
	GradeLevel string `json:"grade_level"`
}

// Recompute godoc
// @Summary Recompute rankings synchronously
// @Tags Rankings
// @Accept json
// @Produce json
// @Param payload body recomputeRequest true "Recompute request"
// @Success 200 {object} service.RecomputeResult
// @Router /rankings/recompute [post]
func (h *RankingHandler) Recompute(c *gin.Context) {
	var req recomputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result := h.rankings.RecomputeExam(c.Request.Context(), req.ExamID, req.GradeLevel)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, result)
}

// RecomputeAsync godoc
// @Summary Submit a ranking recompute to the background queue
// @Tags Rankings
// @Accept json
// @Produce json
// @Param payload body recomputeRequest true "Recompute request"
// @Success 202 {object} response.Envelope
// @Router /rankings/recompute/async [post]
func (h *RankingHandler) RecomputeAsync(c *gin.Context) {
	var req recomputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	status := h.trigger.Submit(c.Request.Context(), req.ExamID, req.GradeLevel)
	httpStatus := http.StatusAccepted
	if status != service.StatusAsyncSubmitted {
		// Degraded queue states are reported, not hidden behind a 5xx.
		httpStatus = http.StatusOK
	}
	response.JSON(c, httpStatus, gin.H{"ranking_update_status": status}, nil)
}
