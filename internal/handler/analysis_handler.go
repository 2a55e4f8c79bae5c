package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edusys/exam-ranking-api/internal/models"
	"github.com/edusys/exam-ranking-api/internal/service"
	appErrors "github.com/edusys/exam-ranking-api/pkg/errors"
	"github.com/edusys/exam-ranking-api/pkg/export"
	"github.com/edusys/exam-ranking-api/pkg/response"
)

// AnalysisHandler exposes descriptive analysis endpoints.
type AnalysisHandler struct {
	analysis *service.AnalysisService
}

// NewAnalysisHandler constructs the analysis handler.
func NewAnalysisHandler(analysis *service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{analysis: analysis}
}

// Class godoc
// @Summary Class analysis for one exam
// @Tags Analysis
// @Produce json
// @Param examId query string true "Exam ID"
// @Param classId query string true "Class ID"
// @Success 200 {object} models.ClassAnalysis
// @Router /analysis/class [get]
func (h *AnalysisHandler) Class(c *gin.Context) {
	examID, classID := c.Query("examId"), c.Query("classId")
	if examID == "" || classID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "examId and classId are required"))
		return
	}
	analysis, err := h.analysis.AnalyzeClass(c.Request.Context(), examID, classID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, analysis, nil)
}

// Grade godoc
// @Summary Grade-level analysis for one exam
// @Tags Analysis
// @Produce json
// @Param examId query string true "Exam ID"
// @Param gradeLevel query string false "Grade level, defaults to the exam's"
// @Success 200 {object} models.GradeAnalysis
// @Router /analysis/grade [get]
func (h *AnalysisHandler) Grade(c *gin.Context) {
	examID := c.Query("examId")
	if examID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "examId is required"))
		return
	}
	analysis, err := h.analysis.AnalyzeGrade(c.Request.Context(), examID, c.Query("gradeLevel"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, analysis, nil)
}

// ExportClass godoc
// @Summary Export a class analysis ranking table
// @Tags Analysis
// @Produce text/csv
// @Param examId query string true "Exam ID"
// @Param classId query string true "Class ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /analysis/class/export [get]
func (h *AnalysisHandler) ExportClass(c *gin.Context) {
	examID, classID := c.Query("examId"), c.Query("classId")
	if examID == "" || classID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "examId and classId are required"))
		return
	}
	analysis, err := h.analysis.AnalyzeClass(c.Request.Context(), examID, classID)
	if err != nil {
		response.Error(c, err)
		return
	}

	dataset := classRankingDataset(analysis)
	switch c.DefaultQuery("format", "csv") {
	case "csv":
		data, err := export.NewCSVExporter().Render(dataset)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="class_%s_rankings.csv"`, classID))
		c.Data(http.StatusOK, "text/csv", data)
	case "pdf":
		data, err := export.NewPDFExporter().Render(dataset, fmt.Sprintf("Class %s Rankings", classID))
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="class_%s_rankings.pdf"`, classID))
		c.Data(http.StatusOK, "application/pdf", data)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
	}
}

func classRankingDataset(analysis *models.ClassAnalysis) export.Dataset {
	headers := []string{"rank", "student_id", "student_name", "total_score", "subject_count", "grade_rank"}
	rows := make([]map[string]string, 0, len(analysis.Rankings))
	for _, r := range analysis.Rankings {
		row := map[string]string{
			"rank":          strconv.Itoa(r.Rank),
			"student_id":    r.StudentID,
			"student_name":  r.StudentName,
			"total_score":   strconv.FormatFloat(r.TotalScore, 'f', -1, 64),
			"subject_count": strconv.Itoa(r.SubjectCount),
		}
		if r.GradeRank != nil {
			row["grade_rank"] = strconv.Itoa(*r.GradeRank)
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
