package service

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edusys/exam-ranking-api/internal/models"
	appErrors "github.com/edusys/exam-ranking-api/pkg/errors"
	"github.com/edusys/exam-ranking-api/pkg/export"
)

// Import file column headers.
const (
	importColStudentID   = "student_id"
	importColStudentName = "student_name"
)

type importScoreStore interface {
	ListByExamAndStudents(ctx context.Context, examID string, studentIDs []string) (map[[2]string]models.Score, error)
	BulkWrite(ctx context.Context, creates []models.Score, updates []models.ScoreValueUpdate) (int, error)
}

type studentResolver interface {
	FindByStudentIDs(ctx context.Context, studentIDs []string) (map[string]models.Student, error)
}

// RowError describes why one upload row failed. The field names are part of
// the import result wire contract consumed by the upload UI.
type RowError struct {
	Row         int      `json:"row"`
	StudentID   string   `json:"student_id"`
	StudentName string   `json:"student_name"`
	Errors      []string `json:"errors"`
}

// ImportResult is the structured outcome of one bulk score upload.
type ImportResult struct {
	Success             bool          `json:"success"`
	Message             string        `json:"message"`
	ImportedCount       int           `json:"imported_count"`
	FailedCount         int           `json:"failed_count"`
	ErrorDetails        []RowError    `json:"error_details"`
	RankingUpdateStatus TriggerStatus `json:"ranking_update_status"`
	ExecutionTime       float64       `json:"execution_time"`
}

// ImportService ingests tabular score uploads for one exam: it validates
// every student/subject cell independently, commits all valid cells in a
// single transaction, and requests an asynchronous ranking recompute for
// the exam afterwards.
type ImportService struct {
	scores   importScoreStore
	students studentResolver
	exams    examReader
	trigger  RankingTrigger
	metrics  *MetricsService
	logger   *zap.Logger

	maxScoreValue   float64
	maxErrorDetails int
}

// NewImportService constructs the import pipeline. maxScoreValue is the
// upper sanity bound applied to every parsed cell; maxErrorDetails caps the
// error detail list in the result.
func NewImportService(scores importScoreStore, students studentResolver, exams examReader, trigger RankingTrigger, metrics *MetricsService, logger *zap.Logger, maxScoreValue float64, maxErrorDetails int) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxScoreValue <= 0 {
		maxScoreValue = 200
	}
	if maxErrorDetails <= 0 {
		maxErrorDetails = 20
	}
	if trigger == nil {
		trigger = NewNoopTrigger(logger)
	}
	return &ImportService{
		scores:          scores,
		students:        students,
		exams:           exams,
		trigger:         trigger,
		metrics:         metrics,
		logger:          logger,
		maxScoreValue:   maxScoreValue,
		maxErrorDetails: maxErrorDetails,
	}
}

type importRow struct {
	index int
	cells map[string]string
}

// ImportCSV ingests a CSV upload (header row plus data rows) for the exam.
// Row and cell level validation failures never abort the batch; they are
// reported per row while valid rows still commit. A rejected bulk write
// fails the whole batch with nothing imported.
func (s *ImportService) ImportCSV(ctx context.Context, examID string, r io.Reader) (*ImportResult, error) {
	start := time.Now()

	exam, err := s.exams.FindByID(ctx, examID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("exam %s not found", examID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}

	header, rows, err := readImportTable(r)
	if err != nil {
		return &ImportResult{
			Success:             false,
			Message:             fmt.Sprintf("file processing failed: %v", err),
			RankingUpdateStatus: StatusSkipped,
			ExecutionTime:       time.Since(start).Seconds(),
		}, nil
	}
	if _, ok := header[importColStudentID]; !ok {
		return &ImportResult{
			Success:             false,
			Message:             "file processing failed: missing student_id column",
			RankingUpdateStatus: StatusSkipped,
			ExecutionTime:       time.Since(start).Seconds(),
		}, nil
	}

	// Subject columns are matched against the static subject enumeration;
	// unrecognised headers are ignored entirely.
	var subjectCols []string
	for col := range header {
		if models.IsValidSubject(col) {
			subjectCols = append(subjectCols, col)
		}
	}

	numbers := make([]string, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		number := strings.TrimSpace(row.cells[importColStudentID])
		if number == "" {
			continue
		}
		if _, ok := seen[number]; !ok {
			seen[number] = struct{}{}
			numbers = append(numbers, number)
		}
	}

	studentsByNumber, err := s.students.FindByStudentIDs(ctx, numbers)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve students")
	}

	studentPKs := make([]string, 0, len(studentsByNumber))
	for _, st := range studentsByNumber {
		studentPKs = append(studentPKs, st.ID)
	}
	existing, err := s.scores.ListByExamAndStudents(ctx, examID, studentPKs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing scores")
	}

	var creates []models.Score
	var updates []models.ScoreValueUpdate
	var errorDetails []RowError
	succeeded := make(map[string]struct{})
	failed := make(map[string]struct{})

	for _, row := range rows {
		number := strings.TrimSpace(row.cells[importColStudentID])
		name := strings.TrimSpace(row.cells[importColStudentName])

		if number == "" {
			failed[fmt.Sprintf("row:%d", row.index)] = struct{}{}
			errorDetails = append(errorDetails, RowError{Row: row.index, StudentName: name, Errors: []string{"missing student_id"}})
			continue
		}

		student, ok := studentsByNumber[number]
		if !ok {
			failed[number] = struct{}{}
			errorDetails = append(errorDetails, RowError{Row: row.index, StudentID: number, StudentName: name, Errors: []string{fmt.Sprintf("student %s not found", number)}})
			continue
		}

		// Name corroboration guards against transposed identifiers: on
		// mismatch the whole row is skipped.
		if name != "" && student.Name != name {
			failed[number] = struct{}{}
			errorDetails = append(errorDetails, RowError{Row: row.index, StudentID: number, StudentName: name, Errors: []string{fmt.Sprintf("student name does not match student %s", number)}})
			continue
		}

		var cellErrors []string
		hasValidScores := false
		for _, subject := range subjectCols {
			raw := strings.TrimSpace(row.cells[subject])
			if raw == "" {
				// Blank cell means no score provided, not zero.
				continue
			}
			value, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				cellErrors = append(cellErrors, fmt.Sprintf("%s: invalid score format", subject))
				continue
			}
			if value < 0 || value > s.maxScoreValue {
				cellErrors = append(cellErrors, fmt.Sprintf("%s: score outside valid range (0-%g)", subject, s.maxScoreValue))
				continue
			}
			if prior, ok := existing[[2]string{student.ID, subject}]; ok {
				updates = append(updates, models.ScoreValueUpdate{ID: prior.ID, ScoreValue: value})
			} else {
				creates = append(creates, models.Score{StudentID: student.ID, ExamID: examID, SubjectCode: subject, ScoreValue: value})
			}
			hasValidScores = true
		}

		if len(cellErrors) > 0 {
			failed[number] = struct{}{}
			errorDetails = append(errorDetails, RowError{Row: row.index, StudentID: number, StudentName: name, Errors: cellErrors})
		} else if hasValidScores {
			succeeded[number] = struct{}{}
		}
	}

	if _, err := s.scores.BulkWrite(ctx, creates, updates); err != nil {
		s.logger.Error("bulk score write rejected", zap.String("exam_id", examID), zap.Error(err))
		return &ImportResult{
			Success:             false,
			Message:             "bulk write rejected, no rows imported; resubmit the file",
			ImportedCount:       0,
			FailedCount:         len(rows),
			ErrorDetails:        capErrors(errorDetails, s.maxErrorDetails),
			RankingUpdateStatus: StatusSkipped,
			ExecutionTime:       time.Since(start).Seconds(),
		}, nil
	}

	imported := len(succeeded)
	failedCount := len(failed)

	status := StatusSkipped
	if imported > 0 {
		status = s.trigger.Submit(ctx, examID, exam.GradeLevel)
	}

	if s.metrics != nil {
		s.metrics.ObserveImport(imported, failedCount)
	}

	result := &ImportResult{
		Success:             imported > 0,
		ImportedCount:       imported,
		FailedCount:         failedCount,
		ErrorDetails:        capErrors(errorDetails, s.maxErrorDetails),
		RankingUpdateStatus: status,
		ExecutionTime:       time.Since(start).Seconds(),
	}
	result.Message = importMessage(result)
	s.logger.Info("score import finished",
		zap.String("exam_id", examID),
		zap.Int("imported_count", imported),
		zap.Int("failed_count", failedCount),
		zap.String("ranking_update_status", string(status)))
	return result, nil
}

// Template renders the CSV import template: identity columns followed by
// every recognised subject code.
func (s *ImportService) Template() ([]byte, error) {
	headers := append([]string{importColStudentID, importColStudentName}, models.SubjectCodes...)
	return export.NewCSVExporter().Render(export.Dataset{Headers: headers})
}

func readImportTable(r io.Reader) (map[string]int, []importRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("empty file")
	}
	header := make(map[string]int, len(records[0]))
	for i, col := range records[0] {
		header[strings.TrimSpace(col)] = i
	}
	rows := make([]importRow, 0, len(records)-1)
	for i, record := range records[1:] {
		cells := make(map[string]string, len(header))
		for col, idx := range header {
			if idx < len(record) {
				cells[col] = record[idx]
			}
		}
		rows = append(rows, importRow{index: i + 2, cells: cells})
	}
	return header, rows, nil
}

func capErrors(details []RowError, max int) []RowError {
	if details == nil {
		return []RowError{}
	}
	if len(details) > max {
		return details[:max]
	}
	return details
}

func importMessage(r *ImportResult) string {
	if r.ImportedCount == 0 {
		return fmt.Sprintf("upload failed: %d students failed in %.2fs", r.FailedCount, r.ExecutionTime)
	}
	msg := fmt.Sprintf("upload complete: %d students imported in %.2fs", r.ImportedCount, r.ExecutionTime)
	if r.FailedCount > 0 {
		msg += fmt.Sprintf(", %d students failed", r.FailedCount)
	}
	switch r.RankingUpdateStatus {
	case StatusAsyncSubmitted:
		msg += "; ranking update submitted to background queue"
	case StatusRedisUnavailable:
		msg += "; warning: queue broker unavailable, ranking update skipped"
	case StatusQueueNotInstalled:
		msg += "; warning: queue not installed, ranking update skipped"
	case StatusErrorSkipped, StatusSkipped:
		msg += "; ranking update skipped"
	}
	return msg
}
