package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edusys/exam-ranking-api/pkg/jobs"
)

// TriggerStatus tells callers what happened to a ranking recompute request.
// These values are part of the import result wire contract.
type TriggerStatus string

const (
	StatusAsyncSubmitted    TriggerStatus = "async_submitted"
	StatusRedisUnavailable  TriggerStatus = "redis_unavailable"
	StatusQueueNotInstalled TriggerStatus = "queue_not_installed"
	StatusSkipped           TriggerStatus = "skipped"
	StatusErrorSkipped      TriggerStatus = "error_skipped"
)

// JobTypeRankingRecompute labels recompute jobs on the queue.
const JobTypeRankingRecompute = "ranking_recompute"

// RecomputeJob is the payload carried by a queued recompute request.
type RecomputeJob struct {
	ExamID     string `json:"exam_id"`
	GradeLevel string `json:"grade_level,omitempty"`
}

// RankingTrigger submits ranking recomputation for background execution.
// Implementations never raise queue failures to the caller: the returned
// status tells the caller whether ranking freshness was deferred, and the
// caller's own success is reported independently.
type RankingTrigger interface {
	Submit(ctx context.Context, examID, gradeLevel string) TriggerStatus
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type connectivityProbe interface {
	Ping(ctx context.Context) error
}

// QueueTrigger submits recompute jobs to the background worker queue after
// probing broker connectivity.
type QueueTrigger struct {
	queue   jobDispatcher
	probe   connectivityProbe
	logger  *zap.Logger
	timeout time.Duration
}

// NewQueueTrigger constructs a queue-backed trigger. probe may be nil when
// no broker connectivity check is needed.
func NewQueueTrigger(queue jobDispatcher, probe connectivityProbe, logger *zap.Logger, timeout time.Duration) *QueueTrigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 20 * time.Minute
	}
	return &QueueTrigger{queue: queue, probe: probe, logger: logger, timeout: timeout}
}

// Submit enqueues a recompute job. Multiple submissions for the same
// exam/grade are harmless: recompute is idempotent, so redundant or
// out-of-order execution converges to the same rank values.
func (t *QueueTrigger) Submit(ctx context.Context, examID, gradeLevel string) TriggerStatus {
	if t.queue == nil {
		return StatusQueueNotInstalled
	}
	if t.probe != nil {
		if err := t.probe.Ping(ctx); err != nil {
			t.logger.Warn("ranking queue broker unreachable, skipping recompute",
				zap.String("exam_id", examID), zap.Error(err))
			return StatusRedisUnavailable
		}
	}
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    JobTypeRankingRecompute,
		Payload: RecomputeJob{ExamID: examID, GradeLevel: gradeLevel},
		Timeout: t.timeout,
	}
	if err := t.queue.Enqueue(job); err != nil {
		t.logger.Warn("ranking recompute enqueue failed, skipping",
			zap.String("exam_id", examID), zap.Error(err))
		return StatusErrorSkipped
	}
	t.logger.Info("ranking recompute submitted",
		zap.String("job_id", job.ID),
		zap.String("exam_id", examID),
		zap.String("grade_level", gradeLevel))
	return StatusAsyncSubmitted
}

// NoopTrigger is the degraded trigger selected at startup when async
// ranking is disabled or no queue subsystem is configured.
type NoopTrigger struct {
	logger *zap.Logger
}

// NewNoopTrigger constructs the degraded trigger.
func NewNoopTrigger(logger *zap.Logger) *NoopTrigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoopTrigger{logger: logger}
}

// Submit logs and reports that no queue is installed.
func (t *NoopTrigger) Submit(ctx context.Context, examID, gradeLevel string) TriggerStatus {
	t.logger.Info("ranking queue not installed, recompute skipped",
		zap.String("exam_id", examID), zap.String("grade_level", gradeLevel))
	return StatusQueueNotInstalled
}

// RankingWorker executes queued recompute jobs.
type RankingWorker struct {
	rankings *RankingService
	logger   *zap.Logger
}

// NewRankingWorker constructs the worker.
func NewRankingWorker(rankings *RankingService, logger *zap.Logger) *RankingWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RankingWorker{rankings: rankings, logger: logger}
}

// Handle runs one recompute job. A failed run returns an error so the queue
// can retry; retries are safe because recompute is idempotent.
func (w *RankingWorker) Handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(RecomputeJob)
	if !ok {
		w.logger.Error("unexpected job payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	result := w.rankings.RecomputeExam(ctx, payload.ExamID, payload.GradeLevel)
	if !result.Success {
		return &recomputeError{message: result.Message}
	}
	w.logger.Info("async ranking recompute finished",
		zap.String("job_id", job.ID),
		zap.String("exam_id", payload.ExamID),
		zap.Int("updated_count", result.UpdatedCount))
	return nil
}

type recomputeError struct {
	message string
}

func (e *recomputeError) Error() string {
	return e.message
}
