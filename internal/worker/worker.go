package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/nybble-vibe/backend/internal/analytics"
	"github.com/nybble-vibe/backend/internal/engagement"
	"github.com/nybble-vibe/backend/internal/models"
	"github.com/nybble-vibe/backend/pkg/queue"
)

// Uploader stores a rendered report. Implemented by *storage.S3.
type Uploader interface {
	PutReport(ctx context.Context, eventID string, body io.Reader, size int64) (string, error)
}

// Jobs is the queue the processor consumes. Implemented by *queue.Queue.
type Jobs interface {
	Dequeue(ctx context.Context) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Enqueuer schedules report jobs. Implemented by *queue.Queue.
type Enqueuer interface {
	EnqueueEventReport(ctx context.Context, payload queue.EventReportPayload) error
}

// ReportProcessor builds the archive of a closed event and uploads it.
type ReportProcessor struct {
	reader   engagement.Reader
	uploader Uploader
	jobs     Jobs
	logger   *zap.Logger
	now      func() time.Time
}

// NewReportProcessor creates a report processor.
func NewReportProcessor(reader engagement.Reader, uploader Uploader, jobs Jobs, logger *zap.Logger) *ReportProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportProcessor{
		reader:   reader,
		uploader: uploader,
		jobs:     jobs,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Process executes one report job.
func (p *ReportProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEventReport {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.EventReportPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	rep, err := analytics.BuildReport(ctx, p.reader, payload.EventID, p.now())
	if err != nil {
		if engagement.KindOf(err) == engagement.KindNotFound {
			// Deleted after closing; nothing left to archive.
			p.logger.Info("report skipped, event gone", zap.String("event_id", payload.EventID.String()))
			return nil
		}
		return fmt.Errorf("build report: %w", err)
	}
	body, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	url, err := p.uploader.PutReport(ctx, payload.EventID.String(), bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	p.logger.Info("event report uploaded",
		zap.String("event_id", payload.EventID.String()),
		zap.String("url", url),
		zap.Int("participants", len(rep.Leaderboard)),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ReportProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("report worker stopping")
			return
		default:
		}

		job, _, err := p.jobs.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			sleep(ctx, queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.jobs.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			sleep(ctx, queue.RetryBackoff)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// EnqueueOnClose returns a post-commit hook that schedules a report when an event enters the closed phase.
func EnqueueOnClose(q Enqueuer) engagement.Hook {
	return func(ctx context.Context, o engagement.Outcome) error {
		if o.Kind != engagement.OutcomePhaseChanged || o.Event == nil || o.Event.Phase != models.PhaseClosed {
			return nil
		}
		return q.EnqueueEventReport(ctx, queue.EventReportPayload{EventID: o.EventID, ClosedAt: o.Event.UpdatedAt})
	}
}
