package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/agendamentos/backend/internal/reliability"
	"github.com/agendamentos/backend/internal/reports"
	"github.com/agendamentos/backend/pkg/database"
	"github.com/agendamentos/backend/pkg/queue"
	"github.com/agendamentos/backend/pkg/storage"
)

// ExportProcessor processes report export jobs: run the report query, render
// CSV, upload to S3 under the export key the API hands out.
type ExportProcessor struct {
	reports *reports.Repository
	s3      *storage.S3
	queue   *queue.Queue
	logger  *zap.Logger
}

// NewExportProcessor creates a report export processor.
func NewExportProcessor(repo *reports.Repository, s3 *storage.S3, q *queue.Queue, logger *zap.Logger) *ExportProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportProcessor{reports: repo, s3: s3, queue: q, logger: logger}
}

// Process executes one export job.
func (p *ExportProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeExport {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.ExportPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	key := storage.ExportKey(payload.ExportID.String())
	if p.s3.ObjectExists(ctx, p.s3.ExportsBucket(), key) {
		p.logger.Info("export already uploaded", zap.String("export_id", payload.ExportID.String()))
		return nil
	}

	var body []byte
	var err error
	switch payload.Kind {
	case queue.ExportReservations:
		var rows []reports.ReservationRow
		if rows, err = p.reports.Reservations(ctx, payload.EventID); err == nil {
			body, err = reports.ReservationsCSV(rows)
		}
	case queue.ExportUsers:
		var rows []reports.UserRow
		if rows, err = p.reports.Users(ctx); err == nil {
			body, err = reports.UsersCSV(rows)
		}
	case queue.ExportPresence:
		var rows []reports.PresenceRow
		if rows, err = p.reports.Presence(ctx, payload.EventID); err == nil {
			body, err = reports.PresenceCSV(rows)
		}
	default:
		return fmt.Errorf("unknown export kind: %s", payload.Kind)
	}
	if err != nil {
		return fmt.Errorf("build export: %w", err)
	}

	if _, err := p.s3.Upload(ctx, p.s3.ExportsBucket(), key, "text/csv", bytes.NewReader(body)); err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}

	p.logger.Info("export completed",
		zap.String("export_id", payload.ExportID.String()),
		zap.String("kind", payload.Kind),
		zap.Int("bytes", len(body)))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ExportProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("export worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}

// LockSweeper periodically lifts expired reliability locks so accounts of
// users who never log back in do not stay flagged as locked.
type LockSweeper struct {
	db       database.Querier
	interval time.Duration
	logger   *zap.Logger
}

// NewLockSweeper creates a sweeper running at the given interval.
func NewLockSweeper(db database.Querier, interval time.Duration, logger *zap.Logger) *LockSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LockSweeper{db: db, interval: interval, logger: logger}
}

// Run sweeps until ctx is done. One sweep runs immediately on start.
func (s *LockSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("lock sweeper stopping")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *LockSweeper) sweep(ctx context.Context) {
	n, err := reliability.SweepExpiredLocks(ctx, s.db, time.Now())
	if err != nil {
		s.logger.Warn("lock sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("expired locks lifted", zap.Int64("count", n))
	}
}
