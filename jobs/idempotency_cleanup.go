package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dojo-planner/dojo/internal/dojo"
	jobmetrics "github.com/dojo-planner/dojo/internal/jobs"
)

// KeyCleaner deletes idempotency keys recorded before a cutoff.
type KeyCleaner interface {
	Cleanup(ctx context.Context, module string, cutoff time.Time) (int64, error)
}

// IdempotencyCleanupJob expires completed recommendation markers so
// recommendations that still apply resurface.
type IdempotencyCleanupJob struct {
	Store   KeyCleaner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewIdempotencyCleanupJob wires the cleanup handler.
func NewIdempotencyCleanupJob(store KeyCleaner, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{
		Store:   store,
		Logger:  logger,
		Metrics: metrics,
		clock:   time.Now,
	}
}

// Handle processes cleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	var payload IdempotencyCleanupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("idempotency cleanup: decode payload: %w", asynq.SkipRetry)
		}
	}
	_, err := j.Run(ctx, payload)
	return err
}

// Run deletes expired keys and returns how many were removed.
func (j *IdempotencyCleanupJob) Run(ctx context.Context, payload IdempotencyCleanupPayload) (purged int64, resultErr error) {
	tracker := j.metrics().Track(TaskIdempotencyCleanup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	module := payload.Module
	if module == "" {
		module = dojo.CompletionModule
	}
	retention := payload.Retention
	if retention <= 0 {
		retention = DefaultCompletionRetention
	}
	cutoff := j.now().Add(-retention)

	purged, err := j.Store.Cleanup(ctx, module, cutoff)
	if err != nil {
		j.logger().Error("idempotency cleanup", slog.String("module", module), slog.Any("error", err))
		return 0, err
	}
	j.metrics().AddPurged(purged)
	j.logger().Info("idempotency cleanup completed",
		slog.String("module", module),
		slog.Time("cutoff", cutoff),
		slog.Int64("purged", purged))
	return purged, nil
}

func (j *IdempotencyCleanupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now()
}

func (j *IdempotencyCleanupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskIdempotencyCleanup))
	}
	return slog.Default().With(slog.String("job", TaskIdempotencyCleanup))
}

func (j *IdempotencyCleanupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
