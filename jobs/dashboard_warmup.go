package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/dojo-planner/dojo/internal/dojo"
	jobmetrics "github.com/dojo-planner/dojo/internal/jobs"
	"github.com/dojo-planner/dojo/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// DashboardReads is the subset of the dojo service the warmup job primes.
type DashboardReads interface {
	MembersSummary(ctx context.Context) (dojo.MembersSummary, error)
	DashboardStats(ctx context.Context) (dojo.DashboardStats, error)
	Recommendations(ctx context.Context) ([]dojo.Recommendation, error)
	RecentActivity(ctx context.Context) ([]dojo.Activity, error)
	EarningsTrend(ctx context.Context, period string) ([]dojo.EarningsPoint, error)
	MemberGrowth(ctx context.Context, period string) ([]dojo.GrowthPoint, error)
	Invalidate(ctx context.Context) error
}

// DashboardWarmupJob fills the Redis cache so the first dashboard load after
// a deploy or a data import does not hit Postgres for every panel.
type DashboardWarmupJob struct {
	Reads   DashboardReads
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	// Limit caps concurrent reads. Zero means four.
	Limit int
}

// NewDashboardWarmupJob wires dependencies for the warmup handler.
func NewDashboardWarmupJob(reads DashboardReads, logger *slog.Logger, metrics *jobmetrics.Metrics) *DashboardWarmupJob {
	return &DashboardWarmupJob{Reads: reads, Logger: logger, Metrics: metrics}
}

// Handle processes warmup tasks.
func (j *DashboardWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reads == nil {
		return errors.New("dashboard warmup: handler not configured")
	}
	var payload DashboardWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("dashboard warmup: decode payload: %w", asynq.SkipRetry)
		}
	}
	return j.Run(ctx, payload)
}

// Run primes every dashboard read. A failing read does not stop the others;
// the first failure is returned once all reads finished.
func (j *DashboardWarmupJob) Run(ctx context.Context, payload DashboardWarmupPayload) (resultErr error) {
	tracker := j.metrics().Track(TaskDashboardWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	if payload.Invalidate {
		if err := j.Reads.Invalidate(ctx); err != nil {
			logger.Error("dashboard warmup invalidate", slog.Any("error", err))
			return err
		}
	}
	periods := payload.Periods
	if len(periods) == 0 {
		periods = shared.Periods
	}

	reads := map[string]func(context.Context) error{
		"members_summary": func(ctx context.Context) error { _, err := j.Reads.MembersSummary(ctx); return err },
		"stats":           func(ctx context.Context) error { _, err := j.Reads.DashboardStats(ctx); return err },
		"recommendations": func(ctx context.Context) error { _, err := j.Reads.Recommendations(ctx); return err },
		"activity":        func(ctx context.Context) error { _, err := j.Reads.RecentActivity(ctx); return err },
	}
	for _, period := range periods {
		reads["earnings_trend:"+period] = func(ctx context.Context) error { _, err := j.Reads.EarningsTrend(ctx, period); return err }
		reads["member_growth:"+period] = func(ctx context.Context) error { _, err := j.Reads.MemberGrowth(ctx, period); return err }
	}

	limit := j.Limit
	if limit <= 0 {
		limit = 4
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for name, read := range reads {
		g.Go(func() error {
			err := read(ctx)
			j.metrics().AddWarmed(name, err == nil)
			if err != nil {
				logger.Warn("dashboard warmup read", slog.String("read", name), slog.Any("error", err))
				return fmt.Errorf("dashboard warmup %s: %w", name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("dashboard warmup completed", slog.Int("reads", len(reads)))
	return nil
}

func (j *DashboardWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDashboardWarmup))
	}
	return slog.Default().With(slog.String("job", TaskDashboardWarmup))
}

func (j *DashboardWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
