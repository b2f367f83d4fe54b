package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dojo-planner/dojo/jobs"
)

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers against the given Redis connection.
func NewJobsCLI(opt asynq.RedisClientOpt) *JobsCLI {
	return &JobsCLI{client: asynq.NewClient(opt), inspector: asynq.NewInspector(opt)}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// Job names accepted by Trigger.
const (
	JobWarmup  = "warmup"
	JobCleanup = "cleanup"
)

// BuildTask maps a CLI job name onto its task. invalidate only applies to
// the warmup job.
func BuildTask(name string, invalidate bool, retention time.Duration) (*asynq.Task, error) {
	switch name {
	case JobWarmup, jobs.TaskDashboardWarmup:
		return jobs.NewDashboardWarmupTask(jobs.DashboardWarmupPayload{Invalidate: invalidate})
	case JobCleanup, jobs.TaskIdempotencyCleanup:
		return jobs.NewIdempotencyCleanupTask(jobs.IdempotencyCleanupPayload{Retention: retention})
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
}

// Trigger enqueues a supported job by name.
func (c *JobsCLI) Trigger(ctx context.Context, name string, invalidate bool, retention time.Duration) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	task, err := BuildTask(name, invalidate, retention)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task)
}

// QueueStats returns the default queue counters.
func (c *JobsCLI) QueueStats() (jobs.QueueHealth, error) {
	if c == nil || c.inspector == nil {
		return jobs.QueueHealth{}, errors.New("jobs cli: inspector not configured")
	}
	return jobs.NewHandler(c.inspector, nil).Stats()
}

// ListScheduled returns scheduled task infos for observability.
func (c *JobsCLI) ListScheduled(size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
}
