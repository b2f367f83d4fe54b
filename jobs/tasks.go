package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDashboardWarmup primes the cached dashboard reads.
	TaskDashboardWarmup = "dojo:dashboard_warmup"
	// TaskIdempotencyCleanup purges completed recommendation markers.
	TaskIdempotencyCleanup = "dojo:idempotency_cleanup"

	// DefaultCompletionRetention keeps a completed recommendation hidden for a month.
	DefaultCompletionRetention = 30 * 24 * time.Hour
)

// DashboardWarmupPayload selects the chart periods to prime. Invalidate
// drops the cached generation first.
type DashboardWarmupPayload struct {
	Periods    []string `json:"periods,omitempty"`
	Invalidate bool     `json:"invalidate,omitempty"`
}

// IdempotencyCleanupPayload bounds how long completion markers survive.
type IdempotencyCleanupPayload struct {
	Module    string        `json:"module,omitempty"`
	Retention time.Duration `json:"retention,omitempty"`
}

// NewDashboardWarmupTask builds the warmup task.
func NewDashboardWarmupTask(payload DashboardWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDashboardWarmup, data, asynq.Queue(QueueDefault), asynq.MaxRetry(3), asynq.Timeout(2*time.Minute)), nil
}

// NewIdempotencyCleanupTask builds the cleanup task.
func NewIdempotencyCleanupTask(payload IdempotencyCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}
