package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dojo-planner/dojo/internal/rpc"
	"github.com/dojo-planner/dojo/jobs"
)

func TestCallMethodPrintsIndentedResult(t *testing.T) {
	registry := rpc.NewRegistry()
	registry.Register("dojo.echo", func(ctx context.Context, args json.RawMessage) (any, error) {
		var in map[string]any
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, err
		}
		return in, nil
	})

	var out bytes.Buffer
	err := CallMethod(context.Background(), rpc.NewLocal(registry, nil), "dojo.echo", `{"period":"1month"}`, &out)
	require.NoError(t, err)
	require.Equal(t, "{\n  \"period\": \"1month\"\n}\n", out.String())
}

func TestCallMethodRejectsInvalidArgs(t *testing.T) {
	err := CallMethod(context.Background(), rpc.NewLocal(rpc.NewRegistry(), nil), "dojo.echo", "{", &bytes.Buffer{})
	require.ErrorIs(t, err, rpc.ErrInvalidArgs)

	err = CallMethod(context.Background(), rpc.NewLocal(rpc.NewRegistry(), nil), "dojo.missing", "", &bytes.Buffer{})
	require.ErrorIs(t, err, rpc.ErrMethodNotFound)
}

func TestHashSecretVerifies(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, HashSecret("s3cret", &out))

	auth := rpc.NewTokenAuth("dojo", strings.TrimSpace(out.String()))
	require.NoError(t, auth.Verify(rpc.TokenHeader("dojo", "s3cret")))
	require.Error(t, auth.Verify(rpc.TokenHeader("dojo", "other")))

	require.Error(t, HashSecret("", &out))
}

func TestBuildTask(t *testing.T) {
	task, err := BuildTask(JobWarmup, true, 0)
	require.NoError(t, err)
	require.Equal(t, jobs.TaskDashboardWarmup, task.Type())
	var warm jobs.DashboardWarmupPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &warm))
	require.True(t, warm.Invalidate)

	task, err = BuildTask(jobs.TaskIdempotencyCleanup, false, time.Hour)
	require.NoError(t, err)
	var clean jobs.IdempotencyCleanupPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &clean))
	require.Equal(t, time.Hour, clean.Retention)

	_, err = BuildTask("reindex", false, 0)
	require.Error(t, err)
}
