package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/cashflow/jobs"
)

type recordingEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (r *recordingEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

func (r *recordingEnqueuer) Close() error { return nil }

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestJobsCommandTrigger(t *testing.T) {
	enq := &recordingEnqueuer{}
	cli := NewJobsCLIWith(enq, stubInspector{})
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)

	require.Equal(t, ExitOK, cli.JobsCommand(context.Background(), []string{"trigger", "warmup"}, stdout, stderr))
	require.Equal(t, ExitOK, cli.JobsCommand(context.Background(), []string{"trigger", jobs.TaskCashflowInvalidate}, stdout, stderr))
	require.Len(t, enq.tasks, 2)
	require.Equal(t, jobs.TaskCashflowWarmup, enq.tasks[0].Type())
	require.Equal(t, jobs.TaskCashflowInvalidate, enq.tasks[1].Type())
	require.Contains(t, stdout.String(), "enqueued cashflow:warmup id=task-1 queue=default")
	require.Empty(t, stderr.String())
}

func TestJobsCommandErrors(t *testing.T) {
	cli := NewJobsCLIWith(&recordingEnqueuer{err: errors.New("redis down")}, stubInspector{err: errors.New("redis down")})
	out := new(bytes.Buffer)

	require.Equal(t, ExitValidation, cli.JobsCommand(context.Background(), nil, out, out))
	require.Equal(t, ExitValidation, cli.JobsCommand(context.Background(), []string{"trigger"}, out, out))
	require.Equal(t, ExitValidation, cli.JobsCommand(context.Background(), []string{"purge"}, out, out))
	require.Equal(t, ExitFailure, cli.JobsCommand(context.Background(), []string{"trigger", "reindex"}, out, out))
	require.Equal(t, ExitFailure, cli.JobsCommand(context.Background(), []string{"trigger", "warmup"}, out, out))
	require.Equal(t, ExitFailure, cli.JobsCommand(context.Background(), []string{"stats"}, out, out))
}

func TestJobsCommandStats(t *testing.T) {
	cli := NewJobsCLIWith(&recordingEnqueuer{}, stubInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 4, Retry: 1}})
	stdout := new(bytes.Buffer)

	require.Equal(t, ExitOK, cli.JobsCommand(context.Background(), []string{"stats"}, stdout, new(bytes.Buffer)))
	var stats jobs.QueueStats
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &stats))
	require.Equal(t, jobs.QueueStats{Queue: "default", Pending: 4, Retry: 1}, stats)
	require.NoError(t, cli.Close())
}
