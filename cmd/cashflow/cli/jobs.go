package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/cashflow/jobs"
)

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *jobs.Client
	inspector jobs.QueueInspector
	closers   []io.Closer
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) *JobsCLI {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	client := jobs.NewClient(opts)
	inspector := asynq.NewInspector(opts)
	return &JobsCLI{client: client, inspector: inspector, closers: []io.Closer{client, inspector}}
}

// NewJobsCLIWith builds the helpers over existing queue handles.
func NewJobsCLIWith(enqueuer jobs.Enqueuer, inspector jobs.QueueInspector) *JobsCLI {
	return &JobsCLI{client: jobs.NewClientWith(enqueuer), inspector: inspector}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var errs []error
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Trigger enqueues a supported job by name with default payload.
func (c *JobsCLI) Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	switch name {
	case "warmup", jobs.TaskCashflowWarmup:
		return c.client.EnqueueWarmup(ctx, jobs.WarmupPayload{})
	case "invalidate", jobs.TaskCashflowInvalidate:
		return c.client.EnqueueInvalidate(ctx, jobs.InvalidatePayload{Reason: "manual"})
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
}

// JobsCommand runs `jobs trigger <name>` or `jobs stats`.
func (c *JobsCLI) JobsCommand(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stderr, "usage: cashflow jobs trigger <warmup|invalidate> | cashflow jobs stats")
		return ExitValidation
	}
	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			_, _ = fmt.Fprintln(stderr, "jobs trigger: job name required (warmup|invalidate)")
			return ExitValidation
		}
		info, err := c.Trigger(ctx, args[1])
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs trigger: %v\n", err)
			return ExitFailure
		}
		_, _ = fmt.Fprintf(stdout, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return ExitOK
	case "stats":
		stats, err := jobs.InspectQueue(c.inspector)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs stats: %v\n", err)
			return ExitFailure
		}
		if err := json.NewEncoder(stdout).Encode(stats); err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs stats: %v\n", err)
			return ExitFailure
		}
		return ExitOK
	default:
		_, _ = fmt.Fprintf(stderr, "jobs: unknown sub-command %q\n", args[0])
		return ExitValidation
	}
}
