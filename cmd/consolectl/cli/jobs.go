package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/benagdipa/fwpm-sub001/jobs"
)

type taskEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
	Close() error
}

type queueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListRetryTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	Close() error
}

// JobsCLI wraps manual management helpers for the notification queue.
type JobsCLI struct {
	client    taskEnqueuer
	inspector queueInspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) (*JobsCLI, error) {
	opt := asynq.RedisClientOpt{Addr: redisAddr}
	client, err := jobs.NewClient(opt)
	if err != nil {
		return nil, err
	}
	return &JobsCLI{client: client, inspector: asynq.NewInspector(opt)}, nil
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

// SendTestEmail enqueues a message to check SMTP delivery end to end.
func (c *JobsCLI) SendTestEmail(ctx context.Context, to string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	return c.client.EnqueueSendEmail(ctx, jobs.SendEmailPayload{
		To:      to,
		Subject: "Fleet Console test message",
		Body:    "This message confirms the console can deliver email.\n",
	})
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		if errors.Is(err, asynq.ErrQueueNotFound) {
			return stats, nil
		}
		return QueueStats{}, err
	}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}

// ListRetry returns tasks waiting for another delivery attempt.
func (c *JobsCLI) ListRetry(ctx context.Context, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListRetryTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
}

func newJobsCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect the notification queue",
	}
	withJobs := func(run func(cmd *cobra.Command, c *JobsCLI, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			c, err := NewJobsCLI(e.opts.RedisAddr)
			if err != nil {
				return err
			}
			defer c.Close()
			return run(cmd, c, args)
		}
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show queue counters",
		RunE: withJobs(func(cmd *cobra.Command, c *JobsCLI, args []string) error {
			stats, err := c.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			if e.opts.JSON {
				return e.printJSON(cmd.OutOrStdout(), stats)
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY\tARCHIVED")
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
			return tw.Flush()
		}),
	})
	var size int
	retry := &cobra.Command{
		Use:   "retry",
		Short: "List tasks waiting to be retried",
		RunE: withJobs(func(cmd *cobra.Command, c *JobsCLI, args []string) error {
			tasks, err := c.ListRetry(cmd.Context(), size)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tTYPE\tRETRIED\tLAST ERROR")
			for _, t := range tasks {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", t.ID, t.Type, t.Retried, t.LastErr)
			}
			return tw.Flush()
		}),
	}
	retry.Flags().IntVar(&size, "size", 10, "page size")
	cmd.AddCommand(retry)

	var to string
	testEmail := &cobra.Command{
		Use:   "test-email",
		Short: "Queue a test email",
		RunE: withJobs(func(cmd *cobra.Command, c *JobsCLI, args []string) error {
			info, err := c.SendTestEmail(cmd.Context(), to)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued task %s on %s.\n", info.ID, info.Queue)
			return nil
		}),
	}
	testEmail.Flags().StringVar(&to, "to", "", "recipient")
	cmd.AddCommand(testEmail)
	return cmd
}
