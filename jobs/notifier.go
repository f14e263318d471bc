package jobs

import (
	"context"

	"github.com/hibiken/asynq"

	"github.com/benagdipa/fwpm-sub001/internal/users"
)

type emailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// UserNotifier queues account emails. It implements users.Notifier.
type UserNotifier struct {
	queue emailEnqueuer
}

// NewUserNotifier builds a notifier over a job client.
func NewUserNotifier(queue emailEnqueuer) *UserNotifier {
	return &UserNotifier{queue: queue}
}

// Welcome queues the welcome email.
func (n *UserNotifier) Welcome(ctx context.Context, u users.User) error {
	_, err := n.queue.EnqueueSendEmail(ctx, NewWelcomeEmail(u))
	return err
}

// PasswordReset queues the password reset notice.
func (n *UserNotifier) PasswordReset(ctx context.Context, u users.User) error {
	_, err := n.queue.EnqueueSendEmail(ctx, NewPasswordResetNotice(u))
	return err
}

var _ users.Notifier = (*UserNotifier)(nil)
