package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/benagdipa/fwpm-sub001/internal/users"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	if strings.TrimSpace(payload.To) == "" {
		return nil, fmt.Errorf("send email: recipient required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewWelcomeEmail tells a new account holder their console login exists.
func NewWelcomeEmail(u users.User) SendEmailPayload {
	return SendEmailPayload{
		To:      u.Email,
		Subject: "Your Fleet Console account",
		Body: fmt.Sprintf("Hello %s,\n\nAn account with username %q and role %s was created for you on the Fleet Console.\nSign in with the password your administrator shared with you.\n",
			greeting(u), u.Username, u.Role),
	}
}

// NewPasswordResetNotice tells a user an administrator reset their password.
func NewPasswordResetNotice(u users.User) SendEmailPayload {
	return SendEmailPayload{
		To:      u.Email,
		Subject: "Your Fleet Console password was reset",
		Body: fmt.Sprintf("Hello %s,\n\nAn administrator reset the password of your Fleet Console account %q.\nIf you did not expect this, contact your administrator.\n",
			greeting(u), u.Username),
	}
}

func greeting(u users.User) string {
	if name := u.FullName(); name != "" {
		return name
	}
	return u.Username
}

// Sender delivers one email.
type Sender interface {
	Send(ctx context.Context, msg SendEmailPayload) error
}

// JobObserver counts processed jobs.
type JobObserver interface {
	ObserveJob(taskType string, err error)
}

// EmailHandler processes TaskTypeSendEmail tasks.
type EmailHandler struct {
	sender   Sender
	logger   *slog.Logger
	observer JobObserver
}

// NewEmailHandler builds an EmailHandler. observer may be nil.
func NewEmailHandler(sender Sender, logger *slog.Logger, observer JobObserver) *EmailHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailHandler{sender: sender, logger: logger, observer: observer}
}

// ProcessTask implements asynq.Handler.
func (h *EmailHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.observe(err)
		return fmt.Errorf("decode %s: %v: %w", TaskTypeSendEmail, err, asynq.SkipRetry)
	}
	err := h.sender.Send(ctx, payload)
	h.observe(err)
	if err != nil {
		h.logger.Error("send email", slog.String("to", payload.To), slog.String("subject", payload.Subject), slog.Any("error", err))
		return err
	}
	h.logger.Info("email sent", slog.String("to", payload.To), slog.String("subject", payload.Subject))
	return nil
}

func (h *EmailHandler) observe(err error) {
	if h.observer != nil {
		h.observer.ObserveJob(TaskTypeSendEmail, err)
	}
}
