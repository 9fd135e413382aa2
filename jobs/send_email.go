package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/ledgerdesk/ledgerdesk/internal/jobs"
	"github.com/ledgerdesk/ledgerdesk/internal/mail"
)

// SendEmailHandler delivers queued emails.
type SendEmailHandler struct {
	sender  mail.Sender
	metrics *jobmetrics.Metrics
	logger  *slog.Logger
}

// NewSendEmailHandler constructs the handler.
func NewSendEmailHandler(sender mail.Sender, metrics *jobmetrics.Metrics, logger *slog.Logger) *SendEmailHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SendEmailHandler{sender: sender, metrics: metrics, logger: logger}
}

// ProcessTask implements asynq.Handler. Malformed payloads are not retried.
func (h *SendEmailHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var msg mail.Message
	if err := json.Unmarshal(t.Payload(), &msg); err != nil {
		h.logger.Error("decode email payload", slog.Any("error", err))
		return fmt.Errorf("decode email payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := msg.Validate(); err != nil {
		h.logger.Error("invalid email payload", slog.Any("error", err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	tracker := h.metrics.Track("send_email")
	err := h.sender.Send(ctx, msg)
	h.metrics.EmailResult(err)
	if err != nil {
		h.logger.Warn("email delivery failed", slog.String("to", msg.To), slog.Any("error", err))
		return tracker.End(err)
	}
	h.logger.Info("email delivered", slog.String("to", msg.To), slog.String("subject", msg.Subject))
	return tracker.End(nil)
}
