package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/vantage-admin/vantage-admin/internal/mail"
)

// MailHandler processes TaskTypeSendEmail tasks through the SMTP sender.
type MailHandler struct {
	sender  mail.Sender
	logger  *slog.Logger
	metrics *Metrics
}

// NewMailHandler constructs a MailHandler.
func NewMailHandler(sender mail.Sender, logger *slog.Logger, metrics *Metrics) *MailHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MailHandler{sender: sender, logger: logger, metrics: metrics}
}

// Handle delivers one queued email. A malformed payload is dropped rather
// than retried; transport failures are returned so asynq retries them.
func (h *MailHandler) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := h.metrics.Track(TaskTypeSendEmail)
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("mail task payload malformed", slog.Any("error", err))
		return tracker.End(asynq.SkipRetry)
	}
	if err := h.sender.Send(ctx, payload.To, payload.Subject, payload.HTML); err != nil {
		return tracker.End(fmt.Errorf("jobs: send mail to %s: %w", payload.To, err))
	}
	h.logger.Info("mail delivered", slog.String("to", payload.To), slog.String("subject", payload.Subject))
	return tracker.End(nil)
}
