package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
)

// Enqueuer pushes background tasks onto the queue from the web process.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer wraps an asynq client.
func NewEnqueuer(redisOpts asynq.RedisClientOpt) *Enqueuer {
	return &Enqueuer{client: asynq.NewClient(redisOpts)}
}

// Close releases the underlying client.
func (e *Enqueuer) Close() error {
	return e.client.Close()
}

// SendEmail enqueues a transactional email for delivery by the worker.
func (e *Enqueuer) SendEmail(ctx context.Context, to, subject, html string) error {
	task, err := NewSendEmailTask(SendEmailPayload{To: to, Subject: subject, HTML: html})
	if err != nil {
		return err
	}
	if _, err := e.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("jobs: enqueue mail: %w", err)
	}
	return nil
}
