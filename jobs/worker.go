package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Worker wraps the Asynq server processing background tasks.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts asynq.RedisClientOpt
	Logger    *slog.Logger
	Mail      *MailHandler
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) *Worker {
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			QueueDefault: 1,
		},
	})
	mux := asynq.NewServeMux()
	if cfg.Mail != nil {
		mux.HandleFunc(TaskTypeSendEmail, cfg.Mail.Handle)
	}
	return &Worker{server: srv, mux: mux, logger: cfg.Logger}
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return err
	}
	<-ctx.Done()
	if w.logger != nil {
		w.logger.Info("worker shutting down")
	}
	w.server.Shutdown()
	return nil
}
