package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/LeventeLantos/sms-remarketing/internal/apperr"
	"github.com/LeventeLantos/sms-remarketing/internal/model"
	"github.com/LeventeLantos/sms-remarketing/internal/repo"
	"github.com/LeventeLantos/sms-remarketing/internal/service"
)

// Handler performs queued deliveries. A task only calls the provider after
// claiming its message, so a retried or duplicated task never sends twice.
// Provider rejections are final and recorded on the message. Errors before
// the claim are returned so asynq retries; errors after it fail the message
// with a job error.
type Handler struct {
	messages repo.MessageRepository
	sender   service.Deliverer
}

func NewHandler(messages repo.MessageRepository, sender service.Deliverer) *Handler {
	return &Handler{messages: messages, sender: sender}
}

func (h *Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseDeliverPayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	m, err := h.messages.GetByID(ctx, payload.MessageID)
	if errors.Is(err, repo.ErrNotFound) {
		slog.Warn("queued message not found", "message_id", payload.MessageID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load message %d: %w", payload.MessageID, err)
	}

	if m.Status != model.Queued {
		slog.Info("skipping message not in queued state", "message_id", m.ID, "status", m.Status)
		return nil
	}

	claimed, err := h.messages.ClaimQueued(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("claim message %d: %w", m.ID, err)
	}
	if !claimed {
		slog.Info("message claimed elsewhere, skipping", "message_id", m.ID)
		return nil
	}
	m.Status = model.Pending

	out, err := h.sender.Deliver(ctx, m)
	if apperr.Is(err, apperr.KindProviderFailure) {
		return nil
	}
	if err != nil {
		// The claim is spent, so a retry would skip the message. Close it
		// out instead of leaving it pending.
		if errors.Is(err, service.ErrSentNotRecorded) {
			slog.Error("provider accepted a message that could not be recorded", "message_id", m.ID, "error", err)
		}
		if ferr := h.messages.MarkFailed(ctx, m.ID, "Job error: "+err.Error()); ferr != nil {
			slog.Error("mark job error failed", "message_id", m.ID, "error", ferr)
		}
		return fmt.Errorf("deliver message %d: %v: %w", m.ID, err, asynq.SkipRetry)
	}
	slog.Info("queued message delivered", "message_id", out.ID, "status", out.Status)
	return nil
}

type WorkerConfig struct {
	Queue       string
	Concurrency int
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewWorker(opt asynq.RedisClientOpt, cfg WorkerConfig, h *Handler) *Worker {
	queue := cfg.Queue
	if queue == "" {
		queue = DefaultQueue
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	mux.Handle(TaskDeliverMessage, h)

	return &Worker{server: server, mux: mux}
}

// Run processes tasks until ctx is done, then waits for in-flight tasks.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return nil
	}

	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("queue worker: %w", err)
	}

	<-ctx.Done()
	w.server.Shutdown()
	return nil
}
