package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/LeventeLantos/sms-remarketing/internal/model"
	"github.com/LeventeLantos/sms-remarketing/internal/repo"
	"github.com/LeventeLantos/sms-remarketing/internal/service"
)

const (
	DefaultQueue    = "sms"
	DefaultMaxRetry = 3
	DefaultTimeout  = 5 * time.Minute
)

type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Options struct {
	Queue    string
	MaxRetry int
	Timeout  time.Duration
}

func (o Options) withDefaults() Options {
	if o.Queue == "" {
		o.Queue = DefaultQueue
	}
	if o.MaxRetry <= 0 {
		o.MaxRetry = DefaultMaxRetry
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// AsynqQueue hands messages to a worker through asynq. When the enqueue
// fails the message is delivered in the calling goroutine instead.
type AsynqQueue struct {
	enq      Enqueuer
	messages repo.MessageRepository
	fallback service.Deliverer
	opts     Options
}

func NewAsynqQueue(enq Enqueuer, messages repo.MessageRepository, fallback service.Deliverer, opts Options) *AsynqQueue {
	return &AsynqQueue{
		enq:      enq,
		messages: messages,
		fallback: fallback,
		opts:     opts.withDefaults(),
	}
}

func (q *AsynqQueue) Deliver(ctx context.Context, m *model.Message) (*model.Message, error) {
	if err := q.messages.MarkQueued(ctx, m.ID); err != nil {
		slog.Warn("mark queued failed, sending synchronously", "message_id", m.ID, "error", err)
		return q.fallback.Deliver(ctx, m)
	}

	if err := q.enqueue(ctx, m.ID); err != nil {
		// The task may have been stored despite the error; only the
		// claim winner sends.
		claimed, cerr := q.messages.ClaimQueued(ctx, m.ID)
		if cerr != nil {
			return m, fmt.Errorf("claim message %d after enqueue error %v: %w", m.ID, err, cerr)
		}
		if !claimed {
			slog.Info("enqueue reported an error but a worker took the message", "message_id", m.ID, "error", err)
			return q.reload(ctx, m), nil
		}
		slog.Warn("enqueue failed, sending synchronously", "message_id", m.ID, "error", err)
		pending := *m
		pending.Status = model.Pending
		return q.fallback.Deliver(ctx, &pending)
	}

	slog.Info("message queued", "message_id", m.ID, "queue", q.opts.Queue)
	queued := *m
	queued.Status = model.Queued
	return &queued, nil
}

func (q *AsynqQueue) reload(ctx context.Context, m *model.Message) *model.Message {
	cur, err := q.messages.GetByID(ctx, m.ID)
	if err != nil {
		queued := *m
		queued.Status = model.Queued
		return &queued
	}
	return cur
}

func (q *AsynqQueue) enqueue(ctx context.Context, messageID int64) error {
	task, err := NewDeliverTask(DeliverPayload{MessageID: messageID})
	if err != nil {
		return err
	}

	_, err = q.enq.EnqueueContext(ctx, task,
		asynq.Queue(q.opts.Queue),
		asynq.MaxRetry(q.opts.MaxRetry),
		asynq.Timeout(q.opts.Timeout),
		asynq.TaskID(taskID(messageID)),
	)
	if err != nil {
		return fmt.Errorf("enqueue message %d: %w", messageID, err)
	}
	return nil
}

// RedisClientOpt builds the asynq connection options for addr.
func RedisClientOpt(addr, password string, db int) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

var _ service.Deliverer = (*AsynqQueue)(nil)
