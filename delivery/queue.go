package delivery

import (
	"chat-presence/domain"
	"chat-presence/errors"
	"context"
	"fmt"
	"log/slog"
	"time"
)

type Config struct {
	BatchSize         int
	WaitTime          time.Duration
	VisibilityTimeout time.Duration
	PollBackoff       time.Duration
	SystemDelay       time.Duration
	MaxReceiveCount   int
}

func DefaultConfig() Config {
	return Config{
		BatchSize:         10,
		WaitTime:          20 * time.Second,
		VisibilityTimeout: 30 * time.Second,
		PollBackoff:       5 * time.Second,
		SystemDelay:       time.Second,
		MaxReceiveCount:   5,
	}
}

// Queue produces envelopes onto a Transport and consumes them back,
// dispatching each one to the handler bound to its type.
// With a nil transport, envelopes are handed to their handler on Enqueue.
type Queue struct {
	log        *slog.Logger
	transport  Transport
	deadLetter Transport
	handlers   map[Type]Handler
	cfg        Config
	now        func() time.Time
}

func NewQueue(log *slog.Logger, transport, deadLetter Transport, table *HandlerTable, cfg Config) *Queue {
	return &Queue{
		log:        log,
		transport:  transport,
		deadLetter: deadLetter,
		handlers:   table.freeze(),
		cfg:        cfg,
		now:        time.Now,
	}
}

func (q *Queue) Enabled() bool {
	return q.transport != nil
}

// Enqueue sends env to the durable queue. Envelopes from the system identity
// without explicit delay are held back by the configured system delay.
func (q *Queue) Enqueue(ctx context.Context, env Envelope) error {
	if env.Attributes.ProducerParticipantID == "" {
		env.Attributes.ProducerParticipantID = domain.SystemID
	}
	if env.Attributes.EnqueuedAt.IsZero() {
		env.Attributes.EnqueuedAt = q.now().UTC()
	}
	if env.DeliveryDelay < 0 {
		env.DeliveryDelay = 0
	}
	if env.DeliveryDelay == 0 && env.Attributes.ProducerParticipantID == domain.SystemID {
		env.DeliveryDelay = q.cfg.SystemDelay
	}

	if q.transport == nil {
		return q.deliverInline(ctx, env)
	}

	messageID, err := q.transport.Send(ctx, env)
	if err != nil {
		q.log.Warn("Envelope enqueue failed", "type", env.Type, "producer", env.Attributes.ProducerParticipantID, "error", err)
		return fmt.Errorf("enqueue %s: %w", env.Type, err)
	}
	q.log.Debug("Envelope enqueued", "type", env.Type, "message_id", messageID, "delay", env.DeliveryDelay)
	return nil
}

// Run polls the transport until ctx is canceled.
// Envelopes already received when ctx is canceled are still handled and acknowledged.
func (q *Queue) Run(ctx context.Context) error {
	if q.transport == nil {
		q.log.Info("Queue transport not configured, consumer not started")
		return nil
	}
	q.log.Info("Queue consumer started", "batch_size", q.cfg.BatchSize, "wait", q.cfg.WaitTime, "visibility", q.cfg.VisibilityTimeout)

	for {
		select {
		case <-ctx.Done():
			q.log.Info("Queue consumer stopped")
			return nil
		default:
		}

		if _, err := q.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			q.log.Error("Queue poll failed", "error", err, "backoff", q.cfg.PollBackoff)
			select {
			case <-ctx.Done():
			case <-time.After(q.cfg.PollBackoff):
			}
		}
	}
}

// PollOnce runs a single receive iteration and returns how many envelopes were acknowledged.
func (q *Queue) PollOnce(ctx context.Context) (int, error) {
	received, err := q.transport.ReceiveBatch(ctx, q.cfg.BatchSize, q.cfg.WaitTime, q.cfg.VisibilityTimeout)
	if err != nil {
		return 0, fmt.Errorf("receive batch: %w", err)
	}

	inFlight := context.WithoutCancel(ctx)
	acked := 0
	for _, r := range received {
		if q.process(inFlight, r) {
			acked++
		}
	}
	return acked, nil
}

func (q *Queue) process(ctx context.Context, r Received) bool {
	handler, ok := q.handlers[r.Type]
	if !ok {
		q.log.Warn("Undeliverable envelope", "type", r.Type, "message_id", r.MessageID, "receive_count", r.ReceiveCount)
		return q.deadLetterIfExhausted(ctx, r, errors.ErrNoHandler)
	}

	if err := invoke(ctx, handler, r.Envelope); err != nil {
		q.log.Warn("Envelope handler failed, left for redelivery",
			"type", r.Type, "message_id", r.MessageID, "receive_count", r.ReceiveCount, "error", err)
		return q.deadLetterIfExhausted(ctx, r, err)
	}

	if err := q.transport.Delete(ctx, r.Receipt); err != nil {
		q.log.Error("Envelope acknowledge failed", "type", r.Type, "message_id", r.MessageID, "error", err)
		return false
	}
	q.log.Debug("Envelope handled", "type", r.Type, "message_id", r.MessageID)
	return true
}

// deadLetterIfExhausted removes an envelope from the queue once it has been
// received MaxReceiveCount times, forwarding it to the dead-letter transport first.
func (q *Queue) deadLetterIfExhausted(ctx context.Context, r Received, cause error) bool {
	if q.cfg.MaxReceiveCount <= 0 || r.ReceiveCount < q.cfg.MaxReceiveCount {
		return false
	}
	if q.deadLetter != nil {
		if _, err := q.deadLetter.Send(ctx, r.Envelope); err != nil {
			q.log.Error("Dead-letter forward failed", "type", r.Type, "message_id", r.MessageID, "error", err)
			return false
		}
	}
	if err := q.transport.Delete(ctx, r.Receipt); err != nil {
		q.log.Error("Dead-lettered envelope acknowledge failed", "type", r.Type, "message_id", r.MessageID, "error", err)
		return false
	}
	q.log.Error("Envelope dead-lettered",
		"type", r.Type, "message_id", r.MessageID, "receive_count", r.ReceiveCount,
		"forwarded", q.deadLetter != nil, "cause", cause)
	return true
}

func (q *Queue) deliverInline(ctx context.Context, env Envelope) error {
	handler, ok := q.handlers[env.Type]
	if !ok {
		q.log.Warn("Undeliverable envelope", "type", env.Type, "inline", true)
		return fmt.Errorf("deliver %s: %w", env.Type, errors.ErrNoHandler)
	}
	if err := invoke(ctx, handler, env); err != nil {
		q.log.Warn("Inline envelope handler failed", "type", env.Type, "error", err)
		return fmt.Errorf("deliver %s: %w", env.Type, err)
	}
	return nil
}

// invoke turns a handler panic into an error so one envelope cannot break the batch.
func invoke(ctx context.Context, handler Handler, env Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errors.ErrWorkerPanic, r)
		}
	}()
	return handler(ctx, env)
}
