package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = time.Second
)

// Message is what the relay hands to a Producer.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Producer delivers a batch synchronously; a nil error means every message
// was acknowledged.
type Producer interface {
	Produce(ctx context.Context, messages ...Message) error
}

// TxRunner scopes one fetch-publish-mark cycle. With Postgres this keeps the
// fetched rows locked until they are marked.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TopicFunc picks the destination topic for an entry.
type TopicFunc func(Entry) string

// Relay polls the outbox and publishes pending entries. Delivery is at least
// once: a crash between produce and mark republishes the batch.
type Relay struct {
	store     Store
	producer  Producer
	tx        TxRunner
	topic     TopicFunc
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	observe   func(published int, err error)
	now       func() time.Time
}

type RelayOption func(*Relay)

func WithPollInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithTxRunner(tx TxRunner) RelayOption {
	return func(r *Relay) {
		r.tx = tx
	}
}

func WithRelayLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) {
		r.logger = logger
	}
}

// WithObserver is called after every batch with its outcome.
func WithObserver(fn func(published int, err error)) RelayOption {
	return func(r *Relay) {
		r.observe = fn
	}
}

// StaticTopic routes every entry to topic.
func StaticTopic(topic string) TopicFunc {
	return func(Entry) string { return topic }
}

func NewRelay(store Store, producer Producer, topic TopicFunc, opts ...RelayOption) *Relay {
	r := &Relay{
		store:     store,
		producer:  producer,
		topic:     topic,
		interval:  defaultPollInterval,
		batchSize: defaultBatchSize,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run publishes until ctx is cancelled. A failed batch is retried on the
// next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		for {
			n, err := r.ProcessOnce(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				r.logger.WarnContext(ctx, "outbox relay batch failed", "error", err)
				break
			}
			if n < r.batchSize {
				break
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// ProcessOnce publishes at most one batch and returns how many entries it
// published.
func (r *Relay) ProcessOnce(ctx context.Context) (int, error) {
	published := 0
	cycle := func(ctx context.Context) error {
		entries, err := r.store.FetchUnprocessed(ctx, r.batchSize)
		if err != nil || len(entries) == 0 {
			return err
		}
		messages := make([]Message, len(entries))
		ids := make([]uuid.UUID, len(entries))
		for i, e := range entries {
			ids[i] = e.ID
			messages[i] = Message{
				Topic: r.topic(e),
				Key:   []byte(e.AggregateID),
				Value: e.Payload,
				Headers: map[string]string{
					"event_id":       e.ID.String(),
					"event_type":     e.EventType,
					"aggregate_type": e.AggregateType,
				},
			}
		}
		if err := r.producer.Produce(ctx, messages...); err != nil {
			return err
		}
		if err := r.store.MarkProcessed(ctx, ids, r.now()); err != nil {
			return err
		}
		published = len(entries)
		return nil
	}

	var err error
	if r.tx != nil {
		err = r.tx.RunInTx(ctx, cycle)
	} else {
		err = cycle(ctx)
	}
	if r.observe != nil {
		r.observe(published, err)
	}
	if err != nil {
		return 0, err
	}
	return published, nil
}
