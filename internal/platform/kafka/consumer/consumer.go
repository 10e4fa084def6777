// Package consumer runs a franz-go consumer group and hands records to a
// Handler one at a time, committing only after the handler succeeds.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is a consumed record, decoupled from the client library.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Handler processes one message. Returning an error stops the partition's
// progress: the record is not committed and will be redelivered.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error { return f(ctx, msg) }

type Config struct {
	Brokers []string
	GroupID string
	Topics  []string
	// RetryBackoff is the pause after a handler failure before polling again.
	RetryBackoff time.Duration
}

type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
	backoff time.Duration
}

func New(cfg Config, handler Handler, logger *slog.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 || cfg.GroupID == "" || len(cfg.Topics) == 0 {
		return nil, errors.New("consumer: brokers, group id and topics are required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{client: client, handler: handler, logger: logger, backoff: backoff}, nil
}

// Run polls until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.client.Close()
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.WarnContext(ctx, "kafka fetch error", "topic", topic, "partition", partition, "error", err)
		})

		var handled []*kgo.Record
		failed := false
		fetches.EachRecord(func(r *kgo.Record) {
			if failed {
				return
			}
			if err := c.handler.Handle(ctx, toMessage(r)); err != nil {
				c.logger.ErrorContext(ctx, "kafka message handling failed",
					"topic", r.Topic, "partition", r.Partition, "offset", r.Offset, "error", err)
				failed = true
				return
			}
			handled = append(handled, r)
		})

		if len(handled) > 0 {
			if err := c.client.CommitRecords(ctx, handled...); err != nil {
				c.logger.WarnContext(ctx, "kafka commit failed", "error", err)
			}
		}
		if failed {
			// Rewind uncommitted partitions so the failed record is fetched again.
			c.client.SetOffsets(c.rewindOffsets(fetches, handled))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
		}
	}
}

// rewindOffsets points each fetched partition back at its first record that
// was not handled.
func (c *Consumer) rewindOffsets(fetches kgo.Fetches, handled []*kgo.Record) map[string]map[int32]kgo.EpochOffset {
	done := make(map[string]map[int32]int64)
	for _, r := range handled {
		if done[r.Topic] == nil {
			done[r.Topic] = make(map[int32]int64)
		}
		done[r.Topic][r.Partition] = r.Offset
	}
	out := make(map[string]map[int32]kgo.EpochOffset)
	fetches.EachPartition(func(p kgo.FetchTopicPartition) {
		if len(p.Records) == 0 {
			return
		}
		next := p.Records[0].Offset
		if last, ok := done[p.Topic][p.Partition]; ok {
			next = last + 1
		}
		if next > p.Records[len(p.Records)-1].Offset {
			return
		}
		if out[p.Topic] == nil {
			out[p.Topic] = make(map[int32]kgo.EpochOffset)
		}
		out[p.Topic][p.Partition] = kgo.EpochOffset{Epoch: -1, Offset: next}
	})
	return out
}

func toMessage(r *kgo.Record) *Message {
	headers := make(map[string]string, len(r.Headers))
	for _, h := range r.Headers {
		headers[h.Key] = string(h.Value)
	}
	return &Message{
		Topic:     r.Topic,
		Partition: r.Partition,
		Offset:    r.Offset,
		Key:       r.Key,
		Value:     r.Value,
		Headers:   headers,
		Timestamp: r.Timestamp,
	}
}
