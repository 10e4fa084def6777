// Package events turns customer domain events into outbox entries.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"customerhub/internal/customer/models"
	"customerhub/pkg/platform/outbox"
)

// AggregateType tags every customer entry in the outbox.
const AggregateType = "customer"

// Envelope is the payload written to the outbox and relayed to Kafka.
type Envelope struct {
	EventID    uuid.UUID       `json:"event_id"`
	EventType  string          `json:"event_type"`
	CustomerID string          `json:"customer_id"`
	OccurredAt string          `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// OutboxPublisher appends events to the outbox inside the caller's transaction.
type OutboxPublisher struct {
	store outbox.Store
	newID func() uuid.UUID
}

func NewOutboxPublisher(store outbox.Store) *OutboxPublisher {
	return &OutboxPublisher{store: store, newID: uuid.New}
}

func (p *OutboxPublisher) Publish(ctx context.Context, events []models.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	entries := make([]outbox.Entry, 0, len(events))
	for _, event := range events {
		entry, err := p.toEntry(event)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
	}
	if err := p.store.Append(ctx, entries...); err != nil {
		return fmt.Errorf("append customer events to outbox: %w", err)
	}
	return nil
}

func (p *OutboxPublisher) toEntry(event models.DomainEvent) (outbox.Entry, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return outbox.Entry{}, fmt.Errorf("marshal %s: %w", event.EventType(), err)
	}
	eventID := p.newID()
	at := event.OccurredAt().UTC()
	payload, err := json.Marshal(Envelope{
		EventID:    eventID,
		EventType:  event.EventType(),
		CustomerID: event.AggregateID().String(),
		OccurredAt: at.Format("2006-01-02T15:04:05.000Z07:00"),
		Data:       data,
	})
	if err != nil {
		return outbox.Entry{}, fmt.Errorf("marshal envelope for %s: %w", event.EventType(), err)
	}
	return outbox.Entry{
		ID:            eventID,
		AggregateType: AggregateType,
		AggregateID:   event.AggregateID().String(),
		EventType:     event.EventType(),
		Payload:       payload,
		CreatedAt:     at,
	}, nil
}
