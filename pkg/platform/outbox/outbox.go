// Package outbox implements the transactional outbox: events are written in
// the same database transaction as the state change, and a relay publishes
// them to Kafka afterwards.
package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is one row of the outbox table. Seq is assigned by the store on
// Append and defines relay order; CreatedAt is the event time and is not.
type Entry struct {
	ID            uuid.UUID
	Seq           int64
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}

// Store persists outbox entries. Append joins the transaction carried by ctx.
// FetchUnprocessed returns unprocessed entries in Seq order; inside a
// transaction the rows stay locked until it ends.
type Store interface {
	Append(ctx context.Context, entries ...Entry) error
	FetchUnprocessed(ctx context.Context, limit int) ([]Entry, error)
	MarkProcessed(ctx context.Context, ids []uuid.UUID, at time.Time) error
}
