package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"customerhub/pkg/platform/outbox"
	txcontext "customerhub/pkg/platform/tx"
)

// Store implements outbox.Store on the outbox table.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, entries ...outbox.Entry) error {
	exec := txcontext.ExecutorFor(ctx, s.db)
	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, e := range entries {
		entryID := e.ID
		if entryID == uuid.Nil {
			entryID = uuid.New()
		}
		createdAt := e.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if _, err := exec.ExecContext(ctx, query,
			entryID,
			e.AggregateType,
			e.AggregateID,
			e.EventType,
			e.Payload,
			createdAt,
		); err != nil {
			return fmt.Errorf("insert outbox entry: %w", err)
		}
	}
	return nil
}

// FetchUnprocessed locks the pending rows with the lowest seq, using SKIP
// LOCKED so several relays can run side by side. A customer's rows are
// inserted while its row lock is held, so their seq follows commit order.
func (s *Store) FetchUnprocessed(ctx context.Context, limit int) ([]outbox.Entry, error) {
	query := `
		SELECT id, seq, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM outbox
		WHERE processed_at IS NULL
		ORDER BY seq
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := txcontext.ExecutorFor(ctx, s.db).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []outbox.Entry
	for rows.Next() {
		var e outbox.Entry
		if err := rows.Scan(&e.ID, &e.Seq, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

func (s *Store) MarkProcessed(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]string, len(ids))
	for i, entryID := range ids {
		raw[i] = entryID.String()
	}
	query := `UPDATE outbox SET processed_at = $1 WHERE id = ANY($2::uuid[])`
	if _, err := txcontext.ExecutorFor(ctx, s.db).ExecContext(ctx, query, at, pq.Array(raw)); err != nil {
		return fmt.Errorf("mark outbox processed: %w", err)
	}
	return nil
}

// DeleteProcessedBefore prunes published rows older than cutoff.
func (s *Store) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM outbox WHERE processed_at IS NOT NULL AND processed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune outbox: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune outbox rows affected: %w", err)
	}
	return n, nil
}
