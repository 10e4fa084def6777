package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"customerhub/pkg/platform/outbox"
)

type Store struct {
	mu      sync.Mutex
	entries []outbox.Entry
	seq     int64
}

func New() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, entries ...outbox.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now()
		}
		s.seq++
		e.Seq = s.seq
		s.entries = append(s.entries, e)
	}
	return nil
}

func (s *Store) FetchUnprocessed(_ context.Context, limit int) ([]outbox.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []outbox.Entry
	for _, e := range s.entries {
		if e.ProcessedAt != nil {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkProcessed(_ context.Context, ids []uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	done := make(map[uuid.UUID]struct{}, len(ids))
	for _, entryID := range ids {
		done[entryID] = struct{}{}
	}
	for i := range s.entries {
		if _, ok := done[s.entries[i].ID]; ok {
			processed := at
			s.entries[i].ProcessedAt = &processed
		}
	}
	return nil
}

// All returns a copy of every entry, for tests.
func (s *Store) All() []outbox.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]outbox.Entry(nil), s.entries...)
}
