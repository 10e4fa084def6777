package cache

import (
	"context"
	"sync"
	"time"

	"customerhub/internal/customer/models"
	id "customerhub/pkg/domain"
	"customerhub/pkg/platform/sentinel"
)

type memoryEntry struct {
	view      models.CustomerView
	expiresAt time.Time
}

// floor is the lowest version a Set may still write after an invalidation.
type floor struct {
	version   int64
	expiresAt time.Time
}

// InMemory is a process-local cache for single-instance deployments and tests.
type InMemory struct {
	mu      sync.Mutex
	entries map[id.CustomerID]memoryEntry
	floors  map[id.CustomerID]floor
	ttl     time.Duration
	now     func() time.Time
}

func NewInMemory(ttl time.Duration) *InMemory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &InMemory{
		entries: make(map[id.CustomerID]memoryEntry),
		floors:  make(map[id.CustomerID]floor),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *InMemory) Get(_ context.Context, customerID id.CustomerID) (*models.CustomerView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[customerID]
	if !ok || !m.now().Before(e.expiresAt) {
		delete(m.entries, customerID)
		return nil, sentinel.ErrNotFound
	}
	view := e.view
	view.Cards = append([]models.CardView(nil), e.view.Cards...)
	return &view, nil
}

// Set stores view unless a newer version is cached or was invalidated.
func (m *InMemory) Set(_ context.Context, view *models.CustomerView) error {
	if view == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if f, ok := m.floors[view.ID]; ok {
		if !now.Before(f.expiresAt) {
			delete(m.floors, view.ID)
		} else if view.Version < f.version {
			return nil
		}
	}
	if e, ok := m.entries[view.ID]; ok && now.Before(e.expiresAt) && e.view.Version > view.Version {
		return nil
	}
	stored := *view
	stored.Cards = append([]models.CardView(nil), view.Cards...)
	m.entries[view.ID] = memoryEntry{view: stored, expiresAt: now.Add(m.ttl)}
	return nil
}

// Invalidate drops the entry and refuses later writes older than version.
func (m *InMemory) Invalidate(_ context.Context, customerID id.CustomerID, version int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, customerID)
	if f, ok := m.floors[customerID]; !ok || version > f.version {
		m.floors[customerID] = floor{version: version, expiresAt: m.now().Add(m.ttl)}
	}
	return nil
}
