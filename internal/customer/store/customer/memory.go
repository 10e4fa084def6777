package customer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"customerhub/internal/customer/models"
	id "customerhub/pkg/domain"
	"customerhub/pkg/platform/sentinel"
)

// InMemory is a Store backed by maps. It enforces the same uniqueness and
// optimistic versioning rules as the Postgres store.
type InMemory struct {
	mu         sync.RWMutex
	customers  map[id.CustomerID]*models.Customer
	byEmail    map[string]id.CustomerID
	byIdentity map[string]id.CustomerID
}

func NewInMemory() *InMemory {
	return &InMemory{
		customers:  make(map[id.CustomerID]*models.Customer),
		byEmail:    make(map[string]id.CustomerID),
		byIdentity: make(map[string]id.CustomerID),
	}
}

func (s *InMemory) Create(_ context.Context, c *models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customers[c.ID()]; exists {
		return fmt.Errorf("customer %s: %w", c.ID(), sentinel.ErrAlreadyUsed)
	}
	email := emailKey(c.PersonalData().Email())
	if _, taken := s.byEmail[email]; taken {
		return fmt.Errorf("%w: %w", models.ErrDuplicateEmail, sentinel.ErrAlreadyUsed)
	}
	identity := c.PersonalData().IdentityNumber()
	if _, taken := s.byIdentity[identity]; taken {
		return fmt.Errorf("%w: %w", models.ErrDuplicateIdentityNumber, sentinel.ErrAlreadyUsed)
	}

	c.SetVersion(1)
	s.customers[c.ID()] = c.Clone()
	s.byEmail[email] = c.ID()
	s.byIdentity[identity] = c.ID()
	return nil
}

// Update replaces the stored aggregate when its version matches, then bumps
// the version on both copies.
func (s *InMemory) Update(_ context.Context, c *models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.customers[c.ID()]
	if !ok {
		return fmt.Errorf("customer %s: %w", c.ID(), sentinel.ErrNotFound)
	}
	if current.Version() != c.Version() {
		return fmt.Errorf("customer %s at version %d, have %d: %w", c.ID(), current.Version(), c.Version(), sentinel.ErrConflict)
	}

	oldEmail := emailKey(current.PersonalData().Email())
	newEmail := emailKey(c.PersonalData().Email())
	if oldEmail != newEmail {
		if owner, taken := s.byEmail[newEmail]; taken && owner != c.ID() {
			return fmt.Errorf("%w: %w", models.ErrDuplicateEmail, sentinel.ErrAlreadyUsed)
		}
		delete(s.byEmail, oldEmail)
		s.byEmail[newEmail] = c.ID()
	}

	c.SetVersion(current.Version() + 1)
	s.customers[c.ID()] = c.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, customerID id.CustomerID) (*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[customerID]
	if !ok {
		return nil, fmt.Errorf("customer %s: %w", customerID, sentinel.ErrNotFound)
	}
	return c.Clone(), nil
}

func (s *InMemory) FindByEmail(ctx context.Context, email string) (*models.Customer, error) {
	s.mu.RLock()
	customerID, ok := s.byEmail[emailKey(email)]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("customer by email: %w", sentinel.ErrNotFound)
	}
	return s.FindByID(ctx, customerID)
}

func (s *InMemory) FindByIdentityNumber(ctx context.Context, identityNumber string) (*models.Customer, error) {
	s.mu.RLock()
	customerID, ok := s.byIdentity[strings.ToUpper(strings.TrimSpace(identityNumber))]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("customer by identity number: %w", sentinel.ErrNotFound)
	}
	return s.FindByID(ctx, customerID)
}

// List returns customers ordered by creation time, then id.
func (s *InMemory) List(_ context.Context, filter models.ListFilter) ([]*models.Customer, error) {
	filter.Normalize()

	s.mu.RLock()
	matched := make([]*models.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		if filter.Status == "" || c.Status() == filter.Status {
			matched = append(matched, c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt().Equal(b.CreatedAt()) {
			return a.CreatedAt().Before(b.CreatedAt())
		}
		return a.ID().String() < b.ID().String()
	})

	if filter.Offset >= len(matched) {
		return []*models.Customer{}, nil
	}
	end := min(filter.Offset+filter.Limit, len(matched))
	out := make([]*models.Customer, 0, end-filter.Offset)
	for _, c := range matched[filter.Offset:end] {
		out = append(out, c.Clone())
	}
	return out, nil
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
