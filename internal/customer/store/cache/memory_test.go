package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"customerhub/internal/customer/models"
	id "customerhub/pkg/domain"
	"customerhub/pkg/platform/sentinel"
)

func TestInMemoryCache(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)
	c := NewInMemory(time.Minute)
	c.now = func() time.Time { return clock }

	view := &models.CustomerView{
		ID:      id.NewCustomerID(),
		Email:   "ada@example.com",
		Status:  models.StatusActive,
		Version: 3,
		Cards:   []models.CardView{{ID: id.NewCardID(), LastFour: "0366"}},
	}

	t.Run("miss before set", func(t *testing.T) {
		_, err := c.Get(ctx, view.ID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("hit returns an independent copy", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, view))
		got, err := c.Get(ctx, view.ID)
		require.NoError(t, err)
		assert.Equal(t, view.Email, got.Email)
		got.Cards[0].LastFour = "9999"

		again, err := c.Get(ctx, view.ID)
		require.NoError(t, err)
		assert.Equal(t, "0366", again.Cards[0].LastFour)
	})

	t.Run("entries expire", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, view))
		clock = clock.Add(time.Minute)
		_, err := c.Get(ctx, view.ID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("invalidate drops the entry", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, view))
		require.NoError(t, c.Invalidate(ctx, view.ID, view.Version))
		_, err := c.Get(ctx, view.ID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestInMemoryCacheRejectsStaleWrites(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)
	c := NewInMemory(time.Minute)
	c.now = func() time.Time { return clock }

	customerID := id.NewCustomerID()
	viewAt := func(version int64, status models.Status) *models.CustomerView {
		return &models.CustomerView{ID: customerID, Status: status, Version: version}
	}

	t.Run("write loaded before an invalidation is dropped", func(t *testing.T) {
		require.NoError(t, c.Invalidate(ctx, customerID, 2))
		require.NoError(t, c.Set(ctx, viewAt(1, models.StatusActive)))
		_, err := c.Get(ctx, customerID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("write at the invalidated version is kept", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, viewAt(2, models.StatusBlocked)))
		got, err := c.Get(ctx, customerID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusBlocked, got.Status)
	})

	t.Run("older write never replaces a newer entry", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, viewAt(3, models.StatusActive)))
		require.NoError(t, c.Set(ctx, viewAt(2, models.StatusBlocked)))
		got, err := c.Get(ctx, customerID)
		require.NoError(t, err)
		assert.EqualValues(t, 3, got.Version)
	})

	t.Run("a lower invalidation does not lower the floor", func(t *testing.T) {
		require.NoError(t, c.Invalidate(ctx, customerID, 5))
		require.NoError(t, c.Invalidate(ctx, customerID, 4))
		require.NoError(t, c.Set(ctx, viewAt(4, models.StatusActive)))
		_, err := c.Get(ctx, customerID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("floor expires with the ttl", func(t *testing.T) {
		clock = clock.Add(time.Minute)
		require.NoError(t, c.Set(ctx, viewAt(1, models.StatusActive)))
		_, err := c.Get(ctx, customerID)
		assert.NoError(t, err)
	})
}
