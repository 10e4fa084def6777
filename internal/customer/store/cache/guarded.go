package cache

import (
	"context"
	"errors"
	"log/slog"

	"customerhub/internal/customer/models"
	id "customerhub/pkg/domain"
	"customerhub/pkg/platform/circuit"
	"customerhub/pkg/platform/sentinel"
)

// ViewCache is the cache contract shared by Redis and InMemory.
type ViewCache interface {
	Get(ctx context.Context, customerID id.CustomerID) (*models.CustomerView, error)
	Set(ctx context.Context, view *models.CustomerView) error
	Invalidate(ctx context.Context, customerID id.CustomerID, version int64) error
}

// Guarded short-circuits reads and writes while the inner cache is failing.
// Invalidate always reaches the inner cache so an outage cannot leave a
// stale view behind once it recovers.
type Guarded struct {
	inner   ViewCache
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewGuarded(inner ViewCache, breaker *circuit.Breaker, logger *slog.Logger) *Guarded {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guarded{inner: inner, breaker: breaker, logger: logger}
}

func (g *Guarded) Get(ctx context.Context, customerID id.CustomerID) (*models.CustomerView, error) {
	if !g.breaker.Allow() {
		return nil, sentinel.ErrNotFound
	}
	view, err := g.inner.Get(ctx, customerID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		g.failure(ctx, err)
		return nil, err
	}
	g.success(ctx)
	return view, err
}

func (g *Guarded) Set(ctx context.Context, view *models.CustomerView) error {
	if !g.breaker.Allow() {
		return nil
	}
	if err := g.inner.Set(ctx, view); err != nil {
		g.failure(ctx, err)
		return err
	}
	g.success(ctx)
	return nil
}

func (g *Guarded) Invalidate(ctx context.Context, customerID id.CustomerID, version int64) error {
	if err := g.inner.Invalidate(ctx, customerID, version); err != nil {
		g.failure(ctx, err)
		return err
	}
	g.success(ctx)
	return nil
}

func (g *Guarded) failure(ctx context.Context, err error) {
	if g.breaker.RecordFailure() {
		g.logger.WarnContext(ctx, "circuit opened", "breaker", g.breaker.Name(), "error", err)
	}
}

func (g *Guarded) success(ctx context.Context) {
	if g.breaker.RecordSuccess() {
		g.logger.InfoContext(ctx, "circuit closed", "breaker", g.breaker.Name())
	}
}
