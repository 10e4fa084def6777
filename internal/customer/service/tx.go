package service

import (
	"context"
	"sync"
)

// inMemoryStoreTx serialises units of work with a single lock. It is the
// default when no database transaction manager is configured.
type inMemoryStoreTx struct {
	mu sync.Mutex
}

func newInMemoryStoreTx() *inMemoryStoreTx {
	return &inMemoryStoreTx{}
}

func (t *inMemoryStoreTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}
