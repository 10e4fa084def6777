package main

import (
	"context"
	"errors"

	dErrors "customerhub/pkg/domain-errors"
	txcontext "customerhub/pkg/platform/tx"
)

// customerTx runs customer units of work in a Postgres transaction and
// reports expired or cancelled contexts as timeouts.
type customerTx struct {
	tx *txcontext.Postgres
}

func newCustomerTx(tx *txcontext.Postgres) *customerTx {
	return &customerTx{tx: tx}
}

func (t *customerTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	err := t.tx.RunInTx(ctx, fn)
	if err == nil {
		return nil
	}
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, "customer transaction failed")
}
