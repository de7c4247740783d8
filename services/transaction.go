package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/upb/manual-share/repositories"
)

// WithTransaction runs fn in a transaction. It commits when fn returns nil
// and rolls back otherwise.
func WithTransaction(ctx context.Context, txMgr repositories.TransactionManager, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	_, err := WithTransactionResult(ctx, txMgr, func(ctx context.Context, tx repositories.Transaction) (struct{}, error) {
		return struct{}{}, fn(ctx, tx)
	})
	return err
}

// WithTransactionResult is WithTransaction for callbacks that produce a value.
// The error of fn is returned as is, so domain errors keep their type; a
// failed rollback is joined to it. A panic in fn rolls back and re-panics.
func WithTransactionResult[T any](ctx context.Context, txMgr repositories.TransactionManager, fn func(ctx context.Context, tx repositories.Transaction) (T, error)) (result T, err error) {
	tx, err := txMgr.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	result, err = fn(ctx, tx)
	if err != nil {
		var zero T
		if rbErr := tx.Rollback(); rbErr != nil {
			return zero, errors.Join(err, fmt.Errorf("rollback failed: %w", rbErr))
		}
		return zero, err
	}

	if err := tx.Commit(); err != nil {
		var zero T
		return zero, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return result, nil
}
