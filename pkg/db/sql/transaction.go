package sql

import (
	"context"
	"database/sql"
	"fmt"

	"parksphere/pkg/db"
	apperrors "parksphere/pkg/errors"
)

type txKey struct{}

var _ db.TransactionManager = (*DB)(nil)

// ExecuteTransaction commits when fn returns nil and rolls back otherwise.
// A ctx that already carries a transaction joins it.
func (d *DB) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		if apperrors.IsAppError(err) {
			return err
		}
		return fmt.Errorf("transaction failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
