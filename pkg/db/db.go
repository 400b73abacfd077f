// Package db holds the storage-agnostic transaction contract shared by the
// mongo and sql backends.
package db

import "context"

// TransactionFunc runs inside a transaction. Repositories must be called
// with the ctx it receives so their reads and writes join the transaction.
type TransactionFunc func(ctx context.Context) error

type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}

// Pinger is implemented by every backing store and used by readiness checks.
type Pinger interface {
	Ping(ctx context.Context) error
}
