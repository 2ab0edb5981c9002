// Package db defines the storage contracts shared by every backend.
package db

import "context"

// TransactionFunc runs inside a transaction. Repository calls made with the
// ctx it receives join that transaction.
type TransactionFunc func(ctx context.Context) error

type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}

// Pinger reports backend reachability for readiness checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a plain function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}
