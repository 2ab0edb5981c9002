// Package mysql carries the transaction-in-context plumbing for the MySQL
// repositories and classifies driver errors.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"minidoodle/pkg/db"

	"github.com/go-sql-driver/mysql"
)

const (
	errDuplicateEntry  = 1062
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

type DB struct {
	*sql.DB
	lockWaitSeconds int
}

// New wraps a pool. A positive lockWait is applied as the session
// innodb_lock_wait_timeout of every transaction, rounded up to whole seconds.
func New(sqlDB *sql.DB, lockWait time.Duration) *DB {
	secs := 0
	if lockWait > 0 {
		secs = int((lockWait + time.Second - 1) / time.Second)
	}
	return &DB{DB: sqlDB, lockWaitSeconds: secs}
}

// Conn returns the transaction bound to ctx, or the pool when there is none.
func (d *DB) Conn(ctx context.Context) Querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return d.DB
}

func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*sql.Tx)
	return ok
}

func (d *DB) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	if InTransaction(ctx) {
		return fn(ctx)
	}

	tx, err := d.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if d.lockWaitSeconds > 0 {
		if _, err := tx.ExecContext(ctx, "SET SESSION innodb_lock_wait_timeout = ?", d.lockWaitSeconds); err != nil {
			return fmt.Errorf("set lock wait timeout: %w", err)
		}
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (d *DB) Ping(ctx context.Context) error {
	return d.PingContext(ctx)
}

func IsDuplicateKey(err error) bool {
	return hasCode(err, errDuplicateEntry)
}

// IsLockWaitTimeout reports that InnoDB gave up waiting for a row lock.
func IsLockWaitTimeout(err error) bool {
	return hasCode(err, errLockWaitTimeout)
}

// IsDeadlock reports that InnoDB rolled the transaction back to break a
// deadlock.
func IsDeadlock(err error) bool {
	return hasCode(err, errDeadlock)
}

func hasCode(err error, code uint16) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == code
	}
	return false
}
