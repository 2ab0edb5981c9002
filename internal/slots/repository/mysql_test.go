package repository

import (
	"errors"
	"testing"

	"minidoodle/pkg/locking"

	"github.com/go-sql-driver/mysql"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{name: "lock wait timeout", err: &mysql.MySQLError{Number: 1205}, retryable: true},
		{name: "deadlock", err: &mysql.MySQLError{Number: 1213}, retryable: true},
		{name: "syntax error", err: &mysql.MySQLError{Number: 1064}, retryable: false},
		{name: "plain error", err: errors.New("connection refused"), retryable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("failed to lock slot", tt.err)
			if errors.Is(got, locking.ErrLockTimeout) != tt.retryable {
				t.Errorf("errors.Is(%v, ErrLockTimeout) = %v, want %v", got, !tt.retryable, tt.retryable)
			}
			if !tt.retryable && !errors.Is(got, tt.err) {
				t.Errorf("expected %v to wrap the driver error", got)
			}
		})
	}
}
