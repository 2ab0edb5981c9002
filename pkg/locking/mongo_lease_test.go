package locking

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"minidoodle/pkg/logger"
)

func TestReleaseOnce(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantInLog string
	}{
		{name: "successful release is silent", err: nil, wantInLog: ""},
		{name: "failed release is logged", err: errors.New("connection reset"), wantInLog: "connection reset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := logger.New(logger.Config{Output: &buf, Level: logger.ERROR})

			calls := 0
			unlock := releaseOnce(log, SlotKey("slot-1"), func(ctx context.Context) error {
				calls++
				if _, ok := ctx.Deadline(); !ok {
					t.Error("expected release context to carry a deadline")
				}
				return tt.err
			})

			unlock()
			unlock()

			if calls != 1 {
				t.Errorf("expected release to run once, ran %d times", calls)
			}
			out := buf.String()
			if tt.wantInLog == "" && out != "" {
				t.Errorf("expected no log output, got %q", out)
			}
			if tt.wantInLog != "" && !strings.Contains(out, tt.wantInLog) {
				t.Errorf("expected log to contain %q, got %q", tt.wantInLog, out)
			}
		})
	}
}
