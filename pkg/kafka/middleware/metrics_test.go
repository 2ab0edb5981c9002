package kafka_middleware

import (
	"context"
	"errors"
	"testing"

	"minidoodle/pkg/kafka"
)

func TestMetricsProducerMiddleware(t *testing.T) {
	m := &PublishMetrics{}
	mw := MetricsProducerMiddleware(m)

	ok := func(ctx context.Context, msg kafka.Message) error { return nil }
	fail := func(ctx context.Context, msg kafka.Message) error { return errors.New("broker down") }

	for i := 0; i < 3; i++ {
		if err := mw(context.Background(), kafka.Message{}, ok); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := mw(context.Background(), kafka.Message{}, fail); err == nil {
		t.Fatal("expected error to be propagated")
	}

	stats := m.Snapshot()
	if stats.Published != 3 {
		t.Errorf("published = %d, want 3", stats.Published)
	}
	if stats.Failed != 1 {
		t.Errorf("failed = %d, want 1", stats.Failed)
	}
	if stats.AvgDuration < 0 {
		t.Errorf("avg duration = %v, want >= 0", stats.AvgDuration)
	}
}

func TestPublishMetricsEmptySnapshot(t *testing.T) {
	stats := (&PublishMetrics{}).Snapshot()
	if stats.Published != 0 || stats.Failed != 0 || stats.AvgDuration != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if got := len(stats.LogAttrs()); got != 6 {
		t.Errorf("LogAttrs len = %d, want 6", got)
	}
}
