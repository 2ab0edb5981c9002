package kafka_middleware

import (
	"context"
	"sync/atomic"
	"time"

	"minidoodle/pkg/kafka"
)

// PublishMetrics counts publish outcomes for one producer.
type PublishMetrics struct {
	published atomic.Int64
	failed    atomic.Int64
	totalNs   atomic.Int64
}

// PublishStats is a point-in-time copy of PublishMetrics.
type PublishStats struct {
	Published   int64
	Failed      int64
	AvgDuration time.Duration
}

func (m *PublishMetrics) Snapshot() PublishStats {
	published := m.published.Load()
	failed := m.failed.Load()
	stats := PublishStats{Published: published, Failed: failed}
	if n := published + failed; n > 0 {
		stats.AvgDuration = time.Duration(m.totalNs.Load() / n)
	}
	return stats
}

// LogAttrs renders the snapshot as logger key/value pairs.
func (s PublishStats) LogAttrs() []any {
	return []any{
		"published", s.Published,
		"failed", s.Failed,
		"avg_duration", s.AvgDuration,
	}
}

func MetricsProducerMiddleware(m *PublishMetrics) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()

		err := next(ctx, msg)

		m.totalNs.Add(int64(time.Since(start)))
		if err != nil {
			m.failed.Add(1)
		} else {
			m.published.Add(1)
		}
		return err
	}
}
