package bitrow

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives operational metrics. Implement this
// interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordAdd is called after each document add. duration is the
	// total time taken, err is nil on success.
	RecordAdd(duration time.Duration, err error)

	// RecordDelete is called after each delete. found reports whether
	// the document was present.
	RecordDelete(duration time.Duration, found bool)

	// RecordStatisticsWrite is called after each statistics side-file
	// write pass.
	RecordStatisticsWrite(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAdd(time.Duration, error)             {}
func (NoopMetricsCollector) RecordDelete(time.Duration, bool)           {}
func (NoopMetricsCollector) RecordStatisticsWrite(time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external
// dependencies.
type BasicMetricsCollector struct {
	AddCount         atomic.Int64
	AddErrors        atomic.Int64
	AddTotalNanos    atomic.Int64
	DeleteCount      atomic.Int64
	DeleteMisses     atomic.Int64
	DeleteTotalNanos atomic.Int64
	StatisticsCount  atomic.Int64
	StatisticsErrors atomic.Int64
}

// RecordAdd implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAdd(duration time.Duration, err error) {
	b.AddCount.Add(1)
	b.AddTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AddErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(duration time.Duration, found bool) {
	b.DeleteCount.Add(1)
	b.DeleteTotalNanos.Add(duration.Nanoseconds())
	if !found {
		b.DeleteMisses.Add(1)
	}
}

// RecordStatisticsWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordStatisticsWrite(duration time.Duration, err error) {
	b.StatisticsCount.Add(1)
	if err != nil {
		b.StatisticsErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AddCount:         b.AddCount.Load(),
		AddErrors:        b.AddErrors.Load(),
		AddAvgNanos:      avgNanos(&b.AddTotalNanos, &b.AddCount),
		DeleteCount:      b.DeleteCount.Load(),
		DeleteMisses:     b.DeleteMisses.Load(),
		DeleteAvgNanos:   avgNanos(&b.DeleteTotalNanos, &b.DeleteCount),
		StatisticsCount:  b.StatisticsCount.Load(),
		StatisticsErrors: b.StatisticsErrors.Load(),
	}
}

func avgNanos(total, count *atomic.Int64) int64 {
	c := count.Load()
	if c == 0 {
		return 0
	}
	return total.Load() / c
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AddCount         int64
	AddErrors        int64
	AddAvgNanos      int64
	DeleteCount      int64
	DeleteMisses     int64
	DeleteAvgNanos   int64
	StatisticsCount  int64
	StatisticsErrors int64
}
