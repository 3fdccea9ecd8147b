package obs

import (
	"sync/atomic"
	"time"
)

// Counter identifies a chat stream counter.
type Counter int

const (
	ConnectAttempts Counter = iota
	Retries
	StreamsOpened
	MessagesDelivered
	EventsIgnored
	ParseFailures
	ConnectionsClosed
	ConnectionsFailed
	ConnectionsCancelled
	counterCount
)

var counterNames = [counterCount]string{
	ConnectAttempts:      "connect_attempts",
	Retries:              "retries",
	StreamsOpened:        "streams_opened",
	MessagesDelivered:    "messages_delivered",
	EventsIgnored:        "events_ignored",
	ParseFailures:        "parse_failures",
	ConnectionsClosed:    "connections_closed",
	ConnectionsFailed:    "connections_failed",
	ConnectionsCancelled: "connections_cancelled",
}

func (c Counter) String() string {
	if c < 0 || c >= counterCount {
		return "unknown"
	}
	return counterNames[c]
}

// Metrics collects lightweight counters and latency stats for chat streams.
// A nil *Metrics discards everything.
type Metrics struct {
	counters        [counterCount]uint64
	deliveryLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	Counters        map[Counter]uint64
	DeliveryLatency LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Inc increments a counter.
func (m *Metrics) Inc(c Counter) {
	if m == nil || c < 0 || c >= counterCount {
		return
	}
	atomic.AddUint64(&m.counters[c], 1)
}

// Count returns the current value of a counter.
func (m *Metrics) Count(c Counter) uint64 {
	if m == nil || c < 0 || c >= counterCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[c])
}

// ObserveDelivery records the delay between a message's server timestamp and its delivery.
// Messages without a timestamp are ignored.
func (m *Metrics) ObserveDelivery(sentAt, deliveredAt time.Time) {
	if m == nil || sentAt.UnixMilli() <= 0 {
		return
	}
	m.deliveryLatency.Observe(deliveredAt.Sub(sentAt))
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	counters := make(map[Counter]uint64)
	for i := range m.counters {
		if v := atomic.LoadUint64(&m.counters[i]); v > 0 {
			counters[Counter(i)] = v
		}
	}
	return Snapshot{
		Counters:        counters,
		DeliveryLatency: m.deliveryLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
