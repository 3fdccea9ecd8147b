package obs

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.Inc(ConnectAttempts)
	m.Inc(ConnectAttempts)
	m.Inc(MessagesDelivered)
	m.Inc(counterCount)

	snap := m.Snapshot()
	assert.Equal(t, map[Counter]uint64{ConnectAttempts: 2, MessagesDelivered: 1}, snap.Counters)
	assert.Equal(t, uint64(2), m.Count(ConnectAttempts))
	assert.Zero(t, m.Count(Retries))
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.Inc(Retries)
	m.ObserveDelivery(time.Now(), time.Now())
	assert.Zero(t, m.Count(Retries))
	assert.Equal(t, Snapshot{}, m.Snapshot())
}

func TestMetricsDeliveryLatency(t *testing.T) {
	m := NewMetrics()
	now := time.Now()
	m.ObserveDelivery(now.Add(-30*time.Millisecond), now)
	m.ObserveDelivery(now.Add(-10*time.Millisecond), now)
	m.ObserveDelivery(time.UnixMilli(0), now)

	lat := m.Snapshot().DeliveryLatency
	assert.Equal(t, uint64(2), lat.Count)
	assert.Equal(t, 10*time.Millisecond, lat.Min)
	assert.Equal(t, 30*time.Millisecond, lat.Max)
	assert.Equal(t, 20*time.Millisecond, lat.Avg)
}

func TestMetricsConcurrentInc(t *testing.T) {
	m := NewMetrics()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Inc(EventsIgnored)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(1600), m.Count(EventsIgnored))
}

func TestCounterString(t *testing.T) {
	assert.Equal(t, "parse_failures", ParseFailures.String())
	assert.Equal(t, "unknown", Counter(-1).String())
}

func TestSequenceGenerator(t *testing.T) {
	var g SequenceGenerator
	assert.Equal(t, uint64(1), g.Next())
	assert.Equal(t, uint64(2), g.Next())

	var nilGen *SequenceGenerator
	assert.Zero(t, nilGen.Next())
}
