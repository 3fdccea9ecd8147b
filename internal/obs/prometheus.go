package obs

import "github.com/prometheus/client_golang/prometheus"

const namespace = "gamplo_chat"

// Register exposes the counters and delivery latency of m on reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for c := Counter(0); c < counterCount; c++ {
		counter := c
		collector := prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      counter.String() + "_total",
				Help:      "Chat stream " + counter.String() + ".",
			},
			func() float64 { return float64(m.Count(counter)) },
		)
		if err := reg.Register(collector); err != nil {
			return err
		}
	}

	latency := []struct {
		name string
		read func(LatencySnapshot) float64
	}{
		{name: "delivery_latency_avg_seconds", read: func(s LatencySnapshot) float64 { return s.Avg.Seconds() }},
		{name: "delivery_latency_max_seconds", read: func(s LatencySnapshot) float64 { return s.Max.Seconds() }},
	}
	for _, l := range latency {
		read := l.read
		collector := prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      l.name,
				Help:      "Delay between a message timestamp and its delivery.",
			},
			func() float64 { return read(m.Snapshot().DeliveryLatency) },
		)
		if err := reg.Register(collector); err != nil {
			return err
		}
	}
	return nil
}
