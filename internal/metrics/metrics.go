// Package metrics exposes the relay's live state as Prometheus
// collectors, driven by turn.Controls.OnEvent notifications.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cydev/turnd/turn"
)

// Collector implements turn.Controls, converting allocation/permission/
// channel lifecycle events into Prometheus gauges and counters.
type Collector struct {
	Allocations     prometheus.Gauge
	Permissions     prometheus.Gauge
	Channels        prometheus.Gauge
	AllocationTotal prometheus.Counter
	RelayedBytes    prometheus.Counter
}

// NewCollector builds a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		Allocations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "turn", Name: "allocations", Help: "Live relay allocations.",
		}),
		Permissions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "turn", Name: "permissions", Help: "Permission installs and refreshes since start; not decremented when permissions expire.",
		}),
		Channels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "turn", Name: "channels", Help: "Channel binds and rebinds since start; not decremented when bindings expire.",
		}),
		AllocationTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "turn", Name: "allocations_total", Help: "Allocations created since start.",
		}),
		RelayedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "turn", Name: "relayed_bytes_total", Help: "Payload bytes forwarded through the relay.",
		}),
	}
	reg.MustRegister(c.Allocations, c.Permissions, c.Channels, c.AllocationTotal, c.RelayedBytes)
	return c
}

// OnEvent implements turn.Controls.
func (c *Collector) OnEvent(ev turn.Event) {
	switch ev.Kind {
	case turn.EventAllocationCreated:
		c.Allocations.Inc()
		c.AllocationTotal.Inc()
	case turn.EventAllocationDeleted:
		c.Allocations.Dec()
	case turn.EventPermissionInstalled:
		c.Permissions.Inc()
	case turn.EventChannelBound:
		c.Channels.Inc()
	}
}

// AddRelayedBytes records n payload bytes forwarded through the relay.
func (c *Collector) AddRelayedBytes(n int) {
	c.RelayedBytes.Add(float64(n))
}
