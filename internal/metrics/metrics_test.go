package metrics

import (
	"net"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cydev/turnd/turn"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestCollector_OnEvent(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	client := &net.UDPAddr{IP: net.ParseIP("203.0.113.1"), Port: 4000}

	c.OnEvent(turn.Event{Kind: turn.EventAllocationCreated, ClientAddr: client})
	assert.Equal(t, float64(1), gaugeValue(t, c.Allocations))
	assert.Equal(t, float64(1), counterValue(t, c.AllocationTotal))

	c.OnEvent(turn.Event{Kind: turn.EventPermissionInstalled, ClientAddr: client})
	assert.Equal(t, float64(1), gaugeValue(t, c.Permissions))

	c.OnEvent(turn.Event{Kind: turn.EventChannelBound, ClientAddr: client})
	assert.Equal(t, float64(1), gaugeValue(t, c.Channels))

	c.OnEvent(turn.Event{Kind: turn.EventAllocationDeleted, ClientAddr: client})
	assert.Equal(t, float64(0), gaugeValue(t, c.Allocations))
	assert.Equal(t, float64(1), counterValue(t, c.AllocationTotal), "total must not decrease")
}

func TestCollector_AddRelayedBytes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.AddRelayedBytes(128)
	c.AddRelayedBytes(64)
	assert.Equal(t, float64(192), counterValue(t, c.RelayedBytes))
}
