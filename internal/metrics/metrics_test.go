package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageObservations(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewStorage(reg)

	s.ObserveRead(2*time.Millisecond, 128)
	s.ObserveCommit(5*time.Millisecond, 4096)
	s.ObserveCommit(1*time.Millisecond, 1024)

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				byName[mf.GetName()] = c.GetValue()
			}
			if h := m.GetHistogram(); h != nil {
				byName[mf.GetName()] = float64(h.GetSampleCount())
			}
		}
	}
	assert.EqualValues(t, 128, byName["logvault_storage_read_bytes_total"])
	assert.EqualValues(t, 5120, byName["logvault_storage_commit_bytes_total"])
	assert.EqualValues(t, 1, byName["logvault_storage_read_latency_seconds"])
	assert.EqualValues(t, 2, byName["logvault_storage_commit_latency_seconds"])
}

func TestStorageRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewStorage(reg)
	assert.Panics(t, func() { NewStorage(reg) })
}
