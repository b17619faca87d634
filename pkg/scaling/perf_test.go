package scaling

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPerfMonitorComputesStats(t *testing.T) {
	p := NewPerfMonitor()
	for _, d := range []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond} {
		p.Record("reactive_cycle", d)
	}
	stats := p.Stats("reactive_cycle")
	require.Equal(t, 3, stats.Count)
	require.Equal(t, 10*time.Millisecond, stats.Min)
	require.Equal(t, 30*time.Millisecond, stats.Max)
	require.Equal(t, 20*time.Millisecond, stats.Avg)
}

func TestPerfMonitorUnknownOpReturnsZeroStats(t *testing.T) {
	p := NewPerfMonitor()
	require.Equal(t, Stats{}, p.Stats("never_recorded"))
}

func TestPerfMonitorEvictsOldestPastCapacity(t *testing.T) {
	p := NewPerfMonitor()
	for i := 0; i < perfRingCapacity+10; i++ {
		p.Record("op", time.Duration(i)*time.Millisecond)
	}
	stats := p.Stats("op")
	require.Equal(t, perfRingCapacity, stats.Count)
}

func TestPerfMonitorTimeRecordsDurationAndReturnsError(t *testing.T) {
	p := NewPerfMonitor()
	wantErr := errors.New("boom")
	err := p.Time("op", func() error {
		time.Sleep(time.Millisecond)
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)
	require.Equal(t, 1, p.Stats("op").Count)
}
