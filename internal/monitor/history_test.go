package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryRing(t *testing.T) {
	t.Parallel()

	h := NewHistory(3)
	assert.Empty(t, h.Recent(0))

	for i := 1; i <= 5; i++ {
		h.Add(DecisionView{Seq: uint64(i)})
	}
	assert.Equal(t, 3, h.Len())
	assert.Equal(t, int64(5), h.Total())

	got := h.Recent(0)
	require.Len(t, got, 3)
	assert.Equal(t, []uint64{3, 4, 5}, []uint64{got[0].Seq, got[1].Seq, got[2].Seq})

	got = h.Recent(2)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(4), got[0].Seq)
	assert.Equal(t, uint64(5), got[1].Seq)
}

func TestHistorySummary(t *testing.T) {
	t.Parallel()

	h := NewHistory(10)
	assert.Equal(t, CommandSummary{}, h.Summary())

	h.Add(DecisionView{Command: 0.5})
	s := h.Summary()
	assert.Equal(t, 1, s.Count)
	assert.Equal(t, 0.5, s.Mean)
	assert.Equal(t, 0.0, s.StdDev)

	for _, c := range []float64{-0.5, 0.5, -0.5} {
		h.Add(DecisionView{Command: c})
	}
	s = h.Summary()
	assert.Equal(t, 4, s.Count)
	assert.InDelta(t, 0.0, s.Mean, 1e-12)
	// Sample standard deviation of {0.5, -0.5, 0.5, -0.5}.
	assert.InDelta(t, 0.57735, s.StdDev, 1e-5)
	assert.Equal(t, -0.5, s.Min)
	assert.Equal(t, 0.5, s.Max)
	assert.Equal(t, 1.0, s.MaxStep)
}
