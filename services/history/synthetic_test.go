package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePointCountPerWindow(t *testing.T) {
	tests := []struct {
		hours int
		want  int
	}{
		{1, 48},
		{24, 48},
		{48, 168},
		{168, 168},
		{720, 365},
		{8760, 365},
	}

	s := NewSyntheticWithSeed(1)
	for _, tt := range tests {
		got := s.Generate("bitcoin", tt.hours, 100)
		assert.Len(t, got, tt.want, "hours=%d", tt.hours)
	}
}

func TestGeneratePricesHugAnchor(t *testing.T) {
	// 5% sine swing plus 1% jitter keeps every sample within 7% of the
	// anchor, wide enough to look alive on a chart.
	s := NewSyntheticWithSeed(7)
	got := s.Generate("ethereum", 168, 3000)

	require.Len(t, got, 168)
	for i, p := range got {
		assert.GreaterOrEqual(t, p.Price, 3000*0.93, "point %d", i)
		assert.LessOrEqual(t, p.Price, 3000*1.07, "point %d", i)
	}
}

func TestGenerateCoversRequestedWindow(t *testing.T) {
	s := NewSyntheticWithSeed(3)
	before := time.Now()
	got := s.Generate("bitcoin", 24, 100)
	after := time.Now()

	require.Len(t, got, 48)

	assert.False(t, got[0].Timestamp.Before(before.Add(-24*time.Hour-time.Second)))
	assert.False(t, got[len(got)-1].Timestamp.After(after))

	step := got[1].Timestamp.Sub(got[0].Timestamp)
	for i := 1; i < len(got); i++ {
		gap := got[i].Timestamp.Sub(got[i-1].Timestamp)
		assert.InDelta(t, step.Seconds(), gap.Seconds(), 1, "gap %d is uneven", i)
		assert.True(t, gap > 0, "timestamps must increase")
	}
}

func TestGenerateDefaultsUnusableInputs(t *testing.T) {
	s := NewSyntheticWithSeed(5)

	got := s.Generate("new-listing", 0, 0)
	require.Len(t, got, 48, "zero hours clamps to the minimum window")
	for _, p := range got {
		assert.GreaterOrEqual(t, p.Price, DefaultAnchorPrice*0.93)
		assert.LessOrEqual(t, p.Price, DefaultAnchorPrice*1.07)
	}

	got = s.Generate("new-listing", 24, -50)
	for _, p := range got {
		assert.GreaterOrEqual(t, p.Price, DefaultAnchorPrice*0.93)
	}
}

func TestGenerateSeededRunsMatch(t *testing.T) {
	a := NewSyntheticWithSeed(99).Generate("bitcoin", 24, 250)
	b := NewSyntheticWithSeed(99).Generate("bitcoin", 24, 250)

	require.Len(t, b, len(a))
	for i := range a {
		assert.Equal(t, a[i].Price, b[i].Price, "point %d diverged", i)
	}
}
