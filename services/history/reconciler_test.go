package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deymohit02/crypto-market-tracker/models"
	"github.com/deymohit02/crypto-market-tracker/services/coingecko"
)

type fakeStore struct {
	points   []models.PricePoint
	snapshot *models.Coin
	queryErr error
}

func (f *fakeStore) QueryPoints(_ context.Context, coinID string, since time.Time) ([]models.PricePoint, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	var out []models.PricePoint
	for _, p := range f.points {
		if p.CoinID == coinID && !p.Timestamp.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) GetSnapshot(_ context.Context, coinID string) (*models.Coin, error) {
	if f.snapshot == nil || f.snapshot.ID != coinID {
		return nil, errors.New("not found")
	}
	return f.snapshot, nil
}

type fakeUpstream struct {
	series   []models.SeriesPoint
	err      error
	calls    int
	lastTier coingecko.Tier
}

func (f *fakeUpstream) FetchRange(_ context.Context, _ string, tier coingecko.Tier) ([]models.SeriesPoint, error) {
	f.calls++
	f.lastTier = tier
	if f.err != nil {
		return nil, f.err
	}
	return f.series, nil
}

func storedPoints(coinID string, ages []time.Duration, price float64) []models.PricePoint {
	now := time.Now()
	points := make([]models.PricePoint, len(ages))
	for i, age := range ages {
		points[i] = models.PricePoint{CoinID: coinID, Price: price, Timestamp: now.Add(-age)}
	}
	return points
}

func spanningSeries(span time.Duration, count int, price float64) []models.SeriesPoint {
	now := time.Now()
	start := now.Add(-span)
	step := span / time.Duration(count-1)
	out := make([]models.SeriesPoint, count)
	for i := range out {
		out[i] = models.SeriesPoint{Timestamp: start.Add(time.Duration(i) * step), Price: price}
	}
	return out
}

func newTestReconciler(st *fakeStore, up *fakeUpstream) *Reconciler {
	return NewReconciler(st, up, NewSyntheticWithSeed(42))
}

func assertNonDecreasing(t *testing.T, series []models.SeriesPoint) {
	t.Helper()
	for i := 1; i < len(series); i++ {
		assert.False(t, series[i].Timestamp.Before(series[i-1].Timestamp),
			"timestamp at %d goes backwards", i)
	}
}

func TestGetRangeSufficientCoverageSkipsUpstream(t *testing.T) {
	st := &fakeStore{points: storedPoints("bitcoin", []time.Duration{
		23 * time.Hour, 12 * time.Hour, 30 * time.Minute,
	}, 64000)}
	up := &fakeUpstream{series: spanningSeries(24*time.Hour, 10, 1)}

	got := newTestReconciler(st, up).GetRange(context.Background(), "bitcoin", 24)

	assert.Equal(t, 0, up.calls, "covered window must not hit the upstream")
	require.Len(t, got, 3)
	assert.Equal(t, 64000.0, got[0].Price)
	assertNonDecreasing(t, got)
}

func TestGetRangeBackfillsThinStore(t *testing.T) {
	// Two stored points one hour apart cover 1h of a 24h window, well
	// under the 21.6h needed, so the upstream takes over. It over-returns
	// 26 hours of data; everything older than the window is trimmed.
	st := &fakeStore{points: storedPoints("bitcoin", []time.Duration{
		2 * time.Hour, time.Hour,
	}, 64000)}
	up := &fakeUpstream{series: spanningSeries(26*time.Hour, 50, 65000)}

	got := newTestReconciler(st, up).GetRange(context.Background(), "bitcoin", 24)

	assert.Equal(t, 1, up.calls)
	assert.Equal(t, coingecko.TierDay, up.lastTier)
	require.NotEmpty(t, got)
	assert.Less(t, len(got), 50, "points outside the window must be trimmed")

	cutoff := time.Now().Add(-24*time.Hour - time.Minute)
	for _, p := range got {
		assert.True(t, p.Timestamp.After(cutoff), "point at %v is older than the window", p.Timestamp)
		assert.Equal(t, 65000.0, p.Price)
	}
	assertNonDecreasing(t, got)
}

func TestGetRangeTierSelection(t *testing.T) {
	tests := []struct {
		hours int
		tier  coingecko.Tier
	}{
		{24, coingecko.TierDay},
		{168, coingecko.TierWeek},
		{720, coingecko.TierMonth},
		{2160, coingecko.TierQuarter},
		{8760, coingecko.TierYear},
		{9000, coingecko.TierMax},
	}

	for _, tt := range tests {
		up := &fakeUpstream{series: spanningSeries(time.Duration(tt.hours)*time.Hour, 10, 1)}
		newTestReconciler(&fakeStore{}, up).GetRange(context.Background(), "bitcoin", tt.hours)
		assert.Equal(t, tt.tier, up.lastTier, "hours=%d", tt.hours)
	}
}

func TestGetRangeMaxTierKeepsFullRange(t *testing.T) {
	// Beyond a year the max-range sentinel applies and old points are
	// wanted, not trimmed.
	old := []models.SeriesPoint{
		{Timestamp: time.Now().Add(-3 * 365 * 24 * time.Hour), Price: 100},
		{Timestamp: time.Now().Add(-2 * 365 * 24 * time.Hour), Price: 200},
		{Timestamp: time.Now(), Price: 300},
	}
	up := &fakeUpstream{series: old}

	got := newTestReconciler(&fakeStore{}, up).GetRange(context.Background(), "bitcoin", 4*365*24)

	assert.Equal(t, coingecko.TierMax, up.lastTier)
	assert.Len(t, got, 3)
}

func TestGetRangeSyntheticOnUpstreamFailure(t *testing.T) {
	st := &fakeStore{snapshot: &models.Coin{
		ID:           "ethereum",
		CurrentPrice: decimal.NewFromInt(3000),
	}}
	up := &fakeUpstream{err: errors.New("connection refused")}

	got := newTestReconciler(st, up).GetRange(context.Background(), "ethereum", 168)

	assert.Equal(t, 1, up.calls)
	require.Len(t, got, 168, "week tier generates one point per hour")
	for _, p := range got {
		assert.GreaterOrEqual(t, p.Price, 3000*0.93)
		assert.LessOrEqual(t, p.Price, 3000*1.07)
	}
	assertNonDecreasing(t, got)

	windowStart := time.Now().Add(-168*time.Hour - time.Minute)
	assert.True(t, got[0].Timestamp.After(windowStart))
	assert.True(t, got[len(got)-1].Timestamp.Before(time.Now().Add(time.Minute)))
}

func TestGetRangeSyntheticAnchorsToStoredTail(t *testing.T) {
	// No snapshot, but one stored point exists inside the window; its
	// price anchors the synthetic series.
	st := &fakeStore{points: storedPoints("dogecoin", []time.Duration{time.Hour}, 500)}
	up := &fakeUpstream{err: errors.New("boom")}

	got := newTestReconciler(st, up).GetRange(context.Background(), "dogecoin", 24)

	require.Len(t, got, 48)
	for _, p := range got {
		assert.GreaterOrEqual(t, p.Price, 500*0.93)
		assert.LessOrEqual(t, p.Price, 500*1.07)
	}
}

func TestGetRangeUnknownCoinStillServes(t *testing.T) {
	up := &fakeUpstream{err: errors.New("boom")}

	got := newTestReconciler(&fakeStore{}, up).GetRange(context.Background(), "no-such-coin", 24)

	require.Len(t, got, 48)
	for _, p := range got {
		assert.GreaterOrEqual(t, p.Price, DefaultAnchorPrice*0.93)
		assert.LessOrEqual(t, p.Price, DefaultAnchorPrice*1.07)
	}
}

func TestGetRangeEmptyUpstreamFallsToSynthetic(t *testing.T) {
	up := &fakeUpstream{series: nil}

	got := newTestReconciler(&fakeStore{}, up).GetRange(context.Background(), "bitcoin", 24)

	assert.Equal(t, 1, up.calls)
	assert.Len(t, got, 48)
}

func TestGetRangeClampsNonPositiveHours(t *testing.T) {
	up := &fakeUpstream{err: errors.New("boom")}
	r := newTestReconciler(&fakeStore{}, up)

	for _, hours := range []int{0, -5} {
		got := r.GetRange(context.Background(), "bitcoin", hours)
		require.Len(t, got, 48, "hours=%d should clamp to the minimum window", hours)
		assert.Equal(t, coingecko.TierDay, up.lastTier)
	}
}

func TestGetRangeStoreErrorDegradesToBackfill(t *testing.T) {
	st := &fakeStore{queryErr: errors.New("store offline")}
	up := &fakeUpstream{series: spanningSeries(24*time.Hour, 10, 42)}

	got := newTestReconciler(st, up).GetRange(context.Background(), "bitcoin", 24)

	assert.Equal(t, 1, up.calls)
	require.Len(t, got, 10)
	assert.Equal(t, 42.0, got[0].Price)
}

func TestGetRangeCapsOversizedSeries(t *testing.T) {
	st := &fakeStore{}
	now := time.Now()
	for i := 0; i < 4001; i++ {
		st.points = append(st.points, models.PricePoint{
			CoinID:    "bitcoin",
			Price:     float64(i),
			Timestamp: now.Add(-24*time.Hour + time.Duration(i)*20*time.Second),
		})
	}
	up := &fakeUpstream{}

	r := newTestReconciler(st, up)
	got := r.GetRange(context.Background(), "bitcoin", 24)

	assert.Equal(t, 0, up.calls)
	assert.LessOrEqual(t, len(got), TransportCap)
	assert.Equal(t, 0.0, got[0].Price, "first point of each stride window is kept")
	assertNonDecreasing(t, got)

	again := r.GetRange(context.Background(), "bitcoin", 24)
	assert.Equal(t, got, again, "downsampling must be deterministic")
}

func TestDownsampleStride(t *testing.T) {
	series := spanningSeries(24*time.Hour, 5000, 1)

	got := downsample(series)

	// ceil(5000/2000) = 3, so indices 0, 3, 6, ... survive.
	require.Len(t, got, 1667)
	assert.Equal(t, series[0], got[0])
	assert.Equal(t, series[3], got[1])
	assert.Equal(t, series[4998], got[1666])

	assert.Equal(t, got, downsample(series))
}

func TestDownsampleNoopUnderCap(t *testing.T) {
	series := spanningSeries(time.Hour, 2000, 1)
	assert.Len(t, downsample(series), 2000)
}

func TestCoverageHours(t *testing.T) {
	assert.Equal(t, 0.0, coverageHours(nil))
	assert.Equal(t, 0.0, coverageHours(spanningSeries(time.Hour, 2, 1)[:1]))
	assert.InDelta(t, 6.0, coverageHours(spanningSeries(6*time.Hour, 7, 1)), 0.01)
}
