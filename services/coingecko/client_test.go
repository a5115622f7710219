package coingecko

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const marketsPayload = `[
	{
		"id": "bitcoin",
		"symbol": "btc",
		"name": "Bitcoin",
		"current_price": 64231.55,
		"market_cap": 1262930000000,
		"market_cap_rank": 1,
		"total_volume": 35120000000,
		"price_change_percentage_24h": 2.15,
		"price_change_percentage_7d_in_currency": -1.3,
		"ath": 73737.94,
		"ath_date": "2024-03-14T07:10:36.635Z",
		"atl": 67.81,
		"atl_date": "2013-07-06T00:00:00.000Z",
		"last_updated": "2024-04-02T11:30:00.000Z"
	},
	{
		"id": "stablecorn",
		"symbol": "scn",
		"name": "Stablecorn",
		"current_price": 1.0,
		"market_cap": null,
		"market_cap_rank": null,
		"total_volume": null,
		"price_change_percentage_24h": null,
		"ath": null,
		"ath_date": "",
		"atl": null,
		"atl_date": "",
		"last_updated": ""
	}
]`

func newTestClient(url string) *Client {
	return NewClient(url, "", 5*time.Second, 0)
}

func TestFetchTopSnapshots(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/markets", r.URL.Path)
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currency"))
		assert.Equal(t, "market_cap_desc", r.URL.Query().Get("order"))
		assert.Equal(t, "50", r.URL.Query().Get("per_page"))
		w.Write([]byte(marketsPayload))
	}))
	defer server.Close()

	coins, err := newTestClient(server.URL).FetchTopSnapshots(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, coins, 2)

	btc := coins[0]
	assert.Equal(t, "bitcoin", btc.ID)
	assert.Equal(t, "btc", btc.Symbol)
	assert.Equal(t, 1, btc.MarketCapRank)
	assert.Equal(t, 2.15, btc.Change24h)
	assert.InDelta(t, 64231.55, btc.CurrentPrice.InexactFloat64(), 0.001)
	require.NotNil(t, btc.ATHDate)
	assert.Equal(t, 2024, btc.ATHDate.Year())

	// Nulled fields default instead of failing the batch.
	scn := coins[1]
	assert.Equal(t, "stablecorn", scn.ID)
	assert.Equal(t, 0, scn.MarketCapRank)
	assert.Equal(t, 0.0, scn.Change24h)
	assert.Nil(t, scn.ATHDate)
	assert.True(t, scn.MarketCap.IsZero())
}

func TestFetchTopSnapshotsSkipsUnusableEntries(t *testing.T) {
	payload := `[
		{"id": "", "symbol": "???", "current_price": 5},
		{"id": "nullprice", "symbol": "np", "current_price": null},
		{"id": "bitcoin", "symbol": "btc", "current_price": 64000}
	]`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer server.Close()

	coins, err := newTestClient(server.URL).FetchTopSnapshots(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, coins, 1)
	assert.Equal(t, "bitcoin", coins[0].ID)
}

func TestFetchTopSnapshotsAllUnusableIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": "", "current_price": null}]`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchTopSnapshots(context.Background(), 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedPayload)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFetchTopSnapshotsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchTopSnapshots(context.Background(), 10)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFetchTopSnapshotsGarbageBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchTopSnapshots(context.Background(), 10)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestFetchRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/bitcoin/market_chart", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("days"))
		assert.Empty(t, r.URL.Query().Get("interval"))
		w.Write([]byte(`{"prices": [[1712044800000, 64000.5], [1712048400000, 64100.25], [1712052000000]]}`))
	}))
	defer server.Close()

	points, err := newTestClient(server.URL).FetchRange(context.Background(), "bitcoin", TierWeek)
	require.NoError(t, err)
	require.Len(t, points, 2, "short pairs are dropped")

	assert.Equal(t, time.UnixMilli(1712044800000), points[0].Timestamp)
	assert.Equal(t, 64000.5, points[0].Price)
	assert.Equal(t, 64100.25, points[1].Price)
}

func TestFetchRangeDailyInterval(t *testing.T) {
	var gotInterval string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotInterval = r.URL.Query().Get("interval")
		w.Write([]byte(`{"prices": []}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.FetchRange(context.Background(), "bitcoin", TierYear)
	require.NoError(t, err)
	assert.Equal(t, "daily", gotInterval)

	_, err = client.FetchRange(context.Background(), "bitcoin", TierMax)
	require.NoError(t, err)
	assert.Equal(t, "daily", gotInterval)
}

func TestRequestBudget(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	// Capacity one, effectively no refill inside the test window.
	client := NewClient(server.URL, "", 5*time.Second, 1)

	_, err := client.FetchTopSnapshots(context.Background(), 10)
	require.NoError(t, err)

	_, err = client.FetchTopSnapshots(context.Background(), 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int64(1), hits.Load(), "throttled request must not reach upstream")
}

func TestTierForHours(t *testing.T) {
	tests := []struct {
		hours int
		want  Tier
	}{
		{1, TierDay},
		{24, TierDay},
		{25, TierWeek},
		{168, TierWeek},
		{169, TierMonth},
		{720, TierMonth},
		{721, TierQuarter},
		{2160, TierQuarter},
		{2161, TierYear},
		{8760, TierYear},
		{8761, TierMax},
		{100000, TierMax},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, TierForHours(tt.hours), "hours=%d", tt.hours)
	}
}
