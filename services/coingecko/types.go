package coingecko

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/deymohit02/crypto-market-tracker/models"
)

// marketCoin mirrors one entry of /coins/markets. The provider nulls
// numeric fields for thinly traded coins, so everything optional is a
// pointer and defaults to zero on conversion.
type marketCoin struct {
	ID            string   `json:"id"`
	Symbol        string   `json:"symbol"`
	Name          string   `json:"name"`
	CurrentPrice  *float64 `json:"current_price"`
	MarketCap     *float64 `json:"market_cap"`
	MarketCapRank *int     `json:"market_cap_rank"`
	TotalVolume   *float64 `json:"total_volume"`
	Change24h     *float64 `json:"price_change_percentage_24h"`
	Change7d      *float64 `json:"price_change_percentage_7d_in_currency"`
	ATH           *float64 `json:"ath"`
	ATHDate       string   `json:"ath_date"`
	ATL           *float64 `json:"atl"`
	ATLDate       string   `json:"atl_date"`
	LastUpdated   string   `json:"last_updated"`
}

// valid reports whether the entry carries the minimum fields the tracker
// needs. Entries without an identifier or a price are unusable.
func (m marketCoin) valid() bool {
	return m.ID != "" && m.CurrentPrice != nil
}

// toModel converts a validated entry, defaulting nulled fields.
func (m marketCoin) toModel(now time.Time) models.Coin {
	coin := models.Coin{
		ID:           m.ID,
		Symbol:       m.Symbol,
		Name:         m.Name,
		CurrentPrice: decimal.NewFromFloat(deref(m.CurrentPrice)),
		MarketCap:    decimal.NewFromFloat(deref(m.MarketCap)),
		Volume24h:    decimal.NewFromFloat(deref(m.TotalVolume)),
		Change24h:    deref(m.Change24h),
		Change7d:     deref(m.Change7d),
		ATH:          decimal.NewFromFloat(deref(m.ATH)),
		ATL:          decimal.NewFromFloat(deref(m.ATL)),
		ATHDate:      parseProviderTime(m.ATHDate),
		ATLDate:      parseProviderTime(m.ATLDate),
		LastUpdated:  now,
	}
	if m.MarketCapRank != nil {
		coin.MarketCapRank = *m.MarketCapRank
	}
	if ts := parseProviderTime(m.LastUpdated); ts != nil {
		coin.LastUpdated = *ts
	}
	return coin
}

// marketChart mirrors /coins/{id}/market_chart: each price entry is a
// [unix-millis, price] pair.
type marketChart struct {
	Prices [][]float64 `json:"prices"`
}

func (c marketChart) toSeries() []models.SeriesPoint {
	points := make([]models.SeriesPoint, 0, len(c.Prices))
	for _, pair := range c.Prices {
		if len(pair) < 2 {
			continue
		}
		points = append(points, models.SeriesPoint{
			Timestamp: time.UnixMilli(int64(pair[0])),
			Price:     pair[1],
		})
	}
	return points
}

func parseProviderTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &ts
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
