package coingecko

// Tier is the granularity bucket passed as the `days` parameter of
// /coins/{id}/market_chart. The provider prices requests by granularity
// rather than duration and coarsens sample density at these boundaries,
// so requested windows snap to the cheapest bucket that covers them.
type Tier string

const (
	TierDay     Tier = "1"
	TierWeek    Tier = "7"
	TierMonth   Tier = "30"
	TierQuarter Tier = "90"
	TierYear    Tier = "365"
	TierMax     Tier = "max"
)

// TierForHours maps a requested trailing window to its upstream bucket.
func TierForHours(hours int) Tier {
	switch {
	case hours <= 24:
		return TierDay
	case hours <= 7*24:
		return TierWeek
	case hours <= 30*24:
		return TierMonth
	case hours <= 90*24:
		return TierQuarter
	case hours <= 365*24:
		return TierYear
	default:
		return TierMax
	}
}

// daily reports whether the tier is fetched with an explicit daily
// interval. Shorter tiers let the provider pick the native density.
func (t Tier) daily() bool {
	return t == TierYear || t == TierMax
}
