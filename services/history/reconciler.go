package history

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/deymohit02/crypto-market-tracker/metrics"
	"github.com/deymohit02/crypto-market-tracker/models"
	"github.com/deymohit02/crypto-market-tracker/services/coingecko"
)

const (
	// TransportCap bounds the length of any series handed to clients.
	TransportCap = 2000

	// coverageRatio is the fraction of a requested window the stored
	// series must span before the upstream is left alone.
	coverageRatio = 0.9

	// minRequestHours is the documented floor for zero or negative
	// window requests.
	minRequestHours = 1
)

// SeriesReader is the read-only slice of the store the reconciler needs.
type SeriesReader interface {
	QueryPoints(ctx context.Context, coinID string, since time.Time) ([]models.PricePoint, error)
	GetSnapshot(ctx context.Context, coinID string) (*models.Coin, error)
}

// Upstream is the historical-range half of the provider client.
type Upstream interface {
	FetchRange(ctx context.Context, coinID string, tier coingecko.Tier) ([]models.SeriesPoint, error)
}

// Reconciler decides, per request, whether locally stored samples are
// fresh enough, when to backfill from the upstream, and when to degrade
// to a synthetic series.
type Reconciler struct {
	store    SeriesReader
	upstream Upstream
	synth    *Synthetic
}

func NewReconciler(store SeriesReader, upstream Upstream, synth *Synthetic) *Reconciler {
	return &Reconciler{store: store, upstream: upstream, synth: synth}
}

// GetRange returns a best-effort series for the trailing window. It never
// fails: stored data wins when it spans at least 90% of the window, the
// upstream backfills when it does not, and a synthetic series anchored at
// the last known real price keeps the chart alive when both are out.
// Windows below one hour are treated as one hour.
func (r *Reconciler) GetRange(ctx context.Context, coinID string, hours int) []models.SeriesPoint {
	if hours < minRequestHours {
		hours = minRequestHours
	}

	now := time.Now()
	since := now.Add(-time.Duration(hours) * time.Hour)

	stored, err := r.store.QueryPoints(ctx, coinID, since)
	if err != nil {
		log.Error().Err(err).Str("coin_id", coinID).Msg("store query failed")
		stored = nil
	}

	series := toSeries(stored)
	if coverageHours(series) >= coverageRatio*float64(hours) {
		metrics.HistoryServed.WithLabelValues("store").Inc()
		return downsample(series)
	}

	tier := coingecko.TierForHours(hours)
	fetched, err := r.upstream.FetchRange(ctx, coinID, tier)
	if err != nil {
		log.Warn().Err(err).
			Str("coin_id", coinID).
			Int("hours", hours).
			Msg("backfill failed, serving synthetic series")
	} else {
		// Upstream ordering is not trusted.
		sort.SliceStable(fetched, func(i, j int) bool {
			return fetched[i].Timestamp.Before(fetched[j].Timestamp)
		})
		if tier != coingecko.TierMax {
			fetched = trimOlderThan(fetched, since)
		}
		if len(fetched) > 0 {
			metrics.HistoryServed.WithLabelValues("upstream").Inc()
			return downsample(fetched)
		}
		log.Debug().Str("coin_id", coinID).Int("hours", hours).Msg("backfill returned no points in window")
	}

	metrics.HistoryServed.WithLabelValues("synthetic").Inc()
	anchor := r.anchorPrice(ctx, coinID, stored)
	return downsample(r.synth.Generate(coinID, hours, anchor))
}

// anchorPrice finds the most recent known real price: the snapshot first,
// then the tail of whatever the store did return.
func (r *Reconciler) anchorPrice(ctx context.Context, coinID string, stored []models.PricePoint) float64 {
	if snap, err := r.store.GetSnapshot(ctx, coinID); err == nil {
		if price := snap.CurrentPrice.InexactFloat64(); price > 0 {
			return price
		}
	}
	if len(stored) > 0 {
		return stored[len(stored)-1].Price
	}
	return DefaultAnchorPrice
}

// coverageHours is the span between the first and last sample. Fewer than
// two samples cover nothing.
func coverageHours(series []models.SeriesPoint) float64 {
	if len(series) < 2 {
		return 0
	}
	return series[len(series)-1].Timestamp.Sub(series[0].Timestamp).Hours()
}

func toSeries(points []models.PricePoint) []models.SeriesPoint {
	series := make([]models.SeriesPoint, len(points))
	for i, p := range points {
		series[i] = models.SeriesPoint{Timestamp: p.Timestamp, Price: p.Price}
	}
	return series
}

func trimOlderThan(series []models.SeriesPoint, cutoff time.Time) []models.SeriesPoint {
	out := series[:0]
	for _, p := range series {
		if !p.Timestamp.Before(cutoff) {
			out = append(out, p)
		}
	}
	return out
}

// downsample enforces the transport cap with a deterministic stride: keep
// every ceil(len/cap)-th point starting from the first, preserving order.
func downsample(series []models.SeriesPoint) []models.SeriesPoint {
	if len(series) <= TransportCap {
		return series
	}
	stride := (len(series) + TransportCap - 1) / TransportCap
	out := make([]models.SeriesPoint, 0, TransportCap)
	for i := 0; i < len(series); i += stride {
		out = append(out, series[i])
	}
	return out
}
