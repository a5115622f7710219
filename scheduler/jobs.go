package scheduler

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/deymohit02/crypto-market-tracker/metrics"
	"github.com/deymohit02/crypto-market-tracker/models"
)

// baselineRoster seeds well-known assets so a cold start never serves an
// empty market list. Prices are placeholder anchors, replaced by the first
// applied batch.
var baselineRoster = []struct {
	ID     string
	Symbol string
	Name   string
	Price  float64
	Rank   int
}{
	{"bitcoin", "btc", "Bitcoin", 64000, 1},
	{"ethereum", "eth", "Ethereum", 3100, 2},
	{"tether", "usdt", "Tether", 1, 3},
	{"binancecoin", "bnb", "BNB", 570, 4},
	{"solana", "sol", "Solana", 140, 5},
	{"ripple", "xrp", "XRP", 0.52, 6},
	{"cardano", "ada", "Cardano", 0.38, 7},
	{"dogecoin", "doge", "Dogecoin", 0.12, 8},
}

func (s *Scheduler) runCycle() {
	ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
	defer cancel()
	defer s.setState(StateIdle)

	s.setState(StateFetching)
	batch, err := s.upstream.FetchTopSnapshots(ctx, s.topLimit)
	if err != nil || len(batch) == 0 {
		s.skipCycle(ctx, err)
		return
	}
	s.applyBatch(ctx, batch)
}

// skipCycle records a failed tick. Stored data is never cleared on failure;
// stale data beats no data.
func (s *Scheduler) skipCycle(ctx context.Context, err error) {
	s.setState(StateSkipping)
	metrics.IngestCycles.WithLabelValues("skipped").Inc()

	s.mu.Lock()
	s.failStreak++
	streak := s.failStreak
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastError = "upstream returned no snapshots"
	}
	s.mu.Unlock()

	log.Warn().Err(err).Int("consecutive_failures", streak).
		Msg("Ingestion cycle skipped")

	if streak >= reseedAfterFailures {
		s.ensureSeeded(ctx)
	}
}

func (s *Scheduler) applyBatch(ctx context.Context, batch []models.Coin) {
	s.setState(StateApplying)

	applied := 0
	for i := range batch {
		coin := batch[i]
		if err := s.store.UpsertSnapshot(ctx, &coin); err != nil {
			log.Error().Err(err).Str("coin_id", coin.ID).Msg("Snapshot upsert failed")
			continue
		}
		ts := coin.LastUpdated
		if ts.IsZero() {
			ts = time.Now()
		}
		if err := s.store.AppendPoint(ctx, coin.ID, coin.CurrentPrice.InexactFloat64(), ts); err != nil {
			log.Error().Err(err).Str("coin_id", coin.ID).Msg("Point append failed")
		}
		applied++
	}

	if rules, err := s.store.ListActiveRules(ctx); err != nil {
		log.Error().Err(err).Msg("Could not load alert rules")
	} else if len(rules) > 0 {
		s.evaluator.Evaluate(ctx, batch, rules)
	}

	s.hub.Publish("price_update", topByRank(batch, broadcastCap))

	if s.archive != nil {
		if err := s.archive.SaveSnapshots(ctx, batch); err != nil {
			log.Warn().Err(err).Msg("Archive mirror failed")
		}
	}

	s.mu.Lock()
	s.failStreak = 0
	s.lastError = ""
	s.lastSuccess = time.Now()
	s.cycles++
	s.mu.Unlock()
	metrics.IngestCycles.WithLabelValues("applied").Inc()

	s.warmOnce.Do(func() {
		s.mu.Lock()
		s.warmed = true
		s.mu.Unlock()
		log.Info().Msg("First market batch applied")
		if s.onWarm != nil {
			s.onWarm()
		}
	})

	log.Info().Int("coins", applied).Msg("Ingestion cycle applied")
}

// ensureSeeded populates an empty store so the first page load never shows
// an empty market. Archived snapshots win over the baseline roster.
func (s *Scheduler) ensureSeeded(ctx context.Context) {
	count, err := s.store.CountSnapshots(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Could not count snapshots for seeding")
		return
	}
	if count > 0 {
		return
	}

	if s.archive != nil {
		coins, err := s.archive.LoadSnapshots(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Archive restore failed")
		} else if len(coins) > 0 {
			restored := 0
			for i := range coins {
				if err := s.store.UpsertSnapshot(ctx, &coins[i]); err != nil {
					log.Error().Err(err).Str("coin_id", coins[i].ID).Msg("Archived snapshot upsert failed")
					continue
				}
				restored++
			}
			log.Info().Int("coins", restored).Msg("Restored snapshots from archive")
			if restored > 0 {
				return
			}
		}
	}

	s.seedBaseline(ctx)
}

func (s *Scheduler) seedBaseline(ctx context.Context) {
	now := time.Now()
	seeded := 0
	for _, entry := range baselineRoster {
		coin := models.Coin{
			ID:            entry.ID,
			Symbol:        entry.Symbol,
			Name:          entry.Name,
			CurrentPrice:  decimal.NewFromFloat(entry.Price),
			MarketCapRank: entry.Rank,
			LastUpdated:   now,
		}
		if err := s.store.UpsertSnapshot(ctx, &coin); err != nil {
			log.Error().Err(err).Str("coin_id", entry.ID).Msg("Baseline snapshot failed")
			continue
		}
		for _, p := range s.synth.Generate(entry.ID, 24, entry.Price) {
			if err := s.store.AppendPoint(ctx, entry.ID, p.Price, p.Timestamp); err != nil {
				log.Error().Err(err).Str("coin_id", entry.ID).Msg("Baseline point failed")
				break
			}
		}
		seeded++
	}
	log.Info().Int("coins", seeded).Msg("Seeded baseline roster")
}

// prunePoints trims tick history beyond the retention horizon.
func (s *Scheduler) prunePoints() {
	ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
	defer cancel()

	pruned, err := s.store.PrunePoints(ctx, time.Now().Add(-pointRetention))
	if err != nil {
		log.Error().Err(err).Msg("Point retention sweep failed")
		return
	}
	if pruned > 0 {
		log.Info().Int64("points", pruned).Msg("Pruned aged price points")
	}
}

func topByRank(batch []models.Coin, n int) []models.Coin {
	sorted := make([]models.Coin, len(batch))
	copy(sorted, batch)
	sort.SliceStable(sorted, func(i, j int) bool {
		return rankOf(sorted[i]) < rankOf(sorted[j])
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// rankOf pushes unranked assets to the back.
func rankOf(c models.Coin) int {
	if c.MarketCapRank <= 0 {
		return math.MaxInt
	}
	return c.MarketCapRank
}
