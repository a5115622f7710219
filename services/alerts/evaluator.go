package alerts

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/deymohit02/crypto-market-tracker/metrics"
	"github.com/deymohit02/crypto-market-tracker/models"
)

// RuleMarker persists the one-way idle to triggered transition.
type RuleMarker interface {
	MarkTriggered(ctx context.Context, ruleID uint, ts time.Time) error
}

// Evaluator checks alert rules against the latest market batch. Rules fire
// once: a triggered rule is marked and never re-evaluated until recreated.
type Evaluator struct {
	store RuleMarker
}

func NewEvaluator(store RuleMarker) *Evaluator {
	return &Evaluator{store: store}
}

// Evaluate runs every untriggered rule against the batch and returns the IDs
// of rules that fired. A rule whose coin is absent from the batch is left
// alone for the next cycle. If the mark write fails the rule still counts as
// fired here, and, since it stays active in the store, it will fire again.
func (e *Evaluator) Evaluate(ctx context.Context, batch []models.Coin, rules []models.AlertRule) []uint {
	if len(rules) == 0 || len(batch) == 0 {
		return nil
	}

	byID := make(map[string]*models.Coin, len(batch))
	for i := range batch {
		byID[batch[i].ID] = &batch[i]
	}

	var fired []uint
	now := time.Now()

	for _, rule := range rules {
		if rule.IsTriggered {
			continue
		}
		coin, ok := byID[rule.CoinID]
		if !ok {
			continue
		}
		if !matches(rule, coin) {
			continue
		}

		fired = append(fired, rule.ID)
		metrics.AlertsTriggered.Inc()
		log.Info().
			Uint("rule_id", rule.ID).
			Str("coin_id", rule.CoinID).
			Str("kind", rule.Kind).
			Str("target", rule.TargetValue.String()).
			Str("price", coin.CurrentPrice.String()).
			Msg("Alert rule fired")

		if err := e.store.MarkTriggered(ctx, rule.ID, now); err != nil {
			log.Error().Err(err).Uint("rule_id", rule.ID).
				Msg("Failed to persist alert trigger, rule stays active")
		}
	}

	return fired
}

func matches(rule models.AlertRule, coin *models.Coin) bool {
	switch rule.Kind {
	case models.AlertKindPriceAbove:
		return coin.CurrentPrice.GreaterThanOrEqual(rule.TargetValue)
	case models.AlertKindPriceBelow:
		return coin.CurrentPrice.LessThanOrEqual(rule.TargetValue)
	case models.AlertKindPercentageChange:
		return decimal.NewFromFloat(coin.Change24h).Abs().GreaterThanOrEqual(rule.TargetValue)
	default:
		return false
	}
}
