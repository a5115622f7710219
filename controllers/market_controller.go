package controllers

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/deymohit02/crypto-market-tracker/models"
	"github.com/deymohit02/crypto-market-tracker/scheduler"
	"github.com/deymohit02/crypto-market-tracker/store"
)

const defaultMoverLimit = 10

// StatusSource exposes the ingestion loop state.
type StatusSource interface {
	Status() scheduler.Status
}

// ClientCounter exposes the live subscriber count.
type ClientCounter interface {
	ClientCount() int
}

// MarketController serves market-wide views: movers and system status.
type MarketController struct {
	store store.Store
	sched StatusSource
	hub   ClientCounter
}

func NewMarketController(st store.Store, sched StatusSource, hub ClientCounter) *MarketController {
	return &MarketController{store: st, sched: sched, hub: hub}
}

// GetTopGainers returns coins with the largest 24h rise.
// GET /api/v1/market/top-gainers?limit=10
func (mc *MarketController) GetTopGainers(c *gin.Context) {
	mc.movers(c, func(a, b models.Coin) bool { return a.Change24h > b.Change24h })
}

// GetTopLosers returns coins with the largest 24h drop.
// GET /api/v1/market/top-losers?limit=10
func (mc *MarketController) GetTopLosers(c *gin.Context) {
	mc.movers(c, func(a, b models.Coin) bool { return a.Change24h < b.Change24h })
}

func (mc *MarketController) movers(c *gin.Context, less func(a, b models.Coin) bool) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultMoverLimit)))
	if err != nil || limit <= 0 {
		limit = defaultMoverLimit
	}

	coins, err := mc.store.ListSnapshots(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list snapshots")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch market data"})
		return
	}

	sort.SliceStable(coins, func(i, j int) bool { return less(coins[i], coins[j]) })
	if len(coins) > limit {
		coins = coins[:limit]
	}

	c.JSON(http.StatusOK, gin.H{"data": coins})
}

// GetStatus reports ingestion and connection health.
// GET /api/v1/status
func (mc *MarketController) GetStatus(c *gin.Context) {
	ctx := c.Request.Context()

	coins, err := mc.store.CountSnapshots(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to count snapshots")
	}
	points, err := mc.store.CountPoints(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to count points")
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"scheduler":  mc.sched.Status(),
		"ws_clients": mc.hub.ClientCount(),
		"coins":      coins,
		"points":     points,
	})
}
