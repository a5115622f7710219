package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/deymohit02/crypto-market-tracker/metrics"
	"github.com/deymohit02/crypto-market-tracker/models"
	"github.com/deymohit02/crypto-market-tracker/services/cache"
	"github.com/deymohit02/crypto-market-tracker/services/history"
	"github.com/deymohit02/crypto-market-tracker/store"
)

const (
	defaultHistoryHours = 24
	defaultCoinLimit    = 100
)

// CoinController serves the coin list, single snapshots, and price history.
type CoinController struct {
	store    store.Store
	history  *history.Reconciler
	cache    cache.Service
	cacheTTL time.Duration
}

func NewCoinController(st store.Store, h *history.Reconciler, c cache.Service, cacheTTL time.Duration) *CoinController {
	return &CoinController{store: st, history: h, cache: c, cacheTTL: cacheTTL}
}

type historyResponse struct {
	CoinID string               `json:"coin_id"`
	Hours  int                  `json:"hours"`
	Points []models.SeriesPoint `json:"points"`
}

// GetCoins returns tracked coins ordered by market cap rank.
// GET /api/v1/coins?limit=100&offset=0
func (cc *CoinController) GetCoins(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultCoinLimit)))
	if err != nil || limit <= 0 {
		limit = defaultCoinLimit
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	coins, err := cc.store.ListSnapshots(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list snapshots")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch coins"})
		return
	}

	total := len(coins)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	c.JSON(http.StatusOK, gin.H{
		"data": coins[offset:end],
		"pagination": gin.H{
			"limit":  limit,
			"offset": offset,
			"total":  total,
		},
	})
}

// GetCoin returns the latest snapshot for one coin.
// GET /api/v1/coins/:id
func (cc *CoinController) GetCoin(c *gin.Context) {
	id := c.Param("id")

	coin, err := cc.store.GetSnapshot(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Coin not found"})
			return
		}
		log.Error().Err(err).Str("coin_id", id).Msg("Failed to load snapshot")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch coin"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": coin})
}

// GetCoinHistory returns the price series for the requested window. The
// response always carries points: reconciliation falls back to upstream
// backfill and then to synthesis, so an unknown coin or a dead upstream
// still charts.
// GET /api/v1/coins/:id/history?hours=24
func (cc *CoinController) GetCoinHistory(c *gin.Context) {
	id := c.Param("id")

	hours := defaultHistoryHours
	if raw := c.Query("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be an integer"})
			return
		}
		hours = parsed
	}
	if hours < 1 {
		hours = 1
	}

	key := fmt.Sprintf("history:%s:%d", id, hours)
	if cc.cache != nil {
		var cached historyResponse
		if err := cc.cache.Get(c.Request.Context(), key, &cached); err == nil {
			metrics.HistoryServed.WithLabelValues("cache").Inc()
			c.JSON(http.StatusOK, gin.H{"data": cached})
			return
		}
	}

	resp := historyResponse{
		CoinID: id,
		Hours:  hours,
		Points: cc.history.GetRange(c.Request.Context(), id, hours),
	}

	if cc.cache != nil {
		if err := cc.cache.Set(c.Request.Context(), key, resp, cc.cacheTTL); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("History cache write failed")
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
