package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/deymohit02/crypto-market-tracker/models"
	"github.com/deymohit02/crypto-market-tracker/store"
)

// WatchlistController manages per-owner coin watchlists.
type WatchlistController struct {
	store store.Store
}

func NewWatchlistController(st store.Store) *WatchlistController {
	return &WatchlistController{store: st}
}

type addWatchRequest struct {
	OwnerID string `json:"owner_id" binding:"required"`
	CoinID  string `json:"coin_id" binding:"required"`
}

// AddToWatchlist puts a coin on an owner's watchlist.
// POST /api/v1/watchlist
func (wc *WatchlistController) AddToWatchlist(c *gin.Context) {
	var req addWatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	existing, err := wc.store.ListWatches(c.Request.Context(), req.OwnerID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to check watchlist")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update watchlist"})
		return
	}
	for _, w := range existing {
		if w.CoinID == req.CoinID {
			c.JSON(http.StatusConflict, gin.H{"error": "Coin already on watchlist"})
			return
		}
	}

	watch := models.Watchlist{OwnerID: req.OwnerID, CoinID: req.CoinID}
	if err := wc.store.AddWatch(c.Request.Context(), &watch); err != nil {
		log.Error().Err(err).Msg("Failed to add watch")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update watchlist"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": watch})
}

// GetWatchlist lists an owner's watched coins with their latest snapshots
// where available.
// GET /api/v1/watchlist?owner_id=u1
func (wc *WatchlistController) GetWatchlist(c *gin.Context) {
	ownerID := c.Query("owner_id")
	if ownerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner_id is required"})
		return
	}

	watches, err := wc.store.ListWatches(c.Request.Context(), ownerID)
	if err != nil {
		log.Error().Err(err).Str("owner_id", ownerID).Msg("Failed to list watches")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch watchlist"})
		return
	}

	items := make([]gin.H, 0, len(watches))
	for _, w := range watches {
		item := gin.H{
			"id":       w.ID,
			"owner_id": w.OwnerID,
			"coin_id":  w.CoinID,
		}
		if coin, err := wc.store.GetSnapshot(c.Request.Context(), w.CoinID); err == nil {
			item["coin"] = coin
		}
		items = append(items, item)
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

// RemoveFromWatchlist deletes a watchlist entry.
// DELETE /api/v1/watchlist/:id
func (wc *WatchlistController) RemoveFromWatchlist(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid watchlist id"})
		return
	}

	if err := wc.store.RemoveWatch(c.Request.Context(), uint(id)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Watchlist entry not found"})
			return
		}
		log.Error().Err(err).Uint64("watch_id", id).Msg("Failed to remove watch")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update watchlist"})
		return
	}

	c.Status(http.StatusNoContent)
}
