package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/deymohit02/crypto-market-tracker/models"
	"github.com/deymohit02/crypto-market-tracker/store"
)

// AlertController manages one-shot alert rules.
type AlertController struct {
	store store.Store
}

func NewAlertController(st store.Store) *AlertController {
	return &AlertController{store: st}
}

type createAlertRequest struct {
	OwnerID     string          `json:"owner_id" binding:"required"`
	CoinID      string          `json:"coin_id" binding:"required"`
	Kind        string          `json:"kind" binding:"required"`
	TargetValue decimal.Decimal `json:"target_value" binding:"required"`
}

// CreateAlert registers a rule. Rules fire once and stay triggered until
// deleted and recreated.
// POST /api/v1/alerts
func (ac *AlertController) CreateAlert(c *gin.Context) {
	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !models.IsValidAlertKind(req.Kind) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "kind must be one of: price_above, price_below, percentage_change",
		})
		return
	}
	if req.TargetValue.LessThanOrEqual(decimal.Zero) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target_value must be positive"})
		return
	}

	rule := models.AlertRule{
		OwnerID:     req.OwnerID,
		CoinID:      req.CoinID,
		Kind:        req.Kind,
		TargetValue: req.TargetValue,
	}
	if err := ac.store.CreateRule(c.Request.Context(), &rule); err != nil {
		log.Error().Err(err).Msg("Failed to create alert rule")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create alert"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": rule})
}

// GetAlerts lists an owner's rules, triggered ones included.
// GET /api/v1/alerts?owner_id=u1
func (ac *AlertController) GetAlerts(c *gin.Context) {
	ownerID := c.Query("owner_id")
	if ownerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner_id is required"})
		return
	}

	rules, err := ac.store.ListRulesByOwner(c.Request.Context(), ownerID)
	if err != nil {
		log.Error().Err(err).Str("owner_id", ownerID).Msg("Failed to list alert rules")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch alerts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rules})
}

// DeleteAlert removes a rule.
// DELETE /api/v1/alerts/:id
func (ac *AlertController) DeleteAlert(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert id"})
		return
	}

	if err := ac.store.DeleteRule(c.Request.Context(), uint(id)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
			return
		}
		log.Error().Err(err).Uint64("alert_id", id).Msg("Failed to delete alert rule")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete alert"})
		return
	}

	c.Status(http.StatusNoContent)
}
