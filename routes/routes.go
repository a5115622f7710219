package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deymohit02/crypto-market-tracker/config"
	"github.com/deymohit02/crypto-market-tracker/controllers"
	"github.com/deymohit02/crypto-market-tracker/middleware"
	"github.com/deymohit02/crypto-market-tracker/scheduler"
	"github.com/deymohit02/crypto-market-tracker/services/cache"
	"github.com/deymohit02/crypto-market-tracker/services/history"
	"github.com/deymohit02/crypto-market-tracker/services/realtime"
	"github.com/deymohit02/crypto-market-tracker/store"
)

// Deps carries the wired services the routes need.
type Deps struct {
	Config    *config.Config
	Store     store.Store
	History   *history.Reconciler
	Cache     cache.Service
	Scheduler *scheduler.Scheduler
	Hub       *realtime.Hub
}

// SetupRoutes registers the API surface, the WebSocket endpoint, and the
// metrics scrape.
func SetupRoutes(router *gin.Engine, deps Deps) {
	coinController := controllers.NewCoinController(deps.Store, deps.History, deps.Cache, deps.Config.HistoryCacheTTL)
	marketController := controllers.NewMarketController(deps.Store, deps.Scheduler, deps.Hub)
	alertController := controllers.NewAlertController(deps.Store)
	watchlistController := controllers.NewWatchlistController(deps.Store)

	api := router.Group("/api/v1")
	api.Use(middleware.RateLimit(deps.Config.APIRatePerSec, deps.Config.APIBurst))
	{
		coins := api.Group("/coins")
		{
			coins.GET("", coinController.GetCoins)
			coins.GET("/:id", coinController.GetCoin)
			coins.GET("/:id/history", coinController.GetCoinHistory)
		}

		market := api.Group("/market")
		{
			market.GET("/top-gainers", marketController.GetTopGainers)
			market.GET("/top-losers", marketController.GetTopLosers)
		}

		api.GET("/status", marketController.GetStatus)

		alerts := api.Group("/alerts")
		{
			alerts.POST("", alertController.CreateAlert)
			alerts.GET("", alertController.GetAlerts)
			alerts.DELETE("/:id", alertController.DeleteAlert)
		}

		watchlist := api.Group("/watchlist")
		{
			watchlist.POST("", watchlistController.AddToWatchlist)
			watchlist.GET("", watchlistController.GetWatchlist)
			watchlist.DELETE("/:id", watchlistController.RemoveFromWatchlist)
		}
	}

	router.GET("/ws", deps.Hub.HandleWebSocket)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
