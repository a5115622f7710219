package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/deymohit02/crypto-market-tracker/config"
	"github.com/deymohit02/crypto-market-tracker/middleware"
	"github.com/deymohit02/crypto-market-tracker/routes"
	"github.com/deymohit02/crypto-market-tracker/scheduler"
	"github.com/deymohit02/crypto-market-tracker/services/alerts"
	"github.com/deymohit02/crypto-market-tracker/services/cache"
	"github.com/deymohit02/crypto-market-tracker/services/coingecko"
	"github.com/deymohit02/crypto-market-tracker/services/history"
	"github.com/deymohit02/crypto-market-tracker/services/realtime"
	"github.com/deymohit02/crypto-market-tracker/store"
)

// appState holds the long-lived services once background initialization
// finishes. The /ready endpoint and shutdown path read it across goroutines.
type appState struct {
	mu      sync.RWMutex
	store   store.Store
	sched   *scheduler.Scheduler
	hub     *realtime.Hub
	cache   cache.Service
	archive *store.MongoArchive
}

func (a *appState) snapshot() (store.Store, *scheduler.Scheduler) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.store, a.sched
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	log.Info().Msg("Crypto market tracker starting")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Warn().Err(err).Msg("Config load issue")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger())

	app := &appState{}

	// Health endpoints are wired before anything else so the platform can
	// probe the process while the store and upstream clients come up in
	// the background.
	setupHealthEndpoints(router, app)

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	go initializeServices(cfg, router, app)

	gracefulShutdown(server, app)
}

// initializeServices opens the store, builds the service graph and mounts the
// API routes. On store failure the process keeps serving health endpoints so
// the deployment stays inspectable instead of crash-looping.
func initializeServices(cfg *config.Config, router *gin.Engine, app *appState) {
	st, err := store.Open(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Store initialization failed, running in degraded mode")
		return
	}
	log.Info().Msg("Store initialized")

	// The Archive interface must stay nil unless a concrete archive exists,
	// so the scheduler's nil check keeps working.
	var archive scheduler.Archive
	var mongoArchive *store.MongoArchive
	if cfg.MongoURI != "" {
		mongoArchive, err = store.NewMongoArchive(cfg.MongoURI)
		if err != nil {
			log.Warn().Err(err).Msg("Mongo archive unavailable, continuing without it")
			mongoArchive = nil
		} else {
			archive = mongoArchive
			log.Info().Msg("Mongo snapshot archive connected")
		}
	}

	upstream := coingecko.NewClient(cfg.CoinGeckoBaseURL, cfg.CoinGeckoAPIKey, cfg.UpstreamTimeout, cfg.UpstreamRatePerMin)
	cacheSvc := cache.New(cfg)
	reconciler := history.NewReconciler(st, upstream, history.NewSynthetic())
	evaluator := alerts.NewEvaluator(st)
	hub := realtime.NewHub(cfg.MaxWSClients)

	sched := scheduler.NewScheduler(cfg, st, upstream, evaluator, hub, archive)
	sched.SetOnWarm(func() {
		log.Info().Msg("First live batch applied, market data is warm")
	})

	app.mu.Lock()
	app.store = st
	app.sched = sched
	app.hub = hub
	app.cache = cacheSvc
	app.archive = mongoArchive
	app.mu.Unlock()

	routes.SetupRoutes(router, routes.Deps{
		Config:    cfg,
		Store:     st,
		History:   reconciler,
		Cache:     cacheSvc,
		Scheduler: sched,
		Hub:       hub,
	})

	if err := sched.Start(); err != nil {
		log.Error().Err(err).Msg("Scheduler failed to start")
		return
	}

	log.Info().
		Str("interval", cfg.FetchInterval.String()).
		Int("top_assets", cfg.TopAssetLimit).
		Msg("Application fully initialized")
}

// setupHealthEndpoints registers the probes that must respond before the
// service graph exists.
func setupHealthEndpoints(router *gin.Engine, app *appState) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Crypto Market Tracker API",
			"version": "1.0.0",
		})
	})

	// Liveness: the process is up, nothing more.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness: the store must be open and reachable. The warm flag is
	// reported but does not gate readiness, a stale-but-serving tracker is
	// still useful.
	router.GET("/ready", func(c *gin.Context) {
		st, sched := app.snapshot()
		if st == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "store not initialized",
			})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := st.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "store unreachable",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
			"warm":   sched != nil && sched.Warmed(),
		})
	})
}

// gracefulShutdown blocks until SIGINT or SIGTERM, then drains in order:
// stop ingesting, close websocket clients, drain HTTP, release storage.
func gracefulShutdown(server *http.Server, app *appState) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("Shutting down")

	app.mu.RLock()
	sched, hub, st, cacheSvc, archive := app.sched, app.hub, app.store, app.cache, app.archive
	app.mu.RUnlock()

	if sched != nil {
		sched.Stop()
	}
	if hub != nil {
		hub.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shut down")
	}

	if cacheSvc != nil {
		cacheSvc.Close()
	}
	if archive != nil {
		if err := archive.Close(ctx); err != nil {
			log.Warn().Err(err).Msg("Archive close failed")
		}
	}
	if st != nil {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("Store close failed")
		}
	}

	log.Info().Msg("Shutdown complete")
}
