// Package scheduler drives the ingestion loop: fetch the top market
// snapshots on a fixed interval, apply them to the store, evaluate alert
// rules, and broadcast the tick to subscribers. It also runs the daily
// price-point retention sweep and seeds an empty store on boot.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"

	"github.com/deymohit02/crypto-market-tracker/config"
	"github.com/deymohit02/crypto-market-tracker/models"
	"github.com/deymohit02/crypto-market-tracker/services/alerts"
	"github.com/deymohit02/crypto-market-tracker/services/history"
	"github.com/deymohit02/crypto-market-tracker/store"
)

const (
	cycleTimeout        = 45 * time.Second
	broadcastCap        = 20
	reseedAfterFailures = 3
	pointRetention      = 90 * 24 * time.Hour
)

// State labels where the ingestion loop currently is. Fetching covers the
// upstream call, applying and skipping the two possible outcomes.
type State string

const (
	StateIdle     State = "idle"
	StateFetching State = "fetching"
	StateApplying State = "applying"
	StateSkipping State = "skipping"
)

// Upstream supplies the per-tick market batch.
type Upstream interface {
	FetchTopSnapshots(ctx context.Context, limit int) ([]models.Coin, error)
}

// Publisher receives the applied batch once per tick.
type Publisher interface {
	Publish(msgType string, data interface{})
}

// Archive mirrors snapshots to cold storage and restores them on boot.
type Archive interface {
	SaveSnapshots(ctx context.Context, coins []models.Coin) error
	LoadSnapshots(ctx context.Context) ([]models.Coin, error)
}

// Status is the scheduler view served by the status endpoint.
type Status struct {
	State               State      `json:"state"`
	Warmed              bool       `json:"warmed"`
	CyclesApplied       uint64     `json:"cycles_applied"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastSuccess         *time.Time `json:"last_success,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
}

// Scheduler manages the recurring ingestion jobs.
type Scheduler struct {
	cron      *gocron.Scheduler
	store     store.Store
	upstream  Upstream
	evaluator *alerts.Evaluator
	hub       Publisher
	archive   Archive
	synth     *history.Synthetic

	interval time.Duration
	topLimit int

	mu          sync.RWMutex
	state       State
	warmed      bool
	cycles      uint64
	failStreak  int
	lastSuccess time.Time
	lastError   string

	warmOnce sync.Once
	onWarm   func()
}

// NewScheduler wires the ingestion dependencies. archive may be nil when
// no cold storage is configured.
func NewScheduler(cfg *config.Config, st store.Store, upstream Upstream, evaluator *alerts.Evaluator, hub Publisher, archive Archive) *Scheduler {
	return &Scheduler{
		cron:      gocron.NewScheduler(time.UTC),
		store:     st,
		upstream:  upstream,
		evaluator: evaluator,
		hub:       hub,
		archive:   archive,
		synth:     history.NewSynthetic(),
		interval:  cfg.FetchInterval,
		topLimit:  cfg.TopAssetLimit,
		state:     StateIdle,
	}
}

// SetOnWarm registers a hook fired exactly once, after the first applied
// batch. Must be set before Start.
func (s *Scheduler) SetOnWarm(fn func()) {
	s.onWarm = fn
}

// Start seeds an empty store, registers the jobs, and begins ticking in the
// background. The ingestion job never overlaps itself; a tick that fires
// while the previous run is still going is skipped.
func (s *Scheduler) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
	s.ensureSeeded(ctx)
	cancel()

	if _, err := s.cron.Every(s.interval).SingletonMode().Do(s.runCycle); err != nil {
		return err
	}
	if _, err := s.cron.Every(1).Day().At("03:00").Do(s.prunePoints); err != nil {
		return err
	}

	s.cron.StartAsync()
	log.Info().Dur("interval", s.interval).Msg("Ingestion scheduler started")
	return nil
}

// Stop halts the jobs. An in-flight cycle finishes on its own.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Info().Msg("Ingestion scheduler stopped")
}

// Warmed reports whether at least one batch has been applied.
func (s *Scheduler) Warmed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.warmed
}

// Status snapshots the loop for the status endpoint.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		State:               s.state,
		Warmed:              s.warmed,
		CyclesApplied:       s.cycles,
		ConsecutiveFailures: s.failStreak,
		LastError:           s.lastError,
	}
	if !s.lastSuccess.IsZero() {
		ts := s.lastSuccess
		st.LastSuccess = &ts
	}
	return st
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}
