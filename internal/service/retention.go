package service

import (
	"context"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"vinzhub-stats-api/internal/model"
)

// RetentionConfig holds configuration for the retention scheduler.
type RetentionConfig struct {
	// Interval is how often the prune runs.
	// Default: 1 hour
	Interval time.Duration

	// Timeout bounds a single run.
	// Default: 5 minutes
	Timeout time.Duration
}

// RetentionScheduler periodically deletes samples older than the retention
// window from every backend. Writes already prune the user they touch; this
// catches users that stopped writing.
type RetentionScheduler struct {
	backends Backends
	clock    quartz.Clock
	config   RetentionConfig
	log      zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	waiter  quartz.Waiter
	running bool
}

// NewRetentionScheduler creates a new retention scheduler.
func NewRetentionScheduler(backends Backends, clock quartz.Clock, log zerolog.Logger, config RetentionConfig) *RetentionScheduler {
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Minute
	}

	return &RetentionScheduler{
		backends: backends,
		clock:    clock,
		config:   config,
		log:      log.With().Str("component", "RetentionScheduler").Logger(),
	}
}

// Start begins the scheduler. Calling it twice is a no-op.
func (s *RetentionScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.waiter = s.clock.TickerFunc(ctx, s.config.Interval, func() error {
		_, _ = s.RunNow(ctx)
		return nil
	}, "retention")

	s.log.Info().Dur("interval", s.config.Interval).Dur("window", model.RetentionWindow).Msg("started")
}

// Stop stops the scheduler and waits for a running prune to finish.
func (s *RetentionScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cancel()
	_ = s.waiter.Wait()
	s.running = false
	s.log.Info().Msg("stopped")
}

// RunNow prunes every backend immediately and returns the number of removed
// samples. A durable failure is logged and returned; memory is pruned regardless.
func (s *RetentionScheduler) RunNow(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	before := s.clock.Now().Unix() - model.RetentionSeconds

	var (
		removed int64
		runErr  error
	)
	if durable := s.backends.Durable; durable != nil {
		n, err := durable.Prune(ctx, before)
		removed += n
		if err != nil {
			s.log.Error().Err(err).Str("backend", durable.Name()).Msg("durable prune failed")
			runErr = err
		}
	}

	n, _ := s.backends.Memory.Prune(ctx, before)
	removed += n

	if removed > 0 {
		s.log.Info().Int64("removed", removed).Int64("before", before).Msg("pruned expired samples")
	} else {
		s.log.Debug().Msg("no expired samples")
	}
	return removed, runErr
}
