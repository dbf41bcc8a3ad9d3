package service

import (
	"context"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"vinzhub-stats-api/internal/cache"
	"vinzhub-stats-api/internal/metrics"
	"vinzhub-stats-api/internal/model"
	"vinzhub-stats-api/internal/period"
	"vinzhub-stats-api/pkg/publicid"
)

const (
	// MaxSeriesPoints caps every series in a response to its newest points.
	MaxSeriesPoints = 2000

	// LeaderboardWindow is how recently a user must have been active to rank.
	LeaderboardWindow = 7 * 24 * time.Hour

	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

// TelemetryConfig holds cache lifetimes.
type TelemetryConfig struct {
	PublicIDTTL    time.Duration
	LeaderboardTTL time.Duration
}

// TelemetryService ingests samples and serves windowed reads, daily history
// and the leaderboard. Writes and stats reads go to the durable store first
// and land in memory when it fails; history and leaderboard have no memory
// equivalent.
type TelemetryService struct {
	backends Backends
	cache    cache.Cache
	clock    quartz.Clock
	metrics  metrics.Provider
	log      zerolog.Logger
	config   TelemetryConfig
}

// NewTelemetryService creates a new telemetry service.
func NewTelemetryService(backends Backends, c cache.Cache, clock quartz.Clock, m metrics.Provider, log zerolog.Logger, cfg TelemetryConfig) *TelemetryService {
	if cfg.PublicIDTTL <= 0 {
		cfg.PublicIDTTL = 24 * time.Hour
	}
	if cfg.LeaderboardTTL <= 0 {
		cfg.LeaderboardTTL = 30 * time.Second
	}
	return &TelemetryService{
		backends: backends,
		cache:    c,
		clock:    clock,
		metrics:  m,
		log:      log.With().Str("component", "TelemetryService").Logger(),
		config:   cfg,
	}
}

// Ingest stores one batch and refreshes the caller's player session.
func (s *TelemetryService) Ingest(ctx context.Context, userKey string, batch *model.Batch) (Result, error) {
	if !batch.HasMetrics() {
		return Result{}, ErrNoMetrics
	}

	now := s.clock.Now().Unix()
	session := &model.PlayerSession{
		UserKey:      userKey,
		PlayerID:     batch.PlayerID,
		PublicID:     publicid.Derive(userKey, batch.PlayerID),
		Username:     batch.Username,
		LastSeen:     now,
		CurrentHoney: batch.CurrentHoney,
	}

	var res Result
	switch {
	case s.backends.Durable == nil:
		res.Mode = ModeMemory
		s.ingestMemory(ctx, userKey, batch, session)

	default:
		durable := s.backends.Durable
		if err := durable.Append(ctx, userKey, batch); err != nil {
			s.log.Warn().Err(err).Str("backend", durable.Name()).Msg("durable append failed, using memory")
			s.metrics.IncFallback("append")
			res.Mode = ModeMemoryFallback
			s.ingestMemory(ctx, userKey, batch, session)
			break
		}

		res.Mode = durable.Name()
		if err := durable.UpsertSession(ctx, session); err != nil {
			s.log.Warn().Err(err).Str("backend", durable.Name()).Msg("durable session upsert failed, using memory")
			s.metrics.IncFallback("session")
			_ = s.backends.Memory.UpsertSession(ctx, session)
		}
	}

	s.rememberPublicID(ctx, userKey, 0)
	if batch.PlayerID != 0 {
		s.rememberPublicID(ctx, userKey, batch.PlayerID)
	}

	s.metrics.IncIngest(res.Mode)
	return res, nil
}

// ingestMemory never fails; the memory store has no error paths.
func (s *TelemetryService) ingestMemory(ctx context.Context, userKey string, batch *model.Batch, session *model.PlayerSession) {
	_ = s.backends.Memory.Append(ctx, userKey, batch)
	_ = s.backends.Memory.UpsertSession(ctx, session)
}

func (s *TelemetryService) rememberPublicID(ctx context.Context, userKey string, playerID int64) {
	key := cache.PublicIDKey(publicid.Derive(userKey, playerID))
	if err := s.cache.Set(ctx, key, []byte(userKey), s.config.PublicIDTTL); err != nil {
		s.log.Debug().Err(err).Msg("failed to cache public id")
	}
}

// Stats returns the caller's series inside the period window.
func (s *TelemetryService) Stats(ctx context.Context, userKey, rawPeriod string) (*model.Stats, error) {
	return s.stats(ctx, userKey, publicid.Derive(userKey, 0), rawPeriod)
}

// PlayerStats is Stats for a user key resolved from a public id.
func (s *TelemetryService) PlayerStats(ctx context.Context, userKey, publicID, rawPeriod string) (*model.Stats, error) {
	return s.stats(ctx, userKey, publicID, rawPeriod)
}

func (s *TelemetryService) stats(ctx context.Context, userKey, publicID, rawPeriod string) (*model.Stats, error) {
	now := s.clock.Now().Unix()
	seconds := period.Seconds(rawPeriod)
	cutoff := max(now-seconds, now-model.RetentionSeconds)

	series, res := s.read(ctx, userKey, cutoff)

	out := &model.Stats{
		OK:           true,
		Mode:         res.Mode,
		Period:       seconds,
		Since:        cutoff,
		Now:          now,
		PublicID:     publicID,
		Username:     series.Profile.Username,
		CurrentHoney: series.Profile.CurrentHoney,
		LastActivity: series.Profile.LastActivity,
	}
	out.Honey, out.Pollen, out.Backpack, out.Nectar, out.Buffs = shape(series)
	return out, nil
}

// read follows the durable-first policy. It never fails.
func (s *TelemetryService) read(ctx context.Context, userKey string, cutoff int64) (*model.Series, Result) {
	if durable := s.backends.Durable; durable != nil {
		series, err := durable.Read(ctx, userKey, cutoff)
		if err == nil {
			return series, Result{Mode: durable.Name()}
		}
		s.log.Warn().Err(err).Str("backend", durable.Name()).Msg("durable read failed, using memory")
		s.metrics.IncFallback("read")

		series, _ = s.backends.Memory.Read(ctx, userKey, cutoff)
		return series, Result{Mode: ModeMemoryFallback}
	}

	series, _ := s.backends.Memory.Read(ctx, userKey, cutoff)
	return series, Result{Mode: ModeMemory}
}

// shape turns raw series into response arrays: sorted, capped, never nil.
func shape(series *model.Series) (honey, pollen []model.Point, backpack []model.BackpackPoint, nectar, buffs map[string][]model.Point) {
	series.Sort()

	honey = nonNil(model.Tail(series.Honey, MaxSeriesPoints))
	pollen = nonNil(model.Tail(series.Pollen, MaxSeriesPoints))
	backpack = model.Tail(model.NormalizeBackpack(series.Backpack, series.BackpackCapacity), MaxSeriesPoints)

	nectar = make(map[string][]model.Point, len(series.Nectar))
	for name, pts := range series.Nectar {
		nectar[name] = model.Tail(pts, MaxSeriesPoints)
	}
	buffs = make(map[string][]model.Point, len(series.Buffs))
	for name, pts := range series.Buffs {
		buffs[name] = model.Tail(pts, MaxSeriesPoints)
	}
	return honey, pollen, backpack, nectar, buffs
}

func nonNil(points []model.Point) []model.Point {
	if points == nil {
		return []model.Point{}
	}
	return points
}

// History returns one UTC day of the caller's series with a honey summary.
func (s *TelemetryService) History(ctx context.Context, userKey, date string) (*model.History, error) {
	durable := s.backends.Durable
	if durable == nil {
		return nil, ErrDurableRequired
	}

	day, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return nil, ErrInvalidDate
	}
	from := day.Unix()
	to := from + 86400
	floor := s.clock.Now().Unix() - model.RetentionSeconds

	series, err := durable.Range(ctx, userKey, max(from, floor), to)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	out := &model.History{
		OK:   true,
		Mode: durable.Name(),
		Date: date,
		From: from,
		To:   to,
	}
	series.Sort()
	out.Summary = summarize(series.Honey)
	out.Honey, out.Pollen, out.Backpack, out.Nectar, out.Buffs = shape(series)
	return out, nil
}

// summarize totals the honey samples and spreads them over the hours between
// the first and the last one, at least one hour.
func summarize(honey []model.Point) model.HistorySummary {
	var sum model.HistorySummary
	for _, p := range honey {
		sum.TotalHoney += p.V
	}
	sum.Samples = len(honey)

	hours := 1.0
	if len(honey) > 1 {
		hours = max(1, float64(honey[len(honey)-1].T-honey[0].T)/3600)
	}
	sum.AvgHourlyHoney = sum.TotalHoney / hours
	return sum
}

// Leaderboard ranks users active within the last seven days.
func (s *TelemetryService) Leaderboard(ctx context.Context, metric model.Metric, limit int) ([]model.LeaderboardEntry, Result, error) {
	durable := s.backends.Durable
	if durable == nil {
		return nil, Result{}, ErrDurableRequired
	}

	if metric == "" {
		metric = model.MetricHoney
	}
	if metric != model.MetricHoney && metric != model.MetricPollen {
		return nil, Result{}, ErrInvalidMetric
	}
	limit = ClampLimit(limit)

	key := cache.LeaderboardKey(string(metric), limit)
	entries, err := cache.GetOrSetJSON(ctx, s.cache, key, s.config.LeaderboardTTL, func() ([]model.LeaderboardEntry, error) {
		s.metrics.IncCacheMisses()
		since := s.clock.Now().Add(-LeaderboardWindow).Unix()
		return durable.Leaderboard(ctx, metric, since, limit)
	})
	if err != nil {
		return nil, Result{}, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}
	return entries, Result{Mode: durable.Name()}, nil
}

// ClampLimit applies the leaderboard default (for 0) and bounds.
func ClampLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultLeaderboardLimit
	case limit < 1:
		return 1
	case limit > MaxLeaderboardLimit:
		return MaxLeaderboardLimit
	}
	return limit
}
