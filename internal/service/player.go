package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"vinzhub-stats-api/internal/cache"
	"vinzhub-stats-api/internal/metrics"
	"vinzhub-stats-api/internal/model"
	"vinzhub-stats-api/internal/repository"
)

// PlayerService serves the online roster and resolves public ids.
type PlayerService struct {
	backends    Backends
	cache       cache.Cache
	clock       quartz.Clock
	metrics     metrics.Provider
	log         zerolog.Logger
	publicIDTTL time.Duration
}

// NewPlayerService creates a new player service.
func NewPlayerService(backends Backends, c cache.Cache, clock quartz.Clock, m metrics.Provider, log zerolog.Logger, publicIDTTL time.Duration) *PlayerService {
	if publicIDTTL <= 0 {
		publicIDTTL = 24 * time.Hour
	}
	return &PlayerService{
		backends:    backends,
		cache:       c,
		clock:       clock,
		metrics:     m,
		log:         log.With().Str("component", "PlayerService").Logger(),
		publicIDTTL: publicIDTTL,
	}
}

// Online lists sessions seen within model.OnlineTimeout, sorted by username
// without regard to case. Sessions held in memory (written while the durable
// store was failing) are merged in.
func (s *PlayerService) Online(ctx context.Context) ([]model.PlayerSession, Result) {
	since := s.clock.Now().Add(-model.OnlineTimeout).Unix()
	res := Result{Mode: s.backends.PrimaryMode()}

	var sessions []model.PlayerSession
	if durable := s.backends.Durable; durable != nil {
		rows, err := durable.OnlineSessions(ctx, since)
		if err != nil {
			s.log.Warn().Err(err).Str("backend", durable.Name()).Msg("durable session list failed, using memory")
			s.metrics.IncFallback("sessions")
			res.Mode = ModeMemoryFallback
		}
		sessions = rows
	}

	mem, _ := s.backends.Memory.OnlineSessions(ctx, since)
	sessions = mergeSessions(sessions, mem)

	sort.SliceStable(sessions, func(i, j int) bool {
		a, b := strings.ToLower(sessions[i].Username), strings.ToLower(sessions[j].Username)
		if a != b {
			return a < b
		}
		return sessions[i].PublicID < sessions[j].PublicID
	})
	return sessions, res
}

// mergeSessions unions both lists, keeping the most recently seen copy.
func mergeSessions(durable, memory []model.PlayerSession) []model.PlayerSession {
	byKey := make(map[string]int, len(durable)+len(memory))
	out := make([]model.PlayerSession, 0, len(durable)+len(memory))
	for _, list := range [][]model.PlayerSession{durable, memory} {
		for _, sess := range list {
			k := sess.UserKey + "\x00" + strconv.FormatInt(sess.PlayerID, 10)
			if i, ok := byKey[k]; ok {
				if sess.LastSeen > out[i].LastSeen {
					out[i] = sess
				}
				continue
			}
			byKey[k] = len(out)
			out = append(out, sess)
		}
	}
	return out
}

// Resolve maps a public id back to its user key: cache first, then the
// durable store, then memory. Returns repository.ErrNotFound when unknown.
func (s *PlayerService) Resolve(ctx context.Context, publicID string) (string, error) {
	cacheKey := cache.PublicIDKey(publicID)
	if v, err := s.cache.Get(ctx, cacheKey); err == nil {
		s.metrics.IncCacheHits()
		return string(v), nil
	}
	s.metrics.IncCacheMisses()

	userKey, err := s.lookup(ctx, publicID)
	if err != nil {
		return "", err
	}

	if err := s.cache.Set(ctx, cacheKey, []byte(userKey), s.publicIDTTL); err != nil {
		s.log.Debug().Err(err).Msg("failed to cache public id")
	}
	return userKey, nil
}

func (s *PlayerService) lookup(ctx context.Context, publicID string) (string, error) {
	if durable := s.backends.Durable; durable != nil {
		userKey, err := durable.FindUserKey(ctx, publicID)
		if err == nil {
			return userKey, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Warn().Err(err).Str("backend", durable.Name()).Msg("durable public id lookup failed, using memory")
			s.metrics.IncFallback("resolve")
		}
	}
	return s.backends.Memory.FindUserKey(ctx, publicID)
}
