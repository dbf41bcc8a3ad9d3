package repository

import (
	"context"
	"math"
	"strconv"
	"sync"

	"github.com/coder/quartz"

	"vinzhub-stats-api/internal/model"
	"vinzhub-stats-api/pkg/publicid"
)

// DefaultMemoryMaxPoints bounds each in-memory series.
const DefaultMemoryMaxPoints = 20000

// bucket holds one user's series. Its mutex keeps append+prune atomic.
type bucket struct {
	mu      sync.Mutex
	scalars map[model.Metric][]model.Point
	nectar  map[string][]model.Point
	buffs   map[string][]model.Point
	profile model.Profile
}

func newBucket() *bucket {
	return &bucket{
		scalars: make(map[model.Metric][]model.Point),
		nectar:  make(map[string][]model.Point),
		buffs:   make(map[string][]model.Point),
	}
}

// MemoryStore is the volatile backend: process-local, bounded, lost on restart.
// It implements every repository interface except LeaderboardRepository.
type MemoryStore struct {
	clock     quartz.Clock
	maxPoints int

	mu      sync.RWMutex
	buckets map[string]*bucket

	sessionsMu sync.RWMutex
	sessions   map[string]*model.PlayerSession

	configsMu sync.RWMutex
	configs   map[string]model.SharedConfig
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(clock quartz.Clock, maxPoints int) *MemoryStore {
	if maxPoints <= 0 {
		maxPoints = DefaultMemoryMaxPoints
	}
	return &MemoryStore{
		clock:     clock,
		maxPoints: maxPoints,
		buckets:   make(map[string]*bucket),
		sessions:  make(map[string]*model.PlayerSession),
		configs:   make(map[string]model.SharedConfig),
	}
}

// Name implements SampleRepository.
func (s *MemoryStore) Name() string { return "memory" }

// bucket returns the user's bucket, creating it on first use.
func (s *MemoryStore) bucket(userKey string) *bucket {
	s.mu.RLock()
	b, ok := s.buckets[userKey]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.buckets[userKey]; !ok {
		b = newBucket()
		s.buckets[userKey] = b
	}
	return b
}

// Append implements SampleRepository.
func (s *MemoryStore) Append(ctx context.Context, userKey string, batch *model.Batch) error {
	b := s.bucket(userKey)
	floor := s.clock.Now().Unix() - model.RetentionSeconds

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sample := range batch.Scalars() {
		b.scalars[sample.Metric] = s.push(b.scalars[sample.Metric], model.Point{T: batch.At, V: sample.Value})
	}
	for name, v := range batch.Nectar {
		b.nectar[name] = s.push(b.nectar[name], model.Point{T: batch.At, V: v})
	}
	for name, v := range batch.Buffs {
		b.buffs[name] = s.push(b.buffs[name], model.Point{T: batch.At, V: v})
	}

	if batch.CurrentHoney != nil {
		v := *batch.CurrentHoney
		b.profile.CurrentHoney = &v
	}
	if batch.Username != "" {
		b.profile.Username = batch.Username
	}
	b.profile.LastActivity = max(b.profile.LastActivity, batch.At)

	b.prune(floor)
	return nil
}

// push appends p, dropping the oldest inserted points beyond maxPoints.
func (s *MemoryStore) push(points []model.Point, p model.Point) []model.Point {
	points = append(points, p)
	if over := len(points) - s.maxPoints; over > 0 {
		points = append(points[:0], points[over:]...)
	}
	return points
}

// prune drops points older than floor. Caller holds b.mu.
func (b *bucket) prune(floor int64) int64 {
	var removed int64
	for m, pts := range b.scalars {
		kept, n := keepSince(pts, floor)
		b.scalars[m] = kept
		removed += n
	}
	for name, pts := range b.nectar {
		kept, n := keepSince(pts, floor)
		if len(kept) == 0 {
			delete(b.nectar, name)
		} else {
			b.nectar[name] = kept
		}
		removed += n
	}
	for name, pts := range b.buffs {
		kept, n := keepSince(pts, floor)
		if len(kept) == 0 {
			delete(b.buffs, name)
		} else {
			b.buffs[name] = kept
		}
		removed += n
	}
	return removed
}

// keepSince filters in place; points are not assumed sorted.
func keepSince(points []model.Point, floor int64) ([]model.Point, int64) {
	kept := points[:0]
	for _, p := range points {
		if p.T >= floor {
			kept = append(kept, p)
		}
	}
	return kept, int64(len(points) - len(kept))
}

// Read implements SampleRepository.
func (s *MemoryStore) Read(ctx context.Context, userKey string, cutoff int64) (*model.Series, error) {
	return s.Range(ctx, userKey, cutoff, math.MaxInt64)
}

// Range implements SampleRepository.
func (s *MemoryStore) Range(ctx context.Context, userKey string, from, to int64) (*model.Series, error) {
	b := s.bucket(userKey)

	b.mu.Lock()
	defer b.mu.Unlock()

	out := model.NewSeries()
	for m, pts := range b.scalars {
		*out.Scalar(m) = window(pts, from, to)
	}
	if seed, ok := latestBefore(b.scalars[model.MetricBackpackCapacity], from); ok {
		out.BackpackCapacity = append([]model.Point{seed}, out.BackpackCapacity...)
	}
	for name, pts := range b.nectar {
		if w := window(pts, from, to); len(w) > 0 {
			out.Nectar[name] = w
		}
	}
	for name, pts := range b.buffs {
		if w := window(pts, from, to); len(w) > 0 {
			out.Buffs[name] = w
		}
	}

	out.Profile = b.profile
	if b.profile.CurrentHoney != nil {
		v := *b.profile.CurrentHoney
		out.Profile.CurrentHoney = &v
	}
	return out, nil
}

// window returns a sorted copy of the points in [from, to).
func window(points []model.Point, from, to int64) []model.Point {
	out := make([]model.Point, 0, len(points))
	for _, p := range points {
		if p.T >= from && p.T < to {
			out = append(out, p)
		}
	}
	model.SortPoints(out)
	return out
}

// latestBefore finds the newest point strictly before ts; later inserts win ties.
func latestBefore(points []model.Point, ts int64) (model.Point, bool) {
	var best model.Point
	found := false
	for _, p := range points {
		if p.T < ts && (!found || p.T >= best.T) {
			best = p
			found = true
		}
	}
	return best, found
}

// Prune implements SampleRepository.
func (s *MemoryStore) Prune(ctx context.Context, before int64) (int64, error) {
	s.mu.RLock()
	buckets := make([]*bucket, 0, len(s.buckets))
	for _, b := range s.buckets {
		buckets = append(buckets, b)
	}
	s.mu.RUnlock()

	var removed int64
	for _, b := range buckets {
		b.mu.Lock()
		removed += b.prune(before)
		b.mu.Unlock()
	}
	return removed, nil
}

// GetStats implements SampleRepository.
func (s *MemoryStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	s.mu.RLock()
	users := len(s.buckets)
	var points int
	for _, b := range s.buckets {
		b.mu.Lock()
		for _, pts := range b.scalars {
			points += len(pts)
		}
		for _, pts := range b.nectar {
			points += len(pts)
		}
		for _, pts := range b.buffs {
			points += len(pts)
		}
		b.mu.Unlock()
	}
	s.mu.RUnlock()

	s.sessionsMu.RLock()
	sessions := len(s.sessions)
	s.sessionsMu.RUnlock()

	s.configsMu.RLock()
	configs := len(s.configs)
	s.configsMu.RUnlock()

	return map[string]interface{}{
		"users":      users,
		"points":     points,
		"sessions":   sessions,
		"configs":    configs,
		"max_points": s.maxPoints,
	}, nil
}

func sessionKey(userKey string, playerID int64) string {
	return userKey + "\x00" + strconv.FormatInt(playerID, 10)
}

// UpsertSession implements SessionRepository.
func (s *MemoryStore) UpsertSession(ctx context.Context, session *model.PlayerSession) error {
	key := sessionKey(session.UserKey, session.PlayerID)

	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	existing, ok := s.sessions[key]
	if !ok {
		cp := *session
		if session.CurrentHoney != nil {
			v := *session.CurrentHoney
			cp.CurrentHoney = &v
		}
		s.sessions[key] = &cp
		return nil
	}

	if session.Username != "" {
		existing.Username = session.Username
	}
	if session.CurrentHoney != nil {
		v := *session.CurrentHoney
		existing.CurrentHoney = &v
	}
	existing.LastSeen = session.LastSeen
	return nil
}

// OnlineSessions implements SessionRepository.
func (s *MemoryStore) OnlineSessions(ctx context.Context, since int64) ([]model.PlayerSession, error) {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()

	out := make([]model.PlayerSession, 0)
	for _, sess := range s.sessions {
		if sess.LastSeen >= since {
			out = append(out, *sess)
		}
	}
	return out, nil
}

// FindUserKey implements SessionRepository. Sessions are checked first, then
// every bucket's key-only public id.
func (s *MemoryStore) FindUserKey(ctx context.Context, publicID string) (string, error) {
	s.sessionsMu.RLock()
	for _, sess := range s.sessions {
		if sess.PublicID == publicID {
			s.sessionsMu.RUnlock()
			return sess.UserKey, nil
		}
	}
	s.sessionsMu.RUnlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	for userKey := range s.buckets {
		if publicid.Derive(userKey, 0) == publicID {
			return userKey, nil
		}
	}
	return "", ErrNotFound
}

// PutConfig implements ConfigRepository.
func (s *MemoryStore) PutConfig(ctx context.Context, cfg *model.SharedConfig) error {
	s.configsMu.Lock()
	defer s.configsMu.Unlock()

	cp := *cfg
	cp.Payload = append([]byte(nil), cfg.Payload...)
	s.configs[cfg.Key] = cp
	return nil
}

// GetConfig implements ConfigRepository.
func (s *MemoryStore) GetConfig(ctx context.Context, key string) (*model.SharedConfig, error) {
	s.configsMu.RLock()
	defer s.configsMu.RUnlock()

	cfg, ok := s.configs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &cfg, nil
}

// Ensure MemoryStore implements the repository interfaces
var (
	_ SampleRepository  = (*MemoryStore)(nil)
	_ SessionRepository = (*MemoryStore)(nil)
	_ ConfigRepository  = (*MemoryStore)(nil)
)
