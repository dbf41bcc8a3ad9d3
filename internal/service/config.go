package service

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"vinzhub-stats-api/internal/metrics"
	"vinzhub-stats-api/internal/model"
	"vinzhub-stats-api/internal/repository"
	"vinzhub-stats-api/pkg/uid"
)

const (
	// ConfigKeyAlphabet is the character set of generated config keys.
	ConfigKeyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789[]-"
	// GeneratedConfigKeyLength is the length of generated config keys.
	GeneratedConfigKeyLength = 16
	// MaxConfigBytes bounds a published config payload.
	MaxConfigBytes = 256 * 1024
)

var configKeyPattern = regexp.MustCompile(`^[A-Z0-9\[\]-]{10,32}$`)

// ValidConfigKey reports whether key may be used as a config key.
func ValidConfigKey(key string) bool {
	return configKeyPattern.MatchString(key)
}

// ConfigService publishes and fetches shared configs.
type ConfigService struct {
	store   repository.ConfigRepository
	name    string
	memory  *repository.MemoryStore
	clock   quartz.Clock
	metrics metrics.Provider
	log     zerolog.Logger
}

// NewConfigService creates a config service. store may be nil (memory only);
// name is its mode tag ("mongodb", "mysql", ...).
func NewConfigService(store repository.ConfigRepository, name string, memory *repository.MemoryStore, clock quartz.Clock, m metrics.Provider, log zerolog.Logger) *ConfigService {
	return &ConfigService{
		store:   store,
		name:    name,
		memory:  memory,
		clock:   clock,
		metrics: m,
		log:     log.With().Str("component", "ConfigService").Logger(),
	}
}

// Publish stores payload under key, generating a key when the given one is
// missing or malformed. An existing config under the same key is replaced.
func (s *ConfigService) Publish(ctx context.Context, userKey, key string, payload json.RawMessage) (*model.SharedConfig, Result) {
	if !ValidConfigKey(key) {
		key = uid.FromAlphabet(ConfigKeyAlphabet, GeneratedConfigKeyLength)
	}

	cfg := &model.SharedConfig{
		Key:       key,
		UserKey:   userKey,
		Payload:   payload,
		CreatedAt: s.clock.Now().Unix(),
	}

	if s.store == nil {
		_ = s.memory.PutConfig(ctx, cfg)
		return cfg, Result{Mode: ModeMemory}
	}

	if err := s.store.PutConfig(ctx, cfg); err != nil {
		s.log.Warn().Err(err).Str("backend", s.name).Msg("config store failed, using memory")
		s.metrics.IncFallback("config_put")
		_ = s.memory.PutConfig(ctx, cfg)
		return cfg, Result{Mode: ModeMemoryFallback}
	}
	return cfg, Result{Mode: s.name}
}

// Get fetches a config. Configs published during a store outage live in
// memory, so a store miss still checks there.
func (s *ConfigService) Get(ctx context.Context, key string) (*model.SharedConfig, Result, error) {
	if s.store == nil {
		cfg, err := s.memory.GetConfig(ctx, key)
		return cfg, Result{Mode: ModeMemory}, err
	}

	cfg, err := s.store.GetConfig(ctx, key)
	if err == nil {
		return cfg, Result{Mode: s.name}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		s.log.Warn().Err(err).Str("backend", s.name).Msg("config lookup failed, using memory")
		s.metrics.IncFallback("config_get")
	}

	cfg, memErr := s.memory.GetConfig(ctx, key)
	if memErr != nil {
		return nil, Result{}, memErr
	}
	return cfg, Result{Mode: ModeMemoryFallback}, nil
}
