// Package service holds the business logic between handlers and storage.
package service

import (
	"errors"

	"vinzhub-stats-api/internal/repository"
)

// Storage modes reported to clients. A durable write reports the backend's
// own name ("mysql", "sqlite" or "postgres").
const (
	ModeMemory         = "memory"
	ModeMemoryFallback = "memory-fallback"
)

// Service errors.
var (
	ErrNoMetrics       = errors.New("no metrics provided")
	ErrDurableRequired = errors.New("durable storage required")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidMetric   = errors.New("invalid metric")
)

// Result reports which backend served an operation.
type Result struct {
	Mode string
}

// Backends bundles the durable store (nil in memory-only mode) with the
// always-present memory store.
type Backends struct {
	Durable repository.Store
	Memory  *repository.MemoryStore
}

// DurableEnabled reports whether a durable store is configured.
func (b Backends) DurableEnabled() bool {
	return b.Durable != nil
}

// PrimaryMode is the mode a healthy request is served in.
func (b Backends) PrimaryMode() string {
	if b.Durable != nil {
		return b.Durable.Name()
	}
	return ModeMemory
}
