package model

import (
	"encoding/json"
	"math"
	"strings"
)

const (
	// MaxBuffNameLength bounds buff names; longer names are dropped.
	MaxBuffNameLength = 64
	// MaxUsernameLength bounds usernames in characters; longer ones are cut.
	MaxUsernameLength = 64
)

// millisThreshold separates second and millisecond client timestamps.
const millisThreshold = 1e12

// maxTimestamp is 2^63, the first float64 past the int64 range.
const maxTimestamp = float64(math.MaxInt64)

// ParseBatch normalizes a decoded ingest body. Fields that are absent or not
// numeric are skipped rather than rejected; the caller checks HasMetrics.
// The body must have been decoded with UseNumber.
func ParseBatch(fields map[string]any, now int64) *Batch {
	b := &Batch{At: now}

	if at, ok := number(fields["at"]); ok && at > 0 {
		if at > millisThreshold {
			at /= 1000
		}
		// Out of int64 range counts as absent.
		if at < maxTimestamp {
			b.At = int64(at)
		}
	}

	b.Honey = pick(fields, "honey")
	b.Pollen = pick(fields, "pollen")
	b.Backpack = pick(fields, "backpack")
	b.BackpackCapacity = pick(fields, "backpack_capacity", "backpackCapacity")
	b.CurrentHoney = pick(fields, "current_honey", "currentHoney")

	if raw, ok := fields["nectar"].(map[string]any); ok {
		for name, v := range raw {
			name = strings.ToLower(strings.TrimSpace(name))
			if !IsNectarType(name) {
				continue
			}
			if f, ok := number(v); ok {
				if b.Nectar == nil {
					b.Nectar = make(map[string]float64)
				}
				b.Nectar[name] = f
			}
		}
	}

	if raw, ok := fields["buffs"].(map[string]any); ok {
		for name, v := range raw {
			name = strings.TrimSpace(name)
			if name == "" || len(name) > MaxBuffNameLength {
				continue
			}
			if f, ok := number(v); ok {
				if b.Buffs == nil {
					b.Buffs = make(map[string]float64)
				}
				b.Buffs[name] = f
			}
		}
	}

	if name, ok := fields["username"].(string); ok {
		b.Username = truncate(strings.TrimSpace(name), MaxUsernameLength)
	}

	for _, key := range []string{"player_id", "playerId"} {
		if id, ok := number(fields[key]); ok && id == math.Trunc(id) && math.Abs(id) < 1<<53 {
			b.PlayerID = int64(id)
			break
		}
	}

	return b
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// pick returns the first numeric value among keys.
func pick(fields map[string]any, keys ...string) *float64 {
	for _, k := range keys {
		if v, ok := number(fields[k]); ok {
			return &v
		}
	}
	return nil
}

// number accepts finite JSON numbers only.
func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = n
	case int64:
		f = float64(n)
	case int:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
