// Package period turns the relative window strings accepted by the stats
// endpoints ("90s", "15m", "6h", "7d") into bounded durations.
//
// Parsing never fails: anything that does not match
// <positive integer><unit> resolves to the default window instead of an error.
package period

import (
	"regexp"
	"strconv"
	"time"
)

const (
	// Default is used when the period is absent or malformed.
	Default = 24 * time.Hour
	// Max caps every resolved period.
	Max = 30 * 24 * time.Hour
)

var pattern = regexp.MustCompile(`^([0-9]+)([smhd])$`)

var units = map[string]int64{
	"s": 1,
	"m": 60,
	"h": 3600,
	"d": 86400,
}

// Seconds resolves raw into a window length in seconds.
func Seconds(raw string) int64 {
	maxSeconds := int64(Max / time.Second)

	m := pattern.FindStringSubmatch(raw)
	if m == nil {
		return int64(Default / time.Second)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		// Only overflow gets here; such a request asks for more than Max anyway.
		return maxSeconds
	}
	if n <= 0 {
		return int64(Default / time.Second)
	}
	unit := units[m[2]]
	if n > maxSeconds/unit {
		return maxSeconds
	}
	return n * unit
}

// Resolve is Seconds as a time.Duration.
func Resolve(raw string) time.Duration {
	return time.Duration(Seconds(raw)) * time.Second
}

// Cutoff returns the oldest timestamp (unix seconds) inside the window ending at now.
func Cutoff(now int64, raw string) int64 {
	return now - Seconds(raw)
}
