package model

import (
	"sort"
	"time"
)

// RetentionWindow is how long samples are kept.
const RetentionWindow = 30 * 24 * time.Hour

// RetentionSeconds is RetentionWindow in seconds.
const RetentionSeconds = int64(RetentionWindow / time.Second)

// Metric names a scalar series recognized by the sample store.
type Metric string

const (
	MetricHoney            Metric = "honey"
	MetricPollen           Metric = "pollen"
	MetricBackpack         Metric = "backpack"
	MetricBackpackCapacity Metric = "backpack_capacity"
)

// Metrics lists every scalar metric.
var Metrics = []Metric{MetricHoney, MetricPollen, MetricBackpack, MetricBackpackCapacity}

// Valid reports whether m is one of the scalar metrics.
func (m Metric) Valid() bool {
	for _, known := range Metrics {
		if m == known {
			return true
		}
	}
	return false
}

// NectarTypes is the fixed set of nectar series.
var NectarTypes = []string{"comforting", "invigorating", "motivating", "refreshing", "satisfying"}

// IsNectarType reports whether name is a known nectar type.
func IsNectarType(name string) bool {
	for _, n := range NectarTypes {
		if n == name {
			return true
		}
	}
	return false
}

// Point is one timestamped value.
type Point struct {
	T int64   `json:"t"`
	V float64 `json:"v"`
}

// BackpackPoint is a backpack sample with its fill percentage.
type BackpackPoint struct {
	T       int64   `json:"t"`
	V       float64 `json:"v"`
	Percent float64 `json:"percent"`
}

// SortPoints orders points by timestamp, keeping insertion order for ties.
func SortPoints(points []Point) {
	sort.SliceStable(points, func(i, j int) bool { return points[i].T < points[j].T })
}

// Since returns the points with T >= cutoff. The input must be sorted.
func Since(points []Point, cutoff int64) []Point {
	i := sort.Search(len(points), func(i int) bool { return points[i].T >= cutoff })
	return points[i:]
}

// Tail returns at most the last n points.
func Tail[T any](points []T, n int) []T {
	if n <= 0 || len(points) <= n {
		return points
	}
	return points[len(points)-n:]
}

// NormalizeBackpack pairs each backpack sample with the latest capacity at or
// before it. Both inputs must be sorted ascending. Without a known positive
// capacity the percentage is 0.
func NormalizeBackpack(backpack, capacity []Point) []BackpackPoint {
	out := make([]BackpackPoint, 0, len(backpack))
	var current float64
	j := 0
	for _, p := range backpack {
		for j < len(capacity) && capacity[j].T <= p.T {
			current = capacity[j].V
			j++
		}
		out = append(out, BackpackPoint{T: p.T, V: p.V, Percent: fillPercent(p.V, current)})
	}
	return out
}

func fillPercent(value, capacity float64) float64 {
	if capacity <= 0 {
		return 0
	}
	pct := 100 * value / capacity
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}
