package model

// Profile holds the last-known scalar values of a user bucket.
type Profile struct {
	Username     string
	CurrentHoney *float64
	LastActivity int64
}

// Series is the raw read-back of a user bucket.
//
// BackpackCapacity may start with one point older than the requested cutoff:
// the capacity in effect when the window opened.
type Series struct {
	Honey            []Point
	Pollen           []Point
	Backpack         []Point
	BackpackCapacity []Point
	Nectar           map[string][]Point
	Buffs            map[string][]Point
	Profile          Profile
}

// NewSeries returns an empty series with initialized maps.
func NewSeries() *Series {
	return &Series{
		Nectar: make(map[string][]Point),
		Buffs:  make(map[string][]Point),
	}
}

// Scalar returns the slot for a scalar metric.
func (s *Series) Scalar(m Metric) *[]Point {
	switch m {
	case MetricHoney:
		return &s.Honey
	case MetricPollen:
		return &s.Pollen
	case MetricBackpack:
		return &s.Backpack
	case MetricBackpackCapacity:
		return &s.BackpackCapacity
	}
	return nil
}

// Sort orders every sequence by timestamp.
func (s *Series) Sort() {
	for _, m := range Metrics {
		SortPoints(*s.Scalar(m))
	}
	for _, pts := range s.Nectar {
		SortPoints(pts)
	}
	for _, pts := range s.Buffs {
		SortPoints(pts)
	}
}

// Stats is the response body of the windowed stats endpoints.
type Stats struct {
	OK           bool               `json:"ok"`
	Mode         string             `json:"mode"`
	Period       int64              `json:"period"`
	Since        int64              `json:"since"`
	Now          int64              `json:"now"`
	PublicID     string             `json:"public_id,omitempty"`
	Username     string             `json:"username,omitempty"`
	CurrentHoney *float64           `json:"current_honey"`
	LastActivity int64              `json:"last_activity"`
	Honey        []Point            `json:"honey"`
	Pollen       []Point            `json:"pollen"`
	Backpack     []BackpackPoint    `json:"backpack"`
	Nectar       map[string][]Point `json:"nectar"`
	Buffs        map[string][]Point `json:"buffs"`
}

// History is the response body of the daily history endpoint.
type History struct {
	OK       bool               `json:"ok"`
	Mode     string             `json:"mode"`
	Date     string             `json:"date"`
	From     int64              `json:"from"`
	To       int64              `json:"to"`
	Honey    []Point            `json:"honey"`
	Pollen   []Point            `json:"pollen"`
	Backpack []BackpackPoint    `json:"backpack"`
	Nectar   map[string][]Point `json:"nectar"`
	Buffs    map[string][]Point `json:"buffs"`
	Summary  HistorySummary     `json:"summary"`
}

// HistorySummary aggregates the primary counter over a day.
type HistorySummary struct {
	TotalHoney     float64 `json:"total_honey"`
	AvgHourlyHoney float64 `json:"avg_hourly_honey"`
	Samples        int     `json:"samples"`
}
