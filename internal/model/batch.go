package model

// Batch is one normalized ingest: everything a single push carries.
type Batch struct {
	At               int64
	Honey            *float64
	Pollen           *float64
	Backpack         *float64
	BackpackCapacity *float64
	CurrentHoney     *float64
	Nectar           map[string]float64
	Buffs            map[string]float64
	Username         string
	PlayerID         int64
}

// ScalarSample is a single scalar metric value of a batch.
type ScalarSample struct {
	Metric Metric
	Value  float64
}

// HasMetrics reports whether the batch carries anything worth storing.
// Buffs and backpack capacity alone do not count.
func (b *Batch) HasMetrics() bool {
	return b.Honey != nil || b.Pollen != nil || b.Backpack != nil ||
		b.CurrentHoney != nil || len(b.Nectar) > 0
}

// Scalars returns the scalar samples present in the batch.
func (b *Batch) Scalars() []ScalarSample {
	out := make([]ScalarSample, 0, 4)
	add := func(m Metric, v *float64) {
		if v != nil {
			out = append(out, ScalarSample{Metric: m, Value: *v})
		}
	}
	add(MetricHoney, b.Honey)
	add(MetricPollen, b.Pollen)
	add(MetricBackpack, b.Backpack)
	add(MetricBackpackCapacity, b.BackpackCapacity)
	return out
}

// HoneyDelta is the honey amount added to the cumulative counter.
func (b *Batch) HoneyDelta() float64 {
	if b.Honey == nil {
		return 0
	}
	return *b.Honey
}

// PollenDelta is the pollen amount added to the cumulative counter.
func (b *Batch) PollenDelta() float64 {
	if b.Pollen == nil {
		return 0
	}
	return *b.Pollen
}
