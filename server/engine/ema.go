package engine

import "math"

// Smooth is one EMA step: prev*(1-alpha) + x*alpha with alpha clamped to
// [MinAlpha, MaxAlpha]. A non-finite sample leaves prev as is; a non-finite
// prev takes the sample. The result never leaves [min(prev,x), max(prev,x)].
func Smooth(prev, x, alpha float64) float64 {
	if !finite(x) {
		return finiteOr(prev, 0)
	}
	if !finite(prev) {
		return x
	}
	alpha = clamp(alpha, MinAlpha, MaxAlpha)
	next := prev*(1-alpha) + x*alpha
	return clamp(next, math.Min(prev, x), math.Max(prev, x))
}

// EMA is a single smoothed signal. The zero value is unseeded: the first
// finite sample becomes the value.
type EMA struct {
	Alpha  float64
	value  float64
	seeded bool
}

func NewEMA(alpha float64) EMA { return EMA{Alpha: alpha} }

func (e *EMA) Add(x float64) float64 {
	if !e.seeded {
		if finite(x) {
			e.value = x
			e.seeded = true
		}
		return e.value
	}
	e.value = Smooth(e.value, x, e.Alpha)
	return e.value
}

func (e *EMA) Value() float64 { return e.value }
func (e *EMA) Seeded() bool   { return e.seeded }

// Metrics is one tick of the smoothed in-session signals, each in [0,1].
type Metrics struct {
	Accuracy        float64 `json:"accuracy"`
	MissRate        float64 `json:"missRate"`
	Combo           float64 `json:"combo"`
	Fatigue         float64 `json:"fatigue"`
	ZoneOscillation float64 `json:"zoneOscillation"`
}

// MetricAggregator keeps the five in-session EMAs.
type MetricAggregator struct {
	acc, miss, combo, fatigue, zoneOsc EMA
}

func NewMetricAggregator(a RiskAlphas) *MetricAggregator {
	return &MetricAggregator{
		acc:     NewEMA(a.Accuracy),
		miss:    NewEMA(a.MissRate),
		combo:   NewEMA(a.Combo),
		fatigue: NewEMA(a.Fatigue),
		zoneOsc: NewEMA(a.ZoneOscillation),
	}
}

// Observe feeds one raw sample (already normalized to [0,1]) and returns the smoothed values.
func (m *MetricAggregator) Observe(s Metrics) Metrics {
	m.acc.Add(clamp01(s.Accuracy))
	m.miss.Add(clamp01(s.MissRate))
	m.combo.Add(clamp01(s.Combo))
	m.fatigue.Add(clamp01(s.Fatigue))
	m.zoneOsc.Add(clamp01(s.ZoneOscillation))
	return m.Snapshot()
}

func (m *MetricAggregator) Snapshot() Metrics {
	return Metrics{
		Accuracy:        m.acc.Value(),
		MissRate:        m.miss.Value(),
		Combo:           m.combo.Value(),
		Fatigue:         m.fatigue.Value(),
		ZoneOscillation: m.zoneOsc.Value(),
	}
}

// MissRate normalizes a miss count by 10-second buckets of elapsed play,
// saturating at bucketCap misses per bucket.
func MissRate(misses int, playedSec, bucketCap float64) float64 {
	if misses <= 0 {
		return 0
	}
	buckets := math.Ceil(finiteOr(playedSec, 0) / 10)
	if buckets < 1 {
		buckets = 1
	}
	if bucketCap <= 0 {
		bucketCap = 1
	}
	return clamp01(float64(misses) / buckets / bucketCap)
}
