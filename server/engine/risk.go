package engine

import (
	"strings"
	"time"
)

// RiskInput is one poll from the host game. Fractions are in [0,1];
// ReactionTimeNorm is 1 for fast. A nil ShieldCount means the poll did not
// report shields; the engine then uses the last resource event.
type RiskInput struct {
	Misses           int     `json:"misses"`
	Combo            int     `json:"combo"`
	PlayedSec        float64 `json:"playedSec"`
	AccuracyGoodPct  float64 `json:"accuracyGoodPct"`
	Fatigue          float64 `json:"fatigue"`
	Frustration      float64 `json:"frustration"`
	CurrentZone      string  `json:"currentZoneLabel"`
	ZoneOscillation  float64 `json:"zoneOscillation"`
	ReactionTimeNorm float64 `json:"reactionTimeNorm"`
	ShieldCount      *int    `json:"shieldCount,omitempty"`
	InStorm          bool    `json:"inStorm"`
	StormFailRate    float64 `json:"stormFailRate"`
	IsChildProfile   bool    `json:"isChildProfile"`
}

// Shields is the reported shield count, 0 when absent.
func (in RiskInput) Shields() int {
	if in.ShieldCount == nil {
		return 0
	}
	return *in.ShieldCount
}

type RiskLevel string

const (
	RiskLow  RiskLevel = "low"
	RiskMid  RiskLevel = "mid"
	RiskHigh RiskLevel = "high"
)

const (
	ReasonLowAccuracy     = "low_accuracy"
	ReasonHighMissRate    = "high_miss_rate"
	ReasonZoneOscillation = "zone_oscillation"
	ReasonFatigue         = "fatigue"
	ReasonNotInTarget     = "not_in_target"
	ReasonNoShield        = "no_shield"

	maxReasons = 8
	childRisk  = 0.92
)

type RiskEstimate struct {
	PFail        float64   `json:"pFail"`
	PStorm       float64   `json:"pStorm"`
	PUnderTarget float64   `json:"pUnderTarget"`
	Level        RiskLevel `json:"level"`
	Reasons      []string  `json:"reason"`
	InTarget     bool      `json:"inTarget"`
	Metrics      Metrics   `json:"ema"`
}

// RiskEstimator turns the smoothed signals into fail / storm / under-target
// probabilities. Updates closer together than the throttle are dropped.
type RiskEstimator struct {
	tun      Tunables
	agg      *MetricAggregator
	throttle Cooldown
	last     *RiskEstimate
}

func NewRiskEstimator(t Tunables) *RiskEstimator {
	t = t.Normalized()
	return &RiskEstimator{
		tun:      t,
		agg:      NewMetricAggregator(t.RiskAlphas),
		throttle: NewCooldown(t.RiskThrottle),
	}
}

// Update returns nil, with no state change, when called inside the throttle window.
func (r *RiskEstimator) Update(now time.Time, in RiskInput) *RiskEstimate {
	if !r.throttle.TryFire(now) {
		return nil
	}

	m := r.agg.Observe(Metrics{
		Accuracy:        finiteOr(in.AccuracyGoodPct, 0) / 100,
		MissRate:        MissRate(in.Misses, in.PlayedSec, r.tun.MissBucketCap),
		Combo:           float64(max(in.Combo, 0)) / r.tun.ComboCap,
		Fatigue:         in.Fatigue,
		ZoneOscillation: in.ZoneOscillation,
	})

	rtNorm := clamp01(in.ReactionTimeNorm)
	frustration := clamp01(in.Frustration)
	inTarget := r.InTarget(in.CurrentZone)

	pFail := clamp01(0.48*(1-m.Accuracy) +
		0.28*m.MissRate +
		0.10*frustration +
		0.08*m.Fatigue +
		0.06*(1-rtNorm))

	shieldGap := 1 - float64(in.Shields())/2
	if shieldGap < 0 {
		shieldGap = 0
	}
	pStorm := clamp01(0.55*pFail +
		0.20*m.ZoneOscillation +
		0.15*shieldGap +
		0.10*clamp01(in.StormFailRate))

	pUnder := clamp01(0.45*indicator(!inTarget) +
		0.30*m.MissRate +
		0.15*m.ZoneOscillation +
		0.10*m.Fatigue)

	if in.IsChildProfile {
		pFail = clamp01(pFail * childRisk)
		pStorm = clamp01(pStorm * childRisk)
		pUnder = clamp01(pUnder * childRisk)
	}

	est := &RiskEstimate{
		PFail:        pFail,
		PStorm:       pStorm,
		PUnderTarget: pUnder,
		Level:        levelFor(pFail),
		Reasons:      riskReasons(m, inTarget, in.Shields()),
		InTarget:     inTarget,
		Metrics:      m,
	}
	r.last = est
	return est
}

// Last is the most recent estimate, nil before the first update.
func (r *RiskEstimator) Last() *RiskEstimate { return r.last }

// InTarget treats an empty zone label as "game has no zones".
func (r *RiskEstimator) InTarget(zone string) bool {
	zone = strings.TrimSpace(zone)
	return zone == "" || strings.EqualFold(zone, r.tun.TargetZone)
}

func riskReasons(m Metrics, inTarget bool, shields int) []string {
	reasons := make([]string, 0, 6)
	add := func(ok bool, tag string) {
		if ok && len(reasons) < maxReasons {
			reasons = append(reasons, tag)
		}
	}
	add(m.Accuracy < 0.55, ReasonLowAccuracy)
	add(m.MissRate > 0.35, ReasonHighMissRate)
	add(m.ZoneOscillation > 0.55, ReasonZoneOscillation)
	add(m.Fatigue > 0.60, ReasonFatigue)
	add(!inTarget, ReasonNotInTarget)
	add(shields <= 0, ReasonNoShield)
	return reasons
}

func levelFor(pFail float64) RiskLevel {
	switch {
	case pFail >= 0.68:
		return RiskHigh
	case pFail >= 0.45:
		return RiskMid
	default:
		return RiskLow
	}
}
