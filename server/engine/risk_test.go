package engine

import (
	"math"
	"reflect"
	"testing"
	"time"
)

func intPtr(v int) *int { return &v }

func stressedInput() RiskInput {
	return RiskInput{
		Misses:           9,
		Combo:            0,
		PlayedSec:        30,
		AccuracyGoodPct:  40,
		Fatigue:          0.7,
		Frustration:      0.5,
		CurrentZone:      "RED",
		ZoneOscillation:  0.6,
		ReactionTimeNorm: 0.2,
		StormFailRate:    0.5,
	}
}

func TestRiskEstimatorFormulas(t *testing.T) {
	r := NewRiskEstimator(DefaultTunables())
	est := r.Update(time.Unix(0, 0), stressedInput())
	if est == nil {
		t.Fatalf("first update must not be throttled")
	}
	if !near(est.PFail, 0.722) {
		t.Fatalf("pFail=%v want 0.722", est.PFail)
	}
	if !near(est.PStorm, 0.7171) {
		t.Fatalf("pStorm=%v want 0.7171", est.PStorm)
	}
	if !near(est.PUnderTarget, 0.91) {
		t.Fatalf("pUnderTarget=%v want 0.91", est.PUnderTarget)
	}
	if est.Level != RiskHigh {
		t.Fatalf("level=%s want high", est.Level)
	}
	want := []string{ReasonLowAccuracy, ReasonHighMissRate, ReasonZoneOscillation, ReasonFatigue, ReasonNotInTarget, ReasonNoShield}
	if !reflect.DeepEqual(est.Reasons, want) {
		t.Fatalf("reasons=%v want %v", est.Reasons, want)
	}
	if est.InTarget {
		t.Fatalf("RED is not the target zone")
	}
}

func TestRiskEstimatorChildProfileIsMoreForgiving(t *testing.T) {
	in := stressedInput()
	in.IsChildProfile = true
	est := NewRiskEstimator(DefaultTunables()).Update(time.Unix(0, 0), in)
	if !near(est.PFail, 0.722*0.92) {
		t.Fatalf("child pFail=%v want %v", est.PFail, 0.722*0.92)
	}
	if est.Level != RiskMid {
		t.Fatalf("child level=%s want mid", est.Level)
	}
}

func TestRiskEstimatorThrottle(t *testing.T) {
	r := NewRiskEstimator(DefaultTunables())
	t0 := time.Unix(100, 0)
	first := r.Update(t0, stressedInput())
	if first == nil {
		t.Fatalf("first update should pass")
	}
	if got := r.Update(t0.Add(100*time.Millisecond), RiskInput{AccuracyGoodPct: 100}); got != nil {
		t.Fatalf("update inside 500ms must return nil")
	}
	if r.Last() != first {
		t.Fatalf("throttled call must not change state")
	}
	if got := r.Update(t0.Add(500*time.Millisecond), stressedInput()); got == nil {
		t.Fatalf("update at 500ms should pass")
	}
}

func TestRiskEstimatorBoundsOnGarbage(t *testing.T) {
	inputs := []RiskInput{
		{AccuracyGoodPct: math.NaN(), Fatigue: math.Inf(1), Frustration: -4, ReactionTimeNorm: math.NaN()},
		{Misses: -10, PlayedSec: math.Inf(-1), Combo: -3, ShieldCount: intPtr(-5), StormFailRate: 9},
		{Misses: 1 << 20, AccuracyGoodPct: 1e9, ZoneOscillation: 7, ShieldCount: intPtr(100), InStorm: true},
		{},
	}
	r := NewRiskEstimator(DefaultTunables())
	now := time.Unix(0, 0)
	for i, in := range inputs {
		est := r.Update(now, in)
		now = now.Add(time.Second)
		for name, v := range map[string]float64{"pFail": est.PFail, "pStorm": est.PStorm, "pUnder": est.PUnderTarget} {
			if !(v >= 0 && v <= 1) {
				t.Fatalf("input %d: %s out of range: %v", i, name, v)
			}
		}
		if len(est.Reasons) > maxReasons {
			t.Fatalf("too many reasons: %v", est.Reasons)
		}
	}
}

func TestInTargetZone(t *testing.T) {
	r := NewRiskEstimator(DefaultTunables())
	for zone, want := range map[string]bool{"": true, "GREEN": true, " green ": true, "RED": false} {
		if got := r.InTarget(zone); got != want {
			t.Fatalf("InTarget(%q)=%v want %v", zone, got, want)
		}
	}
}
