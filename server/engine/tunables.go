package engine

import "time"

const (
	MinAlpha = 0.02
	MaxAlpha = 0.60
)

// RiskAlphas smooth the in-session signals read by the RiskEstimator.
type RiskAlphas struct {
	Accuracy        float64 `yaml:"accuracy"`
	MissRate        float64 `yaml:"miss_rate"`
	Combo           float64 `yaml:"combo"`
	Fatigue         float64 `yaml:"fatigue"`
	ZoneOscillation float64 `yaml:"zone_oscillation"`
}

// ProfileAlphas smooth the persisted per-player aggregates at session end.
// They are a separate set from RiskAlphas and are not meant to be unified.
type ProfileAlphas struct {
	Accuracy         float64 `yaml:"accuracy"`
	ReactionTime     float64 `yaml:"reaction_time"`
	ErrorRate        float64 `yaml:"error_rate"`
	Miss             float64 `yaml:"miss"`
	GameAccuracy     float64 `yaml:"game_accuracy"`
	GameReactionTime float64 `yaml:"game_reaction_time"`
	Confidence       float64 `yaml:"confidence"`
}

type Tunables struct {
	RiskAlphas    RiskAlphas    `yaml:"risk_alphas"`
	ProfileAlphas ProfileAlphas `yaml:"profile_alphas"`

	RiskThrottle   time.Duration `yaml:"risk_throttle"`
	ActionCooldown time.Duration `yaml:"action_cooldown"`
	CoachCooldown  time.Duration `yaml:"coach_cooldown"`
	// CoachKindCooldowns adds a per-trigger gap on top of CoachCooldown.
	CoachKindCooldowns map[TriggerKind]time.Duration `yaml:"coach_kind_cooldowns"`

	TieMargin  float64 `yaml:"tie_margin"`
	TargetZone string  `yaml:"target_zone"`

	// MissBucketCap is the misses-per-10s rate that saturates the miss-rate signal.
	MissBucketCap float64 `yaml:"miss_bucket_cap"`
	ComboCap      float64 `yaml:"combo_cap"`
}

func DefaultTunables() Tunables {
	return Tunables{
		RiskAlphas: RiskAlphas{
			Accuracy:        0.12,
			MissRate:        0.14,
			Combo:           0.10,
			Fatigue:         0.10,
			ZoneOscillation: 0.12,
		},
		ProfileAlphas: ProfileAlphas{
			Accuracy:         0.12,
			ReactionTime:     0.10,
			ErrorRate:        0.10,
			Miss:             0.10,
			GameAccuracy:     0.14,
			GameReactionTime: 0.12,
			Confidence:       0.08,
		},
		RiskThrottle:   500 * time.Millisecond,
		ActionCooldown: 2200 * time.Millisecond,
		CoachCooldown:  2400 * time.Millisecond,
		CoachKindCooldowns: map[TriggerKind]time.Duration{
			TriggerMissSpike: 1700 * time.Millisecond,
			TriggerHazardHit: 1900 * time.Millisecond,
			TriggerHotStreak: 3200 * time.Millisecond,
			TriggerClutch:    2000 * time.Millisecond,
			TriggerPolicy:    2400 * time.Millisecond,
		},
		TieMargin:     0.08,
		TargetZone:    "GREEN",
		MissBucketCap: 3,
		ComboCap:      12,
	}
}

// Normalized fills zero values from the defaults and clamps everything to its legal range.
func (t Tunables) Normalized() Tunables {
	d := DefaultTunables()

	alpha := func(v, def float64) float64 {
		if v == 0 || !finite(v) {
			return def
		}
		return clamp(v, MinAlpha, MaxAlpha)
	}
	t.RiskAlphas.Accuracy = alpha(t.RiskAlphas.Accuracy, d.RiskAlphas.Accuracy)
	t.RiskAlphas.MissRate = alpha(t.RiskAlphas.MissRate, d.RiskAlphas.MissRate)
	t.RiskAlphas.Combo = alpha(t.RiskAlphas.Combo, d.RiskAlphas.Combo)
	t.RiskAlphas.Fatigue = alpha(t.RiskAlphas.Fatigue, d.RiskAlphas.Fatigue)
	t.RiskAlphas.ZoneOscillation = alpha(t.RiskAlphas.ZoneOscillation, d.RiskAlphas.ZoneOscillation)

	t.ProfileAlphas.Accuracy = alpha(t.ProfileAlphas.Accuracy, d.ProfileAlphas.Accuracy)
	t.ProfileAlphas.ReactionTime = alpha(t.ProfileAlphas.ReactionTime, d.ProfileAlphas.ReactionTime)
	t.ProfileAlphas.ErrorRate = alpha(t.ProfileAlphas.ErrorRate, d.ProfileAlphas.ErrorRate)
	t.ProfileAlphas.Miss = alpha(t.ProfileAlphas.Miss, d.ProfileAlphas.Miss)
	t.ProfileAlphas.GameAccuracy = alpha(t.ProfileAlphas.GameAccuracy, d.ProfileAlphas.GameAccuracy)
	t.ProfileAlphas.GameReactionTime = alpha(t.ProfileAlphas.GameReactionTime, d.ProfileAlphas.GameReactionTime)
	t.ProfileAlphas.Confidence = alpha(t.ProfileAlphas.Confidence, d.ProfileAlphas.Confidence)

	if t.RiskThrottle <= 0 {
		t.RiskThrottle = d.RiskThrottle
	}
	if t.ActionCooldown <= 0 {
		t.ActionCooldown = d.ActionCooldown
	}
	if t.CoachCooldown <= 0 {
		t.CoachCooldown = d.CoachCooldown
	}
	merged := make(map[TriggerKind]time.Duration, len(d.CoachKindCooldowns))
	for k, v := range d.CoachKindCooldowns {
		merged[k] = v
	}
	for k, v := range t.CoachKindCooldowns {
		if v < 0 {
			v = 0
		}
		merged[k] = v
	}
	t.CoachKindCooldowns = merged

	if t.TieMargin <= 0 || !finite(t.TieMargin) {
		t.TieMargin = d.TieMargin
	}
	t.TieMargin = clamp(t.TieMargin, 0, 1)
	if t.TargetZone == "" {
		t.TargetZone = d.TargetZone
	}
	if t.MissBucketCap <= 0 || !finite(t.MissBucketCap) {
		t.MissBucketCap = d.MissBucketCap
	}
	if t.ComboCap <= 0 || !finite(t.ComboCap) {
		t.ComboCap = d.ComboCap
	}
	return t
}
