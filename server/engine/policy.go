package engine

import (
	"sort"
	"time"
)

type Action string

const (
	ActionEaseHazard     Action = "ease_hazard"
	ActionEaseSpawnRate  Action = "ease_spawn_rate"
	ActionEaseTargetHelp Action = "ease_target_help"
	ActionEaseAimAssist  Action = "ease_aim_assist"
	ActionNone           Action = "none"

	noneScore = 0.05
	childEase = 0.025
)

// Multiplier ranges. Values scale base game constants and are never absolute speeds.
var (
	SpawnRange      = [2]float64{0.90, 1.28}
	StormSpawnRange = [2]float64{0.95, 1.12}
	HazardRange     = [2]float64{0.78, 1.0}
	TargetHelpRange = [2]float64{1.0, 1.35}
	AimAssistRange  = [2]float64{0.95, 1.20}
)

type Multipliers struct {
	Spawn      float64 `json:"spawnMultiplier"`
	Hazard     float64 `json:"hazardMultiplier"`
	TargetHelp float64 `json:"targetHelpMultiplier"`
	AimAssist  float64 `json:"aimAssistMultiplier"`
}

func NeutralMultipliers() Multipliers {
	return Multipliers{Spawn: 1, Hazard: 1, TargetHelp: 1, AimAssist: 1}
}

// PolicyInput is the risk estimate plus the instantaneous features the scores read.
type PolicyInput struct {
	Risk             RiskEstimate
	ShieldCount      int
	InStorm          bool
	IsChildProfile   bool
	ReactionTimeNorm float64
}

type ScoredAction struct {
	Action Action  `json:"action"`
	Score  float64 `json:"score"`
}

type Pick struct {
	Action      Action      `json:"action"`
	Score       float64     `json:"score"`
	TieBroken   bool        `json:"tieBroken"`
	Multipliers Multipliers `json:"multipliers"`
	Reasons     []string    `json:"reasons"`
	Coach       string      `json:"coach,omitempty"`
}

type PolicyResult struct {
	Pick   *Pick          `json:"pick"`
	Scores []ScoredAction `json:"scores,omitempty"`
}

// TuningPolicy picks one easing action per cooldown window. It is silent in research mode.
type TuningPolicy struct {
	mode      RunMode
	rng       *SeededRng
	cooldown  Cooldown
	tieMargin float64
	last      *Pick
}

func NewTuningPolicy(mode RunMode, seed string, t Tunables) *TuningPolicy {
	t = t.Normalized()
	return &TuningPolicy{
		mode:      mode,
		rng:       NewSeededRng(seed),
		cooldown:  NewCooldown(t.ActionCooldown),
		tieMargin: t.TieMargin,
	}
}

// ScoreActions applies the literal candidate weights. The order of the
// returned slice is the declaration order and is used for stable sorting.
func ScoreActions(in PolicyInput) []ScoredAction {
	r := in.Risk
	m := r.Metrics
	failHigh := indicator(r.PFail >= 0.58)
	stormHigh := indicator(r.PStorm >= 0.60)
	noShield := indicator(in.ShieldCount <= 0)

	return []ScoredAction{
		{ActionEaseHazard, 0.6*failHigh + 0.4*stormHigh + 0.2*noShield},
		{ActionEaseSpawnRate, 0.55*failHigh + 0.25*stormHigh + 0.15*indicator(m.Fatigue > 0.65)},
		{ActionEaseTargetHelp, 0.70*indicator(r.PUnderTarget >= 0.42) + 0.25*indicator(!r.InTarget) + 0.15*indicator(m.ZoneOscillation > 0.55)},
		{ActionEaseAimAssist, 0.55*failHigh + 0.25*indicator(m.Accuracy < 0.58) + 0.20*indicator((1-clamp01(in.ReactionTimeNorm)) > 0.35)},
		{ActionNone, noneScore},
	}
}

// Update returns a nil pick in research mode and while the action cooldown runs.
func (p *TuningPolicy) Update(now time.Time, in PolicyInput) PolicyResult {
	if p.mode == RunResearch {
		return PolicyResult{}
	}
	if !p.cooldown.Ready(now) {
		return PolicyResult{}
	}

	scores := ScoreActions(in)
	ranked := make([]ScoredAction, len(scores))
	copy(ranked, scores)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	chosen := ranked[0]
	tie := false
	// A zero-score candidate is never eligible for the coin flip.
	if len(ranked) > 1 && ranked[1].Score > 0 && chosen.Score-ranked[1].Score < p.tieMargin {
		tie = true
		if p.rng.Float64() >= 0.5 {
			chosen = ranked[1]
		}
	}

	pick := &Pick{
		Action:      chosen.Action,
		Score:       chosen.Score,
		TieBroken:   tie,
		Multipliers: BuildMultipliers(chosen.Action, chosen.Score, in.InStorm, in.IsChildProfile),
		Reasons:     append([]string(nil), in.Risk.Reasons...),
		Coach:       policyCoachLine(chosen.Action),
	}
	if pick.Action != ActionNone {
		p.cooldown.Mark(now)
		p.last = pick
	}
	return PolicyResult{Pick: pick, Scores: scores}
}

// LastAction is the most recent non-none pick, kept for telemetry.
func (p *TuningPolicy) LastAction() *Pick { return p.last }

// LastActionAt is when the last non-none action fired.
func (p *TuningPolicy) LastActionAt() (time.Time, bool) { return p.cooldown.LastFired() }

// BuildMultipliers scales the chosen action's adjustment by its score, then
// applies the child nudge and the range and storm clamps.
func BuildMultipliers(a Action, score float64, inStorm, child bool) Multipliers {
	s := clamp01(score)
	m := NeutralMultipliers()
	switch a {
	case ActionEaseHazard:
		m.Hazard = 1 - 0.22*s
	case ActionEaseSpawnRate:
		m.Spawn = 1 + 0.28*s
	case ActionEaseTargetHelp:
		m.TargetHelp = 1 + 0.35*s
	case ActionEaseAimAssist:
		m.AimAssist = 1 + 0.20*s
	}
	if child {
		m.Hazard *= 1 - childEase
		m.Spawn *= 1 + childEase
		m.TargetHelp *= 1 + childEase
		m.AimAssist *= 1 + childEase
	}
	m.Spawn = clamp(m.Spawn, SpawnRange[0], SpawnRange[1])
	m.Hazard = clamp(m.Hazard, HazardRange[0], HazardRange[1])
	m.TargetHelp = clamp(m.TargetHelp, TargetHelpRange[0], TargetHelpRange[1])
	m.AimAssist = clamp(m.AimAssist, AimAssistRange[0], AimAssistRange[1])
	if inStorm {
		m.Spawn = clamp(m.Spawn, StormSpawnRange[0], StormSpawnRange[1])
	}
	return m
}

func policyCoachLine(a Action) string {
	switch a {
	case ActionEaseHazard:
		return "Hazards backed off a little. Watch for the warning marks."
	case ActionEaseSpawnRate:
		return "Slowing things down for a moment. Pick your targets."
	case ActionEaseTargetHelp:
		return "Get back into the target zone. Targets stay a bit longer now."
	case ActionEaseAimAssist:
		return "Steady aim. Let the target come to you."
	}
	return ""
}
