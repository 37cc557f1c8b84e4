package engine

// Normalization constants for the performance blend.
const (
	rtFloorMs     = 220.0
	rtSpanMs      = 680.0
	rtUnknownNorm = 0.35
	missSpan      = 18.0
	comboSpan     = 35.0

	maxDelta  = 0.30
	skillGain = 1.8
)

// PerfScore blends accuracy, reaction time, misses and combo into [0,1].
// A missing reaction time scores a neutral-low 0.35.
func PerfScore(p SessionEndPayload) float64 {
	p = p.Sanitized()
	acc := clamp01(p.AccuracyGoodPct / 100)
	miss := clamp(p.Misses, 0, 999)
	combo := clamp(p.ComboMax, 0, 9999)
	avgRt := clamp(p.AvgRtGoodMs, 0, 3000)

	rtN := rtUnknownNorm
	if avgRt > 0 {
		rtN = clamp01(1 - (avgRt-rtFloorMs)/rtSpanMs)
	}
	missN := clamp01(1 - miss/missSpan)
	comboN := clamp01(combo / comboSpan)

	return clamp01(0.52*acc + 0.22*rtN + 0.18*missN + 0.08*comboN)
}

// ExpectedPerf is the performance a player of the given skill should reach at diff.
func ExpectedPerf(skill float64, diff Difficulty) float64 {
	skill = clamp01(skill)
	switch diff {
	case Easy:
		return clamp01(0.58 + 0.30*skill)
	case Hard:
		return clamp01(0.38 + 0.36*skill)
	default:
		return clamp01(0.48 + 0.34*skill)
	}
}

// LearningRate anneals with experience, like a decaying K factor.
func LearningRate(sessions int) float64 {
	return clamp(0.10-float64(sessions)*0.0015, 0.035, 0.10)
}

// TargetConfidence is where skillConfidence drifts to after n sessions.
func TargetConfidence(sessions int) float64 {
	return clamp(0.55+float64(sessions)*0.01, MinConfidence, MaxConfidence)
}

type SkillUpdate struct {
	Perf     float64
	Expected float64
	Delta    float64
	Before   float64
	After    float64
}

// UpdateSkill applies one session's correction to p. It must run once per
// session, before SessionCount is incremented.
func UpdateSkill(p *PlayerProfile, payload SessionEndPayload, diff Difficulty, confAlpha float64) SkillUpdate {
	perf := PerfScore(payload)
	before := clamp01(finiteOr(p.Skill, DefaultSkill))
	exp := ExpectedPerf(before, diff)
	delta := clamp(perf-exp, -maxDelta, maxDelta)
	lr := LearningRate(p.SessionCount)

	p.Skill = clamp01(before + delta*lr*skillGain)
	p.SkillConfidence = clamp(
		Smooth(p.SkillConfidence, TargetConfidence(p.SessionCount), confAlpha),
		MinConfidence, MaxConfidence)

	return SkillUpdate{Perf: perf, Expected: exp, Delta: delta, Before: before, After: p.Skill}
}
