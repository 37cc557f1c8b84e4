package engine

import (
	"fmt"
	"sort"
	"time"
)

const (
	FocusHazard = "avoid hazard category first"
	FocusSpeed  = "focus on speed"
	FocusMisses = "focus on avoiding misses"
	FocusCombo  = "maintain combo"

	TuningNote = "suggestions only: apply in play mode, show as advice in research mode"

	minConfusionInsight = 3
)

type Perf struct {
	PerfScore  float64 `json:"perfScore"`
	Expected   float64 `json:"expected"`
	Delta      float64 `json:"delta"`
	Skill      float64 `json:"skill"`
	Confidence float64 `json:"confidence"`
}

// Tuning is the between-session suggestion. Multipliers scale base game constants.
type Tuning struct {
	SpawnMultiplier     float64 `json:"spawnMultiplier"`
	TargetTTLMultiplier float64 `json:"targetTtlMultiplier"`
	HazardMultiplier    float64 `json:"hazardMultiplier"`
	Note                string  `json:"note"`
}

type Recommendation struct {
	SchemaVersion  int               `json:"schemaVersion"`
	Timestamp      time.Time         `json:"timestamp"`
	GameID         string            `json:"gameId"`
	RunMode        RunMode           `json:"runMode"`
	Difficulty     Difficulty        `json:"difficulty"`
	Seed           string            `json:"seed"`
	SessionID      string            `json:"sessionId,omitempty"`
	Perf           Perf              `json:"perf"`
	EndPayloadEcho SessionEndPayload `json:"endPayloadEcho"`
	Flags          []string          `json:"flags"`
	Grade          Grade             `json:"grade"`
	NextDifficulty Difficulty        `json:"nextDifficulty"`
	Focus          []string          `json:"focus"`
	Tuning         *Tuning           `json:"tuning"`
	Insight        []string          `json:"insight"`
}

// GradeFromAccuracy maps accuracy percent to a grade. Anything under 60 is C.
func GradeFromAccuracy(acc float64) Grade {
	acc = finiteOr(acc, 0)
	switch {
	case acc >= 95:
		return GradeSSS
	case acc >= 90:
		return GradeSS
	case acc >= 85:
		return GradeS
	case acc >= 75:
		return GradeA
	case acc >= 60:
		return GradeB
	default:
		return GradeC
	}
}

// NextDifficulty moves at most one step from cur.
func NextDifficulty(cur Difficulty, acc, misses, avgRt float64) Difficulty {
	switch cur {
	case Easy:
		if acc >= 86 && misses <= 6 {
			return Normal
		}
	case Normal:
		if acc >= 90 && misses <= 7 && avgRt > 0 && avgRt <= 430 {
			return Hard
		}
		if acc < 62 && misses >= 12 {
			return Easy
		}
	case Hard:
		if acc < 66 && misses >= 14 {
			return Normal
		}
	}
	return cur
}

func FocusHints(junkErrorPct, avgRt, misses float64) []string {
	var focus []string
	if junkErrorPct >= 18 {
		focus = append(focus, FocusHazard)
	}
	if avgRt > 520 {
		focus = append(focus, FocusSpeed)
	}
	if misses >= 12 {
		focus = append(focus, FocusMisses)
	}
	if len(focus) == 0 {
		focus = append(focus, FocusCombo)
	}
	return focus
}

// SuggestTuning derives a pressure scalar from skill and the session and maps
// it onto rounded multipliers.
func SuggestTuning(skill float64, p SessionEndPayload) *Tuning {
	p = p.Sanitized()
	acc := clamp01(p.AccuracyGoodPct / 100)
	miss := clamp(p.Misses, 0, 999)
	avgRt := clamp(p.AvgRtGoodMs, 0, 2500)
	junk := clamp01(p.JunkErrorPct / 100)

	pressure := clamp(0.45+(clamp01(skill)-0.5)*0.40+(acc-0.75)*0.35-(miss/18)*0.20, 0.15, 0.95)

	spawn := clamp(1.08-pressure*0.28, 0.78, 1.12)
	ttl := clamp(1.10-pressure*0.30, 0.78, 1.18)
	hazard := clamp(0.95+pressure*0.35+junk*0.20, 0.85, 1.35)

	switch {
	case avgRt > 620:
		spawn *= 1.06
	case avgRt > 520:
		spawn *= 1.03
	}

	return &Tuning{
		SpawnMultiplier:     round3(spawn),
		TargetTTLMultiplier: round3(ttl),
		HazardMultiplier:    round3(hazard),
		Note:                TuningNote,
	}
}

// TopConfusion returns the most frequent "from->to" pair. Ties go to the
// lexically smaller key.
func TopConfusion(conf map[string]int) (string, int) {
	keys := make([]string, 0, len(conf))
	for k := range conf {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best, n := "", 0
	for _, k := range keys {
		if conf[k] > n {
			best, n = k, conf[k]
		}
	}
	return best, n
}

func Insights(conf map[string]int, p SessionEndPayload) []string {
	insight := []string{}
	if k, n := TopConfusion(conf); k != "" && n >= minConfusionInsight {
		insight = append(insight, fmt.Sprintf("frequent confusion: %s (%d times in total)", k, n))
	}
	if p.JunkErrorPct >= 18 {
		insight = append(insight, "many hazard hits: practice leaving junk alone")
	}
	if p.AvgRtGoodMs >= 520 {
		insight = append(insight, "slow reactions: watch the center of the screen, then shoot")
	}
	return insight
}
