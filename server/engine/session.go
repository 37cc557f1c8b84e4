package engine

import (
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultTimeBudgetSec = 90
	MinTimeBudgetSec     = 30
	MaxTimeBudgetSec     = 180
)

type StartOptions struct {
	GameID         string     `json:"gameId"`
	RunMode        RunMode    `json:"runMode"`
	Difficulty     Difficulty `json:"difficulty"`
	Seed           string     `json:"seed"`
	TimeBudgetSec  int        `json:"timeBudgetSec"`
	IsChildProfile bool       `json:"child"`
}

// ClampTimeBudget maps an unset budget to the default and clamps the rest.
func ClampTimeBudget(sec int) int {
	if sec <= 0 {
		return DefaultTimeBudgetSec
	}
	return min(max(sec, MinTimeBudgetSec), MaxTimeBudgetSec)
}

// SessionContext is the state of one play session. Only intake methods on the
// Engine mutate it, and EndSession deactivates it exactly once.
type SessionContext struct {
	ID             string
	GameID         string
	RunMode        RunMode
	Difficulty     Difficulty
	Seed           string
	TimeBudgetSec  int
	IsChildProfile bool
	StartedAt      time.Time

	Misses          int
	ComboMax        int
	FeverPct        float64
	ShieldCount     int
	WeirdShootCount int

	LastActivity time.Time

	confusion map[string]int
	tally     SessionTally
	coach     *CoachSelector
	risk      *RiskEstimator
	policy    *TuningPolicy
	ended     bool
}

func newSession(now time.Time, o StartOptions, t Tunables, rnd *rand.Rand) *SessionContext {
	gameID := strings.TrimSpace(o.GameID)
	if gameID == "" {
		gameID = "unknown"
	}
	mode := ParseRunMode(string(o.RunMode))
	return &SessionContext{
		ID:             uuid.NewString(),
		GameID:         gameID,
		RunMode:        mode,
		Difficulty:     ParseDifficulty(string(o.Difficulty)),
		Seed:           o.Seed,
		TimeBudgetSec:  ClampTimeBudget(o.TimeBudgetSec),
		IsChildProfile: o.IsChildProfile,
		StartedAt:      now,
		LastActivity:   now,
		confusion:      map[string]int{},
		coach:          NewCoachSelector(t, rnd),
		risk:           NewRiskEstimator(t),
		policy:         NewTuningPolicy(mode, o.Seed, t),
	}
}

func (s *SessionContext) Ended() bool { return s.ended }

// ConfusionKey is the "from->to" key used for category confusion counts.
func ConfusionKey(from, to string) string {
	return strings.TrimSpace(from) + "->" + strings.TrimSpace(to)
}

// SessionInfo is a read-only snapshot of the live session.
type SessionInfo struct {
	ID              string         `json:"sessionId"`
	GameID          string         `json:"gameId"`
	RunMode         RunMode        `json:"runMode"`
	Difficulty      Difficulty     `json:"difficulty"`
	Seed            string         `json:"seed"`
	TimeBudgetSec   int            `json:"timeBudgetSec"`
	IsChildProfile  bool           `json:"child"`
	StartedAt       time.Time      `json:"startedAt"`
	Misses          int            `json:"misses"`
	ComboMax        int            `json:"comboMax"`
	FeverPct        float64        `json:"feverPct"`
	ShieldCount     int            `json:"shieldCount"`
	WeirdShootCount int            `json:"weirdShootCount"`
	Confusion       map[string]int `json:"confusion,omitempty"`
	LastAction      *Pick          `json:"lastAction,omitempty"`
	Ended           bool           `json:"ended"`
}

func (s *SessionContext) Info() *SessionInfo {
	conf := make(map[string]int, len(s.confusion))
	for k, v := range s.confusion {
		conf[k] = v
	}
	return &SessionInfo{
		ID:              s.ID,
		GameID:          s.GameID,
		RunMode:         s.RunMode,
		Difficulty:      s.Difficulty,
		Seed:            s.Seed,
		TimeBudgetSec:   s.TimeBudgetSec,
		IsChildProfile:  s.IsChildProfile,
		StartedAt:       s.StartedAt,
		Misses:          s.Misses,
		ComboMax:        s.ComboMax,
		FeverPct:        s.FeverPct,
		ShieldCount:     s.ShieldCount,
		WeirdShootCount: s.WeirdShootCount,
		Confusion:       conf,
		LastAction:      s.policy.LastAction(),
		Ended:           s.ended,
	}
}
