package engine

import (
	"encoding/json"
	"time"
)

const SchemaVersion = 2

const (
	DefaultSkill      = 0.50
	DefaultConfidence = 0.40
	MinConfidence     = 0.35
	MaxConfidence     = 0.92
)

// GameStats are the per-game aggregates. Entries are created on first use and never removed.
type GameStats struct {
	SessionCount    int        `json:"sessionCount"`
	AccuracyEMA     float64    `json:"accuracyEMA"`
	ReactionTimeEMA float64    `json:"reactionTimeEMA"`
	LastDifficulty  Difficulty `json:"lastDifficulty"`
}

type FlagCounters struct {
	SuspiciousSessions int `json:"suspiciousSessions"`
	AfkSessions        int `json:"afkSessions"`
}

// PlayerProfile is the long-lived, single-writer record for one player.
type PlayerProfile struct {
	SchemaVersion   int       `json:"schemaVersion"`
	UpdatedAt       time.Time `json:"updatedAt"`
	SessionCount    int       `json:"sessionCount"`
	Skill           float64   `json:"skill"`
	SkillConfidence float64   `json:"skillConfidence"`
	LastGrade       Grade     `json:"lastGrade"`

	AccuracyEMA     float64 `json:"accuracyEMA"`
	ReactionTimeEMA float64 `json:"reactionTimeEMA"`
	ErrorRateEMA    float64 `json:"errorRateEMA"`
	MissEMA         float64 `json:"missEMA"`

	PerGame        map[string]*GameStats `json:"perGame"`
	GroupConfusion map[string]int        `json:"groupConfusion"`
	Flags          FlagCounters          `json:"flagCounters"`

	// Extra carries fields this version does not know so a save never drops them.
	Extra map[string]json.RawMessage `json:"-"`
}

func DefaultProfile() *PlayerProfile {
	return &PlayerProfile{
		SchemaVersion:   SchemaVersion,
		Skill:           DefaultSkill,
		SkillConfidence: DefaultConfidence,
		LastGrade:       GradeC,
		PerGame:         map[string]*GameStats{},
		GroupConfusion:  map[string]int{},
	}
}

// Normalize repairs a loaded record in place: nil maps become empty, bounded
// scalars are clamped and non-finite aggregates reset to zero.
func (p *PlayerProfile) Normalize() *PlayerProfile {
	if p.SchemaVersion < SchemaVersion {
		p.SchemaVersion = SchemaVersion
	}
	if p.SessionCount < 0 {
		p.SessionCount = 0
	}
	p.Skill = clamp(finiteOr(p.Skill, DefaultSkill), 0, 1)
	if p.SkillConfidence == 0 {
		p.SkillConfidence = DefaultConfidence
	}
	p.SkillConfidence = clamp(finiteOr(p.SkillConfidence, DefaultConfidence), MinConfidence, MaxConfidence)
	if g, ok := ParseGrade(string(p.LastGrade)); ok {
		p.LastGrade = g
	} else {
		p.LastGrade = GradeC
	}
	p.AccuracyEMA = finiteOr(p.AccuracyEMA, 0)
	p.ReactionTimeEMA = finiteOr(p.ReactionTimeEMA, 0)
	p.ErrorRateEMA = finiteOr(p.ErrorRateEMA, 0)
	p.MissEMA = finiteOr(p.MissEMA, 0)

	if p.PerGame == nil {
		p.PerGame = map[string]*GameStats{}
	}
	for id, g := range p.PerGame {
		if g == nil {
			p.PerGame[id] = &GameStats{LastDifficulty: Normal}
			continue
		}
		g.AccuracyEMA = finiteOr(g.AccuracyEMA, 0)
		g.ReactionTimeEMA = finiteOr(g.ReactionTimeEMA, 0)
		g.LastDifficulty = ParseDifficulty(string(g.LastDifficulty))
	}
	if p.GroupConfusion == nil {
		p.GroupConfusion = map[string]int{}
	}
	if p.Flags.SuspiciousSessions < 0 {
		p.Flags.SuspiciousSessions = 0
	}
	if p.Flags.AfkSessions < 0 {
		p.Flags.AfkSessions = 0
	}
	return p
}

// Game returns the stats for gameID, creating the entry if needed.
func (p *PlayerProfile) Game(gameID string, diff Difficulty) *GameStats {
	if p.PerGame == nil {
		p.PerGame = map[string]*GameStats{}
	}
	g, ok := p.PerGame[gameID]
	if !ok || g == nil {
		g = &GameStats{LastDifficulty: diff}
		p.PerGame[gameID] = g
	}
	return g
}

// Clone is a deep copy, safe to hand to readers.
func (p *PlayerProfile) Clone() *PlayerProfile {
	if p == nil {
		return nil
	}
	c := *p
	c.PerGame = make(map[string]*GameStats, len(p.PerGame))
	for k, v := range p.PerGame {
		if v == nil {
			continue
		}
		g := *v
		c.PerGame[k] = &g
	}
	c.GroupConfusion = make(map[string]int, len(p.GroupConfusion))
	for k, v := range p.GroupConfusion {
		c.GroupConfusion[k] = v
	}
	if p.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(p.Extra))
		for k, v := range p.Extra {
			c.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &c
}

// MergeConfusion adds one session's confusion counts into the profile.
func (p *PlayerProfile) MergeConfusion(session map[string]int) {
	if len(session) == 0 {
		return
	}
	if p.GroupConfusion == nil {
		p.GroupConfusion = map[string]int{}
	}
	for k, v := range session {
		if v > 0 {
			p.GroupConfusion[k] += v
		}
	}
}
