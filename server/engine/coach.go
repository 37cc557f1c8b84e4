package engine

import (
	"math/rand/v2"
	"time"
)

type TriggerKind string

const (
	TriggerStart     TriggerKind = "start"
	TriggerMissSpike TriggerKind = "miss_spike"
	TriggerHazardHit TriggerKind = "hazard_hit"
	TriggerHotStreak TriggerKind = "hot_streak"
	TriggerClutch    TriggerKind = "clutch"
	TriggerCancel    TriggerKind = "cancel"
	TriggerPolicy    TriggerKind = "policy"
)

func ParseTriggerKind(s string) (TriggerKind, bool) {
	switch k := TriggerKind(s); k {
	case TriggerStart, TriggerMissSpike, TriggerHazardHit, TriggerHotStreak,
		TriggerClutch, TriggerCancel, TriggerPolicy:
		return k, true
	}
	return "", false
}

type CoachMessage struct {
	Kind TriggerKind `json:"kind"`
	Text string      `json:"text"`
	Mood Mood        `json:"mood"`
}

type coachLine struct {
	text string
	mood Mood
}

var coachTemplates = map[TriggerKind][]coachLine{
	TriggerStart: {
		{"Ready? Hit the good ones and skip the junk.", MoodNeutral},
		{"Warm up first. Accuracy before speed.", MoodNeutral},
		{"Let's go! Eyes on the targets.", MoodHappy},
	},
	TriggerMissSpike: {
		{"Slow down a little. Aim before you tap.", MoodSad},
		{"A few misses in a row. Take a breath.", MoodSad},
		{"Reset. Look first, then hit.", MoodNeutral},
	},
	TriggerHazardHit: {
		{"That one was junk. Check before you hit.", MoodSad},
		{"Careful with the hazard items!", MoodSad},
		{"Skip the junk, it costs you points.", MoodNeutral},
	},
	TriggerHotStreak: {
		{"Huge combo! Keep the rhythm.", MoodFever},
		{"You're on fire!", MoodFever},
		{"Streak going strong. Stay sharp.", MoodHappy},
		{"Nice chain. Don't rush it now.", MoodHappy},
	},
	TriggerClutch: {
		{"Ten seconds left! Finish strong.", MoodFever},
		{"Final stretch. Only the good ones.", MoodHappy},
	},
	TriggerCancel: {
		{"Session stopped. Come back anytime.", MoodNeutral},
		{"Paused here. See you next round.", MoodNeutral},
	},
}

// CoachSelector is the rate-limited message picker. A trigger fires only when
// the global gate and the gate for its own kind are both open.
type CoachSelector struct {
	global  Cooldown
	perKind map[TriggerKind]*Cooldown
	kindGap map[TriggerKind]time.Duration
	rnd     *rand.Rand
}

// NewCoachSelector uses rnd for template choice; nil means the package source.
func NewCoachSelector(t Tunables, rnd *rand.Rand) *CoachSelector {
	t = t.Normalized()
	return &CoachSelector{
		global:  NewCooldown(t.CoachCooldown),
		perKind: make(map[TriggerKind]*Cooldown),
		kindGap: t.CoachKindCooldowns,
		rnd:     rnd,
	}
}

func (c *CoachSelector) ready(now time.Time, kind TriggerKind) bool {
	if !c.global.Ready(now) {
		return false
	}
	if cd, ok := c.perKind[kind]; ok && !cd.Ready(now) {
		return false
	}
	return true
}

func (c *CoachSelector) mark(now time.Time, kind TriggerKind) {
	c.global.Mark(now)
	cd, ok := c.perKind[kind]
	if !ok {
		v := NewCooldown(c.kindGap[kind])
		cd = &v
		c.perKind[kind] = cd
	}
	cd.Mark(now)
}

// Trigger picks a template for kind. It returns nil when gated or when the
// kind has no templates.
func (c *CoachSelector) Trigger(now time.Time, kind TriggerKind) *CoachMessage {
	pool := coachTemplates[kind]
	if len(pool) == 0 || !c.ready(now, kind) {
		return nil
	}
	line := pool[c.intn(len(pool))]
	c.mark(now, kind)
	return &CoachMessage{Kind: kind, Text: line.text, Mood: line.mood}
}

// Say publishes a caller-supplied line through the same gates.
func (c *CoachSelector) Say(now time.Time, kind TriggerKind, text string, mood Mood) *CoachMessage {
	if text == "" || !c.ready(now, kind) {
		return nil
	}
	if mood == "" {
		mood = MoodNeutral
	}
	c.mark(now, kind)
	return &CoachMessage{Kind: kind, Text: text, Mood: mood}
}

func (c *CoachSelector) LastFired() (time.Time, bool) { return c.global.LastFired() }

func (c *CoachSelector) intn(n int) int {
	if c.rnd != nil {
		return c.rnd.IntN(n)
	}
	return rand.IntN(n)
}
