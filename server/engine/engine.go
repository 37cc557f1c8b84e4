package engine

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"herocoach/server/logger"
)

// ErrNotFound is returned by stores when a player has no saved document.
var ErrNotFound = errors.New("not found")

// ProfileStore persists one profile and one last recommendation per player.
type ProfileStore interface {
	LoadProfile(ctx context.Context, playerID string) (*PlayerProfile, error)
	SaveProfile(ctx context.Context, playerID string, p *PlayerProfile) error
	LoadRecommendation(ctx context.Context, playerID string) (*Recommendation, error)
	SaveRecommendation(ctx context.Context, playerID string, r *Recommendation) error
}

// SessionRecord is one finalized session, appended by durable stores.
type SessionRecord struct {
	PlayerID    string     `json:"-"`
	SessionID   string     `json:"sessionId"`
	GameID      string     `json:"gameId"`
	RunMode     RunMode    `json:"runMode"`
	Difficulty  Difficulty `json:"difficulty"`
	SkillBefore float64    `json:"skillBefore"`
	SkillAfter  float64    `json:"skillAfter"`
	PerfScore   float64    `json:"perfScore"`
	Grade       Grade      `json:"grade"`
	FlagCount   int        `json:"flagCount"`
	EndedAt     time.Time  `json:"endedAt"`
}

// SessionRecorder is implemented by stores that keep a session history.
type SessionRecorder interface {
	RecordSession(ctx context.Context, rec SessionRecord) error
}

const (
	missSpikeMin   = 6
	missSpikeEvery = 3
	hotStreakCombo = 12
	clutchFrom     = 9.0
	clutchTo       = 10.0
	hazardMarker   = "JUNK"
)

// Engine owns one player's profile and at most one live session. It is not
// safe for concurrent use; callers serialize access per player.
type Engine struct {
	playerID string
	store    ProfileStore
	clock    Clock
	log      *logger.Logger
	tun      Tunables
	emitter  Emitter
	rnd      *rand.Rand

	profile   *PlayerProfile
	lastRec   *Recommendation
	recLoaded bool
	session   *SessionContext
	lastMode  RunMode
}

type Option func(*Engine)

func WithClock(c Clock) Option { return func(e *Engine) { e.clock = c } }

func WithLogger(l *logger.Logger) Option { return func(e *Engine) { e.log = l } }

func WithTunables(t Tunables) Option { return func(e *Engine) { e.tun = t.Normalized() } }

func WithEmitter(em Emitter) Option { return func(e *Engine) { e.emitter = em } }

// WithRand fixes the coach template source, for reproducible tests.
func WithRand(r *rand.Rand) Option { return func(e *Engine) { e.rnd = r } }

// New builds an engine for playerID. A nil store keeps everything in memory.
func New(playerID string, store ProfileStore, opts ...Option) *Engine {
	e := &Engine{
		playerID: playerID,
		store:    store,
		clock:    time.Now,
		tun:      DefaultTunables(),
		lastMode: RunPlay,
	}
	for _, o := range opts {
		o(e)
	}
	if e.log == nil {
		e.log = logger.Nop()
	}
	e.log = e.log.With("player_id", playerID)
	return e
}

func (e *Engine) PlayerID() string { return e.playerID }

func (e *Engine) now() time.Time { return e.clock() }

func (e *Engine) emit(kind EventKind, payload any) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(Event{Kind: kind, PlayerID: e.playerID, At: e.now(), Payload: payload})
}

func (e *Engine) emitCoach(m *CoachMessage) *CoachMessage {
	if m != nil {
		e.emit(EventCoach, *m)
	}
	return m
}

// ensureProfile loads the profile on first use. Missing or unreadable records
// fall back to defaults; after that the in-memory copy is authoritative.
func (e *Engine) ensureProfile(ctx context.Context) *PlayerProfile {
	if e.profile != nil {
		return e.profile
	}
	if e.store != nil {
		p, err := e.store.LoadProfile(ctx, e.playerID)
		switch {
		case err == nil && p != nil:
			e.profile = p.Normalize()
			return e.profile
		case errors.Is(err, ErrNotFound):
			e.log.Debug("no stored profile, using defaults")
		case err != nil:
			e.log.Warn("profile load failed, using defaults", "error", err)
		}
	}
	e.profile = DefaultProfile()
	return e.profile
}

// active returns the live session, or nil if there is none or it has ended.
func (e *Engine) active() *SessionContext {
	if e.session == nil || e.session.ended {
		return nil
	}
	return e.session
}

// StartSession replaces any live session with a new one.
func (e *Engine) StartSession(ctx context.Context, o StartOptions) *SessionInfo {
	e.ensureProfile(ctx)
	now := e.now()
	if prev := e.active(); prev != nil {
		e.log.Debug("replacing live session", "session_id", prev.ID)
	}
	s := newSession(now, o, e.tun, e.rnd)
	e.session = s
	e.lastMode = s.RunMode
	e.log.Info("session started", "session_id", s.ID, "game", s.GameID,
		"run_mode", s.RunMode, "difficulty", s.Difficulty, "time_budget_sec", s.TimeBudgetSec)
	e.emitCoach(s.coach.Trigger(now, TriggerStart))
	return s.Info()
}

// Session is a snapshot of the current session, ended or not.
func (e *Engine) Session() *SessionInfo {
	if e.session == nil {
		return nil
	}
	return e.session.Info()
}

// OnScore takes a score snapshot. Returns any coach message it caused.
func (e *Engine) OnScore(misses, comboMax int) *CoachMessage {
	s := e.active()
	if s == nil {
		return nil
	}
	now := e.now()
	s.Misses = max(misses, 0)
	s.ComboMax = max(s.ComboMax, comboMax)
	s.LastActivity = now
	if s.Misses >= missSpikeMin && s.Misses%missSpikeEvery == 0 {
		return e.emitCoach(s.coach.Trigger(now, TriggerMissSpike))
	}
	return nil
}

func (e *Engine) OnResource(feverPct float64, shieldCount int) {
	s := e.active()
	if s == nil {
		return
	}
	s.FeverPct = clamp(finiteOr(feverPct, 0), 0, 100)
	s.ShieldCount = max(shieldCount, 0)
}

// OnJudge records one judged shot. MISS shots count toward the tap-spam
// flag, which is published once when the count reaches the threshold.
func (e *Engine) OnJudge(kind, text string, rtMs float64) *CoachMessage {
	s := e.active()
	if s == nil {
		return nil
	}
	now := e.now()
	s.tally.Record(kind, rtMs)
	s.LastActivity = now

	k := strings.ToUpper(strings.TrimSpace(kind))
	if k == JudgeMiss {
		s.WeirdShootCount++
		if s.WeirdShootCount == spamThreshold {
			e.log.Info("tap spam suspected", "session_id", s.ID, "count", s.WeirdShootCount)
			e.emit(EventFlag, FlagEvent{Kind: FlagKindSpamMiss, Count: s.WeirdShootCount})
		}
	}
	if k == JudgeJunk || strings.Contains(strings.ToUpper(text), hazardMarker) {
		return e.emitCoach(s.coach.Trigger(now, TriggerHazardHit))
	}
	return nil
}

func (e *Engine) OnConfusion(from, to string) {
	s := e.active()
	if s == nil || strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
		return
	}
	s.confusion[ConfusionKey(from, to)]++
	s.LastActivity = e.now()
}

func (e *Engine) OnCombo(combo int) *CoachMessage {
	s := e.active()
	if s == nil {
		return nil
	}
	now := e.now()
	s.ComboMax = max(s.ComboMax, combo)
	s.LastActivity = now
	if combo >= hotStreakCombo {
		return e.emitCoach(s.coach.Trigger(now, TriggerHotStreak))
	}
	return nil
}

func (e *Engine) OnTime(secondsLeft float64) *CoachMessage {
	s := e.active()
	if s == nil || !finite(secondsLeft) {
		return nil
	}
	if secondsLeft >= clutchFrom && secondsLeft <= clutchTo {
		return e.emitCoach(s.coach.Trigger(e.now(), TriggerClutch))
	}
	return nil
}

// Coach fires a named trigger directly, e.g. cancel.
func (e *Engine) Coach(kind TriggerKind) *CoachMessage {
	s := e.active()
	if s == nil {
		return nil
	}
	return e.emitCoach(s.coach.Trigger(e.now(), kind))
}

type Assessment struct {
	Risk   RiskEstimate  `json:"risk"`
	Policy PolicyResult  `json:"policy"`
	Coach  *CoachMessage `json:"coach,omitempty"`
}

// Assess is the in-play poll. It returns nil without a live session or when
// the risk throttle drops the call.
func (e *Engine) Assess(in RiskInput) *Assessment {
	s := e.active()
	if s == nil {
		return nil
	}
	now := e.now()
	in.IsChildProfile = in.IsChildProfile || s.IsChildProfile
	if in.ShieldCount == nil {
		n := s.ShieldCount
		in.ShieldCount = &n
	}
	est := s.risk.Update(now, in)
	if est == nil {
		return nil
	}
	res := s.policy.Update(now, PolicyInput{
		Risk:             *est,
		ShieldCount:      in.Shields(),
		InStorm:          in.InStorm,
		IsChildProfile:   in.IsChildProfile,
		ReactionTimeNorm: in.ReactionTimeNorm,
	})
	out := &Assessment{Risk: *est, Policy: res}
	if p := res.Pick; p != nil && p.Action != ActionNone {
		e.log.Debug("policy action", "session_id", s.ID, "action", p.Action, "score", p.Score, "tie", p.TieBroken)
		out.Coach = e.emitCoach(s.coach.Say(now, TriggerPolicy, p.Coach, MoodNeutral))
	}
	return out
}

// EndSession finalizes the live session once. A second call, or a call with
// no session, returns (nil, false) and changes nothing.
func (e *Engine) EndSession(ctx context.Context, payload SessionEndPayload) (*Recommendation, bool) {
	s := e.active()
	if s == nil {
		e.log.Debug("end ignored, no live session")
		return nil, false
	}
	s.ended = true

	now := e.now()
	p := e.ensureProfile(ctx)
	payload = s.tally.Fill(payload.Sanitized())

	flags := DetectAnomalies(payload, AnomalyContext{
		PlannedSec:      float64(s.TimeBudgetSec),
		WeirdShootCount: s.WeirdShootCount,
	})
	if len(flags) > 0 {
		p.Flags.SuspiciousSessions++
		e.log.Warn("session flagged", "session_id", s.ID, "flags", flags)
	}
	if IsAFK(payload.DurationPlayedSec, float64(s.TimeBudgetSec)) {
		p.Flags.AfkSessions++
	}

	a := e.tun.ProfileAlphas
	su := UpdateSkill(p, payload, s.Difficulty, a.Confidence)

	p.AccuracyEMA = Smooth(p.AccuracyEMA, payload.AccuracyGoodPct, a.Accuracy)
	p.ReactionTimeEMA = Smooth(p.ReactionTimeEMA, payload.AvgRtGoodMs, a.ReactionTime)
	p.ErrorRateEMA = Smooth(p.ErrorRateEMA, payload.JunkErrorPct, a.ErrorRate)
	p.MissEMA = Smooth(p.MissEMA, payload.Misses, a.Miss)

	g := p.Game(s.GameID, s.Difficulty)
	g.SessionCount++
	g.AccuracyEMA = Smooth(g.AccuracyEMA, payload.AccuracyGoodPct, a.GameAccuracy)
	g.ReactionTimeEMA = Smooth(g.ReactionTimeEMA, payload.AvgRtGoodMs, a.GameReactionTime)
	g.LastDifficulty = s.Difficulty

	p.MergeConfusion(s.confusion)

	grade := GradeFromAccuracy(payload.AccuracyGoodPct)
	p.SessionCount++
	p.LastGrade = grade
	p.UpdatedAt = now

	rec := &Recommendation{
		SchemaVersion: SchemaVersion,
		Timestamp:     now,
		GameID:        s.GameID,
		RunMode:       s.RunMode,
		Difficulty:    s.Difficulty,
		Seed:          s.Seed,
		SessionID:     s.ID,
		Perf: Perf{
			PerfScore:  round3(su.Perf),
			Expected:   round3(su.Expected),
			Delta:      round3(su.Delta),
			Skill:      round3(p.Skill),
			Confidence: round3(p.SkillConfidence),
		},
		EndPayloadEcho: payload,
		Flags:          flags,
		Grade:          grade,
		NextDifficulty: NextDifficulty(s.Difficulty, payload.AccuracyGoodPct, payload.Misses, payload.AvgRtGoodMs),
		Focus:          FocusHints(payload.JunkErrorPct, payload.AvgRtGoodMs, payload.Misses),
		Tuning:         SuggestTuning(p.Skill, payload),
		Insight:        Insights(p.GroupConfusion, payload),
	}
	e.lastRec = rec
	e.recLoaded = true

	e.persist(ctx, s, rec, su)

	e.log.Info("session ended", "session_id", s.ID, "grade", grade,
		"skill_before", su.Before, "skill_after", su.After, "next_difficulty", rec.NextDifficulty)
	e.emit(EventRecommend, rec)
	if len(flags) > 0 {
		e.emit(EventFlag, FlagEvent{Kind: FlagKindSession, Flags: flags})
	}
	return rec, true
}

// persist is best effort: failures are logged and the in-memory state stays.
func (e *Engine) persist(ctx context.Context, s *SessionContext, rec *Recommendation, su SkillUpdate) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveProfile(ctx, e.playerID, e.profile); err != nil {
		e.log.Warn("profile save failed", "error", err)
	}
	if err := e.store.SaveRecommendation(ctx, e.playerID, rec); err != nil {
		e.log.Warn("recommendation save failed", "error", err)
	}
	if r, ok := e.store.(SessionRecorder); ok {
		err := r.RecordSession(ctx, SessionRecord{
			PlayerID:    e.playerID,
			SessionID:   s.ID,
			GameID:      s.GameID,
			RunMode:     s.RunMode,
			Difficulty:  s.Difficulty,
			SkillBefore: su.Before,
			SkillAfter:  su.After,
			PerfScore:   su.Perf,
			Grade:       rec.Grade,
			FlagCount:   len(rec.Flags),
			EndedAt:     rec.Timestamp,
		})
		if err != nil {
			e.log.Warn("session history write failed", "error", err)
		}
	}
}

// GetLastRecommendation returns the latest recommendation, loading it from
// the store the first time.
func (e *Engine) GetLastRecommendation(ctx context.Context) *Recommendation {
	if !e.recLoaded {
		e.recLoaded = true
		if e.store != nil {
			r, err := e.store.LoadRecommendation(ctx, e.playerID)
			switch {
			case err == nil:
				e.lastRec = r
			case errors.Is(err, ErrNotFound):
			default:
				e.log.Warn("recommendation load failed", "error", err)
			}
		}
	}
	return e.lastRec
}

// GetTuning returns the last suggestion for the next session. It is nil in
// research mode and before any recommendation exists. Suggestions carry
// across games.
func (e *Engine) GetTuning(ctx context.Context, gameID string) *Tuning {
	if e.lastMode != RunPlay {
		return nil
	}
	rec := e.GetLastRecommendation(ctx)
	if rec == nil || rec.Tuning == nil {
		return nil
	}
	if gameID != "" && rec.GameID != "" && gameID != rec.GameID {
		e.log.Debug("tuning served across games", "from", rec.GameID, "to", gameID)
	}
	t := *rec.Tuning
	return &t
}

// GetProfile returns a copy of the profile.
func (e *Engine) GetProfile(ctx context.Context) *PlayerProfile {
	return e.ensureProfile(ctx).Clone()
}
