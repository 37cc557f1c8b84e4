// Package contract holds the JSON bodies exchanged with the host game and
// their validation. The engine itself tolerates garbage numbers, so Validate
// only rejects bodies that cannot be routed to an engine call at all.
package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"herocoach/server/engine"
)

const (
	maxBodyBytes = 1 << 20
	maxIDLen     = 128
	maxTextLen   = 240
)

var ErrEmptyBody = errors.New("empty request body")

type Validator interface {
	Validate() error
}

// Decode reads one JSON document into v and validates it.
func Decode(r io.Reader, v Validator) error {
	dec := json.NewDecoder(io.LimitReader(r, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return fmt.Errorf("decode body: %w", err)
	}
	return v.Validate()
}

// DecodeOptional is Decode for bodies that may be omitted; an empty body
// decodes as {}.
func DecodeOptional(r io.Reader, v Validator) error {
	if err := Decode(r, v); !errors.Is(err, ErrEmptyBody) {
		return err
	}
	return v.Validate()
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

type StartRequest struct {
	GameID        string `json:"gameId"`
	RunMode       string `json:"runMode"`    // play | research
	Difficulty    string `json:"difficulty"` // easy | normal | hard
	Seed          string `json:"seed"`
	TimeBudgetSec int    `json:"timeBudgetSec"`
	Child         bool   `json:"child"`
}

func (r *StartRequest) Validate() error {
	if len(r.GameID) > maxIDLen {
		return fmt.Errorf("gameId longer than %d bytes", maxIDLen)
	}
	if len(r.Seed) > maxIDLen {
		return fmt.Errorf("seed longer than %d bytes", maxIDLen)
	}
	return nil
}

// Options converts the request, applying the engine's fallbacks for unknown
// modes and difficulties.
func (r *StartRequest) Options() engine.StartOptions {
	return engine.StartOptions{
		GameID:         strings.TrimSpace(r.GameID),
		RunMode:        engine.ParseRunMode(r.RunMode),
		Difficulty:     engine.ParseDifficulty(r.Difficulty),
		Seed:           r.Seed,
		TimeBudgetSec:  r.TimeBudgetSec,
		IsChildProfile: r.Child,
	}
}

type ScoreEvent struct {
	Misses   int `json:"misses"`
	ComboMax int `json:"comboMax"`
}

func (e *ScoreEvent) Validate() error { return nil }

type ResourceEvent struct {
	FeverPct    float64 `json:"feverPct"`
	ShieldCount int     `json:"shieldCount"`
}

func (e *ResourceEvent) Validate() error { return nil }

type JudgeEvent struct {
	Kind string  `json:"kind"` // GOOD | JUNK | WRONG | DECOY | BOSS | MISS
	Text string  `json:"text,omitempty"`
	RtMs float64 `json:"rtMs,omitempty"`
}

func (e *JudgeEvent) Validate() error {
	e.Kind = strings.ToUpper(strings.TrimSpace(e.Kind))
	if e.Kind == "" && strings.TrimSpace(e.Text) == "" {
		return fmt.Errorf("judge event needs kind or text")
	}
	e.Text = truncate(e.Text, maxTextLen)
	return nil
}

type ConfusionEvent struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (e *ConfusionEvent) Validate() error {
	if strings.TrimSpace(e.From) == "" || strings.TrimSpace(e.To) == "" {
		return fmt.Errorf("confusion event needs from and to")
	}
	return nil
}

type ComboEvent struct {
	Combo int `json:"combo"`
}

func (e *ComboEvent) Validate() error { return nil }

type TimeEvent struct {
	SecondsLeft float64 `json:"secondsLeft"`
}

func (e *TimeEvent) Validate() error { return nil }

// CoachRequest asks for a message of one trigger kind, e.g. "cancel".
type CoachRequest struct {
	Kind string `json:"kind"`
}

func (r *CoachRequest) Validate() error {
	if _, ok := engine.ParseTriggerKind(r.Kind); !ok {
		return fmt.Errorf("unknown coach trigger %q", r.Kind)
	}
	return nil
}

func (r *CoachRequest) Trigger() engine.TriggerKind {
	k, _ := engine.ParseTriggerKind(r.Kind)
	return k
}

type AssessRequest struct {
	engine.RiskInput
}

func (r *AssessRequest) Validate() error { return nil }

type EndRequest struct {
	engine.SessionEndPayload
}

func (r *EndRequest) Validate() error { return nil }

// EventResponse is returned by the intake endpoints.
type EventResponse struct {
	Coach *engine.CoachMessage `json:"coach,omitempty"`
}

type HistoryResponse struct {
	Sessions []engine.SessionRecord `json:"sessions"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
