package engine

import (
	"sync"
	"time"

	"herocoach/server/logger"
)

type EventKind string

const (
	EventRecommend EventKind = "recommend"
	EventCoach     EventKind = "coach"
	EventFlag      EventKind = "flag"
)

// Flag event kinds.
const (
	FlagKindSession  = "session_flags"
	FlagKindSpamMiss = "spam_miss"
)

// Event is one published output. Payload is *Recommendation, CoachMessage or FlagEvent.
type Event struct {
	Kind     EventKind `json:"kind"`
	PlayerID string    `json:"player"`
	At       time.Time `json:"at"`
	Payload  any       `json:"payload"`
}

type FlagEvent struct {
	Kind  string   `json:"kind"`
	Flags []string `json:"flags,omitempty"`
	Count int      `json:"count,omitempty"`
}

// Emitter receives published events. Implementations must not block for long;
// the engine calls them inline.
type Emitter interface {
	Emit(Event)
}

type EmitterFunc func(Event)

func (f EmitterFunc) Emit(ev Event) { f(ev) }

// MultiEmitter fans out to every non-nil emitter in order.
type MultiEmitter []Emitter

func (m MultiEmitter) Emit(ev Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(ev)
		}
	}
}

// Bus is an in-process subscriber list. A panicking subscriber is logged and
// skipped; it never reaches the publisher.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs map[int]EmitterFunc
	log  *logger.Logger
}

func NewBus(log *logger.Logger) *Bus {
	if log == nil {
		log = logger.Nop()
	}
	return &Bus{subs: map[int]EmitterFunc{}, log: log}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn EmitterFunc) (unsubscribe func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

func (b *Bus) Emit(ev Event) {
	b.mu.RLock()
	fns := make([]EmitterFunc, 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()
	for _, fn := range fns {
		b.deliver(fn, ev)
	}
}

func (b *Bus) deliver(fn EmitterFunc, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Warn("event subscriber panicked", "kind", ev.Kind, "player_id", ev.PlayerID, "panic", r)
		}
	}()
	fn(ev)
}
