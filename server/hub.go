package main

import (
	"context"
	"sync"
	"time"

	"herocoach/server/engine"
	"herocoach/server/logger"
	"herocoach/server/store"
)

// IdleTTL is how long an engine without a live session stays cached.
const IdleTTL = 30 * time.Minute

// Hub owns one engine per player. Each player has its own lock so a player's
// calls run one at a time while different players proceed in parallel.
// Idle engines are dropped by Sweep; their state is already in the store.
type Hub struct {
	mu      sync.Mutex
	players map[string]*playerSlot
	now     func() time.Time

	store   store.Backend
	bus     *engine.Bus
	emitter engine.Emitter
	tun     engine.Tunables
	log     *logger.Logger
	child   bool
}

type playerSlot struct {
	mu       sync.Mutex
	eng      *engine.Engine
	lastUsed time.Time
	users    int // callers holding or waiting on mu, guarded by Hub.mu
}

// NewHub builds a hub. extra emitters receive every event after the in-process bus.
func NewHub(st store.Backend, log *logger.Logger, tun engine.Tunables, child bool, extra ...engine.Emitter) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	if st == nil {
		st = store.NewMemory()
	}
	b := engine.NewBus(log)
	em := engine.MultiEmitter{b}
	for _, e := range extra {
		if e != nil {
			em = append(em, e)
		}
	}
	return &Hub{
		players: map[string]*playerSlot{},
		now:     time.Now,
		store:   st,
		bus:     b,
		emitter: em,
		tun:     tun.Normalized(),
		log:     log,
		child:   child,
	}
}

func (h *Hub) slot(playerID string) *playerSlot {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.players[playerID]
	if !ok {
		s = &playerSlot{eng: engine.New(playerID, h.store,
			engine.WithLogger(h.log),
			engine.WithTunables(h.tun),
			engine.WithEmitter(h.emitter),
		)}
		h.players[playerID] = s
	}
	s.users++
	return s
}

func (h *Hub) release(s *playerSlot) {
	h.mu.Lock()
	s.users--
	s.lastUsed = h.now()
	h.mu.Unlock()
}

// With runs fn with exclusive access to the player's engine.
func (h *Hub) With(playerID string, fn func(*engine.Engine)) {
	s := h.slot(playerID)
	defer h.release(s)
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.eng)
}

// Sweep drops engines that have no live session and were last used more
// than ttl ago. It returns how many were dropped.
func (h *Hub) Sweep(ttl time.Duration) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	cutoff := h.now().Add(-ttl)
	n := 0
	for id, s := range h.players {
		if s.users > 0 || s.lastUsed.After(cutoff) {
			continue
		}
		// users == 0 under h.mu, so nobody holds s.mu
		if cur := s.eng.Session(); cur != nil && !cur.Ended {
			continue
		}
		delete(h.players, id)
		n++
	}
	return n
}

// Run sweeps idle engines every interval until ctx is done.
func (h *Hub) Run(ctx context.Context, interval, ttl time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := h.Sweep(ttl); n > 0 {
				h.log.Debug("evicted idle engines", "count", n, "players", h.Players())
			}
		}
	}
}

func (h *Hub) Bus() *engine.Bus { return h.bus }

// History returns the backend's history reader, if it keeps one.
func (h *Hub) History() (store.HistoryReader, bool) {
	hr, ok := h.store.(store.HistoryReader)
	return hr, ok
}

func (h *Hub) Players() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.players)
}
