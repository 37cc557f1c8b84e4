package store

import (
	"context"
	"sync"

	"herocoach/server/engine"
)

// Memory keeps encoded documents in process. Readers get fresh copies.
type Memory struct {
	mu       sync.RWMutex
	profiles map[string][]byte
	recs     map[string][]byte
	history  map[string][]engine.SessionRecord
}

func NewMemory() *Memory {
	return &Memory{
		profiles: map[string][]byte{},
		recs:     map[string][]byte{},
		history:  map[string][]engine.SessionRecord{},
	}
}

func (m *Memory) LoadProfile(_ context.Context, playerID string) (*engine.PlayerProfile, error) {
	m.mu.RLock()
	b, ok := m.profiles[playerID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decodeProfile(b)
}

func (m *Memory) SaveProfile(_ context.Context, playerID string, p *engine.PlayerProfile) error {
	b, err := encodeProfile(p)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.profiles[playerID] = b
	m.mu.Unlock()
	return nil
}

func (m *Memory) LoadRecommendation(_ context.Context, playerID string) (*engine.Recommendation, error) {
	m.mu.RLock()
	b, ok := m.recs[playerID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decodeRecommendation(b)
}

func (m *Memory) SaveRecommendation(_ context.Context, playerID string, r *engine.Recommendation) error {
	b, err := encodeRecommendation(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.recs[playerID] = b
	m.mu.Unlock()
	return nil
}

func (m *Memory) RecordSession(_ context.Context, rec engine.SessionRecord) error {
	m.mu.Lock()
	m.history[rec.PlayerID] = append(m.history[rec.PlayerID], rec)
	m.mu.Unlock()
	return nil
}

// History returns the newest records first.
func (m *Memory) History(_ context.Context, playerID string, limit int) ([]engine.SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.history[playerID]
	out := make([]engine.SessionRecord, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, rows[i])
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
