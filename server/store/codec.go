package store

import (
	"encoding/json"
	"fmt"

	"herocoach/server/engine"
)

// ErrNotFound reports a player with no saved document.
var ErrNotFound = engine.ErrNotFound

func encodeProfile(p *engine.PlayerProfile) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("nil profile")
	}
	return json.Marshal(p)
}

// decodeProfile returns a normalized profile; a corrupt document is an error
// so callers can tell it apart from an absent one.
func decodeProfile(b []byte) (*engine.PlayerProfile, error) {
	p := engine.DefaultProfile()
	if err := json.Unmarshal(b, p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return p.Normalize(), nil
}

func encodeRecommendation(r *engine.Recommendation) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("nil recommendation")
	}
	return json.Marshal(r)
}

func decodeRecommendation(b []byte) (*engine.Recommendation, error) {
	var r engine.Recommendation
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decode recommendation: %w", err)
	}
	return &r, nil
}
