package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"herocoach/server/engine"
)

// LoadTunables reads engine tunables from a YAML file. Keys left out keep
// their defaults and every value is clamped to its legal range. An empty
// path returns the defaults.
//
//	risk_alphas:
//	  accuracy: 0.2
//	coach_cooldown: 3s
//	coach_kind_cooldowns:
//	  hazard_hit: 1500ms
func LoadTunables(path string) (engine.Tunables, error) {
	if path == "" {
		return engine.DefaultTunables(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return engine.Tunables{}, fmt.Errorf("read tunables: %w", err)
	}
	return ParseTunables(b)
}

func ParseTunables(b []byte) (engine.Tunables, error) {
	var t engine.Tunables
	if err := yaml.Unmarshal(b, &t); err != nil {
		return engine.Tunables{}, fmt.Errorf("parse tunables: %w", err)
	}
	return t.Normalized(), nil
}
