package engine

import (
	"encoding/json"
	"reflect"
	"strings"
)

type profileAlias PlayerProfile

// profileKeys are the JSON names PlayerProfile owns; everything else goes to Extra.
var profileKeys = func() map[string]bool {
	keys := map[string]bool{}
	t := reflect.TypeOf(profileAlias{})
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			keys[name] = true
		}
	}
	return keys
}()

// Keys written by the first, unversioned profile format.
var legacyKeys = []string{"ver", "sessions", "skillStable", "accAvg", "rtAvg", "junkRateAvg", "missAvg", "groups", "flags"}

func (p PlayerProfile) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(profileAlias(p))
	if err != nil || len(p.Extra) == 0 {
		return b, err
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	for k, v := range p.Extra {
		if _, taken := out[k]; !taken && json.Valid(v) {
			out[k] = v
		}
	}
	return json.Marshal(out)
}

func (p *PlayerProfile) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	// Decode over the defaults so absent fields keep their default values.
	a := profileAlias(*DefaultProfile())
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*p = PlayerProfile(a)

	if _, versioned := raw["schemaVersion"]; !versioned {
		p.migrateLegacy(raw)
		for _, k := range legacyKeys {
			delete(raw, k)
		}
	}
	for k := range raw {
		if profileKeys[k] {
			delete(raw, k)
		}
	}
	if len(raw) > 0 {
		p.Extra = raw
	}
	return nil
}

type legacyGame struct {
	Sessions int     `json:"sessions"`
	AccAvg   float64 `json:"accAvg"`
	RtAvg    float64 `json:"rtAvg"`
	LastDiff string  `json:"lastDiff"`
}

// migrateLegacy fills v2 fields from the unversioned format. Fields already
// present under their v2 name win.
func (p *PlayerProfile) migrateLegacy(raw map[string]json.RawMessage) {
	num := func(key string, dst *float64) {
		if v, ok := raw[key]; ok {
			var f float64
			if json.Unmarshal(v, &f) == nil {
				*dst = f
			}
		}
	}
	if _, ok := raw["sessionCount"]; !ok {
		if v, ok := raw["sessions"]; ok {
			var n int
			if json.Unmarshal(v, &n) == nil {
				p.SessionCount = n
			}
		}
	}
	if _, ok := raw["skillConfidence"]; !ok {
		num("skillStable", &p.SkillConfidence)
	}
	if _, ok := raw["accuracyEMA"]; !ok {
		num("accAvg", &p.AccuracyEMA)
	}
	if _, ok := raw["reactionTimeEMA"]; !ok {
		num("rtAvg", &p.ReactionTimeEMA)
	}
	if _, ok := raw["errorRateEMA"]; !ok {
		num("junkRateAvg", &p.ErrorRateEMA)
	}
	if _, ok := raw["missEMA"]; !ok {
		num("missAvg", &p.MissEMA)
	}
	if _, ok := raw["flagCounters"]; !ok {
		if v, ok := raw["flags"]; ok {
			_ = json.Unmarshal(v, &p.Flags)
		}
	}
	if _, ok := raw["groupConfusion"]; !ok {
		if v, ok := raw["groups"]; ok {
			var g struct {
				Conf map[string]int `json:"conf"`
			}
			if json.Unmarshal(v, &g) == nil && len(g.Conf) > 0 {
				p.GroupConfusion = g.Conf
			}
		}
	}
	// Legacy per-game entries used short names.
	if v, ok := raw["perGame"]; ok {
		var games map[string]legacyGame
		if json.Unmarshal(v, &games) == nil {
			for id, lg := range games {
				g := p.Game(id, ParseDifficulty(lg.LastDiff))
				if g.SessionCount == 0 {
					g.SessionCount = lg.Sessions
				}
				if g.AccuracyEMA == 0 {
					g.AccuracyEMA = lg.AccAvg
				}
				if g.ReactionTimeEMA == 0 {
					g.ReactionTimeEMA = lg.RtAvg
				}
				if g.LastDifficulty == "" {
					g.LastDifficulty = ParseDifficulty(lg.LastDiff)
				}
			}
		}
	}
}
