package engine

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func TestProfileJSONKeepsUnknownFields(t *testing.T) {
	doc := `{"schemaVersion":2,"sessionCount":3,"skill":0.61,"skillConfidence":0.58,"lastGrade":"A",
		"perGame":{"plate":{"sessionCount":3,"accuracyEMA":70,"reactionTimeEMA":410,"lastDifficulty":"hard"}},
		"groupConfusion":{"fruit->veg":2},"flagCounters":{"suspiciousSessions":1,"afkSessions":0},
		"avatar":{"hat":"red"},"lastGroupFocus":4}`
	var p PlayerProfile
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.SessionCount != 3 || p.Skill != 0.61 || p.PerGame["plate"].LastDifficulty != Hard {
		t.Fatalf("known fields not decoded: %+v", p)
	}
	if len(p.Extra) != 2 {
		t.Fatalf("expected 2 extra fields, got %v", p.Extra)
	}

	out, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(out)
	if !strings.Contains(s, `"avatar":{"hat":"red"}`) || !strings.Contains(s, `"lastGroupFocus":4`) {
		t.Fatalf("unknown fields dropped: %s", s)
	}
	if !strings.Contains(s, `"skill":0.61`) {
		t.Fatalf("known fields missing: %s", s)
	}
}

func TestProfileJSONMigratesLegacyFormat(t *testing.T) {
	doc := `{"ver":"1.0","updatedAt":"2025-01-02T03:04:05Z","sessions":4,"skill":0.6,"skillStable":0.5,
		"lastGrade":"B","accAvg":80,"rtAvg":450,"junkRateAvg":12,"missAvg":5,
		"perGame":{"GroupsVR":{"sessions":2,"accAvg":70,"rtAvg":400,"lastDiff":"hard"}},
		"groups":{"conf":{"a->b":3},"lastGroupFocus":1},
		"flags":{"suspiciousSessions":1,"afkSessions":2}}`
	var p PlayerProfile
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	p.Normalize()

	if p.SchemaVersion != SchemaVersion || p.SessionCount != 4 || p.SkillConfidence != 0.5 {
		t.Fatalf("scalars not migrated: %+v", p)
	}
	if p.AccuracyEMA != 80 || p.ReactionTimeEMA != 450 || p.ErrorRateEMA != 12 || p.MissEMA != 5 {
		t.Fatalf("aggregates not migrated: %+v", p)
	}
	g := p.PerGame["GroupsVR"]
	if g == nil || g.SessionCount != 2 || g.AccuracyEMA != 70 || g.ReactionTimeEMA != 400 || g.LastDifficulty != Hard {
		t.Fatalf("per-game not migrated: %+v", g)
	}
	if p.GroupConfusion["a->b"] != 3 {
		t.Fatalf("confusion not migrated: %v", p.GroupConfusion)
	}
	if p.Flags.SuspiciousSessions != 1 || p.Flags.AfkSessions != 2 {
		t.Fatalf("flags not migrated: %+v", p.Flags)
	}
	if len(p.Extra) != 0 {
		t.Fatalf("legacy keys should not be carried as extras: %v", p.Extra)
	}
}

func TestProfileNormalizeRepairsPartialRecord(t *testing.T) {
	p := &PlayerProfile{Skill: 5, SkillConfidence: 0.1, LastGrade: "Z", AccuracyEMA: math.NaN(),
		PerGame: map[string]*GameStats{"x": nil}}
	p.Normalize()
	if p.Skill != 1 || p.SkillConfidence != MinConfidence || p.LastGrade != GradeC {
		t.Fatalf("bounds not repaired: %+v", p)
	}
	if p.AccuracyEMA != 0 {
		t.Fatalf("NaN aggregate should reset, got %v", p.AccuracyEMA)
	}
	if p.GroupConfusion == nil || p.PerGame["x"] == nil {
		t.Fatalf("maps not filled: %+v", p)
	}

	empty := (&PlayerProfile{}).Normalize()
	if empty.Skill != 0 || empty.SkillConfidence != DefaultConfidence {
		t.Fatalf("zero record: %+v", empty)
	}
}

func TestProfileCloneIsDeep(t *testing.T) {
	p := DefaultProfile()
	p.Game("plate", Normal).SessionCount = 1
	p.GroupConfusion["a->b"] = 1
	p.Extra = map[string]json.RawMessage{"k": json.RawMessage(`1`)}

	c := p.Clone()
	c.Game("plate", Normal).SessionCount = 9
	c.GroupConfusion["a->b"] = 9
	c.Extra["k"][0] = '2'

	if p.PerGame["plate"].SessionCount != 1 || p.GroupConfusion["a->b"] != 1 || string(p.Extra["k"]) != "1" {
		t.Fatalf("clone shares state with the original")
	}
}

func TestPayloadSanitized(t *testing.T) {
	p := SessionEndPayload{Accuracy: 88, Misses: -3, AvgRtGoodMs: math.Inf(1), NHitGood: math.NaN()}.Sanitized()
	if p.AccuracyGoodPct != 88 || p.Accuracy != 0 {
		t.Fatalf("accuracy alias not folded: %+v", p)
	}
	if p.Misses != 0 || p.AvgRtGoodMs != 0 || p.NHitGood != 0 {
		t.Fatalf("bad numbers not zeroed: %+v", p)
	}
}
