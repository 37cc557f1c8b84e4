package main

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"herocoach/server/contract"
	"herocoach/server/engine"
	"herocoach/server/logger"
	"herocoach/server/store"
)

func newTestRouter(t *testing.T) (http.Handler, *Hub) {
	t.Helper()
	h := NewHub(store.NewMemory(), logger.Nop(), engine.DefaultTunables(), false)
	return Router(h), h
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := do(t, r, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok": true`) {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}
}

func TestSessionFlow(t *testing.T) {
	r, _ := newTestRouter(t)
	base := "/api/players/p1"

	rec := do(t, r, http.MethodPost, base+"/sessions", `{"gameId":"plate","difficulty":"hard","timeBudgetSec":500}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start: %d %s", rec.Code, rec.Body.String())
	}
	var info engine.SessionInfo
	decodeBody(t, rec, &info)
	if info.ID == "" || info.GameID != "plate" || info.Difficulty != engine.Hard || info.TimeBudgetSec != engine.MaxTimeBudgetSec {
		t.Fatalf("session info: %+v", info)
	}

	for _, ev := range []struct{ kind, body string }{
		{"score", `{"misses":2,"comboMax":4}`},
		{"resource", `{"feverPct":40,"shieldCount":1}`},
		{"judge", `{"kind":"GOOD","rtMs":420}`},
		{"confusion", `{"from":"fruit","to":"veg"}`},
		{"combo", `{"combo":5}`},
		{"time", `{"secondsLeft":30}`},
	} {
		if rec := do(t, r, http.MethodPost, base+"/events/"+ev.kind, ev.body); rec.Code != http.StatusOK {
			t.Fatalf("%s event: %d %s", ev.kind, rec.Code, rec.Body.String())
		}
	}

	rec = do(t, r, http.MethodGet, base+"/sessions/current", "")
	decodeBody(t, rec, &info)
	if info.Misses != 2 || info.ShieldCount != 1 || info.Confusion[engine.ConfusionKey("fruit", "veg")] != 1 {
		t.Fatalf("intake not applied: %+v", info)
	}

	if rec := do(t, r, http.MethodPost, base+"/assess", `{"accuracyGoodPct":0.8,"playedSec":20}`); rec.Code != http.StatusOK {
		t.Fatalf("assess: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, r, http.MethodPost, base+"/assess", `{"accuracyGoodPct":0.8,"playedSec":20}`); rec.Code != http.StatusNoContent {
		t.Fatalf("second assess inside the throttle should be 204, got %d", rec.Code)
	}

	rec = do(t, r, http.MethodPost, base+"/sessions/end", `{"accuracyGoodPct":82,"misses":3,"comboMax":9,"avgRtGoodMs":520,"durationPlayedSec":85,"nHitGood":30}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("end: %d %s", rec.Code, rec.Body.String())
	}
	var rc engine.Recommendation
	decodeBody(t, rec, &rc)
	if rc.SessionID != info.ID || rc.Grade == "" || rc.Tuning == nil {
		t.Fatalf("recommendation: %+v", rc)
	}

	if rec := do(t, r, http.MethodPost, base+"/sessions/end", `{}`); rec.Code != http.StatusConflict {
		t.Fatalf("second end should conflict, got %d", rec.Code)
	}
	rec = do(t, r, http.MethodGet, base+"/sessions/current", "")
	var after engine.SessionInfo
	decodeBody(t, rec, &after)
	if after.ID != info.ID || !after.Ended {
		t.Fatalf("current session after end: %+v", after)
	}
	if rec := do(t, r, http.MethodPost, base+"/events/combo", `{"combo":3}`); rec.Code != http.StatusConflict {
		t.Fatalf("intake after end should conflict, got %d", rec.Code)
	}

	rec = do(t, r, http.MethodGet, base+"/recommendation", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("recommendation: %d", rec.Code)
	}
	rec = do(t, r, http.MethodGet, base+"/tuning?game=other", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("tuning carries across games: %d", rec.Code)
	}
	var tun engine.Tuning
	decodeBody(t, rec, &tun)
	if tun != *rc.Tuning {
		t.Fatalf("tuning %+v, want %+v", tun, *rc.Tuning)
	}

	rec = do(t, r, http.MethodGet, base+"/profile", "")
	var p engine.PlayerProfile
	decodeBody(t, rec, &p)
	if p.SessionCount != 1 || p.PerGame["plate"] == nil {
		t.Fatalf("profile: %+v", p)
	}

	rec = do(t, r, http.MethodGet, base+"/history?limit=5", "")
	var hist contract.HistoryResponse
	decodeBody(t, rec, &hist)
	if rec.Code != http.StatusOK || len(hist.Sessions) != 1 || hist.Sessions[0].SessionID != info.ID {
		t.Fatalf("history: %d %+v", rec.Code, hist)
	}
}

func TestNoSession(t *testing.T) {
	r, _ := newTestRouter(t)
	base := "/api/players/nobody"
	for _, path := range []string{"/events/score", "/assess", "/sessions/end"} {
		if rec := do(t, r, http.MethodPost, base+path, `{}`); rec.Code != http.StatusConflict {
			t.Fatalf("%s without session: %d", path, rec.Code)
		}
	}
	if rec := do(t, r, http.MethodPost, base+"/coach", `{"kind":"cancel"}`); rec.Code != http.StatusConflict {
		t.Fatalf("coach without session: %d", rec.Code)
	}
	for _, path := range []string{"/tuning", "/recommendation", "/sessions/current"} {
		if rec := do(t, r, http.MethodGet, base+path, ""); rec.Code != http.StatusNoContent {
			t.Fatalf("%s before any session: %d", path, rec.Code)
		}
	}
	rec := do(t, r, http.MethodGet, base+"/profile", "")
	var p engine.PlayerProfile
	decodeBody(t, rec, &p)
	if p.Skill != engine.DefaultSkill || p.SessionCount != 0 {
		t.Fatalf("fresh profile: %+v", p)
	}
}

func TestEndWithoutBody(t *testing.T) {
	r, _ := newTestRouter(t)
	base := "/api/players/quiet"
	do(t, r, http.MethodPost, base+"/sessions", `{"gameId":"plate"}`)
	rec := do(t, r, http.MethodPost, base+"/sessions/end", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("end with empty body: %d %s", rec.Code, rec.Body.String())
	}
	var rc engine.Recommendation
	decodeBody(t, rec, &rc)
	if rc.Grade == "" {
		t.Fatalf("recommendation: %+v", rc)
	}
	if rec := do(t, r, http.MethodPost, base+"/sessions/end", `{`); rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed end body: %d", rec.Code)
	}
}

func TestBadRequests(t *testing.T) {
	r, _ := newTestRouter(t)
	base := "/api/players/p2"
	do(t, r, http.MethodPost, base+"/sessions", `{}`)

	cases := []struct {
		path, body string
		code       int
	}{
		{"/events/dance", `{}`, http.StatusNotFound},
		{"/events/score", `{`, http.StatusBadRequest},
		{"/events/confusion", `{"from":"a"}`, http.StatusBadRequest},
		{"/events/judge", ``, http.StatusBadRequest},
		{"/coach", `{"kind":"sing"}`, http.StatusBadRequest},
	}
	for _, c := range cases {
		if rec := do(t, r, http.MethodPost, base+c.path, c.body); rec.Code != c.code {
			t.Fatalf("%s %q: got %d want %d (%s)", c.path, c.body, rec.Code, c.code, rec.Body.String())
		}
	}
	long := "/api/players/" + strings.Repeat("x", maxPlayerIDLen+1) + "/profile"
	if rec := do(t, r, http.MethodGet, long, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("long player id: %d", rec.Code)
	}
}

func TestResearchModeHidesTuning(t *testing.T) {
	r, _ := newTestRouter(t)
	base := "/api/players/lab"
	do(t, r, http.MethodPost, base+"/sessions", `{"gameId":"plate","runMode":"research"}`)
	if rec := do(t, r, http.MethodPost, base+"/sessions/end", `{"accuracyGoodPct":70,"durationPlayedSec":90}`); rec.Code != http.StatusOK {
		t.Fatalf("end: %d", rec.Code)
	}
	if rec := do(t, r, http.MethodGet, base+"/tuning", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("research tuning should be 204, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodGet, base+"/recommendation", ""); rec.Code != http.StatusOK {
		t.Fatalf("recommendation is still kept in research mode, got %d", rec.Code)
	}
}

func TestChildProfileDefault(t *testing.T) {
	h := NewHub(nil, nil, engine.DefaultTunables(), true)
	r := Router(h)
	rec := do(t, r, http.MethodPost, "/api/players/kid/sessions", `{"gameId":"plate"}`)
	var info engine.SessionInfo
	decodeBody(t, rec, &info)
	if !info.IsChildProfile {
		t.Fatalf("CHILD_PROFILE should mark every session")
	}
}

func TestHistoryNeedsRecorder(t *testing.T) {
	f, err := store.NewFile(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := Router(NewHub(f, nil, engine.DefaultTunables(), false))
	if rec := do(t, r, http.MethodGet, "/api/players/p/history", ""); rec.Code != http.StatusNotImplemented {
		t.Fatalf("file store keeps no history, got %d", rec.Code)
	}
}

func TestEventStream(t *testing.T) {
	r, _ := newTestRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/players/sse/events", nil)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}

	// another player's events must not leak into this stream
	for _, id := range []string{"other", "sse"} {
		res, err := srv.Client().Post(srv.URL+"/api/players/"+id+"/sessions", "application/json", strings.NewReader(`{}`))
		if err != nil {
			t.Fatalf("start %s: %v", id, err)
		}
		res.Body.Close()
	}

	sc := bufio.NewScanner(resp.Body)
	var event, data string
	for sc.Scan() {
		line := sc.Text()
		if v, ok := strings.CutPrefix(line, "event: "); ok {
			event = v
		}
		if v, ok := strings.CutPrefix(line, "data: "); ok {
			data = v
			break
		}
	}
	if event != string(engine.EventCoach) {
		t.Fatalf("first event %q, want coach", event)
	}
	var ev struct {
		Player  string              `json:"player"`
		Payload engine.CoachMessage `json:"payload"`
	}
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	if ev.Player != "sse" || ev.Payload.Kind != engine.TriggerStart {
		t.Fatalf("unexpected event: %+v", ev)
	}
}
