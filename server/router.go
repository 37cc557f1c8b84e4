package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"herocoach/server/contract"
	"herocoach/server/engine"
)

const (
	maxPlayerIDLen = 128
	storeTimeout   = 5 * time.Second
)

func Router(h *Hub) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health
	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true, "players": h.Players()})
	})

	r.Route("/api/players/{player}", func(r chi.Router) {
		r.Use(playerID)

		// Session lifecycle
		r.Post("/sessions", func(w http.ResponseWriter, r *http.Request) {
			var req contract.StartRequest
			if !decode(w, r, &req) {
				return
			}
			o := req.Options()
			o.IsChildProfile = o.IsChildProfile || h.child
			var info *engine.SessionInfo
			h.With(player(r), func(e *engine.Engine) {
				ctx, cancel := withTimeout(r.Context(), storeTimeout)
				defer cancel()
				info = e.StartSession(ctx, o)
			})
			writeStatus(w, http.StatusCreated, info)
		})

		// current returns the latest session, ended or not
		r.Get("/sessions/current", func(w http.ResponseWriter, r *http.Request) {
			var info *engine.SessionInfo
			h.With(player(r), func(e *engine.Engine) { info = e.Session() })
			if info == nil {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			writeJSON(w, info)
		})

		r.Post("/sessions/end", func(w http.ResponseWriter, r *http.Request) {
			var req contract.EndRequest
			// the end payload is optional
			if err := contract.DecodeOptional(r.Body, &req); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			var (
				rec *engine.Recommendation
				ok  bool
			)
			h.With(player(r), func(e *engine.Engine) {
				ctx, cancel := withTimeout(r.Context(), storeTimeout)
				defer cancel()
				rec, ok = e.EndSession(ctx, req.SessionEndPayload)
			})
			if !ok {
				writeError(w, http.StatusConflict, errNoSession.Error())
				return
			}
			writeJSON(w, rec)
		})

		// In-play intake
		r.Post("/events/{kind}", func(w http.ResponseWriter, r *http.Request) {
			kind := chi.URLParam(r, "kind")
			apply, ok := intake(kind)
			if !ok {
				writeError(w, http.StatusNotFound, fmt.Sprintf("unknown event kind %q", kind))
				return
			}
			body := apply.body()
			if !decode(w, r, body) {
				return
			}
			var (
				resp contract.EventResponse
				live bool
			)
			h.With(player(r), func(e *engine.Engine) {
				if live = isLive(e); live {
					resp.Coach = apply.run(e, body)
				}
			})
			if !live {
				writeError(w, http.StatusConflict, errNoSession.Error())
				return
			}
			writeJSON(w, resp)
		})

		r.Post("/coach", func(w http.ResponseWriter, r *http.Request) {
			var req contract.CoachRequest
			if !decode(w, r, &req) {
				return
			}
			var (
				resp contract.EventResponse
				live bool
			)
			h.With(player(r), func(e *engine.Engine) {
				if live = isLive(e); live {
					resp.Coach = e.Coach(req.Trigger())
				}
			})
			if !live {
				writeError(w, http.StatusConflict, errNoSession.Error())
				return
			}
			writeJSON(w, resp)
		})

		r.Post("/assess", func(w http.ResponseWriter, r *http.Request) {
			var req contract.AssessRequest
			if !decode(w, r, &req) {
				return
			}
			var (
				out  *engine.Assessment
				live bool
			)
			h.With(player(r), func(e *engine.Engine) {
				if live = isLive(e); live {
					out = e.Assess(req.RiskInput)
				}
			})
			switch {
			case !live:
				writeError(w, http.StatusConflict, errNoSession.Error())
			case out == nil:
				// throttled
				w.WriteHeader(http.StatusNoContent)
			default:
				writeJSON(w, out)
			}
		})

		// Read side
		r.Get("/tuning", func(w http.ResponseWriter, r *http.Request) {
			var t *engine.Tuning
			h.With(player(r), func(e *engine.Engine) {
				ctx, cancel := withTimeout(r.Context(), storeTimeout)
				defer cancel()
				t = e.GetTuning(ctx, r.URL.Query().Get("game"))
			})
			if t == nil {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			writeJSON(w, t)
		})

		r.Get("/profile", func(w http.ResponseWriter, r *http.Request) {
			var p *engine.PlayerProfile
			h.With(player(r), func(e *engine.Engine) {
				ctx, cancel := withTimeout(r.Context(), storeTimeout)
				defer cancel()
				p = e.GetProfile(ctx)
			})
			writeJSON(w, p)
		})

		r.Get("/recommendation", func(w http.ResponseWriter, r *http.Request) {
			var rec *engine.Recommendation
			h.With(player(r), func(e *engine.Engine) {
				ctx, cancel := withTimeout(r.Context(), storeTimeout)
				defer cancel()
				rec = e.GetLastRecommendation(ctx)
			})
			if rec == nil {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			writeJSON(w, rec)
		})

		r.Get("/history", func(w http.ResponseWriter, r *http.Request) {
			hr, ok := h.History()
			if !ok {
				writeError(w, http.StatusNotImplemented, "session history is not kept by this store")
				return
			}
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			ctx, cancel := withTimeout(r.Context(), storeTimeout)
			defer cancel()
			rows, err := hr.History(ctx, player(r), limit)
			if err != nil {
				h.log.Warn("history query failed", "player_id", player(r), "error", err)
				writeError(w, http.StatusInternalServerError, "history unavailable")
				return
			}
			if rows == nil {
				rows = []engine.SessionRecord{}
			}
			writeJSON(w, contract.HistoryResponse{Sessions: rows})
		})

		// Server-sent events for this player's coach, recommendation and flag events.
		r.Get("/events", func(w http.ResponseWriter, r *http.Request) {
			fl, ok := w.(http.Flusher)
			if !ok {
				writeError(w, http.StatusInternalServerError, "streaming unsupported")
				return
			}
			id := player(r)
			ch := make(chan engine.Event, 32)
			unsubscribe := h.Bus().Subscribe(func(ev engine.Event) {
				if ev.PlayerID != id {
					return
				}
				select {
				case ch <- ev:
				default:
					// slow reader, drop
				}
			})
			defer unsubscribe()

			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.WriteHeader(http.StatusOK)
			fl.Flush()
			for {
				select {
				case <-r.Context().Done():
					return
				case ev := <-ch:
					raw, err := json.Marshal(ev)
					if err != nil {
						continue
					}
					fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, raw)
					fl.Flush()
				}
			}
		})
	})

	return r
}

func isLive(e *engine.Engine) bool {
	s := e.Session()
	return s != nil && !s.Ended
}

type ctxKey struct{}

// playerID validates the {player} path segment and stores it on the context.
func playerID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "player"))
		if id == "" || len(id) > maxPlayerIDLen {
			writeError(w, http.StatusBadRequest, "invalid player id")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func player(r *http.Request) string {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return id
}

// intakeRoute pairs an event body with the engine call it feeds.
type intakeRoute struct {
	body func() contract.Validator
	run  func(*engine.Engine, contract.Validator) *engine.CoachMessage
}

func intake(kind string) (intakeRoute, bool) {
	switch kind {
	case "score":
		return intakeRoute{
			body: func() contract.Validator { return &contract.ScoreEvent{} },
			run: func(e *engine.Engine, v contract.Validator) *engine.CoachMessage {
				ev := v.(*contract.ScoreEvent)
				return e.OnScore(ev.Misses, ev.ComboMax)
			},
		}, true
	case "resource":
		return intakeRoute{
			body: func() contract.Validator { return &contract.ResourceEvent{} },
			run: func(e *engine.Engine, v contract.Validator) *engine.CoachMessage {
				ev := v.(*contract.ResourceEvent)
				e.OnResource(ev.FeverPct, ev.ShieldCount)
				return nil
			},
		}, true
	case "judge":
		return intakeRoute{
			body: func() contract.Validator { return &contract.JudgeEvent{} },
			run: func(e *engine.Engine, v contract.Validator) *engine.CoachMessage {
				ev := v.(*contract.JudgeEvent)
				return e.OnJudge(ev.Kind, ev.Text, ev.RtMs)
			},
		}, true
	case "confusion":
		return intakeRoute{
			body: func() contract.Validator { return &contract.ConfusionEvent{} },
			run: func(e *engine.Engine, v contract.Validator) *engine.CoachMessage {
				ev := v.(*contract.ConfusionEvent)
				e.OnConfusion(ev.From, ev.To)
				return nil
			},
		}, true
	case "combo":
		return intakeRoute{
			body: func() contract.Validator { return &contract.ComboEvent{} },
			run: func(e *engine.Engine, v contract.Validator) *engine.CoachMessage {
				return e.OnCombo(v.(*contract.ComboEvent).Combo)
			},
		}, true
	case "time":
		return intakeRoute{
			body: func() contract.Validator { return &contract.TimeEvent{} },
			run: func(e *engine.Engine, v contract.Validator) *engine.CoachMessage {
				return e.OnTime(v.(*contract.TimeEvent).SecondsLeft)
			},
		}, true
	}
	return intakeRoute{}, false
}

func decode(w http.ResponseWriter, r *http.Request, v contract.Validator) bool {
	if err := contract.Decode(r.Body, v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	writeStatus(w, http.StatusOK, v)
}

func writeStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeStatus(w, status, contract.ErrorResponse{Error: msg})
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}

var errNoSession = errors.New("no live session")
