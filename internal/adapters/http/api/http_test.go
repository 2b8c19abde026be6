package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/courtside/internal/adapters/http/api"
	"github.com/okian/courtside/internal/adapters/identity"
	"github.com/okian/courtside/internal/adapters/repository"
	service "github.com/okian/courtside/internal/app"
)

type harness struct {
	handler http.Handler
	jwt     *identity.JWT
}

func newHarness() *harness {
	svc := service.New(repository.NewMemoryStore())
	jwt := identity.NewJWT("test-secret")
	server := api.NewServer(svc, jwt, api.WithTimeout(time.Second))
	mux := http.NewServeMux()
	server.Register(mux)
	return &harness{handler: server.Handler(mux), jwt: jwt}
}

func (h *harness) do(method, path, user string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		So(json.NewEncoder(&buf).Encode(b), ShouldBeNil)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		token, err := h.jwt.Issue(user, user, time.Hour)
		So(err, ShouldBeNil)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	return w
}

func decodeBody(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func (h *harness) register(user string, level float64) {
	w := h.do(http.MethodPut, "/users/me", user, map[string]any{"display_name": user, "skill_level": level})
	So(w.Code, ShouldEqual, http.StatusOK)
}

func (h *harness) createSession(user, typ string, capacity int) string {
	w := h.do(http.MethodPost, "/sessions", user, map[string]any{
		"title":            "Evening rally",
		"type":             typ,
		"starts_at":        time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
		"duration_minutes": 90,
		"venue":            map[string]string{"name": "Club courts", "address": "7 Baseline Ave"},
		"skill_band":       "intermediate",
		"capacity":         capacity,
	})
	So(w.Code, ShouldEqual, http.StatusCreated)
	body := decodeBody(w)
	So(w.Header().Get("Location"), ShouldEqual, "/sessions/"+body["id"].(string))
	So(body["duration_minutes"], ShouldEqual, 90.0)
	return body["id"].(string)
}

func TestOperationalRoutes(t *testing.T) {
	Convey("Given a registered API", t, func() {
		h := newHarness()

		Convey("Then /healthz reports ok", func() {
			w := h.do(http.MethodGet, "/healthz", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["status"], ShouldEqual, "ok")
		})

		Convey("Then /stats returns service counters", func() {
			w := h.do(http.MethodGet, "/stats", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w), ShouldContainKey, "queueCapacity")
		})

		Convey("Then /metrics exposes Prometheus text", func() {
			w := h.do(http.MethodGet, "/metrics", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then preflight requests are answered by CORS", func() {
			req := httptest.NewRequest(http.MethodOptions, "/sessions", nil)
			req.Header.Set("Origin", "https://app.example.com")
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			w := httptest.NewRecorder()
			h.handler.ServeHTTP(w, req)
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
		})
	})
}

func TestUsers(t *testing.T) {
	Convey("Given an API", t, func() {
		h := newHarness()

		Convey("When a write has no token", func() {
			w := h.do(http.MethodPut, "/users/me", "", map[string]any{"display_name": "x", "skill_level": 3})

			Convey("Then it is rejected as unauthenticated", func() {
				So(w.Code, ShouldEqual, http.StatusUnauthorized)
				So(decodeBody(w)["code"], ShouldEqual, "unauthenticated")
			})
		})

		Convey("When a profile is registered", func() {
			h.register("ana", 3.5)

			Convey("Then it is readable with the default rating", func() {
				w := h.do(http.MethodGet, "/users/ana", "", nil)
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decodeBody(w)
				So(body["elo"], ShouldEqual, 1200.0)
				So(body["rank"], ShouldEqual, 1.0)
				So(body["skill_band"], ShouldEqual, "intermediate")
			})

			Convey("Then its rating history is empty", func() {
				w := h.do(http.MethodGet, "/users/ana/ratings", "", nil)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(w)["changes"], ShouldBeEmpty)
			})
		})

		Convey("When the profile is invalid", func() {
			w := h.do(http.MethodPut, "/users/me", "ana", map[string]any{"display_name": "Ana", "skill_level": 12})

			Convey("Then the offending field is reported", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				body := decodeBody(w)
				So(body["code"], ShouldEqual, "validation_error")
				So(body["fields"], ShouldContainKey, "skill_level")
			})
		})

		Convey("When the body is malformed or has unknown fields", func() {
			bad := h.do(http.MethodPut, "/users/me", "ana", `{"display_name":`)
			unknown := h.do(http.MethodPut, "/users/me", "ana", `{"nickname":"a"}`)
			So(bad.Code, ShouldEqual, http.StatusBadRequest)
			So(unknown.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When an unknown user is requested", func() {
			w := h.do(http.MethodGet, "/users/ghost", "", nil)
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decodeBody(w)["code"], ShouldEqual, "not_found")
		})
	})
}

func TestSessionRoutes(t *testing.T) {
	Convey("Given registered players and an open session of two", t, func() {
		h := newHarness()
		h.register("ana", 3.5)
		h.register("ben", 3.0)
		h.register("cat", 3.5)
		h.register("dev", 6.5)
		id := h.createSession("ana", "hitting_partner", 2)

		Convey("When an eligible player joins", func() {
			w := h.do(http.MethodPost, "/sessions/"+id+"/join", "ben", nil)

			Convey("Then the session becomes full", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(w)["state"], ShouldEqual, "full")
			})

			Convey("Then any further join sees a session that is no longer open", func() {
				again := h.do(http.MethodPost, "/sessions/"+id+"/join", "ben", nil)
				So(again.Code, ShouldEqual, http.StatusConflict)
				So(decodeBody(again)["code"], ShouldEqual, "invalid_state")

				full := h.do(http.MethodPost, "/sessions/"+id+"/join", "cat", nil)
				So(full.Code, ShouldEqual, http.StatusConflict)
				So(decodeBody(full)["code"], ShouldEqual, "invalid_state")
			})

			Convey("Then leaving reopens it", func() {
				left := h.do(http.MethodPost, "/sessions/"+id+"/leave", "ben", nil)
				So(left.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(left)["state"], ShouldEqual, "open")
			})
		})

		Convey("When an ineligible player joins", func() {
			w := h.do(http.MethodPost, "/sessions/"+id+"/join", "dev", nil)
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(decodeBody(w)["code"], ShouldEqual, "ineligible_skill")
		})

		Convey("When someone other than the creator cancels", func() {
			w := h.do(http.MethodPost, "/sessions/"+id+"/cancel", "ben", nil)
			So(w.Code, ShouldEqual, http.StatusForbidden)
		})

		Convey("When the creator cancels", func() {
			w := h.do(http.MethodPost, "/sessions/"+id+"/cancel", "ana", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["state"], ShouldEqual, "cancelled")

			Convey("Then further joins are invalid", func() {
				j := h.do(http.MethodPost, "/sessions/"+id+"/join", "cat", nil)
				So(j.Code, ShouldEqual, http.StatusConflict)
				So(decodeBody(j)["code"], ShouldEqual, "invalid_state")
			})
		})

		Convey("When sessions are listed by level", func() {
			fits := h.do(http.MethodGet, "/sessions?skill_level=3.5", "", nil)
			misses := h.do(http.MethodGet, "/sessions?skill_level=6.5", "", nil)
			So(fits.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(fits)["sessions"], ShouldHaveLength, 1)
			So(decodeBody(misses)["sessions"], ShouldBeEmpty)
		})

		Convey("When list parameters are malformed", func() {
			w := h.do(http.MethodGet, "/sessions?skill_level=high&from=yesterday&limit=-1", "", nil)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			fields := decodeBody(w)["fields"]
			So(fields, ShouldContainKey, "skill_level")
			So(fields, ShouldContainKey, "from")
			So(fields, ShouldContainKey, "limit")
		})

		Convey("When an unknown session is requested", func() {
			w := h.do(http.MethodGet, "/sessions/nope", "", nil)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the create body names an unknown band", func() {
			w := h.do(http.MethodPost, "/sessions", "ana", map[string]any{"title": "x", "skill_band": "legend"})
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeBody(w)["fields"], ShouldContainKey, "skill_band")
		})
	})
}

func TestRankedMatchOverHTTP(t *testing.T) {
	Convey("Given a full ranked match", t, func() {
		h := newHarness()
		h.register("ana", 3.5)
		h.register("ben", 3.5)
		id := h.createSession("ana", "ranked_match", 2)
		So(h.do(http.MethodPost, "/sessions/"+id+"/join", "ben", nil).Code, ShouldEqual, http.StatusOK)

		Convey("When completed without an outcome", func() {
			w := h.do(http.MethodPost, "/sessions/"+id+"/complete", "ana", nil)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When completed with a pairwise outcome", func() {
			w := h.do(http.MethodPost, "/sessions/"+id+"/complete", "ana", map[string]any{
				"outcome": map[string]string{"kind": "pairwise", "winner": "ben", "loser": "ana"},
			})

			Convey("Then both ratings move by 16", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decodeBody(w)
				So(body["rating_changes"], ShouldHaveLength, 2)
				session := body["session"].(map[string]any)
				So(session["state"], ShouldEqual, "completed")
				So(session["rating_pending"], ShouldBeFalse)

				lb := decodeBody(h.do(http.MethodGet, "/leaderboard?limit=5", "", nil))
				entries := lb["entries"].([]any)
				So(entries, ShouldHaveLength, 2)
				top := entries[0].(map[string]any)
				So(top["user_id"], ShouldEqual, "ben")
				So(top["elo"], ShouldEqual, 1216.0)
			})

			Convey("Then reconciling changes nothing", func() {
				r := h.do(http.MethodPost, "/sessions/"+id+"/ratings/reconcile", "ana", nil)
				So(r.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(r)["rating_changes"], ShouldBeEmpty)
			})

			Convey("Then the history lists the change", func() {
				hist := decodeBody(h.do(http.MethodGet, "/users/ana/ratings?limit=5", "", nil))
				changes := hist["changes"].([]any)
				So(changes, ShouldHaveLength, 1)
				So(changes[0].(map[string]any)["new"], ShouldEqual, 1184.0)

				ana := decodeBody(h.do(http.MethodGet, "/users/ana", "", nil))
				So(ana["rank"], ShouldEqual, 2.0)
			})
		})

		Convey("When the leaderboard limit is invalid", func() {
			w := h.do(http.MethodGet, fmt.Sprintf("/leaderboard?limit=%s", "zero"), "", nil)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}
