package api

import (
	"context"
	"net/http"

	"github.com/okian/courtside/internal/adapters/identity"
	"github.com/okian/courtside/internal/domain/model"
)

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request, who identity.Identity) {
	const op = "api.create_session"
	var req createSessionRequest
	if err := decode(w, r, op, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	spec, err := req.spec(op, who.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.facade.CreateSession(r.Context(), spec)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/sessions/"+out.ID)
	writeJSON(w, http.StatusCreated, newSessionResponse(out))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	f, err := sessionFilter(r, "api.list_sessions")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.facade.ListSessions(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := sessionListResponse{Sessions: make([]sessionResponse, len(list))}
	for i, sess := range list {
		resp.Sessions[i] = newSessionResponse(sess)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	out, err := s.facade.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(out))
}

type transitionFunc func(ctx context.Context, id, actorID string) (model.Session, error)

// transition runs a single-actor session operation and renders the result.
func (s *Server) transition(fn transitionFunc) authedHandler {
	return func(w http.ResponseWriter, r *http.Request, who identity.Identity) {
		out, err := fn(r.Context(), r.PathValue("id"), who.UserID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newSessionResponse(out))
	}
}

// handleComplete reports rating_update_failed when the session committed but
// its ratings are still pending.
func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request, who identity.Identity) {
	const op = "api.complete_session"
	var req completeRequest
	if err := decode(w, r, op, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, changes, err := s.facade.CompleteSession(r.Context(), r.PathValue("id"), who.UserID, req.Outcome)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if changes == nil {
		changes = []model.RatingChange{}
	}
	writeJSON(w, http.StatusOK, completeResponse{Session: newSessionResponse(out), Changes: changes})
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request, _ identity.Identity) {
	out, changes, err := s.facade.ReconcileRatings(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if changes == nil {
		changes = []model.RatingChange{}
	}
	writeJSON(w, http.StatusOK, completeResponse{Session: newSessionResponse(out), Changes: changes})
}
