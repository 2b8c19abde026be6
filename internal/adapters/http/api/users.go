package api

import (
	"net/http"

	"github.com/okian/courtside/internal/adapters/identity"
	"github.com/okian/courtside/internal/domain/eligibility"
	"github.com/okian/courtside/internal/domain/model"
)

// userResponse adds the derived ladder rank and skill band to a profile.
type userResponse struct {
	model.User
	SkillBand eligibility.Bucket `json:"skill_band"`
	Rank      int                `json:"rank"`
}

type ratingHistoryResponse struct {
	UserID  string               `json:"user_id"`
	Changes []model.RatingChange `json:"changes"`
}

// handleUpsertMe registers or updates the caller's profile.
func (s *Server) handleUpsertMe(w http.ResponseWriter, r *http.Request, who identity.Identity) {
	const op = "api.upsert_user"
	var req upsertUserRequest
	if err := decode(w, r, op, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = who.Name
	}
	out, err := s.facade.UpsertUser(r.Context(), model.User{
		ID:          who.UserID,
		DisplayName: req.DisplayName,
		SkillLevel:  req.SkillLevel,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u, err := s.facade.GetUser(ctx, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rank, err := s.facade.UserRank(ctx, u.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: u, SkillBand: eligibility.BucketOf(u.SkillLevel), Rank: rank})
}

func (s *Server) handleRatingHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.rating_history"
	limit, err := queryInt(r, op, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id := r.PathValue("id")
	changes, err := s.facade.RatingHistory(r.Context(), id, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if changes == nil {
		changes = []model.RatingChange{}
	}
	writeJSON(w, http.StatusOK, ratingHistoryResponse{UserID: id, Changes: changes})
}
