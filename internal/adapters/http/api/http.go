// Package api binds the engine facade to HTTP/JSON routes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/okian/courtside/internal/adapters/identity"
	"github.com/okian/courtside/internal/domain/booking"
	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/pkg/logger"
	"github.com/okian/courtside/pkg/metrics"
)

const maxBodyBytes = 1 << 20

// Facade is the set of engine operations the HTTP layer exposes.
type Facade interface {
	CreateSession(ctx context.Context, spec booking.CreateSpec) (model.Session, error)
	PublishSession(ctx context.Context, id, actorID string) (model.Session, error)
	JoinSession(ctx context.Context, id, userID string) (model.Session, error)
	LeaveSession(ctx context.Context, id, userID string) (model.Session, error)
	CancelSession(ctx context.Context, id, actorID string) (model.Session, error)
	CompleteSession(ctx context.Context, id, actorID string, outcome *model.Outcome) (model.Session, []model.RatingChange, error)
	ReconcileRatings(ctx context.Context, id string) (model.Session, []model.RatingChange, error)
	GetSession(ctx context.Context, id string) (model.Session, error)
	ListSessions(ctx context.Context, f model.SessionFilter) ([]model.Session, error)

	UpsertUser(ctx context.Context, u model.User) (model.User, error)
	GetUser(ctx context.Context, id string) (model.User, error)
	UserRank(ctx context.Context, id string) (int, error)
	RatingHistory(ctx context.Context, userID string, limit int) ([]model.RatingChange, error)
	Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)

	GetStats(ctx context.Context) map[string]interface{}
}

// Server wires HTTP routes for the booking API.
type Server struct {
	facade  Facade
	auth    identity.Provider
	timeout time.Duration
	origins []string
	logger  logger.Logger

	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	leaderboardHandler *LeaderboardHandler
}

// Option configures a Server.
type Option func(*Server)

// WithTimeout bounds every request handled by the facade.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// WithOrigins sets the CORS allowed origins.
func WithOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHealthCheck adds a readiness probe to /healthz.
func WithHealthCheck(check func(context.Context) error) Option {
	return func(s *Server) { s.healthHandler = NewHealthHandler(check) }
}

// NewServer creates a new API server with all handlers.
func NewServer(facade Facade, auth identity.Provider, opts ...Option) *Server {
	s := &Server{
		facade:        facade,
		auth:          auth,
		timeout:       2 * time.Second,
		origins:       []string{"*"},
		logger:        logger.Nop(),
		healthHandler: NewHealthHandler(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.statsHandler = NewStatsHandler(facade)
	s.leaderboardHandler = NewLeaderboardHandler(facade)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /leaderboard", s.route("leaderboard", s.leaderboardHandler.HandleGetLeaderboard))

	mux.HandleFunc("POST /sessions", s.route("create_session", s.authed(s.handleCreateSession)))
	mux.HandleFunc("GET /sessions", s.route("list_sessions", s.handleListSessions))
	mux.HandleFunc("GET /sessions/{id}", s.route("get_session", s.handleGetSession))
	mux.HandleFunc("POST /sessions/{id}/publish", s.route("publish_session", s.authed(s.transition(s.facade.PublishSession))))
	mux.HandleFunc("POST /sessions/{id}/join", s.route("join_session", s.authed(s.transition(s.facade.JoinSession))))
	mux.HandleFunc("POST /sessions/{id}/leave", s.route("leave_session", s.authed(s.transition(s.facade.LeaveSession))))
	mux.HandleFunc("POST /sessions/{id}/cancel", s.route("cancel_session", s.authed(s.transition(s.facade.CancelSession))))
	mux.HandleFunc("POST /sessions/{id}/complete", s.route("complete_session", s.authed(s.handleComplete)))
	mux.HandleFunc("POST /sessions/{id}/ratings/reconcile", s.route("reconcile_ratings", s.authed(s.handleReconcile)))

	mux.HandleFunc("PUT /users/me", s.route("upsert_user", s.authed(s.handleUpsertMe)))
	mux.HandleFunc("GET /users/{id}", s.route("get_user", s.handleGetUser))
	mux.HandleFunc("GET /users/{id}/ratings", s.route("rating_history", s.handleRatingHistory))
}

// Handler wraps mux with CORS.
func (s *Server) Handler(mux *http.ServeMux) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         600,
	}).Handler(mux)
}

// route applies metrics and the per-request deadline.
func (s *Server) route(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return MetricsMiddleware(func(w http.ResponseWriter, r *http.Request) {
		if s.timeout > 0 {
			ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
			defer cancel()
			r = r.WithContext(ctx)
		}
		next(w, r)
	}, endpoint)
}

type authedHandler func(w http.ResponseWriter, r *http.Request, who identity.Identity)

func (s *Server) authed(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := s.auth.Authenticate(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next(w, r, who)
	}
}

type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := errorFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path), logger.String("code", resp.Code), logger.Error(err))
	}
	writeJSON(w, status, resp)
}

func writeErrorResponse(w http.ResponseWriter, err error) {
	status, resp := errorFor(err)
	writeJSON(w, status, resp)
}

var statusByKind = map[error]int{
	model.ErrValidation:         http.StatusBadRequest,
	model.ErrNotFound:           http.StatusNotFound,
	model.ErrInvalidState:       http.StatusConflict,
	model.ErrInvalidActor:       http.StatusForbidden,
	model.ErrIneligibleSkill:    http.StatusUnprocessableEntity,
	model.ErrAlreadyJoined:      http.StatusConflict,
	model.ErrSessionFull:        http.StatusConflict,
	model.ErrTimeout:            http.StatusGatewayTimeout,
	model.ErrStoreConflict:      http.StatusConflict,
	model.ErrStoreUnavailable:   http.StatusServiceUnavailable,
	model.ErrRatingUpdateFailed: http.StatusInternalServerError,
}

// errorFor maps err onto a status code and a caller-safe body.
func errorFor(err error) (int, errorResponse) {
	switch {
	case errors.Is(err, identity.ErrUnauthenticated):
		return http.StatusUnauthorized, errorResponse{Code: "unauthenticated", Message: "missing or invalid credentials"}
	case errors.Is(err, ErrBodyTooBig):
		return http.StatusRequestEntityTooLarge, errorResponse{Code: model.CodeOf(model.ErrValidation), Message: ErrBodyTooBig.Error()}
	}
	resp := errorResponse{Code: model.CodeOf(err), Message: model.MessageOf(err), Fields: model.FieldsOf(err)}
	if status, ok := statusByKind[model.KindOf(err)]; ok {
		return status, resp
	}
	return http.StatusInternalServerError, resp
}

// decode reads a JSON body into v. An empty body is allowed when optional.
func decode(w http.ResponseWriter, r *http.Request, op string, v any, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	var tooBig *http.MaxBytesError
	switch {
	case err == nil:
		return nil
	case optional && errors.Is(err, io.EOF):
		return nil
	case errors.As(err, &tooBig):
		return ErrBodyTooBig
	}
	return model.Errorf(op, model.ErrValidation, "malformed JSON body: %v", err)
}
