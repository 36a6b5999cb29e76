package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/aretw0/conductor"
	"github.com/aretw0/conductor/internal/logging"
	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/session"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/routers"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

//go:embed openapi.yaml
var rawSpec []byte

// Engine is the part of the orchestrator the API exposes.
type Engine interface {
	RunGoal(ctx context.Context, goal string, history *session.Session, opts ...conductor.RunOption) (*domain.RunResult, error)
	Execute(ctx context.Context, plan *domain.Plan, opts ...conductor.RunOption) (*domain.RunResult, error)
	Validate(plan *domain.Plan) error
	Capabilities() iter.Seq[domain.CapabilityInfo]
}

// Server serves the Conductor HTTP API.
type Server struct {
	Engine   Engine
	Sessions *session.Manager

	metrics http.Handler
	logger  *slog.Logger
	spec    *openapi3.T
	router  routers.Router
}

// Option configures the Server.
type Option func(*Server)

// WithSessions persists the conversation of /run requests that carry a session_id.
func WithSessions(m *session.Manager) Option {
	return func(s *Server) {
		s.Sessions = m
	}
}

// WithMetrics mounts h on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer loads the embedded API contract and returns a server for engine.
func NewServer(engine Engine, opts ...Option) (*Server, error) {
	spec, router, err := loadContract(context.Background())
	if err != nil {
		return nil, err
	}
	s := &Server{
		Engine: engine,
		logger: logging.NewNop(),
		spec:   spec,
		router: router,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) (http.Handler, error) {
	s, err := NewServer(engine, opts...)
	if err != nil {
		return nil, err
	}
	return s.Routes(), nil
}

// Routes builds the router. Requests to operations in the contract are
// validated against it before reaching a handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.validateRequest)
		r.Get("/health", s.GetHealth)
		r.Get("/info", s.GetInfo)
		r.Get("/capabilities", s.ListCapabilities)
		r.Post("/run", s.RunGoal)
		r.Post("/plans/validate", s.ValidatePlan)
		r.Post("/plans/execute", s.ExecutePlan)
		r.Get("/sessions", s.ListSessions)
		r.Get("/sessions/{id}", s.GetSession)
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RunRequest is the body of POST /run.
type RunRequest struct {
	Goal      string         `json:"goal"`
	SessionID string         `json:"session_id,omitempty"`
	Inputs    map[string]any `json:"inputs,omitempty"`
	Retries   int            `json:"retries,omitempty"`
}

// RunResponse is the body of a successful POST /run.
type RunResponse struct {
	SessionID string            `json:"session_id,omitempty"`
	Result    *domain.RunResult `json:"result"`
}

// PlanRequest is the body of the /plans endpoints.
type PlanRequest struct {
	Plan   *domain.Plan   `json:"plan"`
	Inputs map[string]any `json:"inputs,omitempty"`
}

// ErrorResponse describes a failed request.
type ErrorResponse struct {
	Error    string            `json:"error"`
	Kind     string            `json:"kind,omitempty"`
	Problems []string          `json:"problems,omitempty"`
	Summary  string            `json:"summary,omitempty"`
	Result   *domain.RunResult `json:"result,omitempty"`
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "conductor-http",
		"version":     strings.TrimSpace(conductor.Version),
		"api_version": s.spec.Info.Version,
	})
}

// ListCapabilities handles the GET /capabilities request.
func (s *Server) ListCapabilities(w http.ResponseWriter, r *http.Request) {
	caps := slices.Collect(s.Engine.Capabilities())
	if caps == nil {
		caps = []domain.CapabilityInfo{}
	}
	writeJSON(w, http.StatusOK, caps)
}

// RunGoal handles the POST /run request.
func (s *Server) RunGoal(w http.ResponseWriter, r *http.Request) {
	var body RunRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	opts := []conductor.RunOption{conductor.WithRetries(body.Retries), conductor.WithInputs(body.Inputs)}
	var (
		result *domain.RunResult
		err    error
	)
	if body.SessionID != "" && s.Sessions != nil {
		_, err = s.Sessions.Update(r.Context(), body.SessionID, func(ctx context.Context, sess *session.Session) error {
			var runErr error
			result, runErr = s.Engine.RunGoal(ctx, body.Goal, sess, opts...)
			return runErr
		})
	} else {
		result, err = s.Engine.RunGoal(r.Context(), body.Goal, nil, opts...)
	}
	if err != nil {
		s.logger.Warn("Run failed", "err", err, "session_id", body.SessionID)
		s.failRun(w, err, result)
		return
	}
	writeJSON(w, http.StatusOK, RunResponse{SessionID: body.SessionID, Result: result})
}

// ValidatePlan handles the POST /plans/validate request.
func (s *Server) ValidatePlan(w http.ResponseWriter, r *http.Request) {
	var body PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Plan == nil {
		s.fail(w, http.StatusBadRequest, errors.New("invalid request body: a plan is required"))
		return
	}
	if err := s.Engine.Validate(body.Plan); err != nil {
		s.failRun(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

// ExecutePlan handles the POST /plans/execute request.
func (s *Server) ExecutePlan(w http.ResponseWriter, r *http.Request) {
	var body PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Plan == nil {
		s.fail(w, http.StatusBadRequest, errors.New("invalid request body: a plan is required"))
		return
	}
	result, err := s.Engine.Execute(r.Context(), body.Plan, conductor.WithInputs(body.Inputs))
	if err != nil {
		s.logger.Warn("Plan execution failed", "err", err, "plan_id", body.Plan.ID)
		s.failRun(w, err, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListSessions handles the GET /sessions request.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	if s.Sessions == nil {
		writeJSON(w, http.StatusOK, []string{})
		return
	}
	ids, err := s.Sessions.List(r.Context())
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// GetSession handles the GET /sessions/{id} request.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	if s.Sessions == nil {
		s.fail(w, http.StatusNotFound, domain.ErrSessionNotFound)
		return
	}
	sess, err := s.Sessions.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		s.fail(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Turns())
}

func (s *Server) fail(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "err", err, "status", status)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

// failRun reports a planning or execution error, with the partial result if any.
func (s *Server) failRun(w http.ResponseWriter, err error, result *domain.RunResult) {
	status, kind := classify(err)
	resp := ErrorResponse{Error: err.Error(), Kind: kind, Result: result}
	if result != nil {
		resp.Summary = result.Summary()
	}
	var invalid *domain.PlanValidationError
	if errors.As(err, &invalid) {
		resp.Problems = invalid.Problems
	}
	writeJSON(w, status, resp)
}

func classify(err error) (int, string) {
	var (
		invalid    *domain.PlanValidationError
		generation *domain.PlanGenerationError
		unresolved *domain.UnresolvedReferenceError
		loopLimit  *domain.PlanLoopLimitExceeded
		execution  *domain.CapabilityExecutionError
	)
	switch {
	case errors.Is(err, conductor.ErrGoalTooLarge):
		return http.StatusRequestEntityTooLarge, "invalid_goal"
	case errors.Is(err, conductor.ErrInvalidUTF8), errors.Is(err, domain.ErrEmptyGoal):
		return http.StatusBadRequest, "invalid_goal"
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity, "plan_validation"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "canceled"
	case errors.As(err, &generation):
		return http.StatusBadGateway, "plan_generation"
	case errors.As(err, &unresolved):
		return http.StatusUnprocessableEntity, "unresolved_reference"
	case errors.As(err, &loopLimit):
		return http.StatusUnprocessableEntity, "loop_limit"
	case errors.As(err, &execution):
		return http.StatusInternalServerError, "capability_execution"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Response encode failed", "err", err)
	}
}
