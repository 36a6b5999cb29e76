package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/aretw0/conductor"
	"github.com/aretw0/conductor/internal/logging"
	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// CapabilitiesURI is the resource listing the registered capabilities.
const CapabilitiesURI = "conductor://capabilities"

// Engine is the part of the orchestrator exposed as MCP tools.
type Engine interface {
	RunGoal(ctx context.Context, goal string, history *session.Session, opts ...conductor.RunOption) (*domain.RunResult, error)
	Validate(plan *domain.Plan) error
	Capabilities() iter.Seq[domain.CapabilityInfo]
}

// RunGoalArgs are the arguments of the run_goal tool.
type RunGoalArgs struct {
	Goal      string         `json:"goal"`
	SessionID string         `json:"session_id,omitempty"`
	Inputs    map[string]any `json:"inputs,omitempty"`
}

// RunGoalResponse is the structured result of the run_goal tool.
type RunGoalResponse struct {
	SessionID string           `json:"session_id,omitempty" jsonschema_description:"Session the goal was recorded in"`
	Output    string           `json:"output" jsonschema_description:"Answer produced by the last step"`
	Status    domain.RunStatus `json:"status" jsonschema_description:"completed, failed or canceled"`
	Steps     int              `json:"steps" jsonschema_description:"Number of steps in the plan"`
}

// PlanValidateArgs are the arguments of the plan_validate tool.
type PlanValidateArgs struct {
	Plan *domain.Plan `json:"plan"`
}

// PlanValidateResponse is the structured result of the plan_validate tool.
type PlanValidateResponse struct {
	Valid    bool     `json:"valid" jsonschema_description:"Whether the plan can run against the registered capabilities"`
	Problems []string `json:"problems,omitempty" jsonschema_description:"Every problem found"`
}

// Server wraps the orchestrator and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	sessions  *session.Manager
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithSessions persists run_goal calls that carry a session_id.
func WithSessions(m *session.Manager) Option {
	return func(s *Server) {
		s.sessions = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("conductor-mcp", strings.TrimSpace(conductor.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	runTool := mcp.NewTool("run_goal",
		mcp.WithDescription("Plan and execute a natural-language goal using the registered capabilities."),
		mcp.WithString("goal", mcp.Required(), mcp.Description("What to achieve")),
		mcp.WithString("session_id", mcp.Description("Conversation to read history from and record the goal in (optional)")),
		mcp.WithObject("inputs", mcp.Description("Named values the plan may reference as $name (optional)")),
		mcp.WithOutputSchema[RunGoalResponse](),
	)
	s.mcpServer.AddTool(runTool, mcp.NewStructuredToolHandler(s.handleRunGoal))

	s.mcpServer.AddTool(mcp.NewTool("list_capabilities",
		mcp.WithDescription("List the registered capabilities with their parameters."),
	), s.handleListCapabilities)

	validateTool := mcp.NewTool("plan_validate",
		mcp.WithDescription("Check a plan against the registered capabilities without running it."),
		mcp.WithObject("plan", mcp.Required(), mcp.Description(`Plan document: {"steps": [{"id", "capability", "args"}]}`)),
		mcp.WithOutputSchema[PlanValidateResponse](),
	)
	s.mcpServer.AddTool(validateTool, mcp.NewStructuredToolHandler(s.handlePlanValidate))
}

func (s *Server) handleRunGoal(ctx context.Context, request mcp.CallToolRequest, args RunGoalArgs) (RunGoalResponse, error) {
	opts := []conductor.RunOption{conductor.WithInputs(args.Inputs)}

	var (
		result *domain.RunResult
		err    error
	)
	if args.SessionID != "" && s.sessions != nil {
		_, err = s.sessions.Update(ctx, args.SessionID, func(ctx context.Context, sess *session.Session) error {
			var runErr error
			result, runErr = s.engine.RunGoal(ctx, args.Goal, sess, opts...)
			return runErr
		})
	} else {
		result, err = s.engine.RunGoal(ctx, args.Goal, nil, opts...)
	}
	if err != nil {
		s.logger.Warn("MCP run_goal failed", "err", err)
		if result != nil {
			return RunGoalResponse{}, fmt.Errorf("%w (%s)", err, result.Summary())
		}
		return RunGoalResponse{}, err
	}

	return RunGoalResponse{
		SessionID: args.SessionID,
		Output:    result.Output,
		Status:    result.Status,
		Steps:     result.Total,
	}, nil
}

func (s *Server) handleListCapabilities(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := s.capabilitiesJSON()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handlePlanValidate(ctx context.Context, request mcp.CallToolRequest, args PlanValidateArgs) (PlanValidateResponse, error) {
	if args.Plan == nil {
		return PlanValidateResponse{}, errors.New("a plan is required")
	}
	err := s.engine.Validate(args.Plan)
	if err == nil {
		return PlanValidateResponse{Valid: true}, nil
	}
	var invalid *domain.PlanValidationError
	if errors.As(err, &invalid) {
		return PlanValidateResponse{Valid: false, Problems: invalid.Problems}, nil
	}
	return PlanValidateResponse{}, err
}

func (s *Server) capabilitiesJSON() ([]byte, error) {
	caps := slices.Collect(s.engine.Capabilities())
	if caps == nil {
		caps = []domain.CapabilityInfo{}
	}
	return json.Marshal(caps)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(CapabilitiesURI, "Registered Capabilities",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := s.capabilitiesJSON()
		if err != nil {
			return nil, fmt.Errorf("failed to list capabilities: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      CapabilitiesURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
