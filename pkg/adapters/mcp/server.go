package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/easel"
	"github.com/aretw0/easel/internal/logging"
	easelhttp "github.com/aretw0/easel/pkg/adapters/http"
	"github.com/aretw0/easel/pkg/domain"
	"github.com/aretw0/easel/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// SessionsURI is the resource listing checkpointed sessions.
const SessionsURI = "easel://sessions"

var errSessionRequired = errors.New("session is required")

// SessionArgs addresses one editor session.
type SessionArgs struct {
	Session string `json:"session"`
}

// TriggerArgs are the arguments of the trigger tool.
type TriggerArgs struct {
	Session string         `json:"session"`
	Action  string         `json:"action"`
	Args    map[string]any `json:"args,omitempty"`
}

// TreeArgs are the arguments of the get_tree tool.
type TreeArgs struct {
	Session string `json:"session"`
	Root    string `json:"root,omitempty"`
}

// StateResponse wraps the live state of a session.
type StateResponse struct {
	State domain.State `json:"state" jsonschema_description:"Every slice of the live editor state"`
}

// SessionsResponse lists checkpointed sessions.
type SessionsResponse struct {
	Sessions []string `json:"sessions"`
}

// Server exposes the editor sessions of a Pool as MCP tools, so agents can
// drive the same editors the HTTP adapter serves.
type Server struct {
	pool      *easelhttp.Pool
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new MCP Server instance over pool.
func NewServer(pool *easelhttp.Pool, opts ...Option) *Server {
	s := &Server{
		pool:   pool,
		logger: logging.NewNop(),
		mcpServer: server.NewMCPServer("easel-mcp", strings.TrimSpace(easel.Version),
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer exposes the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on port until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

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
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		// The SSE streams stay open until their clients leave.
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
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

func sessionOption() mcp.ToolOption {
	return mcp.WithString("session", mcp.Required(), mcp.Description("Session ID; unknown sessions start from the template"))
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("trigger",
		mcp.WithDescription("Dispatch an action to the session's editor and commit the resulting state."),
		sessionOption(),
		mcp.WithString("action", mcp.Required(), mcp.Description("Action name, e.g. UPDATE_ELEMENT")),
		mcp.WithObject("args", mcp.Description("Action arguments")),
		mcp.WithOutputSchema[easelhttp.ActionResponse](),
	), mcp.NewStructuredToolHandler(s.handleTrigger))

	s.mcpServer.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Restore the state before the last recorded change."),
		sessionOption(),
		mcp.WithOutputSchema[easelhttp.StepResponse](),
	), mcp.NewStructuredToolHandler(s.step("undo", func(ed ports.Editor) bool { return ed.Undo() })))

	s.mcpServer.AddTool(mcp.NewTool("redo",
		mcp.WithDescription("Reapply the last undone change."),
		sessionOption(),
		mcp.WithOutputSchema[easelhttp.StepResponse](),
	), mcp.NewStructuredToolHandler(s.step("redo", func(ed ports.Editor) bool { return ed.Redo() })))

	s.mcpServer.AddTool(mcp.NewTool("get_state",
		mcp.WithDescription("Read the live editor state of a session."),
		sessionOption(),
		mcp.WithOutputSchema[StateResponse](),
	), mcp.NewStructuredToolHandler(s.handleState))

	s.mcpServer.AddTool(mcp.NewTool("get_tree",
		mcp.WithDescription("Resolve the element tree under root, or under the document root when root is omitted."),
		sessionOption(),
		mcp.WithString("root", mcp.Description("Element ID to start from (optional)")),
	), mcp.NewStructuredToolHandler(s.handleTree))

	s.mcpServer.AddTool(mcp.NewTool("history",
		mcp.WithDescription("Summarise the undo/redo stacks of a session."),
		sessionOption(),
		mcp.WithOutputSchema[easelhttp.HistoryResponse](),
	), mcp.NewStructuredToolHandler(s.handleHistory))

	s.mcpServer.AddTool(mcp.NewTool("checkpoint",
		mcp.WithDescription("Persist the session's current state to the session store."),
		sessionOption(),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("session")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := s.pool.Checkpoint(ctx, id); err != nil {
			s.logger.Warn("MCP checkpoint failed", "session_id", id, "err", err)
			return mcp.NewToolResultError(fmt.Sprintf("checkpoint failed: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("session %q checkpointed", id)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List the checkpointed sessions."),
		mcp.WithOutputSchema[SessionsResponse](),
	), mcp.NewStructuredToolHandler(s.handleSessions))
}

func (s *Server) handleTrigger(ctx context.Context, _ mcp.CallToolRequest, args TriggerArgs) (easelhttp.ActionResponse, error) {
	if args.Session == "" {
		return easelhttp.ActionResponse{}, errSessionRequired
	}
	if args.Action == "" {
		return easelhttp.ActionResponse{}, errors.New("action is required")
	}

	var committed domain.State
	diff, err := s.pool.Mutate(ctx, args.Session, func(ctx context.Context, ed ports.Editor) error {
		var err error
		committed, err = ed.Trigger(ctx, domain.NewAction(args.Action, domain.Args(args.Args)))
		return err
	})
	if err != nil {
		s.logger.Warn("MCP trigger rejected", "session_id", args.Session, "action", args.Action, "err", err)
		return easelhttp.ActionResponse{}, err
	}
	return easelhttp.ActionResponse{State: committed, Diff: diff}, nil
}

func (s *Server) step(op string, fn func(ports.Editor) bool) func(context.Context, mcp.CallToolRequest, SessionArgs) (easelhttp.StepResponse, error) {
	return func(ctx context.Context, _ mcp.CallToolRequest, args SessionArgs) (easelhttp.StepResponse, error) {
		if args.Session == "" {
			return easelhttp.StepResponse{}, errSessionRequired
		}
		var applied bool
		diff, err := s.pool.Mutate(ctx, args.Session, func(_ context.Context, ed ports.Editor) error {
			applied = fn(ed)
			return nil
		})
		if err != nil {
			s.logger.Warn("MCP "+op+" failed", "session_id", args.Session, "err", err)
			return easelhttp.StepResponse{}, err
		}
		return easelhttp.StepResponse{Applied: applied, Diff: diff}, nil
	}
}

func (s *Server) handleState(ctx context.Context, _ mcp.CallToolRequest, args SessionArgs) (StateResponse, error) {
	if args.Session == "" {
		return StateResponse{}, errSessionRequired
	}
	var resp StateResponse
	err := s.pool.Do(ctx, args.Session, func(_ context.Context, ed ports.Editor) error {
		resp.State = ed.State()
		return nil
	})
	return resp, err
}

func (s *Server) handleTree(ctx context.Context, _ mcp.CallToolRequest, args TreeArgs) (*domain.ElementTree, error) {
	if args.Session == "" {
		return nil, errSessionRequired
	}
	var tree *domain.ElementTree
	err := s.pool.Do(ctx, args.Session, func(ctx context.Context, ed ports.Editor) error {
		var err error
		tree, err = ed.GetElementTree(ctx, args.Root)
		return err
	})
	return tree, err
}

func (s *Server) handleHistory(ctx context.Context, _ mcp.CallToolRequest, args SessionArgs) (easelhttp.HistoryResponse, error) {
	if args.Session == "" {
		return easelhttp.HistoryResponse{}, errSessionRequired
	}
	var resp easelhttp.HistoryResponse
	err := s.pool.Do(ctx, args.Session, func(_ context.Context, ed ports.Editor) error {
		rec := ed.History()
		resp = easelhttp.HistoryResponse{
			Past:     len(rec.Past),
			Future:   len(rec.Future),
			CanUndo:  len(rec.Past) > 0,
			CanRedo:  len(rec.Future) > 0,
			Batching: rec.IsBatching,
			Disabled: rec.IsDisabled,
		}
		return nil
	})
	return resp, err
}

func (s *Server) handleSessions(ctx context.Context, _ mcp.CallToolRequest, _ struct{}) (SessionsResponse, error) {
	ids, err := s.pool.Sessions(ctx)
	if err != nil {
		return SessionsResponse{}, err
	}
	return SessionsResponse{Sessions: ids}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(SessionsURI, "Checkpointed Sessions",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := s.pool.Sessions(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list sessions: %w", err)
		}
		data, err := json.Marshal(SessionsResponse{Sessions: ids})
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      SessionsURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
