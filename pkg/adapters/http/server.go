package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/easel"
	"github.com/aretw0/easel/internal/logging"
	"github.com/aretw0/easel/pkg/actions"
	"github.com/aretw0/easel/pkg/domain"
	"github.com/aretw0/easel/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes a pool of session editors over HTTP.
type Server struct {
	pool     *Pool
	streams  *StreamManager
	logger   *slog.Logger
	gatherer prometheus.Gatherer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics mounts /metrics serving the given gatherer.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// ActionRequest is the body of POST /sessions/{id}/actions.
type ActionRequest struct {
	Name string      `json:"name"`
	Args domain.Args `json:"args,omitempty"`
}

// ActionResponse reports the state a cycle committed and what it changed.
type ActionResponse struct {
	State domain.State      `json:"state"`
	Diff  *domain.StateDiff `json:"diff,omitempty"`
}

// HistoryResponse summarises the undo/redo bookkeeping of a session.
type HistoryResponse struct {
	Past     int  `json:"past"`
	Future   int  `json:"future"`
	CanUndo  bool `json:"can_undo"`
	CanRedo  bool `json:"can_redo"`
	Batching bool `json:"batching"`
	Disabled bool `json:"disabled"`
}

// StepResponse is returned by undo and redo.
type StepResponse struct {
	Applied bool              `json:"applied"`
	Diff    *domain.StateDiff `json:"diff,omitempty"`
}

// NewHandler creates the HTTP handler for the pool.
func NewHandler(pool *Pool, opts ...Option) http.Handler {
	s := &Server{
		pool:    pool,
		streams: NewStreamManager(),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	r.Get("/info", s.info)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/sessions", s.listSessions)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Post("/actions", s.trigger)
		r.Post("/undo", s.step(func(ed ports.Editor) bool { return ed.Undo() }))
		r.Post("/redo", s.step(func(ed ports.Editor) bool { return ed.Redo() }))
		r.Post("/batch/start", s.toggle(func(ed ports.Editor) { ed.StartBatch() }))
		r.Post("/batch/end", s.toggle(func(ed ports.Editor) { ed.EndBatch() }))
		r.Post("/history/enable", s.toggle(func(ed ports.Editor) { ed.EnableHistory() }))
		r.Post("/history/disable", s.toggle(func(ed ports.Editor) { ed.DisableHistory() }))
		r.Post("/checkpoint", s.checkpoint)
		r.Get("/state", s.state)
		r.Get("/tree", s.tree)
		r.Get("/history", s.history)
		r.Get("/events", s.subscribe)
	})

	return enableCORS(r)
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

func (s *Server) trigger(w http.ResponseWriter, r *http.Request) {
	var body ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		s.logger.Warn("trigger: invalid request body", "err", err)
		return
	}
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, errors.New("action name is required"))
		return
	}

	id := chi.URLParam(r, "id")
	var committed domain.State
	diff, err := s.pool.Mutate(r.Context(), id, func(ctx context.Context, ed ports.Editor) error {
		var err error
		committed, err = ed.Trigger(ctx, domain.NewAction(body.Name, body.Args))
		return err
	})
	if err != nil {
		s.fail(w, "trigger", id, err)
		return
	}
	s.streams.Broadcast(id, diff)
	writeJSON(w, http.StatusOK, ActionResponse{State: committed, Diff: diff})
}

func (s *Server) step(fn func(ports.Editor) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var applied bool
		diff, err := s.pool.Mutate(r.Context(), id, func(_ context.Context, ed ports.Editor) error {
			applied = fn(ed)
			return nil
		})
		if err != nil {
			s.fail(w, "history step", id, err)
			return
		}
		s.streams.Broadcast(id, diff)
		writeJSON(w, http.StatusOK, StepResponse{Applied: applied, Diff: diff})
	}
}

func (s *Server) toggle(fn func(ports.Editor)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		err := s.pool.Do(r.Context(), id, func(_ context.Context, ed ports.Editor) error {
			fn(ed)
			return nil
		})
		if err != nil {
			s.fail(w, "history toggle", id, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) checkpoint(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.pool.Checkpoint(r.Context(), id); err != nil {
		s.fail(w, "checkpoint", id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) state(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var state domain.State
	err := s.pool.Do(r.Context(), id, func(_ context.Context, ed ports.Editor) error {
		state = ed.State()
		return nil
	})
	if err != nil {
		s.fail(w, "state", id, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) tree(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var tree *domain.ElementTree
	err := s.pool.Do(r.Context(), id, func(ctx context.Context, ed ports.Editor) error {
		var err error
		tree, err = ed.GetElementTree(ctx, r.URL.Query().Get("root"))
		return err
	})
	if err != nil {
		s.fail(w, "tree", id, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var resp HistoryResponse
	err := s.pool.Do(r.Context(), id, func(_ context.Context, ed ports.Editor) error {
		rec := ed.History()
		resp = HistoryResponse{
			Past:     len(rec.Past),
			Future:   len(rec.Future),
			CanUndo:  len(rec.Past) > 0,
			CanRedo:  len(rec.Future) > 0,
			Batching: rec.IsBatching,
			Disabled: rec.IsDisabled,
		}
		return nil
	})
	if err != nil {
		s.fail(w, "history", id, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.pool.Sessions(r.Context())
	if err != nil {
		s.fail(w, "list sessions", "", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) info(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "easel-http",
		"version": strings.TrimSpace(easel.Version),
	})
}

func (s *Server) fail(w http.ResponseWriter, op, sessionID string, err error) {
	code := StatusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", "session_id", sessionID, "err", err)
	} else {
		s.logger.Warn(op+" rejected", "session_id", sessionID, "err", err)
	}
	writeError(w, code, err)
}

// StatusFor maps editor errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnknownAction),
		errors.Is(err, domain.ErrElementNotFound),
		errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateHandler):
		return http.StatusConflict
	case errors.Is(err, domain.ErrMaxNestingExceeded),
		errors.Is(err, domain.ErrCyclicTree),
		errors.Is(err, actions.ErrInvalidMove):
		return http.StatusUnprocessableEntity
	case errors.Is(err, actions.ErrInvalidArgs):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
