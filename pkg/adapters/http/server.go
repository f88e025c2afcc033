package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Tree is the read side of an extension tree served over HTTP.
type Tree interface {
	Snapshot(path string) (domain.NodeSnapshot, error)
	Errors() []domain.ReportedError
	Modules() map[string]bool
	NodesForCondition(name string) []domain.NodeSnapshot
}

// Server serves a read-only view of an extension tree.
type Server struct {
	Tree    Tree
	Streams *StreamManager
	Version string
	logger  *slog.Logger
	metrics http.Handler
}

// Option configures the Server.
type Option func(*Server)

// WithMetricsHandler mounts h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithVersion sets the version reported by GET /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.Version = v
	}
}

// NewServer creates a server for tree.
func NewServer(tree Tree, opts ...Option) *Server {
	s := &Server{
		Tree:    tree,
		Streams: NewStreamManager(),
		Version: "dev",
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams.logger = s.logger
	return s
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/tree", s.GetTree)
	r.Get("/tree/*", s.GetTree)
	r.Get("/errors", s.GetErrors)
	r.Get("/modules", s.GetModules)
	r.Get("/conditions/{name}", s.GetCondition)
	r.Get("/events", s.SubscribeEvents)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return enableCORS(r)
}

// Hooks returns lifecycle hooks broadcasting every merged contribution to
// the subscribers of GET /events.
func (s *Server) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnContributionLoaded: func(_ context.Context, e *domain.ContributionEvent) {
			msg := ChangeEvent{ModuleID: e.ModuleID, Path: e.Path, Added: e.Added}
			if e.Err != nil {
				msg.Error = e.Err.Error()
			}
			if data, err := json.Marshal(msg); err == nil {
				s.Streams.Broadcast(string(data))
			}
		},
	}
}

// ChangeEvent is the payload of a GET /events message.
type ChangeEvent struct {
	ModuleID string `json:"module"`
	Path     string `json:"path"`
	Added    int    `json:"added"`
	Error    string `json:"error,omitempty"`
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "arbor-http",
		"version": strings.TrimSpace(s.Version),
	})
}

// GetTree handles GET /tree and GET /tree/{path}.
func (s *Server) GetTree(w http.ResponseWriter, r *http.Request) {
	path := ""
	if rest := chi.URLParam(r, "*"); rest != "" {
		path = domain.PathSeparator + strings.Trim(rest, domain.PathSeparator)
	}

	snap, err := s.Tree.Snapshot(path)
	if errors.Is(err, domain.ErrExtensionPointNotDefined) {
		http.Error(w, fmt.Sprintf("No node at path '%s'", path), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Snapshot error: %v", err), http.StatusInternalServerError)
		s.logger.Error("snapshot failed", "path", path, "err", err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// GetErrors handles GET /errors. ?warnings=false hides warnings.
func (s *Server) GetErrors(w http.ResponseWriter, r *http.Request) {
	hideWarnings := r.URL.Query().Get("warnings") == "false"
	out := make([]domain.ReportedError, 0)
	for _, e := range s.Tree.Errors() {
		if hideWarnings && e.Warning {
			continue
		}
		out = append(out, e)
	}
	s.writeJSON(w, http.StatusOK, out)
}

// GetModules handles GET /modules.
func (s *Server) GetModules(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Tree.Modules())
}

// GetCondition handles GET /conditions/{name}: the paths of the nodes whose
// visibility depends on the named predicate.
func (s *Server) GetCondition(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	paths := make([]string, 0)
	for _, n := range s.Tree.NodesForCondition(name) {
		paths = append(paths, n.Path)
	}
	s.writeJSON(w, http.StatusOK, paths)
}

// StreamManager handles active SSE connections.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan<- string]struct{}
	logger      *slog.Logger
}

// NewStreamManager creates an empty stream manager.
func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[chan<- string]struct{}),
		logger:      slog.Default(),
	}
}

// Subscribe registers a new subscriber. The returned function unsubscribes it.
func (sm *StreamManager) Subscribe() (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	sm.subscribers[ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if _, ok := sm.subscribers[ch]; ok {
			delete(sm.subscribers, ch)
			close(ch)
		}
	}
}

// Broadcast sends msg to every subscriber, dropping it for slow clients.
func (sm *StreamManager) Broadcast(msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers {
		select {
		case ch <- msg:
		default:
			sm.logger.Warn("SSE: client buffer full, dropping message")
		}
	}
}

// SubscribeEvents handles GET /events (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe()
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: contribution\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
