// Package web implements the HTTP/SSE Surface (spec §6, SPEC_FULL §4.14):
// the JSON API through which callers create agents, send them messages,
// stream their event feed, and reach the sandbox shell/file surface without
// going through an LLM tool call. Grounded on the teacher's internal/web
// package (its Handler/Config shape, path-prefix routing, and
// jsonResponse/jsonError/LoggingMiddleware helpers), trimmed to the much
// narrower route set this system exposes: no dashboard templates, QR
// codes, auth, or channel adapters, since those subsystems are out of
// scope for this spec (SPEC_FULL §9).
package web

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/conductorhq/conductor/internal/broadcaster"
	"github.com/conductorhq/conductor/internal/convrepo"
	"github.com/conductorhq/conductor/internal/ctxrepo"
	"github.com/conductorhq/conductor/internal/sandboxgw"
)

// FlowType is one entry in GET /agents/flows' enumeration.
type FlowType struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Config holds the collaborators Handler needs. Callers (cmd/conductor)
// build these once at startup and share them across every request.
type Config struct {
	// ContextRepo stores AgentContext records (spec §4.10).
	ContextRepo ctxrepo.Repository
	// Events is the durable conversation log, read directly for stats
	// derivation; Broadcaster already holds it as its EventStore.
	Events convrepo.Repository
	// Broadcaster fans out and replays agent events (spec §4.7, §4.8).
	Broadcaster *broadcaster.Broadcaster
	// Gateway is the sandbox the shell/file pass-through routes reach.
	Gateway sandboxgw.Gateway
	// Runner drives each agent's flow.Controller in the background.
	Runner *AgentRunner
	// Flows lists the flow types GET /agents/flows enumerates. Defaults to
	// a single "standard" entry when empty.
	Flows []FlowType
	// Logger receives request logs; defaults to slog.Default().
	Logger *slog.Logger
	// StartedAt is reported by /healthz as process uptime; defaults to
	// time.Now() at NewHandler.
	StartedAt time.Time
}

var errConfigRequired = errors.New("web: config is required")

func errMissingCollaborator(name string) error {
	return fmt.Errorf("web: Config.%s is required", name)
}

// Handler serves every route this package exposes.
type Handler struct {
	config *Config
	mux    *http.ServeMux
}

// NewHandler validates cfg, applies defaults, and wires the route table.
func NewHandler(cfg *Config) (*Handler, error) {
	if cfg == nil {
		return nil, errConfigRequired
	}
	if cfg.ContextRepo == nil {
		return nil, errMissingCollaborator("ContextRepo")
	}
	if cfg.Events == nil {
		return nil, errMissingCollaborator("Events")
	}
	if cfg.Broadcaster == nil {
		return nil, errMissingCollaborator("Broadcaster")
	}
	if cfg.Gateway == nil {
		return nil, errMissingCollaborator("Gateway")
	}
	if cfg.Runner == nil {
		return nil, errMissingCollaborator("Runner")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now()
	}
	if len(cfg.Flows) == 0 {
		cfg.Flows = []FlowType{{Name: "standard", Description: "planner/executor flow controller (spec §4.6)"}}
	}

	h := &Handler{config: cfg, mux: http.NewServeMux()}
	h.mux.HandleFunc("/agents", h.agentsCollection)
	h.mux.HandleFunc("/agents/", h.agentsItem)
	h.mux.HandleFunc("/healthz", h.healthz)
	return h, nil
}

// ServeHTTP makes Handler an http.Handler; every request passes through the
// logging middleware before reaching the route table.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	LoggingMiddleware(h.config.Logger)(h.mux).ServeHTTP(w, r)
}

// agentsCollection handles requests to exactly "/agents".
func (h *Handler) agentsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createAgent(w, r)
	default:
		h.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
