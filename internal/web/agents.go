package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/conductorhq/conductor/pkg/models"
)

// createAgentRequest is the POST /agents body. Every field is optional;
// zero values fall back to sensible defaults so a bare `{}` creates a
// usable agent.
type createAgentRequest struct {
	UserID      string         `json:"user_id"`
	Model       string         `json:"model"`
	Provider    string         `json:"provider"`
	Temperature *float64       `json:"temperature"`
	MaxTokens   int            `json:"max_tokens"`
	FlowType    string         `json:"flow_type"`
	Environment map[string]any `json:"environment"`
}

// createAgentResponse is POST /agents' reply (spec §6: "returns
// {agent_id, status}").
type createAgentResponse struct {
	AgentID string             `json:"agent_id"`
	Status  models.AgentStatus `json:"status"`
}

func (h *Handler) createAgent(w http.ResponseWriter, r *http.Request) {
	var req createAgentRequest
	if r.Body != nil && r.ContentLength != 0 {
		if status, err := decodeJSONRequest(w, r, &req); err != nil {
			h.jsonError(w, "invalid request body: "+err.Error(), status)
			return
		}
	}

	temperature := 0.7
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	flowType := req.FlowType
	if flowType == "" {
		flowType = h.config.Flows[0].Name
	}

	now := time.Now()
	agentID := uuid.NewString()
	ac := &models.AgentContext{
		AgentID:  agentID,
		FlowType: flowType,
		Status:   models.AgentStatusCreated,
		Agent: models.Agent{
			ID:              agentID,
			UserID:          req.UserID,
			Model:           req.Model,
			Provider:        req.Provider,
			Temperature:     temperature,
			MaxTokens:       req.MaxTokens,
			Environment:     req.Environment,
			PlannerMemory:   models.Memory{Config: models.DefaultCompressionConfig()},
			ExecutionMemory: models.Memory{Config: models.DefaultCompressionConfig()},
			CreatedAt:       now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.config.ContextRepo.Create(r.Context(), ac); err != nil {
		h.jsonError(w, "create agent: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	h.jsonResponse(w, createAgentResponse{AgentID: agentID, Status: ac.Status})
}

// agentsItem dispatches everything under "/agents/", matching the
// teacher's path-prefix-then-split idiom (internal/web/api_sessions.go)
// rather than per-route wildcard patterns.
func (h *Handler) agentsItem(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/agents/")
	if path == "flows" {
		h.listFlows(w, r)
		return
	}

	parts := strings.SplitN(path, "/", 2)
	agentID := parts[0]
	if agentID == "" {
		h.jsonError(w, "agent id required", http.StatusBadRequest)
		return
	}
	var sub string
	if len(parts) > 1 {
		sub = parts[1]
	}

	switch sub {
	case "":
		h.jsonError(w, "not found", http.StatusNotFound)
	case "send-message":
		h.sendMessage(w, r, agentID)
	case "events":
		h.streamEvents(w, r, agentID)
	case "stats":
		h.agentStats(w, r, agentID)
	case "shell":
		h.shellPassthrough(w, r, agentID)
	case "file":
		h.filePassthrough(w, r, agentID)
	case "list-files":
		h.listFilesPassthrough(w, r, agentID)
	case "file/download":
		h.fileDownloadPassthrough(w, r, agentID)
	default:
		h.jsonError(w, "not found", http.StatusNotFound)
	}
}

func (h *Handler) listFlows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.jsonResponse(w, h.config.Flows)
}

// sendMessageRequest is POST /agents/{id}/send-message's body (spec §6).
type sendMessageRequest struct {
	Message   string   `json:"message"`
	Timestamp *int64   `json:"timestamp"`
	FileIDs   []string `json:"file_ids"`
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request, agentID string) {
	if r.Method != http.MethodPost {
		h.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req sendMessageRequest
	if status, err := decodeJSONRequest(w, r, &req); err != nil {
		h.jsonError(w, "invalid request body: "+err.Error(), status)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		h.jsonError(w, "message is required", http.StatusBadRequest)
		return
	}

	if _, err := h.config.ContextRepo.Get(r.Context(), agentID); err != nil {
		h.jsonError(w, "unknown agent: "+err.Error(), http.StatusNotFound)
		return
	}

	if err := h.config.Runner.Send(r.Context(), agentID, req.Message); err != nil {
		h.jsonError(w, "send message: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	h.jsonResponse(w, map[string]string{"agent_id": agentID, "status": "accepted"})
}

// agentStats answers GET /agents/{id}/stats with the derived RunStats
// supplement (SPEC_FULL §3): "derived from the event stream, never
// authoritative for flow state."
func (h *Handler) agentStats(w http.ResponseWriter, r *http.Request, agentID string) {
	if r.Method != http.MethodGet {
		h.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	events, err := h.config.Events.Replay(r.Context(), agentID, 0)
	if err != nil {
		h.jsonError(w, "load events: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonResponse(w, DeriveRunStats(agentID, events))
}

// DeriveRunStats computes RunStats purely from a replayed event slice,
// exported so cmd/conductor's inspect-agent command can report the same
// numbers outside an HTTP request.
func DeriveRunStats(agentID string, events []models.ConversationEvent) models.RunStats {
	stats := models.RunStats{AgentID: agentID}
	for i, e := range events {
		if i == 0 {
			stats.StartedAt = e.CreatedAt
		}
		stats.FinishedAt = e.CreatedAt

		switch e.Type {
		case models.EventPlanCreated, models.EventPlanUpdated:
			stats.Turns++
		case models.EventStepStarted:
			stats.Iterations++
		case models.EventToolCalled:
			stats.ToolCalls++
		}
	}
	if !stats.StartedAt.IsZero() && !stats.FinishedAt.IsZero() {
		stats.WallTime = stats.FinishedAt.Sub(stats.StartedAt)
	}
	return stats
}
