package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
)

// streamEvents serves GET /agents/{id}/events?from_sequence=N as an SSE
// stream: each line pair is "event: <variant-tag>" / "data: <JSON
// payload>" (spec §6's wire format), backed by the replay-then-live
// broadcaster.Stream. The "done" variant terminates the stream, same as
// the underlying channel closing.
func (h *Handler) streamEvents(w http.ResponseWriter, r *http.Request, agentID string) {
	if r.Method != http.MethodGet {
		h.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.jsonError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	fromSequence, err := parseFromSequence(r)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	stream, err := h.config.Broadcaster.Stream(r.Context(), agentID, fromSequence)
	if err != nil {
		h.jsonError(w, "open event stream: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for se := range stream {
		if se.KeepAlive {
			if _, err := w.Write([]byte(": keep-alive\n\n")); err != nil {
				return
			}
			flusher.Flush()
			continue
		}

		payload, err := json.Marshal(se.Event.Payload)
		if err != nil {
			h.config.Logger.Error("encode sse event", "agent_id", agentID, "error", err)
			continue
		}
		if _, err := w.Write([]byte("event: " + string(se.Event.Type) + "\n")); err != nil {
			return
		}
		if _, err := w.Write(append(append([]byte("data: "), payload...), '\n', '\n')); err != nil {
			return
		}
		flusher.Flush()
	}
}

func parseFromSequence(r *http.Request) (uint64, error) {
	raw := r.URL.Query().Get("from_sequence")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errInvalidFromSequence
	}
	return n, nil
}

var errInvalidFromSequence = errors.New("invalid query parameter: from_sequence")
