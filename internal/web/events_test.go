package web

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/conductorhq/conductor/pkg/models"
)

func TestStreamEventsReplaysThenClosesOnDone(t *testing.T) {
	h, deps := newTestHandler(t)
	agentID := mustCreateAgent(t, h)

	ctx := context.Background()
	if _, err := deps.broadcaster.Publish(ctx, agentID, models.ConversationEvent{
		Type:    models.EventMessage,
		Payload: models.AgentEvent{Type: models.EventMessage, Message: &models.MessagePayload{Content: "hi"}},
	}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if _, err := deps.broadcaster.Publish(ctx, agentID, models.ConversationEvent{
		Type: models.EventDone,
	}); err != nil {
		t.Fatalf("publish done: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/agents/"+agentID+"/events", nil)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.ServeHTTP(w, req)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream to close after done event")
	}

	body := w.Body.String()
	if !strings.Contains(body, "event: message") {
		t.Fatalf("expected a message event in body, got: %s", body)
	}
	if !strings.Contains(body, "event: done") {
		t.Fatalf("expected a done event in body, got: %s", body)
	}

	scanner := bufio.NewScanner(strings.NewReader(body))
	var sawDataLine bool
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), "data: ") {
			sawDataLine = true
		}
	}
	if !sawDataLine {
		t.Fatal("expected at least one data line in the SSE body")
	}
}

func TestStreamEventsRejectsBadFromSequence(t *testing.T) {
	h, _ := newTestHandler(t)
	agentID := mustCreateAgent(t, h)

	req := httptest.NewRequest(http.MethodGet, "/agents/"+agentID+"/events?from_sequence=not-a-number", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
