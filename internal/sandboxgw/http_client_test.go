package sandboxgw

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/conductorhq/conductor/internal/toolkit"
)

func TestNewHTTPGatewayRejectsEmptyBaseURL(t *testing.T) {
	if _, err := NewHTTPGateway(HTTPConfig{}); err == nil {
		t.Fatal("expected error for empty base url")
	}
}

func TestHTTPGatewayExecCommandPostsExpectedBody(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(toolkit.ToolResult{Success: true, Message: "ran it"})
	}))
	defer server.Close()

	gw, err := NewHTTPGateway(HTTPConfig{BaseURL: server.URL, AuthToken: "secret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := gw.ExecCommand(context.Background(), "s1", "/workspace", "ls -la")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || result.Message != "ran it" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if gotPath != "/exec_command" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotBody["session"] != "s1" || gotBody["cwd"] != "/workspace" || gotBody["cmd"] != "ls -la" {
		t.Fatalf("unexpected request body: %+v", gotBody)
	}
}

func TestHTTPGatewaySurfacesErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer server.Close()

	gw, _ := NewHTTPGateway(HTTPConfig{BaseURL: server.URL})
	if _, err := gw.GetStatus(context.Background()); err == nil {
		t.Fatal("expected error for 5xx response")
	}
}

func TestEnsureStatusPollsUntilSuccess(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Header().Set("Content-Type", "application/json")
		if attempts < 3 {
			_ = json.NewEncoder(w).Encode(toolkit.ToolResult{Success: false})
			return
		}
		_ = json.NewEncoder(w).Encode(toolkit.ToolResult{Success: true, Message: "ready"})
	}))
	defer server.Close()

	gw, _ := NewHTTPGateway(HTTPConfig{BaseURL: server.URL})
	result, err := gw.EnsureStatus(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 polling attempts, got %d", attempts)
	}
	if result.Message != "ready" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestEnsureStatusGivesUpAfterFivePolls(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(toolkit.ToolResult{Success: false})
	}))
	defer server.Close()

	gw, _ := NewHTTPGateway(HTTPConfig{BaseURL: server.URL})
	if _, err := gw.EnsureStatus(context.Background()); err != ErrStatusNotReady {
		t.Fatalf("expected ErrStatusNotReady, got %v", err)
	}
	if attempts != ensureStatusPolls {
		t.Fatalf("expected exactly %d attempts, got %d", ensureStatusPolls, attempts)
	}
}

func TestFileDownloadDecodesContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(toolkit.ToolResult{
			Success: true,
			Data:    map[string]any{"content": "hello world"},
		})
	}))
	defer server.Close()

	gw, _ := NewHTTPGateway(HTTPConfig{BaseURL: server.URL})
	content, err := gw.FileDownload(context.Background(), "/tmp/x.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(content) != "hello world" {
		t.Fatalf("unexpected content: %q", content)
	}
}
