package sandboxgw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/conductorhq/conductor/internal/toolkit"
)

// HTTPConfig configures the default remote-gateway driver: one HTTP call
// per operation against a sandbox service that already exists outside this
// process (spec §1's non-goal: "does not implement sandbox runtime pool
// management itself").
type HTTPConfig struct {
	BaseURL    string
	AuthToken  string
	HTTPClient *http.Client
}

type httpGateway struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPGateway builds the remote-gateway driver: every operation becomes
// one JSON POST to <base-url>/<operation>, grounded on daytonaClient's
// http.Client wiring and bearer-token header in
// internal/tools/sandbox/daytona.go, generalized away from the Daytona SDK
// since this gateway's wire contract is the conductor-side one (spec §6),
// not Daytona's.
func NewHTTPGateway(cfg HTTPConfig) (Gateway, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("sandboxgw: base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("sandboxgw: invalid base url: %w", err)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &httpGateway{baseURL: base, token: cfg.AuthToken, client: client}, nil
}

func (g *httpGateway) call(ctx context.Context, operation string, payload map[string]any) (toolkit.ToolResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return toolkit.ToolResult{}, fmt.Errorf("sandboxgw: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/"+operation, bytes.NewReader(body))
	if err != nil {
		return toolkit.ToolResult{}, fmt.Errorf("sandboxgw: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return toolkit.ToolResult{}, fmt.Errorf("sandboxgw: %s: %w", operation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return toolkit.ToolResult{}, fmt.Errorf("sandboxgw: read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return toolkit.ToolResult{}, fmt.Errorf("sandboxgw: %s: status %s: %s", operation, resp.Status, string(raw))
	}

	var result toolkit.ToolResult
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			return toolkit.ToolResult{}, fmt.Errorf("sandboxgw: decode response: %w", err)
		}
	}
	return result, nil
}

func (g *httpGateway) ExecCommand(ctx context.Context, session, cwd, cmd string) (toolkit.ToolResult, error) {
	return g.call(ctx, "exec_command", map[string]any{"session": session, "cwd": cwd, "cmd": cmd})
}

func (g *httpGateway) ViewShell(ctx context.Context, session string) (toolkit.ToolResult, error) {
	return g.call(ctx, "view_shell", map[string]any{"session": session})
}

func (g *httpGateway) WaitForProcess(ctx context.Context, session string) (toolkit.ToolResult, error) {
	return g.call(ctx, "wait_for_process", map[string]any{"session": session})
}

func (g *httpGateway) WriteToProcess(ctx context.Context, session, input string) (toolkit.ToolResult, error) {
	return g.call(ctx, "write_to_process", map[string]any{"session": session, "input": input})
}

func (g *httpGateway) KillProcess(ctx context.Context, session string) (toolkit.ToolResult, error) {
	return g.call(ctx, "kill_process", map[string]any{"session": session})
}

func (g *httpGateway) FileRead(ctx context.Context, path string) (toolkit.ToolResult, error) {
	return g.call(ctx, "file_read", map[string]any{"path": path})
}

func (g *httpGateway) FileWrite(ctx context.Context, path, content string) (toolkit.ToolResult, error) {
	return g.call(ctx, "file_write", map[string]any{"path": path, "content": content})
}

func (g *httpGateway) FileReplace(ctx context.Context, path, oldText, newText string) (toolkit.ToolResult, error) {
	return g.call(ctx, "file_replace", map[string]any{"path": path, "old_text": oldText, "new_text": newText})
}

func (g *httpGateway) FileSearch(ctx context.Context, path, pattern string) (toolkit.ToolResult, error) {
	return g.call(ctx, "file_search", map[string]any{"path": path, "pattern": pattern})
}

func (g *httpGateway) FileFind(ctx context.Context, root, pattern string) (toolkit.ToolResult, error) {
	return g.call(ctx, "file_find", map[string]any{"root": root, "pattern": pattern})
}

func (g *httpGateway) FileExists(ctx context.Context, path string) (toolkit.ToolResult, error) {
	return g.call(ctx, "file_exists", map[string]any{"path": path})
}

func (g *httpGateway) FileDelete(ctx context.Context, path string) (toolkit.ToolResult, error) {
	return g.call(ctx, "file_delete", map[string]any{"path": path})
}

func (g *httpGateway) FileList(ctx context.Context, path string) (toolkit.ToolResult, error) {
	return g.call(ctx, "file_list", map[string]any{"path": path})
}

func (g *httpGateway) FileUpload(ctx context.Context, path string, content []byte) (toolkit.ToolResult, error) {
	return g.call(ctx, "file_upload", map[string]any{"path": path, "content": content})
}

func (g *httpGateway) FileDownload(ctx context.Context, path string) ([]byte, error) {
	result, err := g.call(ctx, "file_download", map[string]any{"path": path})
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("sandboxgw: file_download: %s", result.Message)
	}
	raw, _ := result.Data["content"].(string)
	return []byte(raw), nil
}

func (g *httpGateway) GetStatus(ctx context.Context) (toolkit.ToolResult, error) {
	return g.call(ctx, "get_status", nil)
}

func (g *httpGateway) EnsureStatus(ctx context.Context) (toolkit.ToolResult, error) {
	return pollUntilReady(ctx, g.GetStatus)
}

func (g *httpGateway) MCP(ctx context.Context, op MCPOp, args map[string]any) (toolkit.ToolResult, error) {
	payload := map[string]any{"op": string(op)}
	for k, v := range args {
		payload[k] = v
	}
	return g.call(ctx, "mcp", payload)
}

func (g *httpGateway) GetCDPURL(ctx context.Context) (string, error) {
	return g.urlOp(ctx, "get_cdp_url")
}

func (g *httpGateway) GetVNCURL(ctx context.Context) (string, error) {
	return g.urlOp(ctx, "get_vnc_url")
}

func (g *httpGateway) GetCodeServerURL(ctx context.Context) (string, error) {
	return g.urlOp(ctx, "get_code_server_url")
}

func (g *httpGateway) urlOp(ctx context.Context, operation string) (string, error) {
	result, err := g.call(ctx, operation, nil)
	if err != nil {
		return "", err
	}
	if !result.Success {
		return "", fmt.Errorf("sandboxgw: %s: %s", operation, result.Message)
	}
	urlStr, _ := result.Data["url"].(string)
	return urlStr, nil
}

func (g *httpGateway) Close() error { return nil }
