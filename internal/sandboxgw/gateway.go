// Package sandboxgw is the Sandbox Gateway Client: a typed client over the
// external sandbox contract (spec §6). It never manages a local Docker or
// Firecracker pool itself — that runtime lives outside this process — it
// only speaks the gateway's wire protocol, either over HTTP/JSON-RPC to a
// remote gateway or, when configured, directly to a single Firecracker
// microVM's vsock control channel.
package sandboxgw

import (
	"context"
	"errors"

	"github.com/conductorhq/conductor/internal/toolkit"
)

// Gateway is the full operation set a sandbox exposes (spec §6): shell
// process control, a file surface, MCP sub-protocol management, and the
// remote-session URL accessors. Every operation returns the uniform
// toolkit.ToolResult the rest of the executor's tool layer already speaks.
type Gateway interface {
	ExecCommand(ctx context.Context, session, cwd, cmd string) (toolkit.ToolResult, error)
	ViewShell(ctx context.Context, session string) (toolkit.ToolResult, error)
	WaitForProcess(ctx context.Context, session string) (toolkit.ToolResult, error)
	WriteToProcess(ctx context.Context, session, input string) (toolkit.ToolResult, error)
	KillProcess(ctx context.Context, session string) (toolkit.ToolResult, error)

	FileRead(ctx context.Context, path string) (toolkit.ToolResult, error)
	FileWrite(ctx context.Context, path, content string) (toolkit.ToolResult, error)
	FileReplace(ctx context.Context, path, oldText, newText string) (toolkit.ToolResult, error)
	FileSearch(ctx context.Context, path, pattern string) (toolkit.ToolResult, error)
	FileFind(ctx context.Context, root, pattern string) (toolkit.ToolResult, error)
	FileExists(ctx context.Context, path string) (toolkit.ToolResult, error)
	FileDelete(ctx context.Context, path string) (toolkit.ToolResult, error)
	FileList(ctx context.Context, path string) (toolkit.ToolResult, error)
	FileUpload(ctx context.Context, path string, content []byte) (toolkit.ToolResult, error)
	FileDownload(ctx context.Context, path string) ([]byte, error)

	GetStatus(ctx context.Context) (toolkit.ToolResult, error)
	// EnsureStatus polls GetStatus up to 5 times (spec §6) until it reports
	// ready, surfacing the last observed result or the last error.
	EnsureStatus(ctx context.Context) (toolkit.ToolResult, error)

	MCP(ctx context.Context, op MCPOp, args map[string]any) (toolkit.ToolResult, error)

	GetCDPURL(ctx context.Context) (string, error)
	GetVNCURL(ctx context.Context) (string, error)
	GetCodeServerURL(ctx context.Context) (string, error)

	Close() error
}

// MCPOp names one of the sandbox's MCP sub-protocol operations (spec §6).
type MCPOp string

const (
	MCPInstall      MCPOp = "install"
	MCPUninstall    MCPOp = "uninstall"
	MCPList         MCPOp = "list"
	MCPHealth       MCPOp = "health"
	MCPProxy        MCPOp = "proxy"
	MCPCapabilities MCPOp = "capabilities"
	MCPShutdownAll  MCPOp = "shutdown_all"
)

// ErrStatusNotReady is returned by EnsureStatus when the sandbox never
// reports ready within its poll budget.
var ErrStatusNotReady = errors.New("sandboxgw: sandbox did not become ready")

// ensureStatusPolls is the fixed poll count spec §6 names ("polls up to 5
// times").
const ensureStatusPolls = 5

// pollUntilReady calls getStatus up to ensureStatusPolls times, returning as
// soon as one reports Success. Shared by every Gateway implementation so
// EnsureStatus means the same thing regardless of driver.
func pollUntilReady(ctx context.Context, getStatus func(context.Context) (toolkit.ToolResult, error)) (toolkit.ToolResult, error) {
	var last toolkit.ToolResult
	var lastErr error
	for attempt := 0; attempt < ensureStatusPolls; attempt++ {
		if ctx.Err() != nil {
			return toolkit.ToolResult{}, ctx.Err()
		}
		last, lastErr = getStatus(ctx)
		if lastErr == nil && last.Success {
			return last, nil
		}
	}
	if lastErr != nil {
		return toolkit.ToolResult{}, lastErr
	}
	return last, ErrStatusNotReady
}
