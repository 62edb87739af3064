//go:build linux

package sandboxgw

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	fc "github.com/firecracker-microvm/firecracker-go-sdk"
	"github.com/google/uuid"

	"github.com/conductorhq/conductor/internal/toolkit"
)

// FirecrackerConfig boots a single microVM and speaks its vsock control
// channel directly, instead of going through a remote HTTP gateway. This is
// the reference implementation spec §4.13 asks for: it gives
// firecracker-go-sdk a genuine home without reimplementing nexus's
// pool/snapshot/overlay manager, which is explicitly out of this client's
// scope (spec §1 non-goal: sandbox runtime pool management).
type FirecrackerConfig struct {
	KernelPath string
	RootFSPath string
	VCPUs      int64
	MemSizeMB  int64
	VsockCID   uint32
	SocketPath string
}

// DefaultFirecrackerConfig mirrors internal/tools/sandbox/firecracker's
// DefaultVMConfig defaults.
func DefaultFirecrackerConfig() FirecrackerConfig {
	return FirecrackerConfig{
		VCPUs:     1,
		MemSizeMB: 512,
		VsockCID:  3,
	}
}

type firecrackerGateway struct {
	cfg     FirecrackerConfig
	workDir string
	machine *fc.Machine
	vsock   *vsockConn

	mu sync.Mutex
}

// NewFirecrackerGateway launches a microVM under cfg and returns a Gateway
// that drives its guest agent over vsock, grounded on
// internal/tools/sandbox/firecracker's MicroVM.Start and VsockConnection.
func NewFirecrackerGateway(ctx context.Context, cfg FirecrackerConfig) (Gateway, error) {
	if cfg.KernelPath == "" || cfg.RootFSPath == "" {
		return nil, fmt.Errorf("sandboxgw: kernel and rootfs paths are required")
	}
	if cfg.VCPUs <= 0 {
		cfg.VCPUs = 1
	}
	if cfg.MemSizeMB <= 0 {
		cfg.MemSizeMB = 512
	}
	if cfg.VsockCID == 0 {
		cfg.VsockCID = 3
	}

	workDir := filepath.Join(os.TempDir(), "conductor-firecracker", uuid.NewString())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("sandboxgw: create work dir: %w", err)
	}
	if cfg.SocketPath == "" {
		cfg.SocketPath = filepath.Join(workDir, "api.sock")
	}

	bin, err := exec.LookPath("firecracker")
	if err != nil {
		os.RemoveAll(workDir)
		return nil, fmt.Errorf("sandboxgw: firecracker binary not found: %w", err)
	}

	machineCfg := fc.Config{
		SocketPath:      cfg.SocketPath,
		KernelImagePath: cfg.KernelPath,
		MachineCfg: fc.MachineCfg{
			VcpuCount:  toPtr(cfg.VCPUs),
			MemSizeMib: toPtr(cfg.MemSizeMB),
		},
		Drives: []fc.Drive{
			{
				DriveID:      toStrPtr("rootfs"),
				PathOnHost:   toStrPtr(cfg.RootFSPath),
				IsRootDevice: toBoolPtr(true),
				IsReadOnly:   toBoolPtr(false),
			},
		},
		VsockDevices: []fc.VsockDevice{
			{Path: fmt.Sprintf("root%d.vsock", cfg.VsockCID), CID: cfg.VsockCID},
		},
	}

	cmd := fc.VMCommandBuilder{}.WithBin(bin).WithSocketPath(cfg.SocketPath).Build(ctx)
	machine, err := fc.NewMachine(ctx, machineCfg, fc.WithProcessRunner(cmd))
	if err != nil {
		os.RemoveAll(workDir)
		return nil, fmt.Errorf("sandboxgw: create machine: %w", err)
	}
	if err := machine.Start(ctx); err != nil {
		os.RemoveAll(workDir)
		return nil, fmt.Errorf("sandboxgw: start machine: %w", err)
	}

	vsock, err := dialVsock(cfg.SocketPath, cfg.VsockCID, guestAgentPort)
	if err != nil {
		_ = machine.StopVMM()
		os.RemoveAll(workDir)
		return nil, fmt.Errorf("sandboxgw: dial vsock: %w", err)
	}

	return &firecrackerGateway{cfg: cfg, workDir: workDir, machine: machine, vsock: vsock}, nil
}

func (g *firecrackerGateway) request(op string, args map[string]any) (toolkit.ToolResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	payload, err := json.Marshal(guestRequest{Op: op, Args: args})
	if err != nil {
		return toolkit.ToolResult{}, fmt.Errorf("sandboxgw: encode guest request: %w", err)
	}
	resp, err := g.vsock.roundTrip(payload)
	if err != nil {
		return toolkit.ToolResult{}, fmt.Errorf("sandboxgw: %s: %w", op, err)
	}
	var result toolkit.ToolResult
	if err := json.Unmarshal(resp, &result); err != nil {
		return toolkit.ToolResult{}, fmt.Errorf("sandboxgw: decode guest response: %w", err)
	}
	return result, nil
}

func (g *firecrackerGateway) ExecCommand(ctx context.Context, session, cwd, cmd string) (toolkit.ToolResult, error) {
	return g.request("exec_command", map[string]any{"session": session, "cwd": cwd, "cmd": cmd})
}

func (g *firecrackerGateway) ViewShell(ctx context.Context, session string) (toolkit.ToolResult, error) {
	return g.request("view_shell", map[string]any{"session": session})
}

func (g *firecrackerGateway) WaitForProcess(ctx context.Context, session string) (toolkit.ToolResult, error) {
	return g.request("wait_for_process", map[string]any{"session": session})
}

func (g *firecrackerGateway) WriteToProcess(ctx context.Context, session, input string) (toolkit.ToolResult, error) {
	return g.request("write_to_process", map[string]any{"session": session, "input": input})
}

func (g *firecrackerGateway) KillProcess(ctx context.Context, session string) (toolkit.ToolResult, error) {
	return g.request("kill_process", map[string]any{"session": session})
}

func (g *firecrackerGateway) FileRead(ctx context.Context, path string) (toolkit.ToolResult, error) {
	return g.request("file_read", map[string]any{"path": path})
}

func (g *firecrackerGateway) FileWrite(ctx context.Context, path, content string) (toolkit.ToolResult, error) {
	return g.request("file_write", map[string]any{"path": path, "content": content})
}

func (g *firecrackerGateway) FileReplace(ctx context.Context, path, oldText, newText string) (toolkit.ToolResult, error) {
	return g.request("file_replace", map[string]any{"path": path, "old_text": oldText, "new_text": newText})
}

func (g *firecrackerGateway) FileSearch(ctx context.Context, path, pattern string) (toolkit.ToolResult, error) {
	return g.request("file_search", map[string]any{"path": path, "pattern": pattern})
}

func (g *firecrackerGateway) FileFind(ctx context.Context, root, pattern string) (toolkit.ToolResult, error) {
	return g.request("file_find", map[string]any{"root": root, "pattern": pattern})
}

func (g *firecrackerGateway) FileExists(ctx context.Context, path string) (toolkit.ToolResult, error) {
	return g.request("file_exists", map[string]any{"path": path})
}

func (g *firecrackerGateway) FileDelete(ctx context.Context, path string) (toolkit.ToolResult, error) {
	return g.request("file_delete", map[string]any{"path": path})
}

func (g *firecrackerGateway) FileList(ctx context.Context, path string) (toolkit.ToolResult, error) {
	return g.request("file_list", map[string]any{"path": path})
}

func (g *firecrackerGateway) FileUpload(ctx context.Context, path string, content []byte) (toolkit.ToolResult, error) {
	return g.request("file_upload", map[string]any{"path": path, "content": content})
}

func (g *firecrackerGateway) FileDownload(ctx context.Context, path string) ([]byte, error) {
	result, err := g.request("file_download", map[string]any{"path": path})
	if err != nil {
		return nil, err
	}
	raw, _ := result.Data["content"].(string)
	return []byte(raw), nil
}

func (g *firecrackerGateway) GetStatus(ctx context.Context) (toolkit.ToolResult, error) {
	return g.request("get_status", nil)
}

func (g *firecrackerGateway) EnsureStatus(ctx context.Context) (toolkit.ToolResult, error) {
	return pollUntilReady(ctx, g.GetStatus)
}

func (g *firecrackerGateway) MCP(ctx context.Context, op MCPOp, args map[string]any) (toolkit.ToolResult, error) {
	payload := map[string]any{"op": string(op)}
	for k, v := range args {
		payload[k] = v
	}
	return g.request("mcp", payload)
}

func (g *firecrackerGateway) GetCDPURL(ctx context.Context) (string, error) {
	return g.urlOp("get_cdp_url")
}

func (g *firecrackerGateway) GetVNCURL(ctx context.Context) (string, error) {
	return g.urlOp("get_vnc_url")
}

func (g *firecrackerGateway) GetCodeServerURL(ctx context.Context) (string, error) {
	return g.urlOp("get_code_server_url")
}

func (g *firecrackerGateway) urlOp(operation string) (string, error) {
	result, err := g.request(operation, nil)
	if err != nil {
		return "", err
	}
	urlStr, _ := result.Data["url"].(string)
	return urlStr, nil
}

func (g *firecrackerGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.vsock != nil {
		g.vsock.close()
	}
	var stopErr error
	if g.machine != nil {
		stopErr = g.machine.StopVMM()
	}
	os.RemoveAll(g.workDir)
	return stopErr
}

func toPtr(v int64) *int64       { return &v }
func toStrPtr(s string) *string  { return &s }
func toBoolPtr(b bool) *bool     { return &b }
