package toolcat

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/conductorhq/conductor/internal/sandboxgw"
	"github.com/conductorhq/conductor/internal/toolkit"
)

var errCDPUnavailable = errors.New("cdp not available in test")

type fakeGateway struct {
	sandboxgw.Gateway
	lastOp   string
	lastArgs map[string]any
	result   toolkit.ToolResult
	err      error
}

func (f *fakeGateway) ExecCommand(ctx context.Context, session, cwd, cmd string) (toolkit.ToolResult, error) {
	f.lastOp = "exec_command"
	f.lastArgs = map[string]any{"session": session, "cwd": cwd, "cmd": cmd}
	return f.result, f.err
}

func (f *fakeGateway) ViewShell(ctx context.Context, session string) (toolkit.ToolResult, error) {
	f.lastOp = "view_shell"
	f.lastArgs = map[string]any{"session": session}
	return f.result, f.err
}

func (f *fakeGateway) KillProcess(ctx context.Context, session string) (toolkit.ToolResult, error) {
	f.lastOp = "kill_process"
	return f.result, f.err
}

// GetCDPURL always fails so browser-tool tests exercise the
// connection-error path instead of requiring a real playwright/CDP
// endpoint.
func (f *fakeGateway) GetCDPURL(ctx context.Context) (string, error) {
	return "", errCDPUnavailable
}

func TestShellToolExecCommandDispatches(t *testing.T) {
	gw := &fakeGateway{result: toolkit.ToolResult{Success: true, Message: "ok"}}
	tool := NewShellTool(gw)

	args, _ := json.Marshal(map[string]string{"session": "s1", "cwd": "/tmp", "cmd": "ls"})
	result, err := tool.Invoke(context.Background(), "exec_command", args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("unexpected result: %+v", result)
	}
	if gw.lastOp != "exec_command" || gw.lastArgs["cmd"] != "ls" {
		t.Fatalf("unexpected gateway call: %s %+v", gw.lastOp, gw.lastArgs)
	}
}

func TestShellToolUnknownFunction(t *testing.T) {
	tool := NewShellTool(&fakeGateway{})
	if _, err := tool.Invoke(context.Background(), "nope", json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected error for unknown function")
	}
}

func TestShellToolFunctionsCoverSpecOperations(t *testing.T) {
	tool := NewShellTool(&fakeGateway{})
	names := map[string]bool{}
	for _, fn := range tool.Functions() {
		names[fn.Name] = true
	}
	for _, want := range []string{"exec_command", "view_shell", "wait_for_process", "write_to_process", "kill_process"} {
		if !names[want] {
			t.Fatalf("expected function %s among %v", want, names)
		}
	}
}
