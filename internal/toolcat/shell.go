// Package toolcat wires the executor's concrete tool catalogue (spec
// §4.12) against the Sandbox Gateway Client: shell, file, browser, and an
// optional pluggable web search tool.
package toolcat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/conductorhq/conductor/internal/sandboxgw"
	"github.com/conductorhq/conductor/internal/toolkit"
)

// ShellTool exposes the sandbox's process-control surface (spec §6):
// exec_command, view_shell, wait_for_process, write_to_process,
// kill_process.
type ShellTool struct {
	gateway sandboxgw.Gateway
}

// NewShellTool builds a ShellTool over an already-constructed gateway.
func NewShellTool(gateway sandboxgw.Gateway) *ShellTool {
	return &ShellTool{gateway: gateway}
}

func (t *ShellTool) Name() string { return "shell" }

func (t *ShellTool) Functions() []toolkit.Function {
	return []toolkit.Function{
		{
			Name:        "exec_command",
			Description: "Run a shell command in the sandbox, returning its session id and initial output.",
			SchemaJSON: json.RawMessage(`{
				"type": "object",
				"properties": {
					"session": {"type": "string", "description": "Session id to run under; a new one is created if omitted."},
					"cwd": {"type": "string", "description": "Working directory for the command."},
					"cmd": {"type": "string", "description": "The shell command to run."}
				},
				"required": ["cmd"]
			}`),
		},
		{
			Name:        "view_shell",
			Description: "View the current output of a running or completed shell session.",
			SchemaJSON: json.RawMessage(`{
				"type": "object",
				"properties": {"session": {"type": "string"}},
				"required": ["session"]
			}`),
		},
		{
			Name:        "wait_for_process",
			Description: "Block until the process in a shell session exits, then return its final output.",
			SchemaJSON: json.RawMessage(`{
				"type": "object",
				"properties": {"session": {"type": "string"}},
				"required": ["session"]
			}`),
		},
		{
			Name:        "write_to_process",
			Description: "Write input to a running process's stdin.",
			SchemaJSON: json.RawMessage(`{
				"type": "object",
				"properties": {
					"session": {"type": "string"},
					"input": {"type": "string"}
				},
				"required": ["session", "input"]
			}`),
		},
		{
			Name:        "kill_process",
			Description: "Terminate the process running in a shell session.",
			SchemaJSON: json.RawMessage(`{
				"type": "object",
				"properties": {"session": {"type": "string"}},
				"required": ["session"]
			}`),
		},
	}
}

func (t *ShellTool) Invoke(ctx context.Context, functionName string, arguments json.RawMessage) (toolkit.ToolResult, error) {
	var args struct {
		Session string `json:"session"`
		Cwd     string `json:"cwd"`
		Cmd     string `json:"cmd"`
		Input   string `json:"input"`
	}
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &args); err != nil {
			return toolkit.ToolResult{}, fmt.Errorf("toolcat: decode %s arguments: %w", functionName, err)
		}
	}

	switch functionName {
	case "exec_command":
		return t.gateway.ExecCommand(ctx, args.Session, args.Cwd, args.Cmd)
	case "view_shell":
		return t.gateway.ViewShell(ctx, args.Session)
	case "wait_for_process":
		return t.gateway.WaitForProcess(ctx, args.Session)
	case "write_to_process":
		return t.gateway.WriteToProcess(ctx, args.Session, args.Input)
	case "kill_process":
		return t.gateway.KillProcess(ctx, args.Session)
	default:
		return toolkit.ToolResult{}, &toolkit.ErrToolNotFound{FunctionName: functionName}
	}
}
