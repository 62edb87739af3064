package toolcat

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/conductorhq/conductor/internal/sandboxgw"
	"github.com/conductorhq/conductor/internal/toolkit"
)

// FileTool exposes the sandbox's file surface (spec §6): file_read,
// file_write, file_replace, file_search, file_find, file_exists,
// file_delete, file_list, file_upload, file_download. Binary payloads cross
// the tool-call boundary as base64 since function arguments/results are
// JSON.
type FileTool struct {
	gateway sandboxgw.Gateway
}

// NewFileTool builds a FileTool over an already-constructed gateway.
func NewFileTool(gateway sandboxgw.Gateway) *FileTool {
	return &FileTool{gateway: gateway}
}

func (t *FileTool) Name() string { return "file" }

func (t *FileTool) Functions() []toolkit.Function {
	pathOnly := json.RawMessage(`{
		"type": "object",
		"properties": {"path": {"type": "string"}},
		"required": ["path"]
	}`)
	return []toolkit.Function{
		{Name: "file_read", Description: "Read a file's contents from the sandbox.", SchemaJSON: pathOnly},
		{
			Name:        "file_write",
			Description: "Write (overwriting) a file's contents in the sandbox.",
			SchemaJSON: json.RawMessage(`{
				"type": "object",
				"properties": {"path": {"type": "string"}, "content": {"type": "string"}},
				"required": ["path", "content"]
			}`),
		},
		{
			Name:        "file_replace",
			Description: "Replace the first occurrence of old_text with new_text in a file.",
			SchemaJSON: json.RawMessage(`{
				"type": "object",
				"properties": {
					"path": {"type": "string"},
					"old_text": {"type": "string"},
					"new_text": {"type": "string"}
				},
				"required": ["path", "old_text", "new_text"]
			}`),
		},
		{
			Name:        "file_search",
			Description: "Search a file's contents for a pattern.",
			SchemaJSON: json.RawMessage(`{
				"type": "object",
				"properties": {"path": {"type": "string"}, "pattern": {"type": "string"}},
				"required": ["path", "pattern"]
			}`),
		},
		{
			Name:        "file_find",
			Description: "Find files under root whose name matches pattern.",
			SchemaJSON: json.RawMessage(`{
				"type": "object",
				"properties": {"root": {"type": "string"}, "pattern": {"type": "string"}},
				"required": ["root", "pattern"]
			}`),
		},
		{Name: "file_exists", Description: "Check whether a path exists in the sandbox.", SchemaJSON: pathOnly},
		{Name: "file_delete", Description: "Delete a file or directory in the sandbox.", SchemaJSON: pathOnly},
		{Name: "file_list", Description: "List the entries in a sandbox directory.", SchemaJSON: pathOnly},
		{
			Name:        "file_upload",
			Description: "Upload base64-encoded content to a path in the sandbox.",
			SchemaJSON: json.RawMessage(`{
				"type": "object",
				"properties": {"path": {"type": "string"}, "content_base64": {"type": "string"}},
				"required": ["path", "content_base64"]
			}`),
		},
		{Name: "file_download", Description: "Download a sandbox file's contents, base64-encoded.", SchemaJSON: pathOnly},
	}
}

func (t *FileTool) Invoke(ctx context.Context, functionName string, arguments json.RawMessage) (toolkit.ToolResult, error) {
	var args struct {
		Path          string `json:"path"`
		Root          string `json:"root"`
		Content       string `json:"content"`
		OldText       string `json:"old_text"`
		NewText       string `json:"new_text"`
		Pattern       string `json:"pattern"`
		ContentBase64 string `json:"content_base64"`
	}
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &args); err != nil {
			return toolkit.ToolResult{}, fmt.Errorf("toolcat: decode %s arguments: %w", functionName, err)
		}
	}

	switch functionName {
	case "file_read":
		return t.gateway.FileRead(ctx, args.Path)
	case "file_write":
		return t.gateway.FileWrite(ctx, args.Path, args.Content)
	case "file_replace":
		return t.gateway.FileReplace(ctx, args.Path, args.OldText, args.NewText)
	case "file_search":
		return t.gateway.FileSearch(ctx, args.Path, args.Pattern)
	case "file_find":
		return t.gateway.FileFind(ctx, args.Root, args.Pattern)
	case "file_exists":
		return t.gateway.FileExists(ctx, args.Path)
	case "file_delete":
		return t.gateway.FileDelete(ctx, args.Path)
	case "file_list":
		return t.gateway.FileList(ctx, args.Path)
	case "file_upload":
		raw, err := base64.StdEncoding.DecodeString(args.ContentBase64)
		if err != nil {
			return toolkit.ToolResult{Success: false, Message: "invalid base64 content"}, nil
		}
		return t.gateway.FileUpload(ctx, args.Path, raw)
	case "file_download":
		raw, err := t.gateway.FileDownload(ctx, args.Path)
		if err != nil {
			return toolkit.ToolResult{}, err
		}
		return toolkit.ToolResult{
			Success: true,
			Data:    map[string]any{"content_base64": base64.StdEncoding.EncodeToString(raw)},
		}, nil
	default:
		return toolkit.ToolResult{}, &toolkit.ErrToolNotFound{FunctionName: functionName}
	}
}
