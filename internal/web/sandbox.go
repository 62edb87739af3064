package web

import (
	"encoding/base64"
	"errors"
	"net/http"
)

var errUnknownFileOp = errors.New("unknown file op")

// shellPassthroughRequest mirrors toolcat.ShellTool's exec_command
// arguments, since this route exists to reach the sandbox directly without
// going through an LLM tool call (spec §6: "pass-throughs to sandbox").
type shellPassthroughRequest struct {
	Session string `json:"session"`
	Cwd     string `json:"cwd"`
	Cmd     string `json:"cmd"`
}

func (h *Handler) shellPassthrough(w http.ResponseWriter, r *http.Request, agentID string) {
	if r.Method != http.MethodPost {
		h.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req shellPassthroughRequest
	if status, err := decodeJSONRequest(w, r, &req); err != nil {
		h.jsonError(w, "invalid request body: "+err.Error(), status)
		return
	}
	result, err := h.config.Gateway.ExecCommand(r.Context(), req.Session, req.Cwd, req.Cmd)
	if err != nil {
		h.jsonError(w, "exec_command: "+err.Error(), http.StatusBadGateway)
		return
	}
	h.jsonResponse(w, result)
}

// filePassthroughRequest covers file_read/file_write/file_replace/
// file_delete/file_exists/file_search via an Op discriminator, since all
// five share the same "path" shape and this route is a thin pass-through.
type filePassthroughRequest struct {
	Op      string `json:"op"`
	Path    string `json:"path"`
	Content string `json:"content"`
	OldText string `json:"old_text"`
	NewText string `json:"new_text"`
	Pattern string `json:"pattern"`
}

func (h *Handler) filePassthrough(w http.ResponseWriter, r *http.Request, agentID string) {
	if r.Method != http.MethodPost {
		h.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req filePassthroughRequest
	if status, err := decodeJSONRequest(w, r, &req); err != nil {
		h.jsonError(w, "invalid request body: "+err.Error(), status)
		return
	}

	gw := h.config.Gateway
	var (
		result any
		err    error
	)
	switch req.Op {
	case "read":
		result, err = gw.FileRead(r.Context(), req.Path)
	case "write":
		result, err = gw.FileWrite(r.Context(), req.Path, req.Content)
	case "replace":
		result, err = gw.FileReplace(r.Context(), req.Path, req.OldText, req.NewText)
	case "search":
		result, err = gw.FileSearch(r.Context(), req.Path, req.Pattern)
	case "exists":
		result, err = gw.FileExists(r.Context(), req.Path)
	case "delete":
		result, err = gw.FileDelete(r.Context(), req.Path)
	default:
		h.jsonError(w, errUnknownFileOp.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		h.jsonError(w, "file op: "+err.Error(), http.StatusBadGateway)
		return
	}
	h.jsonResponse(w, result)
}

type listFilesRequest struct {
	Path    string `json:"path"`
	Root    string `json:"root"`
	Pattern string `json:"pattern"`
}

func (h *Handler) listFilesPassthrough(w http.ResponseWriter, r *http.Request, agentID string) {
	if r.Method != http.MethodPost {
		h.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req listFilesRequest
	if status, err := decodeJSONRequest(w, r, &req); err != nil {
		h.jsonError(w, "invalid request body: "+err.Error(), status)
		return
	}

	var (
		result any
		err    error
	)
	if req.Pattern != "" {
		result, err = h.config.Gateway.FileFind(r.Context(), req.Root, req.Pattern)
	} else {
		result, err = h.config.Gateway.FileList(r.Context(), req.Path)
	}
	if err != nil {
		h.jsonError(w, "list files: "+err.Error(), http.StatusBadGateway)
		return
	}
	h.jsonResponse(w, result)
}

type fileDownloadRequest struct {
	Path string `json:"path"`
}

type fileDownloadResponse struct {
	Path          string `json:"path"`
	ContentBase64 string `json:"content_base64"`
}

func (h *Handler) fileDownloadPassthrough(w http.ResponseWriter, r *http.Request, agentID string) {
	if r.Method != http.MethodPost {
		h.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req fileDownloadRequest
	if status, err := decodeJSONRequest(w, r, &req); err != nil {
		h.jsonError(w, "invalid request body: "+err.Error(), status)
		return
	}
	content, err := h.config.Gateway.FileDownload(r.Context(), req.Path)
	if err != nil {
		h.jsonError(w, "file_download: "+err.Error(), http.StatusBadGateway)
		return
	}
	h.jsonResponse(w, fileDownloadResponse{
		Path:          req.Path,
		ContentBase64: base64.StdEncoding.EncodeToString(content),
	})
}
