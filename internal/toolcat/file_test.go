package toolcat

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/conductorhq/conductor/internal/toolkit"
)

type fakeFileGateway struct {
	fakeGateway
	downloaded []byte
	uploadedTo string
	uploaded   []byte
}

func (f *fakeFileGateway) FileRead(ctx context.Context, path string) (toolkit.ToolResult, error) {
	return toolkit.ToolResult{Success: true, Message: "contents of " + path}, nil
}

func (f *fakeFileGateway) FileUpload(ctx context.Context, path string, content []byte) (toolkit.ToolResult, error) {
	f.uploadedTo = path
	f.uploaded = content
	return toolkit.ToolResult{Success: true}, nil
}

func (f *fakeFileGateway) FileDownload(ctx context.Context, path string) ([]byte, error) {
	return f.downloaded, nil
}

func TestFileToolReadReturnsGatewayResult(t *testing.T) {
	gw := &fakeFileGateway{}
	tool := NewFileTool(gw)

	args, _ := json.Marshal(map[string]string{"path": "/a.txt"})
	result, err := tool.Invoke(context.Background(), "file_read", args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Message != "contents of /a.txt" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestFileToolUploadDecodesBase64(t *testing.T) {
	gw := &fakeFileGateway{}
	tool := NewFileTool(gw)

	args, _ := json.Marshal(map[string]string{
		"path":           "/b.txt",
		"content_base64": base64.StdEncoding.EncodeToString([]byte("hello")),
	})
	if _, err := tool.Invoke(context.Background(), "file_upload", args); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gw.uploadedTo != "/b.txt" || string(gw.uploaded) != "hello" {
		t.Fatalf("unexpected upload: %s %q", gw.uploadedTo, gw.uploaded)
	}
}

func TestFileToolUploadRejectsInvalidBase64(t *testing.T) {
	gw := &fakeFileGateway{}
	tool := NewFileTool(gw)

	args, _ := json.Marshal(map[string]string{"path": "/c.txt", "content_base64": "not-base64!!"})
	result, err := tool.Invoke(context.Background(), "file_upload", args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure for invalid base64")
	}
}

func TestFileToolDownloadEncodesBase64(t *testing.T) {
	gw := &fakeFileGateway{downloaded: []byte("payload")}
	tool := NewFileTool(gw)

	result, err := tool.Invoke(context.Background(), "file_download", json.RawMessage(`{"path":"/d.txt"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := result.Data["content_base64"].(string)
	decoded, _ := base64.StdEncoding.DecodeString(got)
	if string(decoded) != "payload" {
		t.Fatalf("unexpected downloaded content: %q", decoded)
	}
}
