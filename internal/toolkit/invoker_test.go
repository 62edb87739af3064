package toolkit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/conductorhq/conductor/internal/observability"
)

type fakeTool struct {
	name      string
	fn        string
	failTimes int
	calls     int
	result    ToolResult
}

func (f *fakeTool) Name() string { return f.name }
func (f *fakeTool) Functions() []Function {
	return []Function{{Name: f.fn, Description: "test"}}
}
func (f *fakeTool) Invoke(ctx context.Context, functionName string, arguments json.RawMessage) (ToolResult, error) {
	f.calls++
	if f.calls <= f.failTimes {
		return ToolResult{}, errors.New("transient")
	}
	return f.result, nil
}

func TestInvokerResolvesAndInvokes(t *testing.T) {
	reg := NewRegistry()
	tool := &fakeTool{name: "file", fn: "file_read", result: ToolResult{Success: true, Message: "ok"}}
	reg.Register(tool)
	inv := NewInvoker(reg, DefaultInvokerConfig())

	res, err := inv.Invoke(context.Background(), "file_read", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success || res.Message != "ok" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestInvokerUnknownFunction(t *testing.T) {
	reg := NewRegistry()
	inv := NewInvoker(reg, DefaultInvokerConfig())
	_, err := inv.Invoke(context.Background(), "nope", nil)
	var notFound *ErrToolNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrToolNotFound, got %v", err)
	}
}

func TestInvokerRetriesOnError(t *testing.T) {
	reg := NewRegistry()
	tool := &fakeTool{name: "shell", fn: "exec_command", failTimes: 2, result: ToolResult{Success: true}}
	reg.Register(tool)
	cfg := DefaultInvokerConfig()
	cfg.MaxRetries = 3
	cfg.RetryInterval = 0
	inv := NewInvoker(reg, cfg)

	res, err := inv.Invoke(context.Background(), "exec_command", nil)
	if err != nil {
		t.Fatalf("unexpected error after retries: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success after retries, got %+v", res)
	}
	if tool.calls != 3 {
		t.Fatalf("expected 3 calls (2 failures + 1 success), got %d", tool.calls)
	}
}

func TestInvokerTruncatesOversizedFields(t *testing.T) {
	reg := NewRegistry()
	tool := &fakeTool{name: "file", fn: "file_read", result: ToolResult{
		Success: true,
		Data:    map[string]any{"content": strings.Repeat("x", 10000)},
	}}
	reg.Register(tool)
	cfg := DefaultInvokerConfig()
	cfg.FieldSizeCap = 100
	cfg.TotalByteBudget = 1000
	inv := NewInvoker(reg, cfg)

	res, err := inv.Invoke(context.Background(), "file_read", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	content := res.Data["content"].(string)
	if !strings.Contains(content, "truncated") {
		t.Fatalf("expected truncation marker, got len=%d", len(content))
	}
}

func TestInvokerWithMetricsRecordsToolExecution(t *testing.T) {
	reg := NewRegistry()
	tool := &fakeTool{name: "file", fn: "file_read", result: ToolResult{Success: true}}
	reg.Register(tool)
	metrics := observability.NewMetrics()
	inv := NewInvoker(reg, DefaultInvokerConfig()).WithMetrics(metrics)

	if _, err := inv.Invoke(context.Background(), "file_read", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count := testutil.CollectAndCount(metrics.ToolExecutionCounter); count < 1 {
		t.Fatalf("expected at least one tool execution sample, got %d", count)
	}
}

func TestInvokerWithoutMetricsStillInvokes(t *testing.T) {
	reg := NewRegistry()
	tool := &fakeTool{name: "file", fn: "file_read", result: ToolResult{Success: true}}
	reg.Register(tool)
	inv := NewInvoker(reg, DefaultInvokerConfig())

	if _, err := inv.Invoke(context.Background(), "file_read", nil); err != nil {
		t.Fatalf("unexpected error with no metrics attached: %v", err)
	}
}

func TestIsSentinel(t *testing.T) {
	if !IsSentinel(SentinelDone) || !IsSentinel(SentinelRequestClarification) {
		t.Fatalf("expected both sentinel names to report true")
	}
	if IsSentinel("file_read") {
		t.Fatalf("expected ordinary function name to report false")
	}
}
