// Package observability provides monitoring and debugging capabilities for
// the conductor service through metrics, structured logging, distributed
// tracing, and an in-process diagnostic event feed.
//
// # Overview
//
// The observability package implements the three pillars of observability:
//
//  1. Metrics - Quantitative measurements using Prometheus
//  2. Logging - Structured logs with sensitive data redaction
//  3. Tracing - Distributed request tracing with OpenTelemetry
//
// plus a lightweight diagnostic event bus used for operator-facing
// dashboards that don't need Prometheus's storage model.
//
// # Architecture
//
// The package is designed to be:
//   - Low-overhead: Minimal performance impact on production systems
//   - Type-safe: Strongly-typed APIs reduce configuration errors
//   - Production-ready: Built-in security (redaction) and reliability features
//   - Standards-based: Uses Prometheus, OpenTelemetry, and slog
//
// # Metrics
//
// Metrics are implemented using Prometheus client libraries and track:
//   - LLM API request latency, token usage, and estimated cost
//   - Tool execution performance
//   - Memory compression fold events
//   - Broadcaster subscriber queue depth
//   - Error rates by component and type
//   - HTTP request/response metrics
//   - Database query performance
//
// Example usage:
//
//	metrics := observability.NewMetrics()
//
//	// Track LLM requests
//	start := time.Now()
//	// ... make LLM request ...
//	metrics.RecordLLMRequest("anthropic", "claude-3-opus", "success",
//	    time.Since(start).Seconds(), inputTokens, outputTokens)
//
//	// Track tool execution
//	start = time.Now()
//	// ... execute tool ...
//	metrics.RecordToolExecution("shell", "success", time.Since(start).Seconds())
//
// # Logging
//
// Logging is built on Go's slog package with enhancements for:
//   - Automatic request ID correlation from context
//   - Sensitive data redaction (API keys, passwords, tokens)
//   - JSON output for production, text for development
//   - Configurable log levels
//
// Example usage:
//
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    AddSource: true,
//	})
//
//	// Add context IDs for correlation
//	ctx := observability.AddRequestID(ctx, requestID)
//	ctx = observability.AddSessionID(ctx, agentID)
//
//	// Structured logging with automatic context correlation
//	logger.Info(ctx, "tool invoked",
//	    "tool_name", "shell",
//	    "agent_id", agentID,
//	)
//
//	// Error logging with automatic redaction
//	logger.Error(ctx, "llm request failed",
//	    "error", err,
//	    "provider", "anthropic",
//	    "api_key", apiKey, // Automatically redacted
//	)
//
// # Tracing
//
// Distributed tracing uses OpenTelemetry to track requests across components:
//   - End-to-end request visualization
//   - Performance bottleneck identification
//   - Service dependency mapping
//   - Error correlation across services
//
// Example usage:
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName:    "conductor",
//	    ServiceVersion: "1.0.0",
//	    Environment:    "production",
//	    Endpoint:       "localhost:4317", // OTLP collector
//	    SamplingRate:   0.1,              // Sample 10% of traces
//	})
//	defer shutdown(context.Background())
//
//	// Trace LLM requests
//	ctx, llmSpan := tracer.TraceLLMRequest(ctx, "anthropic", "claude-3-opus")
//	defer llmSpan.End()
//	tracer.SetAttributes(llmSpan, "prompt_tokens", 100, "completion_tokens", 500)
//
//	// Trace tool execution
//	ctx, toolSpan := tracer.TraceToolExecution(ctx, "shell")
//	defer toolSpan.End()
//	if err != nil {
//	    tracer.RecordError(toolSpan, err)
//	}
//
// # Context Propagation
//
// All three components integrate with Go's context for automatic correlation:
//
//	// Add IDs to context
//	ctx = observability.AddRequestID(ctx, "req-123")
//	ctx = observability.AddSessionID(ctx, agentID)
//	ctx = observability.AddProvider(ctx, "anthropic")
//
//	// IDs automatically appear in logs
//	logger.Info(ctx, "run started") // Includes request_id, session_id, etc.
//
//	// Spans inherit context
//	ctx, span := tracer.Start(ctx, "operation")
//	// Trace context propagates to child spans
//
// # Diagnostic Event Feed
//
// DiagnosticEmitter is a lower-overhead companion to the Prometheus metrics,
// intended for a live operator dashboard rather than long-term storage. It
// is disabled by default (SetDiagnosticsEnabled(false)) so emit() is a no-op
// unless a dashboard process has subscribed:
//
//	unsubscribe := observability.OnDiagnosticEvent(func(e observability.DiagnosticEventPayload) {
//	    // forward e to a websocket or SSE stream
//	})
//	defer unsubscribe()
//
//	observability.EmitToolInvocation(&observability.ToolInvocationEvent{
//	    AgentID:      agentID,
//	    FunctionName: "shell",
//	    Outcome:      "success",
//	    DurationMs:   120,
//	})
//
// # Integration Example
//
// Complete example integrating metrics, tracing, and logging around a
// planner's LLM call:
//
//	func (p *Planner) ask(ctx context.Context, req llmgw.AskRequest) (*llmgw.AssistantMessage, error) {
//	    start := time.Now()
//	    ctx, span := p.tracer.TraceLLMRequest(ctx, p.provider.Name(), req.Model)
//	    defer span.End()
//
//	    resp, err := p.provider.Ask(ctx, req)
//	    duration := time.Since(start).Seconds()
//
//	    if err != nil {
//	        p.metrics.RecordError("llm", "ask_failed")
//	        p.tracer.RecordError(span, err)
//	        p.logger.Error(ctx, "llm request failed", "error", err, "provider", p.provider.Name())
//	        p.metrics.RecordLLMRequest(p.provider.Name(), req.Model, "error", duration, 0, 0)
//	        return nil, err
//	    }
//
//	    p.metrics.RecordLLMRequest(p.provider.Name(), req.Model, "success",
//	        duration, resp.Usage.InputTokens, resp.Usage.OutputTokens)
//	    p.logger.Info(ctx, "llm request completed",
//	        "duration_ms", duration*1000,
//	        "tokens", resp.Usage.OutputTokens)
//
//	    return resp, nil
//	}
//
// # Security Considerations
//
// The logging component automatically redacts:
//   - API keys (Anthropic, OpenAI, generic)
//   - Passwords and secrets
//   - JWT tokens
//   - Bearer tokens
//   - Custom patterns via configuration
//
// Sensitive fields in maps are also redacted:
//   - password, passwd, pwd
//   - secret, api_key, apikey
//   - token, auth, authorization
//   - private_key, privatekey
//
// # Performance
//
// The observability system is designed for minimal overhead:
//   - Metrics use lock-free counters where possible
//   - Logging with slog is highly efficient
//   - Tracing supports sampling to reduce overhead
//   - Context propagation is zero-allocation in most cases
//
// Typical overhead:
//   - Metrics: <1% CPU, ~10KB memory per metric
//   - Logging: ~1-5μs per log call
//   - Tracing: ~2-10μs per span (when sampled)
//
// # Configuration
//
// All components support configuration via structs:
//
//	// Metrics - no configuration needed, auto-registered
//	metrics := observability.NewMetrics()
//
//	// Logging - configurable output, level, format
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:          os.Getenv("LOG_LEVEL"),
//	    Format:         "json",
//	    AddSource:      true,
//	    RedactPatterns: []string{`custom-secret-\d+`},
//	})
//
//	// Tracing - configurable sampling, endpoint, attributes
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName:    "conductor",
//	    ServiceVersion: version,
//	    Environment:    env,
//	    Endpoint:       os.Getenv("OTEL_ENDPOINT"),
//	    SamplingRate:   0.1,
//	    Attributes: map[string]string{
//	        "deployment.region": region,
//	        "deployment.cluster": cluster,
//	    },
//	})
//	defer shutdown(context.Background())
//
// # Testing
//
// All components provide testable interfaces:
//   - Metrics can be verified using prometheus/testutil
//   - Logging can write to bytes.Buffer for assertions
//   - Tracing works with no-op exporters in tests
//
// # Best Practices
//
//  1. Always propagate context to enable correlation
//  2. Use defer for span.End() to ensure spans are closed
//  3. Record errors on both metrics and traces
//  4. Use structured logging with key-value pairs
//  5. Set appropriate sampling rates for high-traffic systems
//  6. Add relevant attributes to spans for debugging
//  7. Use typed metric labels (avoid high-cardinality values)
//  8. Call shutdown() on tracer during graceful shutdown
//
// # Monitoring Dashboard
//
// The metrics exposed can be used to build dashboards:
//
//	# LLM request latency (95th percentile)
//	histogram_quantile(0.95, rate(conductor_llm_request_duration_seconds_bucket[5m]))
//
//	# Error rate
//	rate(conductor_errors_total[5m])
//
//	# Broadcaster queue depth
//	conductor_broadcaster_queue_depth
//
//	# Tool execution time
//	rate(conductor_tool_execution_duration_seconds_sum[5m]) /
//	rate(conductor_tool_execution_duration_seconds_count[5m])
//
// # Alerting
//
// Recommended alerts based on metrics:
//   - High error rate: conductor_errors_total > threshold
//   - High LLM latency: p95 latency > 10s
//   - Queue buildup: conductor_broadcaster_queue_depth growing unbounded
//
// # Further Reading
//
//   - Prometheus best practices: https://prometheus.io/docs/practices/naming/
//   - OpenTelemetry specification: https://opentelemetry.io/docs/specs/otel/
//   - slog documentation: https://pkg.go.dev/log/slog
package observability
