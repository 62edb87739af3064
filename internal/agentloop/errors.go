package agentloop

import "errors"

// Sentinel errors for loop termination, grounded on
// internal/agent/errors.go's package-level error vars.
var (
	// ErrIterationLimit indicates the loop reached its maximum iteration
	// count without the assistant producing a final message.
	ErrIterationLimit = errors.New("agentloop: iteration limit exceeded")

	// ErrNoProvider indicates the loop was constructed without an LLM provider.
	ErrNoProvider = errors.New("agentloop: no provider configured")
)

// ErrorType categorizes a run-terminating failure for uniform event
// reporting, grounded on internal/agent/errors.go's ToolErrorType taxonomy
// (renamed to the spec's InvalidInput/ToolNotFound/LLMError/IterationLimit
// taxonomy, §7).
type ErrorType string

const (
	ErrorTypeInvalidInput   ErrorType = "invalid_input"
	ErrorTypeToolNotFound   ErrorType = "tool_not_found"
	ErrorTypeToolFailed     ErrorType = "tool_execution_failed"
	ErrorTypeLLM            ErrorType = "llm_error"
	ErrorTypeIterationLimit ErrorType = "iteration_limit"
)

// RunError wraps a terminating failure with its taxonomy tag, grounded on
// internal/agent/errors.go's ToolError/AgentError pattern.
type RunError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *RunError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RunError) Unwrap() error { return e.Cause }
