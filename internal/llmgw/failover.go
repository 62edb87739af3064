package llmgw

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// FailoverConfig controls when the FailoverProvider advances past a
// provider, grounded on internal/agent/failover.go's circuit-breaker shape.
type FailoverConfig struct {
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
}

// DefaultFailoverConfig mirrors the teacher's defaults.
func DefaultFailoverConfig() FailoverConfig {
	return FailoverConfig{CircuitBreakerThreshold: 3, CircuitBreakerTimeout: 30 * time.Second}
}

type providerState struct {
	failures      int
	circuitOpen   bool
	circuitOpenAt time.Time
}

// FailoverProvider wraps an ordered list of providers and advances to the
// next on a transient error, tripping a per-provider circuit breaker after
// repeated failures (spec SPEC_FULL §4.11 — failover is a transport-level
// concern, the gateway contract itself never imposes a timeout).
type FailoverProvider struct {
	providers []Provider
	config    FailoverConfig
	mu        sync.Mutex
	states    map[string]*providerState
}

// NewFailoverProvider builds a FailoverProvider trying providers in order.
func NewFailoverProvider(config FailoverConfig, providers ...Provider) *FailoverProvider {
	return &FailoverProvider{
		providers: providers,
		config:    config,
		states:    make(map[string]*providerState),
	}
}

func (f *FailoverProvider) Name() string { return "failover" }

func (f *FailoverProvider) SupportsTools() bool {
	for _, p := range f.providers {
		if !p.SupportsTools() {
			return false
		}
	}
	return len(f.providers) > 0
}

func (f *FailoverProvider) Ask(ctx context.Context, req AskRequest) (AssistantMessage, error) {
	var lastErr error
	for _, p := range f.providers {
		if !f.available(p.Name()) {
			continue
		}
		msg, err := p.Ask(ctx, req)
		if err == nil {
			f.recordSuccess(p.Name())
			return msg, nil
		}
		lastErr = err
		f.recordFailure(p.Name())
	}
	if lastErr == nil {
		return AssistantMessage{}, fmt.Errorf("llmgw: no available providers")
	}
	return AssistantMessage{}, fmt.Errorf("llmgw: all providers failed, last error: %w", lastErr)
}

func (f *FailoverProvider) available(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.states[name]
	if !ok || !st.circuitOpen {
		return true
	}
	if time.Since(st.circuitOpenAt) > f.config.CircuitBreakerTimeout {
		st.circuitOpen = false
		st.failures = 0
		return true
	}
	return false
}

func (f *FailoverProvider) recordSuccess(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.states[name]; ok {
		st.failures = 0
		st.circuitOpen = false
	}
}

func (f *FailoverProvider) recordFailure(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.states[name]
	if !ok {
		st = &providerState{}
		f.states[name] = st
	}
	st.failures++
	if st.failures >= f.config.CircuitBreakerThreshold {
		st.circuitOpen = true
		st.circuitOpenAt = time.Now()
	}
}
