package config

import (
	"context"

	"github.com/conductorhq/conductor/internal/convrepo"
	"github.com/conductorhq/conductor/internal/ctxrepo"
	"github.com/conductorhq/conductor/internal/llmgw"
	"github.com/conductorhq/conductor/internal/llmgw/providers"
	"github.com/conductorhq/conductor/internal/sandboxgw"
)

// ContextRepoConfig converts DatabaseConfig into ctxrepo.PostgresConfig,
// since that struct carries no yaml tags of its own (it is built
// in-process, not decoded directly).
func (c DatabaseConfig) ContextRepoConfig() ctxrepo.PostgresConfig {
	return ctxrepo.PostgresConfig{
		Host: c.Host, Port: c.Port, User: c.User, Password: c.Password,
		Database: c.Database, SSLMode: c.SSLMode,
		MaxOpenConns: c.MaxOpenConns, MaxIdleConns: c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime, ConnectTimeout: c.ConnectTimeout,
	}
}

// EventsRepoConfig converts DatabaseConfig into convrepo.PostgresConfig.
func (c DatabaseConfig) EventsRepoConfig() convrepo.PostgresConfig {
	return convrepo.PostgresConfig{
		Host: c.Host, Port: c.Port, User: c.User, Password: c.Password,
		Database: c.Database, SSLMode: c.SSLMode,
		MaxOpenConns: c.MaxOpenConns, MaxIdleConns: c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime, ConnectTimeout: c.ConnectTimeout,
	}
}

// GatewayConfig converts SandboxConfig into sandboxgw.Config.
func (c SandboxConfig) GatewayConfig() sandboxgw.Config {
	return sandboxgw.Config{
		Driver: sandboxgw.Driver(c.Driver),
		HTTP: sandboxgw.HTTPConfig{
			BaseURL:   c.HTTP.BaseURL,
			AuthToken: c.HTTP.AuthToken,
		},
		Firecracker: sandboxgw.FirecrackerConfig{
			KernelPath: c.Firecracker.KernelPath,
			RootFSPath: c.Firecracker.RootFSPath,
			VCPUs:      c.Firecracker.VCPUs,
			MemSizeMB:  c.Firecracker.MemSizeMB,
			VsockCID:   c.Firecracker.VsockCID,
			SocketPath: c.Firecracker.SocketPath,
		},
	}
}

// BuildProvider constructs the llm.default_provider backend, wrapping it
// in a FailoverProvider when llm.failover.chain names more than one
// provider, mirroring the teacher's agent.LLMProvider failover wiring
// (internal/agent/failover.go) at the llmgw layer instead.
func (c LLMConfig) BuildProvider(ctx context.Context) (llmgw.Provider, error) {
	build := func(name string) (llmgw.Provider, error) {
		switch name {
		case "anthropic":
			return providers.NewAnthropicProvider(providers.AnthropicConfig{
				APIKey: c.Anthropic.APIKey, BaseURL: c.Anthropic.BaseURL,
				MaxRetries: c.Anthropic.MaxRetries, RetryDelay: c.Anthropic.RetryDelay,
				DefaultModel: firstNonEmpty(c.Anthropic.DefaultModel, c.DefaultModel),
			})
		case "openai":
			return providers.NewOpenAIProvider(c.OpenAI.APIKey, firstNonEmpty(c.OpenAI.DefaultModel, c.DefaultModel)), nil
		case "bedrock":
			return providers.NewBedrockProvider(ctx, providers.BedrockConfig{
				Region: c.Bedrock.Region, DefaultModel: firstNonEmpty(c.Bedrock.DefaultModel, c.DefaultModel),
			})
		case "google":
			return providers.NewGoogleProvider(ctx, providers.GoogleConfig{
				APIKey: c.Google.APIKey, DefaultModel: firstNonEmpty(c.Google.DefaultModel, c.DefaultModel),
			})
		default:
			return nil, unknownProviderError(name)
		}
	}

	if len(c.Failover.Chain) == 0 {
		return build(c.DefaultProvider)
	}

	chain := make([]llmgw.Provider, 0, len(c.Failover.Chain))
	for _, name := range c.Failover.Chain {
		p, err := build(name)
		if err != nil {
			return nil, err
		}
		chain = append(chain, p)
	}
	failoverCfg := llmgw.FailoverConfig{
		CircuitBreakerThreshold: c.Failover.CircuitBreakerThreshold,
		CircuitBreakerTimeout:   c.Failover.CircuitBreakerTimeout,
	}
	return llmgw.NewFailoverProvider(failoverCfg, chain...), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

type unknownProviderError string

func (e unknownProviderError) Error() string {
	return "config: unknown llm provider " + string(e)
}
