// Package config loads the single YAML configuration file cmd/conductor
// starts from, grounded on the teacher's internal/config/config.go: a
// single Config struct decoded with gopkg.in/yaml.v3's KnownFields mode,
// environment variables expanded into the raw bytes before decode, then a
// narrow set of NEXUS_*-style overrides applied on top, same two-pass shape
// as the teacher's Load. Trimmed to the sections this system actually
// has: no auth/marketplace/skills/templates/vector-memory/RAG/MCP/
// channels/cron/tasks/transcription, since none of those subsystems exist
// here (SPEC_FULL §9 lists the teacher dependencies they would have
// carried and why none could be given a home).
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for cmd/conductor.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Sandbox  SandboxConfig  `yaml:"sandbox"`
	LLM      LLMConfig      `yaml:"llm"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig controls the HTTP/SSE surface (SPEC_FULL §4.14).
type ServerConfig struct {
	Host        string `yaml:"host"`
	HTTPPort    int    `yaml:"http_port"`
	MetricsPort int    `yaml:"metrics_port"`
}

// DatabaseConfig configures the Postgres backend shared by ctxrepo and
// convrepo, mirroring ctxrepo.PostgresConfig/convrepo.PostgresConfig's
// field names so Load's output maps onto them without translation.
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// SandboxConfig selects and configures a sandboxgw.Gateway driver. Kept
// separate from sandboxgw.Config because that struct carries no yaml
// tags (it is built in-process by cmd/conductor, not decoded directly);
// ToGatewayConfig converts between the two.
type SandboxConfig struct {
	Driver      string                `yaml:"driver"`
	HTTP        SandboxHTTPConfig     `yaml:"http"`
	Firecracker SandboxFirecrackerCfg `yaml:"firecracker"`
}

type SandboxHTTPConfig struct {
	BaseURL   string `yaml:"base_url"`
	AuthToken string `yaml:"auth_token"`
}

type SandboxFirecrackerCfg struct {
	KernelPath string `yaml:"kernel_path"`
	RootFSPath string `yaml:"rootfs_path"`
	VCPUs      int64  `yaml:"vcpus"`
	MemSizeMB  int64  `yaml:"mem_size_mb"`
	VsockCID   uint32 `yaml:"vsock_cid"`
	SocketPath string `yaml:"socket_path"`
}

// LLMConfig selects the default provider and carries every provider's
// credentials, mirroring the teacher's LLMConfig shape (DefaultProvider +
// a map of per-provider settings) but keyed to this system's three
// concrete providers (internal/llmgw/providers) instead of the teacher's
// open-ended provider registry.
type LLMConfig struct {
	DefaultProvider string                 `yaml:"default_provider"`
	DefaultModel    string                 `yaml:"default_model"`
	Anthropic       AnthropicProviderCfg   `yaml:"anthropic"`
	OpenAI          OpenAIProviderCfg      `yaml:"openai"`
	Bedrock         BedrockProviderCfg     `yaml:"bedrock"`
	Google          GoogleProviderCfg      `yaml:"google"`
	Failover        FailoverProviderConfig `yaml:"failover"`
}

type AnthropicProviderCfg struct {
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
	DefaultModel string        `yaml:"default_model"`
}

type OpenAIProviderCfg struct {
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
}

type BedrockProviderCfg struct {
	Region       string `yaml:"region"`
	DefaultModel string `yaml:"default_model"`
}

type GoogleProviderCfg struct {
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
}

type FailoverProviderConfig struct {
	// Chain lists provider names (any of "anthropic", "openai", "bedrock",
	// "google") to try in order; empty means no failover wrapping.
	Chain                   []string      `yaml:"chain"`
	CircuitBreakerThreshold int           `yaml:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   time.Duration `yaml:"circuit_breaker_timeout"`
}

// LoggingConfig controls the slog handler cmd/conductor installs as the
// default logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads path, expands ${VAR}-style environment references in the raw
// bytes (same as the teacher's os.ExpandEnv step), decodes strict YAML,
// applies NEXUS_*-equivalent environment overrides, fills defaults, then
// validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := decoder.Decode(new(struct{})); err != io.EOF {
		return nil, fmt.Errorf("config: %s must contain a single YAML document", path)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9090
	}

	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.Database == "" {
		cfg.Database.Database = "conductor"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.Database.ConnectTimeout == 0 {
		cfg.Database.ConnectTimeout = 10 * time.Second
	}

	if cfg.Sandbox.Driver == "" {
		cfg.Sandbox.Driver = "http"
	}

	if cfg.LLM.DefaultProvider == "" {
		cfg.LLM.DefaultProvider = "anthropic"
	}
	if cfg.LLM.Anthropic.MaxRetries == 0 {
		cfg.LLM.Anthropic.MaxRetries = 3
	}
	if cfg.LLM.Anthropic.RetryDelay == 0 {
		cfg.LLM.Anthropic.RetryDelay = time.Second
	}
	if cfg.LLM.Failover.CircuitBreakerThreshold == 0 {
		cfg.LLM.Failover.CircuitBreakerThreshold = 3
	}
	if cfg.LLM.Failover.CircuitBreakerTimeout == 0 {
		cfg.LLM.Failover.CircuitBreakerTimeout = 30 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// applyEnvOverrides mirrors the teacher's NEXUS_HOST/NEXUS_HTTP_PORT/
// DATABASE_URL overrides, narrowed to this config's fields and renamed to
// the CONDUCTOR_ prefix.
func applyEnvOverrides(cfg *Config) {
	if value := strings.TrimSpace(os.Getenv("CONDUCTOR_HOST")); value != "" {
		cfg.Server.Host = value
	}
	if value := strings.TrimSpace(os.Getenv("CONDUCTOR_HTTP_PORT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Server.HTTPPort = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("CONDUCTOR_METRICS_PORT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Server.MetricsPort = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("DATABASE_PASSWORD")); value != "" {
		cfg.Database.Password = value
	}
	if value := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); value != "" {
		cfg.LLM.Anthropic.APIKey = value
	}
	if value := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); value != "" {
		cfg.LLM.OpenAI.APIKey = value
	}
	if value := strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")); value != "" {
		cfg.LLM.Google.APIKey = value
	}
	if value := strings.TrimSpace(os.Getenv("SANDBOX_AUTH_TOKEN")); value != "" {
		cfg.Sandbox.HTTP.AuthToken = value
	}
}

// ValidationError collects every problem found by validate, same
// accumulate-then-report shape as the teacher's ConfigValidationError.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validate(cfg *Config) error {
	var issues []string

	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		issues = append(issues, "server.http_port must be between 1 and 65535")
	}
	switch cfg.Sandbox.Driver {
	case "http":
		if strings.TrimSpace(cfg.Sandbox.HTTP.BaseURL) == "" {
			issues = append(issues, "sandbox.http.base_url is required when sandbox.driver is \"http\"")
		}
	case "firecracker":
		if strings.TrimSpace(cfg.Sandbox.Firecracker.KernelPath) == "" {
			issues = append(issues, "sandbox.firecracker.kernel_path is required when sandbox.driver is \"firecracker\"")
		}
		if strings.TrimSpace(cfg.Sandbox.Firecracker.RootFSPath) == "" {
			issues = append(issues, "sandbox.firecracker.rootfs_path is required when sandbox.driver is \"firecracker\"")
		}
	default:
		issues = append(issues, fmt.Sprintf("sandbox.driver must be \"http\" or \"firecracker\", got %q", cfg.Sandbox.Driver))
	}
	switch cfg.LLM.DefaultProvider {
	case "anthropic":
		if strings.TrimSpace(cfg.LLM.Anthropic.APIKey) == "" {
			issues = append(issues, "llm.anthropic.api_key is required when llm.default_provider is \"anthropic\"")
		}
	case "openai":
		if strings.TrimSpace(cfg.LLM.OpenAI.APIKey) == "" {
			issues = append(issues, "llm.openai.api_key is required when llm.default_provider is \"openai\"")
		}
	case "bedrock":
		// Bedrock picks up credentials from the default AWS chain; nothing
		// to validate here beyond the provider name itself.
	case "google":
		if strings.TrimSpace(cfg.LLM.Google.APIKey) == "" {
			issues = append(issues, "llm.google.api_key is required when llm.default_provider is \"google\"")
		}
	default:
		issues = append(issues, fmt.Sprintf("llm.default_provider must be \"anthropic\", \"openai\", \"bedrock\", or \"google\", got %q", cfg.LLM.DefaultProvider))
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}
