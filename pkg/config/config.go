// Package config provides unified configuration for the weiche gateway.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides, including the legacy names
//     ROUTES_CONFIG, PROXY_AUTH_TOKEN, RELAY_ALLOWED_HOSTS and JINA_API_KEYS
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the weiche gateway.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Routes        RoutesConfig        `yaml:"routes"`
	Engine        EngineConfig        `yaml:"engine"`
	Auth          AuthConfig          `yaml:"auth"`
	Relay         RelayConfig         `yaml:"relay"`
	Tools         ToolsConfig         `yaml:"tools"`
	Observability ObservabilityConfig `yaml:"observability"`
	Log           LogConfig           `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`             // default: all interfaces
	Port            int           `yaml:"port"`             // default: 8080
	MaxBodySize     int64         `yaml:"max_body_size"`    // default: 10 MiB
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
}

// RoutesConfig locates the route table. Inline wins over File.
type RoutesConfig struct {
	Inline string `yaml:"inline"` // route table JSON
	File   string `yaml:"file"`   // path to a route table JSON file
	Watch  bool   `yaml:"watch"`  // re-read File on change, default: true
}

// EngineConfig holds response engine and backend call settings.
type EngineConfig struct {
	StreamIdleTimeout time.Duration `yaml:"stream_idle_timeout"` // default: 5m
	AttemptTimeout    time.Duration `yaml:"attempt_timeout"`     // default: 0 (none)
	MaxInputItems     int           `yaml:"max_input_items"`     // default: 1000
	MaxTools          int           `yaml:"max_tools"`           // default: 128
}

// AuthConfig holds the shared-secret settings. An empty token disables
// authentication.
type AuthConfig struct {
	Token     string `yaml:"token"`
	TokenFile string `yaml:"token_file"` // _file variant for token
}

// Enabled reports whether requests must carry the shared secret.
func (a AuthConfig) Enabled() bool {
	return a.Token != ""
}

// RelayConfig holds /relay settings.
type RelayConfig struct {
	AllowedHosts []string      `yaml:"allowed_hosts"` // host[:port], empty rejects all
	Timeout      time.Duration `yaml:"timeout"`       // default: 60s
}

// ToolsConfig holds the tool proxy settings.
type ToolsConfig struct {
	Enabled   bool            `yaml:"enabled"` // default: true
	Allowed   []string        `yaml:"allowed"` // empty allows every tool
	Jina      JinaConfig      `yaml:"jina"`
	WebSearch WebSearchConfig `yaml:"web_search"`
	MCP       MCPConfig       `yaml:"mcp"`
}

// JinaConfig selects the Jina API keys. KeyNames are environment variable
// names tried in order; Key is used when no name is given.
type JinaConfig struct {
	KeyNames []string `yaml:"key_names"`
	Key      string   `yaml:"key"`
	KeyFile  string   `yaml:"key_file"` // _file variant for key
}

// WebSearchConfig enables the SearXNG backed web_search tool when URL is set.
type WebSearchConfig struct {
	URL        string `yaml:"url"`
	MaxResults int    `yaml:"max_results"` // default: 5
}

// MCPConfig holds MCP (Model Context Protocol) server settings.
type MCPConfig struct {
	Servers []MCPServerConfig `yaml:"servers"`
}

// MCPServerConfig describes a single MCP server connection.
type MCPServerConfig struct {
	Name      string            `yaml:"name" json:"name"`
	Transport string            `yaml:"transport" json:"transport,omitempty"` // "sse" or "streamable-http"
	URL       string            `yaml:"url" json:"url"`
	Headers   map[string]string `yaml:"headers" json:"headers,omitempty"`
	Auth      MCPAuthConfig     `yaml:"auth" json:"auth,omitempty"`
}

// MCPAuthConfig configures authentication to an MCP server.
type MCPAuthConfig struct {
	Type             string   `yaml:"type" json:"type,omitempty"` // "", "bearer" or "oauth_client_credentials"
	Token            string   `yaml:"token" json:"token,omitempty"`
	TokenFile        string   `yaml:"token_file" json:"token_file,omitempty"`
	TokenURL         string   `yaml:"token_url" json:"token_url,omitempty"`
	ClientID         string   `yaml:"client_id" json:"client_id,omitempty"`
	ClientSecret     string   `yaml:"client_secret" json:"client_secret,omitempty"`
	ClientSecretFile string   `yaml:"client_secret_file" json:"client_secret_file,omitempty"`
	Scopes           []string `yaml:"scopes" json:"scopes,omitempty"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"` // default: true
}

// LogConfig configures slog and the debug categories. WEICHE_LOG_LEVEL
// and WEICHE_DEBUG take precedence at startup.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error, trace; default: info
	Format string `yaml:"format"` // "text" or "json", default: "text"
	Debug  string `yaml:"debug"`  // comma separated debug categories
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			MaxBodySize:     10 << 20,
			ShutdownTimeout: 30 * time.Second,
		},
		Routes: RoutesConfig{
			Watch: true,
		},
		Engine: EngineConfig{
			StreamIdleTimeout: 5 * time.Minute,
			MaxInputItems:     1000,
			MaxTools:          128,
		},
		Relay: RelayConfig{
			Timeout: 60 * time.Second,
		},
		Tools: ToolsConfig{
			Enabled: true,
			WebSearch: WebSearchConfig{
				MaxResults: 5,
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
