package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, WEICHE_CONFIG env, ./config.yaml, /etc/weiche/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(&cfg, os.LookupEnv)

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. WEICHE_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/weiche/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("WEICHE_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/weiche/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields. The
// WEICHE_ name wins where a legacy name exists for the same setting.
// Malformed JSON values are logged and ignored.
func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) {
	get := func(names ...string) string {
		for _, name := range names {
			if v, ok := lookup(name); ok && v != "" {
				return v
			}
		}
		return ""
	}

	if v := get("WEICHE_ROUTES_CONFIG", "ROUTES_CONFIG"); v != "" {
		cfg.Routes.Inline = v
	}
	if v := get("WEICHE_ROUTES_FILE"); v != "" {
		cfg.Routes.File = v
	}
	if v := get("WEICHE_AUTH_TOKEN", "PROXY_AUTH_TOKEN"); v != "" {
		cfg.Auth.Token = v
	}
	if v := get("WEICHE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		} else {
			slog.Warn("ignoring invalid WEICHE_PORT", "value", v)
		}
	}

	if v := get("RELAY_ALLOWED_HOSTS"); v != "" {
		if hosts, err := parseStringsJSON(v); err == nil {
			cfg.Relay.AllowedHosts = hosts
		} else {
			slog.Warn("ignoring RELAY_ALLOWED_HOSTS", "error", err)
		}
	}

	if v := get("JINA_API_KEYS"); v != "" {
		if names, err := parseStringsJSON(v); err == nil {
			cfg.Tools.Jina.KeyNames = names
		} else {
			slog.Warn("ignoring JINA_API_KEYS", "error", err)
		}
	}
	if v := get("JINA_API_KEY"); v != "" {
		cfg.Tools.Jina.Key = v
	}

	if v := get("WEICHE_SEARXNG_URL"); v != "" {
		cfg.Tools.WebSearch.URL = v
	}

	// WEICHE_MCP_SERVERS: JSON array of MCP server configs.
	if v := get("WEICHE_MCP_SERVERS"); v != "" {
		servers, err := parseMCPServersJSON(v)
		if err == nil && len(servers) > 0 {
			cfg.Tools.MCP.Servers = servers
		} else if err != nil {
			slog.Warn("ignoring WEICHE_MCP_SERVERS", "error", err)
		}
	}

	if v := get("WEICHE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := get("WEICHE_DEBUG"); v != "" {
		cfg.Log.Debug = v
	}
}

// parseStringsJSON parses a JSON array of strings, dropping blank entries.
func parseStringsJSON(jsonStr string) ([]string, error) {
	var raw []string
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil, fmt.Errorf("parsing string array JSON: %w", err)
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// parseMCPServersJSON parses a JSON array of MCP server configurations.
func parseMCPServersJSON(jsonStr string) ([]MCPServerConfig, error) {
	var servers []MCPServerConfig
	if err := json.Unmarshal([]byte(jsonStr), &servers); err != nil {
		return nil, fmt.Errorf("parsing MCP servers JSON: %w", err)
	}
	return servers, nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// auth.token_file -> auth.token
	if cfg.Auth.TokenFile != "" && cfg.Auth.Token == "" {
		val, err := readSecretFile(cfg.Auth.TokenFile)
		if err != nil {
			return fmt.Errorf("auth.token_file: %w", err)
		}
		cfg.Auth.Token = val
	}

	// tools.jina.key_file -> tools.jina.key
	if cfg.Tools.Jina.KeyFile != "" && cfg.Tools.Jina.Key == "" {
		val, err := readSecretFile(cfg.Tools.Jina.KeyFile)
		if err != nil {
			return fmt.Errorf("tools.jina.key_file: %w", err)
		}
		cfg.Tools.Jina.Key = val
	}

	// tools.mcp.servers[*].auth.token_file -> tools.mcp.servers[*].auth.token
	// tools.mcp.servers[*].auth.client_secret_file -> tools.mcp.servers[*].auth.client_secret
	for i := range cfg.Tools.MCP.Servers {
		a := &cfg.Tools.MCP.Servers[i].Auth
		if a.TokenFile != "" && a.Token == "" {
			val, err := readSecretFile(a.TokenFile)
			if err != nil {
				return fmt.Errorf("tools.mcp.servers[%d].auth.token_file: %w", i, err)
			}
			a.Token = val
		}
		if a.ClientSecretFile != "" && a.ClientSecret == "" {
			val, err := readSecretFile(a.ClientSecretFile)
			if err != nil {
				return fmt.Errorf("tools.mcp.servers[%d].auth.client_secret_file: %w", i, err)
			}
			a.ClientSecret = val
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
