package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_size must be > 0, got %d", c.Server.MaxBodySize))
	}

	// A gateway without routes cannot serve anything.
	if c.Routes.Inline == "" && c.Routes.File == "" {
		errs = append(errs, fmt.Errorf("routes.inline or routes.file is required (ROUTES_CONFIG or WEICHE_ROUTES_FILE)"))
	}

	if c.Engine.StreamIdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("engine.stream_idle_timeout must not be negative"))
	}
	if c.Engine.AttemptTimeout < 0 {
		errs = append(errs, fmt.Errorf("engine.attempt_timeout must not be negative"))
	}

	for i, s := range c.Tools.MCP.Servers {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("tools.mcp.servers[%d].name is required", i))
		}
		if s.URL == "" {
			errs = append(errs, fmt.Errorf("tools.mcp.servers[%d].url is required", i))
		}
		switch s.Transport {
		case "", "sse", "streamable-http":
		default:
			errs = append(errs, fmt.Errorf("tools.mcp.servers[%d].transport must be \"sse\" or \"streamable-http\", got %q", i, s.Transport))
		}
		switch s.Auth.Type {
		case "":
		case "bearer":
			if s.Auth.Token == "" {
				errs = append(errs, fmt.Errorf("tools.mcp.servers[%d].auth.token or token_file is required for bearer auth", i))
			}
		case "oauth_client_credentials":
			if s.Auth.TokenURL == "" || s.Auth.ClientID == "" || s.Auth.ClientSecret == "" {
				errs = append(errs, fmt.Errorf("tools.mcp.servers[%d].auth requires token_url, client_id and client_secret", i))
			}
		default:
			errs = append(errs, fmt.Errorf("tools.mcp.servers[%d].auth.type must be \"bearer\" or \"oauth_client_credentials\", got %q", i, s.Auth.Type))
		}
	}

	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be \"text\" or \"json\", got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}
