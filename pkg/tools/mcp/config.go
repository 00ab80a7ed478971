package mcp

// ServerConfig describes a single MCP server connection.
type ServerConfig struct {
	// Name is the logical name for this server, used for logging and
	// identification when routing tool calls.
	Name string `json:"name" yaml:"name"`

	// Transport is the transport type to use: "sse" or "streamable-http".
	// If empty, defaults to "streamable-http".
	Transport string `json:"transport,omitempty" yaml:"transport"`

	// URL is the MCP server endpoint URL.
	URL string `json:"url" yaml:"url"`

	// Headers contains additional HTTP headers to send with requests.
	Headers map[string]string `json:"headers,omitempty" yaml:"headers"`

	// Auth configures how the gateway authenticates to the server.
	Auth AuthConfig `json:"auth,omitempty" yaml:"auth"`
}

// AuthConfig selects the authentication scheme for an MCP server.
type AuthConfig struct {
	// Type is "", "bearer" or "oauth_client_credentials".
	Type string `json:"type,omitempty" yaml:"type"`

	// Token is the static token for Type "bearer".
	Token string `json:"token,omitempty" yaml:"token"`

	// TokenURL, ClientID, ClientSecret and Scopes configure the OAuth 2.0
	// client credentials grant.
	TokenURL     string   `json:"token_url,omitempty" yaml:"token_url"`
	ClientID     string   `json:"client_id,omitempty" yaml:"client_id"`
	ClientSecret string   `json:"client_secret,omitempty" yaml:"client_secret"`
	Scopes       []string `json:"scopes,omitempty" yaml:"scopes"`
}
