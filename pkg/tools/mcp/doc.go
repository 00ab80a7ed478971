// Package mcp connects the tool proxy to external MCP (Model Context
// Protocol) servers. It discovers their tools and forwards tool calls,
// implementing tools.ToolExecutor on top of the official MCP Go SDK
// (github.com/modelcontextprotocol/go-sdk).
//
// Servers are reached over SSE or streamable HTTP. Authentication is
// either static headers, a bearer token, or an OAuth 2.0 client
// credentials grant handled by golang.org/x/oauth2/clientcredentials.
package mcp
