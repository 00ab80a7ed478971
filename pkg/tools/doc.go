// Package tools implements the gateway's tool proxy. A ToolExecutor lists
// and runs a family of tools (built-in web tools, MCP server tools); the
// Proxy aggregates executors behind GET /tools and POST /tools/execute.
//
// Filter restricts the proxy to an allow-list of tool names.
package tools
