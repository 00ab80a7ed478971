// Command mcp-test-server runs a small MCP server for exercising the
// weiche tool proxy. It provides "get_time", "echo" and "word_count" over
// streamable HTTP on /mcp.
//
// Environment:
//
//	PORT       - listen port (default: 8080)
//	MCP_TOKEN  - when set, requests must carry "Authorization: Bearer <token>"
package main

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	slog.Info("MCP test server starting", "port", port, "auth", os.Getenv("MCP_TOKEN") != "")
	if err := http.ListenAndServe(":"+port, newHandler(os.Getenv("MCP_TOKEN"))); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

type echoInput struct {
	Message string `json:"message" jsonschema:"the message to echo back"`
}

type wordCountInput struct {
	Text string `json:"text" jsonschema:"the text to count words in"`
}

type wordCountOutput struct {
	Words int `json:"words"`
	Chars int `json:"chars"`
}

func newServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{Name: "weiche-test-mcp", Version: "v1.0.0"},
		nil,
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_time",
		Description: "Returns the current UTC time",
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, struct{}, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Current time: %s", time.Now().UTC().Format(time.RFC3339))},
			},
		}, struct{}{}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "echo",
		Description: "Echoes the provided message back",
	}, func(_ context.Context, _ *mcp.CallToolRequest, input echoInput) (*mcp.CallToolResult, struct{}, error) {
		if input.Message == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: "message must not be empty"}},
				IsError: true,
			}, struct{}{}, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Echo: %s", input.Message)},
			},
		}, struct{}{}, nil
	})

	// word_count returns structured content only; the SDK fills in the text.
	mcp.AddTool(server, &mcp.Tool{
		Name:        "word_count",
		Description: "Counts words and characters in a text",
	}, func(_ context.Context, _ *mcp.CallToolRequest, input wordCountInput) (*mcp.CallToolResult, wordCountOutput, error) {
		return nil, wordCountOutput{
			Words: len(strings.Fields(input.Text)),
			Chars: len([]rune(input.Text)),
		}, nil
	})

	return server
}

// newHandler serves /mcp and /healthz. A non-empty token guards /mcp.
func newHandler(token string) http.Handler {
	server := newServer()
	getServer := func(*http.Request) *mcp.Server { return server }

	mux := http.NewServeMux()
	mux.Handle("/mcp", requireToken(token, mcp.NewStreamableHTTPHandler(getServer, nil)))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})
	return mux
}

func requireToken(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	want := []byte("Bearer " + token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if subtle.ConstantTimeCompare([]byte(r.Header.Get("Authorization")), want) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
