// Command mock-backend runs a deterministic LLM backend that speaks all
// four wire formats weiche routes to, for manual and integration testing.
// Replies depend only on the request content (see scenario.go), so the
// same prompt yields the same answer in every format.
//
// Endpoints:
//
//	POST /v1/chat/completions           Chat Completions (openai-compatible)
//	POST /v1/responses                  Responses (openai)
//	POST /v1/messages                   Messages (anthropic)
//	POST /v1beta/models/{model}:{call}  GenerateContent (gemini)
//
// A credential of the form "fail-<status>" (e.g. "fail-429") makes the
// call fail with that status in the format's native error shape, which
// exercises key rotation and fallback.
//
// Configuration:
//
//	MOCK_PORT - Listen port (default: 9090)
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	srv := &http.Server{Addr: ":" + port, Handler: newMux(), ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

func newMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", handleChatCompletions)
	mux.HandleFunc("POST /v1/responses", handleResponses)
	mux.HandleFunc("POST /v1/messages", handleMessages)
	mux.HandleFunc("POST /v1beta/models/{call}", handleGenerateContent)
	mux.HandleFunc("GET /v1/models", handleModels)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return mux
}

// --- Models endpoint ---

func handleModels(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"object": "list",
		"data": []map[string]any{
			{"id": "mock-model", "object": "model", "owned_by": "weiche-mock"},
		},
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

// credential returns the key sent in any of the formats' auth headers.
func credential(r *http.Request) string {
	if v := r.Header.Get("x-api-key"); v != "" {
		return v
	}
	if v := r.Header.Get("x-goog-api-key"); v != "" {
		return v
	}
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

// forcedFailure returns the status requested by a "fail-<status>" key.
func forcedFailure(r *http.Request) (int, bool) {
	key := credential(r)
	if !strings.HasPrefix(key, "fail-") {
		return 0, false
	}
	status, err := strconv.Atoi(strings.TrimPrefix(key, "fail-"))
	if err != nil || status < 400 || status > 599 {
		return 0, false
	}
	return status, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sse prepares w for an event stream. It returns nil when w cannot flush.
func sse(w http.ResponseWriter) http.Flusher {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return nil
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return flusher
}

// writeEvent writes one SSE frame. An empty event name writes a data-only frame.
func writeEvent(w http.ResponseWriter, f http.Flusher, event string, v any) {
	data, _ := json.Marshal(v)
	if event != "" {
		fmt.Fprintf(w, "event: %s\n", event)
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	f.Flush()
}

func modelOr(model string) string {
	if model == "" {
		return "mock-model"
	}
	return model
}
