package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rhuss/weiche/pkg/debug"
	"github.com/rhuss/weiche/pkg/provider"
)

// Kind is the backend kind tag served by this adapter.
const Kind = "anthropic"

const (
	// DefaultBaseURL is used when the provider entry carries no baseUrl.
	DefaultBaseURL = "https://api.anthropic.com/v1"

	// APIVersion is sent as the anthropic-version header.
	APIVersion = "2023-06-01"
)

// Adapter implements provider.Adapter for the Anthropic Messages API.
type Adapter struct {
	model        string
	endpoint     string
	client       *http.Client
	streamClient *http.Client
}

var _ provider.Adapter = (*Adapter)(nil)

// New creates a new Adapter.
func New(cfg provider.Config) (*Adapter, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("anthropic: model is required")
	}
	client, streamClient := cfg.Clients()
	return &Adapter{
		model:        cfg.Model,
		endpoint:     cfg.BaseURLOr(DefaultBaseURL) + "/messages",
		client:       client,
		streamClient: streamClient,
	}, nil
}

// Kind returns the backend kind tag.
func (a *Adapter) Kind() string { return Kind }

// Model returns the backend model identifier.
func (a *Adapter) Model() string { return a.model }

func (a *Adapter) backend() string { return Kind + "/" + a.model }

// Chat performs one call via POST {base}/messages.
func (a *Adapter) Chat(ctx context.Context, call *provider.Call) (*provider.Outcome, error) {
	stream := call.Request.Stream
	mr := translateRequest(a.model, call, stream)

	body, err := json.Marshal(mr)
	if err != nil {
		return nil, provider.NewInternalFailure(a.backend(), "failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, provider.NewInternalFailure(a.backend(), "failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("anthropic-version", APIVersion)
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	if call.Credential != "" {
		httpReq.Header.Set("x-api-key", call.Credential)
	}

	debug.Log("providers", "messages request",
		"backend", a.backend(),
		"stream", stream,
		"messages", len(mr.Messages),
		"tools", len(mr.Tools),
		"thinking", mr.Thinking != nil,
	)
	debug.Raw("providers", "messages request body: "+string(body))

	client := a.client
	if stream {
		client = a.streamClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, provider.NewNetworkFailure(a.backend(), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, provider.NewHTTPFailure(a.backend(), resp)
	}

	if stream {
		return &provider.Outcome{Stream: provider.StreamBody(ctx, resp.Body, parseStream)}, nil
	}

	defer resp.Body.Close()
	var mResp messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&mResp); err != nil {
		return nil, provider.NewInternalFailure(a.backend(), "failed to parse backend response: %w", err)
	}
	return &provider.Outcome{Response: translateResponse(a.model, &mResp)}, nil
}
