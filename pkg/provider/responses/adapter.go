package responses

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
const Kind = "openai"

// DefaultBaseURL is used when the provider entry carries no baseUrl.
const DefaultBaseURL = "https://api.openai.com/v1"

// Adapter implements provider.Adapter for Responses API backends.
type Adapter struct {
	model        string
	endpoint     string
	client       *http.Client
	streamClient *http.Client
}

// Ensure Adapter implements provider.Adapter at compile time.
var _ provider.Adapter = (*Adapter)(nil)

// New creates a new Adapter.
func New(cfg provider.Config) (*Adapter, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("responses: model is required")
	}
	client, streamClient := cfg.Clients()
	return &Adapter{
		model:        cfg.Model,
		endpoint:     cfg.BaseURLOr(DefaultBaseURL) + "/responses",
		client:       client,
		streamClient: streamClient,
	}, nil
}

// Kind returns the backend kind tag.
func (a *Adapter) Kind() string { return Kind }

// Model returns the backend model identifier.
func (a *Adapter) Model() string { return a.model }

func (a *Adapter) backend() string { return Kind + "/" + a.model }

// Chat performs one call via POST {base}/responses.
func (a *Adapter) Chat(ctx context.Context, call *provider.Call) (*provider.Outcome, error) {
	rr := translateRequest(a.model, call)

	body, err := json.Marshal(rr)
	if err != nil {
		return nil, provider.NewInternalFailure(a.backend(), "marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, provider.NewInternalFailure(a.backend(), "create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if rr.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	if call.Credential != "" {
		httpReq.Header.Set("Authorization", "Bearer "+call.Credential)
	}

	debug.Log("providers", "request", "method", "POST",
		"url", a.endpoint, "model", a.model, "stream", rr.Stream)
	debug.Raw("providers", "responses request body: "+string(body))

	client := a.client
	if rr.Stream {
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

	if rr.Stream {
		return &provider.Outcome{Stream: provider.StreamBody(ctx, resp.Body, parseStream)}, nil
	}

	defer resp.Body.Close()
	var rResp responsesResponse
	if err := json.NewDecoder(resp.Body).Decode(&rResp); err != nil {
		return nil, provider.NewInternalFailure(a.backend(), "unmarshal response: %w", err)
	}
	if rResp.Status == "failed" && rResp.Error != nil {
		return nil, &provider.Failure{Backend: a.backend(), Status: http.StatusBadGateway, Message: rResp.Error.Message}
	}

	return &provider.Outcome{Response: translateResponse(a.model, &rResp)}, nil
}
