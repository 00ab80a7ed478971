package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rhuss/weiche/pkg/debug"
	"github.com/rhuss/weiche/pkg/provider"
)

// Backend kind tags served by this adapter.
const (
	KindGoogle = "google"
	KindGemini = "gemini"
)

// DefaultBaseURL is used when the provider entry carries no baseUrl.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Adapter implements provider.Adapter for the Gemini GenerateContent API.
type Adapter struct {
	kind         string
	model        string
	base         string
	client       *http.Client
	streamClient *http.Client
}

var _ provider.Adapter = (*Adapter)(nil)

// New creates a new Adapter.
func New(cfg provider.Config) (*Adapter, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("gemini: model is required")
	}
	kind := cfg.Kind
	if kind == "" {
		kind = KindGemini
	}
	client, streamClient := cfg.Clients()
	return &Adapter{
		kind:         kind,
		model:        cfg.Model,
		base:         cfg.BaseURLOr(DefaultBaseURL),
		client:       client,
		streamClient: streamClient,
	}, nil
}

// Kind returns the backend kind tag.
func (a *Adapter) Kind() string { return a.kind }

// Model returns the backend model identifier.
func (a *Adapter) Model() string { return a.model }

func (a *Adapter) backend() string { return a.kind + "/" + a.model }

// endpoint returns the method URL for the model. A "models/" prefix on the
// configured model is tolerated.
func (a *Adapter) endpoint(stream bool) string {
	model := strings.TrimPrefix(a.model, "models/")
	u := a.base + "/models/" + url.PathEscape(model)
	if stream {
		return u + ":streamGenerateContent?alt=sse"
	}
	return u + ":generateContent"
}

// Chat performs one call via generateContent or streamGenerateContent.
func (a *Adapter) Chat(ctx context.Context, call *provider.Call) (*provider.Outcome, error) {
	stream := call.Request.Stream
	gr := translateRequest(call)

	body, err := json.Marshal(gr)
	if err != nil {
		return nil, provider.NewInternalFailure(a.backend(), "failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint(stream), bytes.NewReader(body))
	if err != nil {
		return nil, provider.NewInternalFailure(a.backend(), "failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	if call.Credential != "" {
		httpReq.Header.Set("x-goog-api-key", call.Credential)
	}

	debug.Log("providers", "generateContent request",
		"backend", a.backend(),
		"stream", stream,
		"contents", len(gr.Contents),
		"tools", len(gr.Tools),
	)
	debug.Raw("providers", "generateContent request body: "+string(body))

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
	var gResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gResp); err != nil {
		return nil, provider.NewInternalFailure(a.backend(), "failed to parse backend response: %w", err)
	}
	if gResp.Error != nil {
		return nil, &provider.Failure{Backend: a.backend(), Status: http.StatusBadGateway, Message: gResp.Error.Message}
	}
	if len(gResp.Candidates) == 0 && gResp.PromptFeedback != nil && gResp.PromptFeedback.BlockReason != "" {
		return nil, &provider.Failure{
			Backend: a.backend(),
			Status:  http.StatusBadRequest,
			Message: "prompt blocked: " + gResp.PromptFeedback.BlockReason,
		}
	}
	return &provider.Outcome{Response: translateResponse(a.model, &gResp)}, nil
}
