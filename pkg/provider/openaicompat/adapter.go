package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rhuss/weiche/pkg/debug"
	"github.com/rhuss/weiche/pkg/provider"
)

// Backend kinds served by this adapter.
const (
	KindOpenAICompatible = "openai-compatible"
	KindOpenAIChat       = "openai-chat"
	KindCloudflare       = "cloudflare-ai"
	KindZhipu            = "zhipu"
)

// Default base URLs per kind. Cloudflare has no default because the
// account id is part of the URL.
const (
	DefaultOpenAIBase = "https://api.openai.com/v1"
	DefaultZhipuBase  = "https://api.z.ai/api/paas/v4"
)

// Adapter talks to a Chat Completions endpoint at {base}/chat/completions.
type Adapter struct {
	kind         string
	model        string
	endpoint     string
	client       *http.Client
	streamClient *http.Client
}

var _ provider.Adapter = (*Adapter)(nil)

// New creates an Adapter for one of the Chat Completions kinds.
func New(cfg provider.Config) (*Adapter, error) {
	var base string
	switch cfg.Kind {
	case KindOpenAICompatible, KindOpenAIChat:
		base = cfg.BaseURLOr(DefaultOpenAIBase)
	case KindZhipu:
		base = cfg.BaseURLOr(DefaultZhipuBase)
	case KindCloudflare:
		base = cfg.BaseURLOr("")
		if base == "" {
			return nil, fmt.Errorf("%s provider requires a baseUrl", cfg.Kind)
		}
	default:
		return nil, fmt.Errorf("unsupported chat completions kind %q", cfg.Kind)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%s provider requires a model", cfg.Kind)
	}

	client, streamClient := cfg.Clients()
	return &Adapter{
		kind:         cfg.Kind,
		model:        cfg.Model,
		endpoint:     base + "/chat/completions",
		client:       client,
		streamClient: streamClient,
	}, nil
}

// Kind returns the backend kind tag.
func (a *Adapter) Kind() string { return a.kind }

// Model returns the backend model identifier.
func (a *Adapter) Model() string { return a.model }

func (a *Adapter) backend() string { return a.kind + "/" + a.model }

// Chat performs one Chat Completions call, streaming or not depending on
// the canonical request.
func (a *Adapter) Chat(ctx context.Context, call *provider.Call) (*provider.Outcome, error) {
	stream := call.Request.Stream
	chatReq := TranslateRequest(a.kind, a.model, call, stream)

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, provider.NewInternalFailure(a.backend(), "failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, provider.NewInternalFailure(a.backend(), "failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	if call.Credential != "" {
		httpReq.Header.Set("Authorization", "Bearer "+call.Credential)
	}

	debug.Log("providers", "chat completions request",
		"backend", a.backend(),
		"url", a.endpoint,
		"stream", stream,
		"messages", len(chatReq.Messages),
		"tools", len(chatReq.Tools),
	)
	debug.Raw("providers", "chat completions request body: "+string(body))

	client := a.client
	if stream {
		client = a.streamClient
	}
	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, provider.NewNetworkFailure(a.backend(), err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		defer httpResp.Body.Close()
		return nil, provider.NewHTTPFailure(a.backend(), httpResp)
	}

	if stream {
		return &provider.Outcome{Stream: provider.StreamBody(ctx, httpResp.Body, ParseStream)}, nil
	}

	defer httpResp.Body.Close()
	var chatResp ChatCompletionResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&chatResp); err != nil {
		return nil, provider.NewInternalFailure(a.backend(), "failed to parse backend response: %w", err)
	}
	return &provider.Outcome{Response: TranslateResponse(a.model, &chatResp)}, nil
}
