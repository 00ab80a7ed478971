package api

// ModelList is the body of GET /models.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// Model describes one caller-visible route. Descriptive fields come from
// the route's first backend and are informational only.
type Model struct {
	ID              string         `json:"id"`
	Object          string         `json:"object"`
	OwnedBy         string         `json:"owned_by"`
	Permission      []string       `json:"permission"`
	DisplayName     string         `json:"display_name,omitempty"`
	Description     string         `json:"description,omitempty"`
	ContextLength   int            `json:"context_length,omitempty"`
	MaxInputTokens  int            `json:"max_input_tokens,omitempty"`
	MaxOutputTokens int            `json:"max_output_tokens,omitempty"`
	Pricing         *ModelPricing  `json:"pricing,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	Flags           []string       `json:"flags,omitempty"`
}

// ModelPricing is per-million-token pricing.
type ModelPricing struct {
	Currency        string   `json:"currency,omitempty"`
	InputPer1M      *float64 `json:"input_per_1m,omitempty"`
	InputCachePer1M *float64 `json:"input_cache_per_1m,omitempty"`
	OutputPer1M     *float64 `json:"output_per_1m,omitempty"`
}
