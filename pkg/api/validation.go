package api

import "fmt"

// ValidationConfig holds configurable limits for request validation.
type ValidationConfig struct {
	MaxInputItems int
	MaxTools      int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxInputItems: 1000,
		MaxTools:      128,
	}
}

// ValidateRequest checks a CreateResponseRequest for validity. It returns an
// *APIError describing the first validation failure, or nil if the request is valid.
// Input is checked before model so a body with neither reports the missing input.
func ValidateRequest(req *CreateResponseRequest, cfg ValidationConfig) *APIError {
	if len(req.Input) == 0 {
		return NewInvalidRequestError("input", "Invalid request: input or messages are required")
	}

	if req.Model == "" {
		return NewInvalidRequestError("model", "Invalid request: model is required")
	}

	if cfg.MaxInputItems > 0 && len(req.Input) > cfg.MaxInputItems {
		return NewInvalidRequestError("input",
			fmt.Sprintf("input exceeds maximum of %d items", cfg.MaxInputItems))
	}

	if cfg.MaxTools > 0 && len(req.Tools) > cfg.MaxTools {
		return NewInvalidRequestError("tools",
			fmt.Sprintf("tools exceeds maximum of %d", cfg.MaxTools))
	}

	if req.MaxOutputTokens != nil && *req.MaxOutputTokens <= 0 {
		return NewInvalidRequestError("max_output_tokens", "max_output_tokens must be positive")
	}

	if req.Temperature != nil {
		if *req.Temperature < 0.0 || *req.Temperature > 2.0 {
			return NewInvalidRequestError("temperature", "temperature must be between 0.0 and 2.0")
		}
	}

	if req.TopP != nil {
		if *req.TopP < 0.0 || *req.TopP > 1.0 {
			return NewInvalidRequestError("top_p", "top_p must be between 0.0 and 1.0")
		}
	}

	// A forced function must be one of the declared tools.
	if choice, ok := NormalizeToolChoice(req.ToolChoice); ok && choice.Mode == "function" {
		found := false
		for _, tool := range NormalizeTools(req.Tools) {
			if tool.Name == choice.Name {
				found = true
				break
			}
		}
		if !found {
			return NewInvalidRequestError("tool_choice",
				fmt.Sprintf("tool_choice references unknown tool %q", choice.Name))
		}
	}

	for i := range req.Input {
		if err := ValidateItem(&req.Input[i]); err != nil {
			return err
		}
	}

	return nil
}

// ValidateItem checks an input Item for structural validity.
func ValidateItem(item *Item) *APIError {
	switch item.Type {
	case ItemTypeMessage:
		if item.Message == nil {
			return NewInvalidRequestError("input", "message item has no content")
		}
	case ItemTypeFunctionCall:
		if item.FunctionCall == nil || item.FunctionCall.Name == "" {
			return NewInvalidRequestError("input", "function_call item requires a name")
		}
	case ItemTypeFunctionCallOutput:
		if item.FunctionCallOutput == nil || item.FunctionCallOutput.CallID == "" {
			return NewInvalidRequestError("input", "function_call_output item requires a call_id")
		}
	case ItemTypeReasoning:
		if item.Reasoning == nil {
			return NewInvalidRequestError("input", "reasoning item has no data")
		}
	default:
		return NewInvalidRequestError("input", fmt.Sprintf("unsupported item type %q", item.Type))
	}
	return nil
}

// ReasoningEffort returns the requested reasoning effort, or "".
func (r *CreateResponseRequest) ReasoningEffort() string {
	if r.Reasoning == nil || r.Reasoning.Effort == nil {
		return ""
	}
	return *r.Reasoning.Effort
}
