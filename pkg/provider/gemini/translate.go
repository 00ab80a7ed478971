package gemini

import (
	"encoding/json"
	"strings"

	"github.com/rhuss/weiche/pkg/api"
	"github.com/rhuss/weiche/pkg/provider"
)

// thinkingBudgets maps reasoning effort to a thinking token budget.
var thinkingBudgets = map[string]int{
	"low":    1024,
	"medium": 4096,
	"high":   8192,
	"xhigh":  16384,
}

// translateRequest converts a canonical request to the GenerateContent format.
func translateRequest(call *provider.Call) *generateRequest {
	req := call.Request
	system, contents := translateInput(req)

	gr := &generateRequest{Contents: contents}
	if system != "" {
		gr.SystemInstruction = &content{Parts: []part{{Text: system}}}
	}

	var decls []functionDeclaration
	for _, t := range api.NormalizeTools(req.Tools) {
		decls = append(decls, functionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	if len(decls) > 0 {
		gr.Tools = []toolSet{{FunctionDeclarations: decls}}
		if choice, ok := api.NormalizeToolChoice(req.ToolChoice); ok {
			gr.ToolConfig = &toolConfig{FunctionCallingConfig: callingConfig(choice)}
		}
	}

	gc := &generationConfig{
		Temperature:     req.Temperature,
		TopP:            req.TopP,
		MaxOutputTokens: req.MaxOutputTokens,
		StopSequences:   req.Stop,
	}
	if req.Text != nil && req.Text.Format != nil {
		switch req.Text.Format.Type {
		case "json_object":
			gc.ResponseMIMEType = "application/json"
		case "json_schema":
			gc.ResponseMIMEType = "application/json"
			gc.ResponseSchema = req.Text.Format.Schema
		}
	}
	if budget, ok := thinkingBudgets[strings.ToLower(call.Hint.ReasoningEffort)]; ok {
		gc.ThinkingConfig = &thinkingConfig{ThinkingBudget: budget, IncludeThoughts: true}
	}
	if !gc.empty() {
		gr.GenerationConfig = gc
	}

	return gr
}

func (gc *generationConfig) empty() bool {
	return gc.Temperature == nil && gc.TopP == nil && gc.MaxOutputTokens == nil &&
		len(gc.StopSequences) == 0 && gc.ResponseMIMEType == "" && gc.ThinkingConfig == nil
}

func callingConfig(choice api.NormalizedToolChoice) functionCallingConfig {
	switch choice.Mode {
	case "none":
		return functionCallingConfig{Mode: "NONE"}
	case "required":
		return functionCallingConfig{Mode: "ANY"}
	case "function":
		return functionCallingConfig{Mode: "ANY", AllowedFunctionNames: []string{choice.Name}}
	default:
		return functionCallingConfig{Mode: "AUTO"}
	}
}

// translateInput splits canonical items into the system instruction and
// the conversation. Function responses need the function name, which is
// resolved from the matching call id.
func translateInput(req *api.CreateResponseRequest) (string, []content) {
	var system []string
	if req.Instructions != "" {
		system = append(system, req.Instructions)
	}

	callNames := make(map[string]string)
	for _, item := range req.Input {
		if item.Type == api.ItemTypeFunctionCall && item.FunctionCall != nil {
			callNames[item.FunctionCall.CallID] = item.FunctionCall.Name
		}
	}

	var contents []content
	appendPart := func(role string, p part) {
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, p)
			return
		}
		contents = append(contents, content{Role: role, Parts: []part{p}})
	}

	for _, item := range req.Input {
		switch item.Type {
		case api.ItemTypeMessage:
			m := item.Message
			if m == nil {
				continue
			}
			switch m.Role {
			case api.RoleSystem, api.RoleDeveloper:
				if text := m.Text(); text != "" {
					system = append(system, text)
				}
			case api.RoleAssistant:
				if text := m.Text(); text != "" {
					appendPart("model", part{Text: text})
				}
			default:
				for _, c := range m.Content {
					if c.Type == "input_image" {
						appendPart("user", imagePart(c.ImageURL))
						continue
					}
					if c.Text != "" {
						appendPart("user", part{Text: c.Text})
					}
				}
			}

		case api.ItemTypeFunctionCall:
			fc := item.FunctionCall
			if fc == nil || strings.TrimSpace(fc.Name) == "" {
				continue
			}
			appendPart("model", part{FunctionCall: &functionCall{Name: fc.Name, Args: argumentsObject(fc.Arguments)}})

		case api.ItemTypeFunctionCallOutput:
			fo := item.FunctionCallOutput
			if fo == nil {
				continue
			}
			name := callNames[fo.CallID]
			if name == "" {
				name = "unknown"
			}
			appendPart("user", part{FunctionResponse: &functionResponse{
				Name:     name,
				Response: map[string]any{"content": fo.Output},
			}})
		}
	}

	return strings.Join(system, "\n\n"), contents
}

// argumentsObject returns the arguments as a JSON object. Anything that is
// not an object becomes {}.
func argumentsObject(args string) json.RawMessage {
	trimmed := strings.TrimSpace(args)
	var obj map[string]json.RawMessage
	if trimmed == "" || json.Unmarshal([]byte(trimmed), &obj) != nil || obj == nil {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(trimmed)
}

// imagePart converts an image URL or data URI into an inline or file part.
func imagePart(url string) part {
	if rest, ok := strings.CutPrefix(url, "data:"); ok {
		meta, data, found := strings.Cut(rest, ",")
		if found {
			mimeType, _, _ := strings.Cut(meta, ";")
			return part{InlineData: &inlineData{MimeType: mimeType, Data: data}}
		}
	}
	return part{FileData: &fileData{FileURI: url}}
}

// extracted is the content of one response or chunk.
type extracted struct {
	text      string
	reasoning string
	calls     []provider.ToolCall
	status    api.ResponseStatus
}

func extract(resp *generateResponse) extracted {
	var e extracted
	if len(resp.Candidates) == 0 {
		return e
	}
	c := resp.Candidates[0]
	if c.Content != nil {
		var text, reasoning strings.Builder
		for _, p := range c.Content.Parts {
			switch {
			case p.FunctionCall != nil:
				args := "{}"
				if len(p.FunctionCall.Args) > 0 {
					args = string(p.FunctionCall.Args)
				}
				e.calls = append(e.calls, provider.ToolCall{CallID: p.FunctionCall.ID, Name: p.FunctionCall.Name, Arguments: args})
			case p.Thought:
				reasoning.WriteString(p.Text)
			default:
				text.WriteString(p.Text)
			}
		}
		e.text = text.String()
		e.reasoning = reasoning.String()
	}
	if c.FinishReason != "" {
		e.status = mapFinishReason(c.FinishReason)
	}
	return e
}

// translateResponse converts a generateContent response to a canonical response.
func translateResponse(configuredModel string, resp *generateResponse) *api.Response {
	e := extract(resp)
	a := provider.Assembled{
		Model:     resp.ModelVersion,
		Text:      e.text,
		Reasoning: e.reasoning,
		ToolCalls: e.calls,
		Status:    e.status,
		Usage:     translateUsage(resp.UsageMetadata),
	}
	return provider.BuildResponse(configuredModel, a)
}

// translateUsage maps usage metadata. Thought tokens count as output and
// are reported as reasoning tokens.
func translateUsage(u *usageMetadata) api.Usage {
	if u == nil {
		return api.Usage{}
	}
	return api.Usage{
		InputTokens:         u.PromptTokenCount,
		OutputTokens:        u.CandidatesTokenCount + u.ThoughtsTokenCount,
		TotalTokens:         u.TotalTokenCount,
		InputTokensDetails:  api.InputTokensDetails{CachedTokens: u.CachedContentTokenCount},
		OutputTokensDetails: api.OutputTokensDetails{ReasoningTokens: u.ThoughtsTokenCount},
	}
}

func mapFinishReason(reason string) api.ResponseStatus {
	switch reason {
	case "MAX_TOKENS", "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT":
		return api.ResponseStatusIncomplete
	default:
		return api.ResponseStatusCompleted
	}
}
