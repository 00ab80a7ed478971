package api

import "encoding/json"

// ChatMessage is one entry of a Chat Completions style "messages" array.
type ChatMessage struct {
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content,omitempty"`
	Name       string          `json:"name,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolCalls  []ChatToolCall  `json:"tool_calls,omitempty"`
}

// ChatToolCall is a tool call made by an assistant message.
type ChatToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// MessagesToItems converts chat-style messages into input items.
// System and developer messages stay in place with their role so each
// backend can collapse them into its own system prompt. Assistant tool
// calls become function_call items following the assistant text, tool
// messages become function_call_output items. Messages with an unknown
// role are skipped.
func MessagesToItems(msgs []ChatMessage) []Item {
	items := make([]Item, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system", "developer", "function":
			role := RoleSystem
			if m.Role == "developer" {
				role = RoleDeveloper
			}
			items = append(items, textItem(role, contentText(m.Content)))

		case "user":
			msg, err := decodeMessageContent(RoleUser, m.Content)
			if err != nil {
				msg = &MessageData{Role: RoleUser, Content: []ContentPart{{Type: "input_text", Text: string(m.Content)}}}
			}
			items = append(items, Item{Type: ItemTypeMessage, Message: msg})

		case "assistant":
			if text := contentText(m.Content); text != "" {
				items = append(items, textItem(RoleAssistant, text))
			}
			for _, tc := range m.ToolCalls {
				items = append(items, Item{
					Type: ItemTypeFunctionCall,
					FunctionCall: &FunctionCallData{
						Name:      tc.Function.Name,
						CallID:    tc.ID,
						Arguments: tc.Function.Arguments,
					},
				})
			}

		case "tool":
			items = append(items, Item{
				Type: ItemTypeFunctionCallOutput,
				FunctionCallOutput: &FunctionCallOutputData{
					CallID: m.ToolCallID,
					Output: contentText(m.Content),
				},
			})
		}
	}
	return items
}

func textItem(role MessageRole, text string) Item {
	msg := &MessageData{Role: role}
	if role == RoleAssistant {
		msg.Output = []OutputContentPart{{Type: PartOutputText, Text: text}}
	} else {
		msg.Content = []ContentPart{{Type: "input_text", Text: text}}
	}
	return Item{Type: ItemTypeMessage, Message: msg}
}

// contentText flattens string or part-array content into plain text.
// Any other JSON value is kept verbatim.
func contentText(raw json.RawMessage) string {
	if len(raw) == 0 || isJSONNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err == nil {
		var text string
		for _, p := range parts {
			text += p.Text
		}
		return text
	}
	return string(raw)
}
