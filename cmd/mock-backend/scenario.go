package main

import "strings"

// prompt is the format-neutral view of a request the mock answers.
type prompt struct {
	Model     string
	LastUser  string
	HasSystem bool
	HasTools  bool
	HasImage  bool
	Stream    bool
}

// reply is the deterministic answer to a prompt.
type reply struct {
	Reasoning string
	Text      string
	ToolCall  *mockToolCall
}

type mockToolCall struct {
	ID        string
	Name      string
	Arguments string
}

const (
	promptTokens = 10
	toolCallID   = "call_mock_1"
)

// answer classifies a prompt. Tools win over everything else, then
// explicit prompts, then images, then a system prompt.
func answer(p prompt) reply {
	last := strings.ToLower(p.LastUser)
	switch {
	case p.HasTools:
		return reply{ToolCall: &mockToolCall{
			ID:        toolCallID,
			Name:      "get_weather",
			Arguments: `{"location":"San Francisco","unit":"celsius"}`,
		}}
	case strings.Contains(last, "count from 1 to 5"):
		return reply{Text: "1, 2, 3, 4, 5"}
	case strings.Contains(last, "think"):
		return reply{Reasoning: "The user wants an answer. 6 times 7 is 42.", Text: "The answer is 42."}
	case p.HasImage:
		return reply{Text: "I can see the image you shared. It appears to be a small red icon or symbol."}
	case p.HasSystem:
		return reply{Text: "Ahoy there, matey! Welcome aboard!"}
	default:
		return reply{Text: "Hello, nice day!"}
	}
}

// chunks splits s into the fragments streamed one per event.
func chunks(s string) []string {
	if s == "" {
		return nil
	}
	return strings.SplitAfter(s, " ")
}

// argumentChunks splits tool call arguments into two fragments so clients
// have to concatenate.
func argumentChunks(args string) []string {
	mid := len(args) / 2
	return []string{args[:mid], args[mid:]}
}

// outputTokens is the completion token count reported for r.
func (r reply) outputTokens() int {
	n := len(chunks(r.Text)) + len(chunks(r.Reasoning))
	if r.ToolCall != nil {
		n += 5
	}
	return n
}

func (r reply) reasoningTokens() int {
	return len(chunks(r.Reasoning))
}
