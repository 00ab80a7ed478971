package openaicompat

import "strings"

// Zhipu has no native reasoning-effort parameter. High effort is requested
// by appending a system reminder after the conversation instead.

const highReasoningReminder = `You are in extended thinking mode. Use your full reasoning capacity and spend as many tokens on reasoning as the problem deserves.
Think with these habits:
- Systems thinking: map the relationships first and make cause and effect explicit.
- Contrarian checking: actively look for gaps and counterexamples in the mainstream view.
- First principles: reduce the problem to what is known to be true before building on it.
- Self-review: re-read your reasoning for errors before you answer.`

const xhighReasoningExtra = `
On top of that, strengthen your reasoning further:
- List at least three key reasoning steps as a numbered list and follow each with one sentence starting "My uncertainty in this step is: ...".
- Add plausible counterexamples, alternative explanations or risk estimates, and point out what needs further verification.
- Finish with a "Conclusions and recommendations" section that states your confidence level.`

// reasoningReminder returns the system message content for effort, or ""
// when the effort does not call for one.
func reasoningReminder(effort string) string {
	var text string
	switch strings.ToLower(effort) {
	case "high":
		text = highReasoningReminder
	case "xhigh":
		text = highReasoningReminder + "\n" + xhighReasoningExtra
	default:
		return ""
	}
	return "<system-reminder>" + text + "</system-reminder>"
}
