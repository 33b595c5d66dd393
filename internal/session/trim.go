package session

import (
	"unicode/utf8"

	"github.com/entrepeneur4lyf/chatforge/internal/llm"
)

// EstimateTokens approximates the token cost of text as rune count divided
// by the configured divisor. The divisor is a rough average over mixed
// Latin/Cyrillic chat text, not tied to any real tokenizer.
func EstimateTokens(text string, divisor int) int {
	if divisor <= 0 {
		divisor = 1
	}
	return utf8.RuneCountInString(text) / divisor
}

// promptCost sums the estimated cost of a message list.
func promptCost(messages []llm.Message, divisor int) int {
	total := 0
	for _, msg := range messages {
		total += EstimateTokens(msg.PlainText(), divisor)
	}
	return total
}

// Trim drops messages from the front of the non-system portion until the
// estimated cost fits budget minus reserve. The reserve leaves room for
// the incoming user turn and the response. The system message, if present,
// is never removed, and the last remaining non-system message is kept even
// when it alone exceeds the budget, so trimming always terminates.
func Trim(messages []llm.Message, budget, reserve, divisor int) []llm.Message {
	if promptCost(messages, divisor) <= budget {
		return messages
	}

	var system []llm.Message
	rest := messages
	if len(messages) > 0 && messages[0].Role == RoleSystem {
		system = messages[:1]
		rest = messages[1:]
	}

	target := budget - reserve
	for len(rest) > 1 && promptCost(rest, divisor) > target {
		rest = rest[1:]
	}

	out := make([]llm.Message, 0, len(system)+len(rest))
	out = append(out, system...)
	out = append(out, rest...)
	return out
}
