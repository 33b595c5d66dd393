package session

import (
	"strings"
	"testing"

	"github.com/entrepeneur4lyf/chatforge/internal/llm"
)

func TestEstimateTokens(t *testing.T) {
	t.Run("Divides_Rune_Count", func(t *testing.T) {
		if got := EstimateTokens(strings.Repeat("a", 50), 5); got != 10 {
			t.Errorf("expected 10 tokens, got %d", got)
		}
	})

	t.Run("Counts_Runes_Not_Bytes", func(t *testing.T) {
		// 10 Cyrillic runes are 20 bytes; the estimate must track runes.
		if got := EstimateTokens(strings.Repeat("ж", 10), 5); got != 2 {
			t.Errorf("expected 2 tokens, got %d", got)
		}
	})

	t.Run("Empty_Is_Zero", func(t *testing.T) {
		if got := EstimateTokens("", 5); got != 0 {
			t.Errorf("expected 0 tokens, got %d", got)
		}
	})
}

func textTurns(n, runesEach int) []llm.Message {
	msgs := make([]llm.Message, n)
	for i := range msgs {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		msgs[i] = llm.TextMessage(role, strings.Repeat("x", runesEach))
	}
	return msgs
}

func TestTrim(t *testing.T) {
	t.Run("Under_Budget_Unchanged", func(t *testing.T) {
		msgs := textTurns(4, 100) // ~20 tokens each at divisor 5
		got := Trim(msgs, 8000, 500, 5)
		if len(got) != len(msgs) {
			t.Fatalf("expected %d messages, got %d", len(msgs), len(got))
		}
	})

	t.Run("Drops_Oldest_First", func(t *testing.T) {
		msgs := []llm.Message{
			llm.TextMessage(RoleUser, strings.Repeat("a", 500)),
			llm.TextMessage(RoleAssistant, strings.Repeat("b", 500)),
			llm.TextMessage(RoleUser, strings.Repeat("c", 500)),
		}
		// Each message is 100 tokens; budget 250 reserve 50 leaves room
		// for two.
		got := Trim(msgs, 250, 50, 5)
		if len(got) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(got))
		}
		if got[0].PlainText()[0] != 'b' || got[1].PlainText()[0] != 'c' {
			t.Error("trim dropped the wrong end of the history")
		}
	})

	t.Run("System_Message_Survives", func(t *testing.T) {
		msgs := append(
			[]llm.Message{llm.TextMessage(RoleSystem, strings.Repeat("s", 1000))},
			textTurns(10, 1000)...,
		)
		got := Trim(msgs, 300, 50, 5)
		if len(got) == 0 || got[0].Role != RoleSystem {
			t.Fatal("system message must survive trimming")
		}
	})

	t.Run("Newest_Message_Always_Kept", func(t *testing.T) {
		// One message alone already blows the budget; it must still be
		// sent rather than trimmed to nothing.
		msgs := []llm.Message{
			llm.TextMessage(RoleSystem, "sys"),
			llm.TextMessage(RoleUser, strings.Repeat("z", 100000)),
		}
		got := Trim(msgs, 100, 50, 5)
		if len(got) != 2 {
			t.Fatalf("expected system + newest message, got %d messages", len(got))
		}
		if got[1].Role != RoleUser {
			t.Error("newest user message missing after trim")
		}
	})

	t.Run("Terminates_On_Pathological_Input", func(t *testing.T) {
		msgs := textTurns(100, 100000)
		got := Trim(msgs, 10, 5, 5)
		if len(got) != 1 {
			t.Fatalf("expected exactly the newest message, got %d", len(got))
		}
	})
}
