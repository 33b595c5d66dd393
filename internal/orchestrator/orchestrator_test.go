package orchestrator

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/entrepeneur4lyf/chatforge/internal/llm"
	"github.com/entrepeneur4lyf/chatforge/internal/models"
	"github.com/entrepeneur4lyf/chatforge/internal/session"
)

// fakeHandler scripts provider behavior per attempt: the first failCount
// calls fail with failErr, later calls succeed with reply.
type fakeHandler struct {
	mu        sync.Mutex
	calls     []string
	failCount int
	failErr   error
	reply     string
}

func (f *fakeHandler) record(model string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, model)
	return len(f.calls) <= f.failCount
}

func (f *fakeHandler) CreateMessage(_ context.Context, opts llm.RequestOptions, _ []llm.Message) (llm.ApiStream, error) {
	if f.record(opts.Model) {
		return nil, f.failErr
	}
	ch := make(chan llm.ApiStreamChunk, 2)
	ch <- llm.ApiStreamTextChunk{Text: f.reply}
	close(ch)
	return ch, nil
}

func (f *fakeHandler) CompleteVision(_ context.Context, opts llm.RequestOptions, _ []llm.Message) (string, error) {
	if f.record(opts.Model) {
		return "", f.failErr
	}
	return f.reply, nil
}

func (f *fakeHandler) models() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// truncatingHandler delivers a stream that breaks mid-reply on the first
// call and a complete stream afterwards.
type truncatingHandler struct {
	mu      sync.Mutex
	calls   int
	partial string
	full    string
}

func (h *truncatingHandler) CreateMessage(context.Context, llm.RequestOptions, []llm.Message) (llm.ApiStream, error) {
	h.mu.Lock()
	h.calls++
	first := h.calls == 1
	h.mu.Unlock()

	ch := make(chan llm.ApiStreamChunk, 2)
	if first {
		ch <- llm.ApiStreamTextChunk{Text: h.partial}
		ch <- llm.ApiStreamErrorChunk{Err: errors.New("connection reset mid-stream")}
	} else {
		ch <- llm.ApiStreamTextChunk{Text: h.full}
	}
	close(ch)
	return ch, nil
}

func (h *truncatingHandler) CompleteVision(context.Context, llm.RequestOptions, []llm.Message) (string, error) {
	return "", errors.New("not used")
}

func (h *truncatingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func newTestOrchestrator(h llm.ApiHandler) (*Orchestrator, *session.Store) {
	store := session.NewStore(20, 8000, 500, 5)
	logger := log.New(io.Discard)
	return New(h, store, logger), store
}

func TestRespond(t *testing.T) {
	t.Run("Fallback_Advances_Through_Candidates", func(t *testing.T) {
		h := &fakeHandler{failCount: 2, failErr: &llm.ProviderError{StatusCode: 429}, reply: "finally"}
		o, store := newTestOrchestrator(h)

		reply, err := o.Respond(context.Background(), 1, "hello")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if reply != "finally" {
			t.Errorf("wrong reply %q", reply)
		}

		want := models.AutoPriority()[:3]
		got := h.models()
		if len(got) != 3 {
			t.Fatalf("expected 3 attempts, got %d", len(got))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("attempt %d used %q, want %q", i, got[i], want[i])
			}
		}

		history := store.History(1)
		if len(history) != 2 {
			t.Fatalf("expected user+assistant in history, got %d entries", len(history))
		}
		if history[0].Content != "hello" || history[1].Content != "finally" {
			t.Error("wrong history contents after successful turn")
		}
	})

	t.Run("Exhaustion_Leaves_No_History", func(t *testing.T) {
		h := &fakeHandler{failCount: 100, failErr: &llm.ProviderError{StatusCode: 503}}
		o, store := newTestOrchestrator(h)

		_, err := o.Respond(context.Background(), 1, "hello")
		var ex *ExhaustedError
		if !errors.As(err, &ex) {
			t.Fatalf("expected ExhaustedError, got %v", err)
		}
		if ex.Attempts != len(models.AutoPriority()) {
			t.Errorf("expected %d attempts, got %d", len(models.AutoPriority()), ex.Attempts)
		}
		if len(store.History(1)) != 0 {
			t.Error("failed turn must not touch history")
		}
	})

	t.Run("Empty_Reply_Counts_As_Failure", func(t *testing.T) {
		h := &fakeHandler{failCount: 0, reply: "   "}
		o, _ := newTestOrchestrator(h)

		_, err := o.Respond(context.Background(), 1, "hello")
		var ex *ExhaustedError
		if !errors.As(err, &ex) {
			t.Fatalf("expected exhaustion on all-empty replies, got %v", err)
		}
		var empty *llm.EmptyResultError
		if !errors.As(ex.LastErr, &empty) {
			t.Errorf("expected EmptyResultError cause, got %v", ex.LastErr)
		}
	})

	t.Run("Truncated_Stream_Advances_Chain", func(t *testing.T) {
		// The first candidate's stream breaks mid-reply; the partial text
		// must be discarded and the next candidate's complete reply
		// committed instead.
		h := &truncatingHandler{partial: "partial answer", full: "complete answer"}
		o, store := newTestOrchestrator(h)

		reply, err := o.Respond(context.Background(), 1, "hello")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if reply != "complete answer" {
			t.Errorf("expected the second candidate's reply, got %q", reply)
		}
		if h.count() != 2 {
			t.Errorf("expected 2 attempts, got %d", h.count())
		}

		history := store.History(1)
		if len(history) != 2 || history[1].Content != "complete answer" {
			t.Fatalf("partial reply leaked into history: %+v", history)
		}
	})

	t.Run("Pinned_Model_Tried_First", func(t *testing.T) {
		h := &fakeHandler{reply: "ok"}
		o, store := newTestOrchestrator(h)
		store.SetPreferredModel(1, "moonshotai/kimi-k2")

		if _, err := o.Respond(context.Background(), 1, "hello"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := h.models(); got[0] != "moonshotai/kimi-k2" {
			t.Errorf("pinned model not tried first, got %q", got[0])
		}
	})
}

func TestRespondVision(t *testing.T) {
	t.Run("Commits_Tagged_History_Entry", func(t *testing.T) {
		h := &fakeHandler{reply: "a red bicycle"}
		o, store := newTestOrchestrator(h)

		text, model, err := o.RespondVision(context.Background(), 1, "describe", "https://files.example/img.jpg")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if text != "a red bicycle" {
			t.Errorf("wrong analysis %q", text)
		}
		if model != models.VisionPriority()[0] {
			t.Errorf("expected best vision model, got %q", model)
		}

		history := store.History(1)
		if len(history) != 2 {
			t.Fatalf("expected 2 history entries, got %d", len(history))
		}
		if !strings.HasPrefix(history[0].Content, "[image] ") {
			t.Errorf("user turn not tagged as image: %q", history[0].Content)
		}
	})

	t.Run("Walks_Vision_Chain", func(t *testing.T) {
		h := &fakeHandler{failCount: 1, failErr: &llm.ProviderError{StatusCode: 500}, reply: "got it"}
		o, _ := newTestOrchestrator(h)

		_, model, err := o.RespondVision(context.Background(), 1, "describe", "https://files.example/img.jpg")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if model != models.VisionPriority()[1] {
			t.Errorf("expected second vision candidate, got %q", model)
		}
	})
}

func TestFailureMessage(t *testing.T) {
	t.Run("Connectivity", func(t *testing.T) {
		err := &ExhaustedError{Attempts: 3, LastErr: &llm.TransportError{Err: errors.New("dial tcp: timeout")}}
		msg := FailureMessage(err)
		if !strings.Contains(msg, "Connection error") {
			t.Errorf("expected connectivity wording, got %q", msg)
		}
	})

	t.Run("Provider_Status", func(t *testing.T) {
		err := &ExhaustedError{Attempts: 3, LastErr: &llm.ProviderError{StatusCode: 429}}
		msg := FailureMessage(err)
		if !strings.Contains(msg, "HTTP 429") {
			t.Errorf("expected status in message, got %q", msg)
		}
	})

	t.Run("Generic_Error", func(t *testing.T) {
		msg := FailureMessage(errors.New("boom"))
		if !strings.Contains(msg, "boom") {
			t.Errorf("expected cause in message, got %q", msg)
		}
	})
}

func TestStripReasoning(t *testing.T) {
	t.Run("Removes_Think_Section", func(t *testing.T) {
		in := "<think>let me reason\nabout this</think>The answer is 4."
		if got := StripReasoning(in); got != "The answer is 4." {
			t.Errorf("got %q", got)
		}
	})

	t.Run("Case_Insensitive_Multiline", func(t *testing.T) {
		in := "<THINK>\nhmm\n</THINK>\n\nDone."
		if got := StripReasoning(in); got != "Done." {
			t.Errorf("got %q", got)
		}
	})

	t.Run("No_Think_Unchanged", func(t *testing.T) {
		if got := StripReasoning("plain reply"); got != "plain reply" {
			t.Errorf("got %q", got)
		}
	})
}
