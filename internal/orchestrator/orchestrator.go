// Package orchestrator turns one user input into one assistant reply,
// walking an ordered candidate list of models until a provider succeeds.
// Only a successful attempt commits the turn to the session store; failed
// attempts leave no trace in history.
package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/entrepeneur4lyf/chatforge/internal/llm"
	"github.com/entrepeneur4lyf/chatforge/internal/models"
	"github.com/entrepeneur4lyf/chatforge/internal/session"
)

// Vision requests use fixed sampling, independent of user preferences:
// low temperature for faithful transcription, generous output room.
const (
	visionTemperature = 0.3
	visionMaxTokens   = 2048
)

// ExhaustedError reports that every candidate in the fallback chain
// failed. LastErr is the final attempt's error.
type ExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d model candidates failed: %v", e.Attempts, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error { return e.LastErr }

// Orchestrator coordinates candidate selection, invocation, aggregation,
// and the history commit for a turn.
type Orchestrator struct {
	handler llm.ApiHandler
	store   *session.Store
	logger  *log.Logger
}

// New creates an orchestrator over the given provider handler and session
// store.
func New(handler llm.ApiHandler, store *session.Store, logger *log.Logger) *Orchestrator {
	return &Orchestrator{handler: handler, store: store, logger: logger}
}

// Respond produces an assistant reply for a plain-text user turn. On
// success the user turn and the reply are appended to the user's history.
// On exhaustion it returns an ExhaustedError; FailureMessage renders it
// for the user.
func (o *Orchestrator) Respond(ctx context.Context, userID int64, userContent string) (string, error) {
	prefs := o.store.Preferences(userID)

	var candidates []string
	if prefs.PreferredModel == models.AutoModelID {
		candidates = models.AutoPriority()
	} else {
		candidates = models.FallbackOrder(prefs.PreferredModel)
	}

	prompt := o.store.BuildPrompt(userID, true)
	prompt = append(prompt, llm.TextMessage(session.RoleUser, userContent))
	prompt = o.store.TrimToBudget(prompt)

	var lastErr error
	for _, model := range candidates {
		opts := llm.RequestOptions{
			Model:       model,
			Temperature: prefs.Temperature,
			MaxTokens:   prefs.MaxTokens,
		}

		text, err := o.attemptStream(ctx, opts, prompt)
		if err != nil {
			lastErr = err
			o.logger.Warn("model attempt failed, trying next candidate",
				"model", model, "err", err)
			continue
		}

		o.logger.Info("model responded", "model", model, "chars", len(text))
		o.store.Append(userID, session.RoleUser, userContent)
		o.store.Append(userID, session.RoleAssistant, text)
		return text, nil
	}

	return "", &ExhaustedError{Attempts: len(candidates), LastErr: lastErr}
}

// RespondVision produces an analysis for an image turn. The new turn's
// content is a structured pair of instruction text and image reference;
// the response is a single non-streamed payload. Returns the analysis and
// the model that produced it.
func (o *Orchestrator) RespondVision(ctx context.Context, userID int64, instruction, imageURL string) (string, string, error) {
	prefs := o.store.Preferences(userID)
	candidates := models.VisionCandidates(prefs.PreferredModel)

	prompt := o.store.BuildPrompt(userID, true)
	prompt = append(prompt, llm.VisionMessage(instruction, imageURL))
	prompt = o.store.TrimToBudget(prompt)

	var lastErr error
	for _, model := range candidates {
		opts := llm.RequestOptions{
			Model:       model,
			Temperature: visionTemperature,
			MaxTokens:   visionMaxTokens,
		}

		text, err := o.handler.CompleteVision(ctx, opts, prompt)
		if err != nil {
			lastErr = err
			o.logger.Warn("vision attempt failed, trying next candidate",
				"model", model, "err", err)
			continue
		}

		o.logger.Info("image analyzed", "model", model)
		o.store.Append(userID, session.RoleUser, "[image] "+instruction)
		o.store.Append(userID, session.RoleAssistant, text)
		return text, model, nil
	}

	return "", "", &ExhaustedError{Attempts: len(candidates), LastErr: lastErr}
}

// attemptStream runs a single streaming attempt and aggregates the result.
// Empty aggregates count as failures so the chain advances.
func (o *Orchestrator) attemptStream(ctx context.Context, opts llm.RequestOptions, prompt []llm.Message) (string, error) {
	stream, err := o.handler.CreateMessage(ctx, opts, prompt)
	if err != nil {
		return "", err
	}

	text, err := llm.Drain(ctx, stream)
	if err != nil {
		return "", &llm.TransportError{Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return "", &llm.EmptyResultError{Model: opts.Model}
	}
	return text, nil
}

// FailureMessage renders an exhausted fallback chain as a user-facing
// message, distinguishing connectivity failures from provider-side ones.
func FailureMessage(err error) string {
	var ex *ExhaustedError
	if e, ok := err.(*ExhaustedError); ok {
		ex = e
	} else {
		return fmt.Sprintf("Failed to get a reply: %v", err)
	}

	last := ex.LastErr
	switch {
	case last == nil:
		return "Failed to get a reply from any model."
	case llm.IsConnectivity(last):
		return fmt.Sprintf("Connection error talking to the AI service: %v. Please try again later.", last)
	case llm.StatusCode(last) != 0:
		return fmt.Sprintf("Sorry, all AI models are temporarily unavailable (last error: HTTP %d). Please try again later.", llm.StatusCode(last))
	default:
		return fmt.Sprintf("Sorry, all AI models are temporarily unavailable: %v. Please try again later.", last)
	}
}

var thinkPattern = regexp.MustCompile(`(?is)<think>.*?</think>\s*`)

// StripReasoning removes <think> sections from a reply for users who have
// reasoning display turned off.
func StripReasoning(text string) string {
	return strings.TrimSpace(thinkPattern.ReplaceAllString(text, ""))
}
