package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/entrepeneur4lyf/chatforge/internal/llm"
)

// OpenRouterHandler implements the ApiHandler interface for OpenRouter's
// unified API. A single bearer token gives access to every model in the
// catalog, which is what makes the orchestrator's fallback chain cheap.
type OpenRouterHandler struct {
	options llm.ApiHandlerOptions
	client  *http.Client
	baseURL string
}

// OpenRouterRequest represents the request to the chat completions API.
type OpenRouterRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

// wireMessage is the OpenAI-compatible message shape. Content is a plain
// string for text messages and an array of typed parts for vision messages.
type wireMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type wireContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *wireImageURL `json:"image_url,omitempty"`
}

type wireImageURL struct {
	URL string `json:"url"`
}

// OpenRouterStreamEvent represents a streaming event.
type OpenRouterStreamEvent struct {
	Choices []OpenRouterStreamChoice `json:"choices"`
	Usage   *OpenRouterUsage         `json:"usage,omitempty"`
}

// OpenRouterStreamChoice represents a choice in the stream.
type OpenRouterStreamChoice struct {
	Index        int                   `json:"index"`
	Delta        OpenRouterStreamDelta `json:"delta"`
	FinishReason *string               `json:"finish_reason"`
}

// OpenRouterStreamDelta represents delta content.
type OpenRouterStreamDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// OpenRouterUsage represents token usage.
type OpenRouterUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// OpenRouterCompletion represents a non-streamed response body.
type OpenRouterCompletion struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *OpenRouterUsage `json:"usage,omitempty"`
}

// NewOpenRouterHandler creates a new OpenRouter handler.
func NewOpenRouterHandler(options llm.ApiHandlerOptions) *OpenRouterHandler {
	timeout := 60 * time.Second
	if options.RequestTimeoutMs > 0 {
		timeout = time.Duration(options.RequestTimeoutMs) * time.Millisecond
	}

	return &OpenRouterHandler{
		options: options,
		client:  &http.Client{Timeout: timeout},
		baseURL: "https://openrouter.ai/api/v1",
	}
}

// CreateMessage implements the ApiHandler interface.
func (h *OpenRouterHandler) CreateMessage(ctx context.Context, opts llm.RequestOptions, messages []llm.Message) (llm.ApiStream, error) {
	request := OpenRouterRequest{
		Model:     opts.Model,
		Messages:  convertMessages(messages),
		Stream:    true,
		MaxTokens: opts.MaxTokens,
	}
	temp := opts.Temperature
	request.Temperature = &temp

	resp, err := h.post(ctx, request)
	if err != nil {
		return nil, err
	}

	streamChan := make(chan llm.ApiStreamChunk, 100)

	go func() {
		defer close(streamChan)
		defer resp.Body.Close()

		h.processStream(resp.Body, streamChan)
	}()

	return streamChan, nil
}

// CompleteVision implements the ApiHandler interface. Vision requests are
// not streamed; the full payload arrives in a single response body.
func (h *OpenRouterHandler) CompleteVision(ctx context.Context, opts llm.RequestOptions, messages []llm.Message) (string, error) {
	request := OpenRouterRequest{
		Model:     opts.Model,
		Messages:  convertMessages(messages),
		Stream:    false,
		MaxTokens: opts.MaxTokens,
	}
	temp := opts.Temperature
	request.Temperature = &temp

	resp, err := h.post(ctx, request)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var completion OpenRouterCompletion
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", &llm.TransportError{Err: fmt.Errorf("decoding response: %w", err)}
	}

	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return "", &llm.EmptyResultError{Model: opts.Model}
	}
	return completion.Choices[0].Message.Content, nil
}

// post sends the request and maps failures onto the error taxonomy. The
// caller owns resp.Body on success.
func (h *OpenRouterHandler) post(ctx context.Context, request OpenRouterRequest) (*http.Response, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", h.baseURL+"/chat/completions", bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.options.APIKey)

	// Optional headers for app identification and ranking.
	if h.options.HTTPReferer != "" {
		req.Header.Set("HTTP-Referer", h.options.HTTPReferer)
	}
	if h.options.XTitle != "" {
		req.Header.Set("X-Title", h.options.XTitle)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &llm.TransportError{Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &llm.ProviderError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return resp, nil
}

// processStream reads SSE events until the [DONE] sentinel, forwarding
// content deltas in arrival order. A stream that ends any other way,
// whether by read error or by the connection closing early, is reported
// with a trailing error chunk so the caller never mistakes a truncated
// reply for a complete one.
func (h *OpenRouterHandler) processStream(reader io.Reader, streamChan chan<- llm.ApiStreamChunk) {
	scanner := NewSSEScanner(reader)

	for scanner.Scan() {
		event := scanner.Event()

		if event.Type != "data" {
			continue
		}

		if strings.TrimSpace(event.Data) == "[DONE]" {
			return
		}

		var streamEvent OpenRouterStreamEvent
		if err := json.Unmarshal([]byte(event.Data), &streamEvent); err != nil {
			continue // skip malformed events
		}

		for _, choice := range streamEvent.Choices {
			if choice.Delta.Content != "" {
				streamChan <- llm.ApiStreamTextChunk{Text: choice.Delta.Content}
			}
		}

		if streamEvent.Usage != nil {
			streamChan <- llm.ApiStreamUsageChunk{
				InputTokens:  streamEvent.Usage.PromptTokens,
				OutputTokens: streamEvent.Usage.CompletionTokens,
			}
		}
	}

	// The loop can only exit here without the sentinel.
	if err := scanner.Err(); err != nil {
		streamChan <- llm.ApiStreamErrorChunk{Err: fmt.Errorf("stream read failed: %w", err)}
		return
	}
	streamChan <- llm.ApiStreamErrorChunk{Err: fmt.Errorf("stream ended before completion sentinel: %w", io.ErrUnexpectedEOF)}
}

// convertMessages maps internal messages onto the OpenAI-compatible wire
// shape. Messages whose content is a single text block collapse to a plain
// string; anything carrying an image becomes a typed part array.
func convertMessages(messages []llm.Message) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for _, msg := range messages {
		if len(msg.Content) == 1 {
			if tb, ok := msg.Content[0].(llm.TextBlock); ok {
				out = append(out, wireMessage{Role: msg.Role, Content: tb.Text})
				continue
			}
		}

		parts := make([]wireContentPart, 0, len(msg.Content))
		for _, block := range msg.Content {
			switch b := block.(type) {
			case llm.TextBlock:
				parts = append(parts, wireContentPart{Type: "text", Text: b.Text})
			case llm.ImageURLBlock:
				parts = append(parts, wireContentPart{
					Type:     "image_url",
					ImageURL: &wireImageURL{URL: b.URL},
				})
			}
		}
		out = append(out, wireMessage{Role: msg.Role, Content: parts})
	}
	return out
}
