package llm

import (
	"context"
)

// Message represents a single conversation message in provider wire order.
type Message struct {
	Role    string         `json:"role"` // "system", "user", "assistant"
	Content []ContentBlock `json:"content"`
}

// ContentBlock represents different types of content in a message.
type ContentBlock interface {
	Type() string
}

// TextBlock represents plain text content.
type TextBlock struct {
	Text string `json:"text"`
}

func (t TextBlock) Type() string { return "text" }

// ImageURLBlock represents an image referenced by URL, used for vision
// requests where the provider fetches the image itself.
type ImageURLBlock struct {
	URL string `json:"url"`
}

func (i ImageURLBlock) Type() string { return "image_url" }

// TextMessage builds a message holding a single text block.
func TextMessage(role, text string) Message {
	return Message{Role: role, Content: []ContentBlock{TextBlock{Text: text}}}
}

// VisionMessage builds a user message pairing an instruction with an image
// reference, the structured content shape vision models expect.
func VisionMessage(instruction, imageURL string) Message {
	return Message{
		Role: "user",
		Content: []ContentBlock{
			TextBlock{Text: instruction},
			ImageURLBlock{URL: imageURL},
		},
	}
}

// PlainText flattens a message's text blocks into a single string. Image
// blocks contribute nothing; callers that need the image reference inspect
// the blocks directly.
func (m Message) PlainText() string {
	var out string
	for _, block := range m.Content {
		if tb, ok := block.(TextBlock); ok {
			out += tb.Text
		}
	}
	return out
}

// RequestOptions carries the per-request sampling configuration. The
// orchestrator fills it from user preferences for text turns and from the
// fixed vision defaults for image turns.
type RequestOptions struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
}

// ApiHandler is the core interface for a remote inference API.
type ApiHandler interface {
	// CreateMessage sends a chat request and returns a streaming response.
	// The stream is closed by the handler once the terminating sentinel
	// arrives or the connection drops.
	CreateMessage(ctx context.Context, opts RequestOptions, messages []Message) (ApiStream, error)

	// CompleteVision sends a non-streamed multimodal request and returns
	// the first choice's message content.
	CompleteVision(ctx context.Context, opts RequestOptions, messages []Message) (string, error)
}

// ApiHandlerOptions represents static configuration for API handlers.
type ApiHandlerOptions struct {
	APIKey string `json:"apiKey"`

	// Optional attribution headers (HTTP-Referer / X-Title).
	HTTPReferer string `json:"httpReferer,omitempty"`
	XTitle      string `json:"xTitle,omitempty"`

	RequestTimeoutMs int `json:"requestTimeoutMs,omitempty"`
}
