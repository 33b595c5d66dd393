package llm

import (
	"context"
)

// ApiStream represents a stream of API response chunks.
type ApiStream <-chan ApiStreamChunk

// ApiStreamChunk represents different types of streaming responses.
type ApiStreamChunk interface {
	Type() string
}

// ApiStreamTextChunk represents an incremental content fragment.
type ApiStreamTextChunk struct {
	Text string `json:"text"`
}

func (c ApiStreamTextChunk) Type() string { return "text" }

// ApiStreamUsageChunk represents token usage reported at end of stream.
type ApiStreamUsageChunk struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

func (c ApiStreamUsageChunk) Type() string { return "usage" }

// ApiStreamErrorChunk reports that the stream broke before completing:
// a read error mid-stream, or the connection ending without the
// terminating sentinel. It is always the last chunk before close.
type ApiStreamErrorChunk struct {
	Err error `json:"-"`
}

func (c ApiStreamErrorChunk) Type() string { return "error" }

// StreamCollector aggregates stream chunks into a final response text.
// Fragments are concatenated in arrival order.
type StreamCollector struct {
	chunks []string
	usage  *ApiStreamUsageChunk
}

// NewStreamCollector creates an empty collector.
func NewStreamCollector() *StreamCollector {
	return &StreamCollector{chunks: make([]string, 0)}
}

// Collect processes one stream chunk.
func (sc *StreamCollector) Collect(chunk ApiStreamChunk) {
	switch c := chunk.(type) {
	case ApiStreamTextChunk:
		sc.chunks = append(sc.chunks, c.Text)
	case ApiStreamUsageChunk:
		sc.usage = &c
	}
}

// FullText returns the concatenation of all text fragments seen so far.
func (sc *StreamCollector) FullText() string {
	var out string
	for _, c := range sc.chunks {
		out += c
	}
	return out
}

// Usage returns the usage chunk if the provider reported one.
func (sc *StreamCollector) Usage() *ApiStreamUsageChunk {
	return sc.usage
}

// Drain consumes an entire stream and returns the aggregated text. A
// stream that breaks mid-flight surfaces its error chunk here, so a
// truncated reply is never mistaken for a complete one. It returns the
// context error if the caller is cancelled mid-stream; in both failure
// cases the partial text is discarded by callers treating the attempt as
// failed.
func Drain(ctx context.Context, stream ApiStream) (string, error) {
	collector := NewStreamCollector()
	for {
		select {
		case chunk, ok := <-stream:
			if !ok {
				return collector.FullText(), nil
			}
			if ec, isErr := chunk.(ApiStreamErrorChunk); isErr {
				return collector.FullText(), ec.Err
			}
			collector.Collect(chunk)
		case <-ctx.Done():
			return collector.FullText(), ctx.Err()
		}
	}
}
