package providers

import (
	"bufio"
	"io"
	"strings"
)

// SSEEvent represents a Server-Sent Event.
type SSEEvent struct {
	Type string
	Data string
}

// SSEScanner scans Server-Sent Events from a reader. Events may span
// multiple reads, so scanning is line-buffered rather than chunk-buffered.
type SSEScanner struct {
	scanner *bufio.Scanner
	event   SSEEvent
}

// NewSSEScanner creates a new SSE scanner.
func NewSSEScanner(reader io.Reader) *SSEScanner {
	s := bufio.NewScanner(reader)
	// Content deltas are small, but a single data line can carry a full
	// JSON payload; allow up to 1 MiB per line.
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &SSEScanner{scanner: s}
}

// Scan advances to the next complete event. It returns false at EOF or on
// a read error.
func (s *SSEScanner) Scan() bool {
	var current SSEEvent
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())

		if line == "" {
			// Blank line terminates an event.
			if current.Type != "" || current.Data != "" {
				s.event = current
				return true
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, ":"):
			// Comment line, ignored.
		case strings.HasPrefix(line, "event:"):
			current.Type = strings.TrimSpace(line[len("event:"):])
		case strings.HasPrefix(line, "data:"):
			if current.Type == "" {
				current.Type = "data"
			}
			if current.Data != "" {
				current.Data += "\n"
			}
			current.Data += strings.TrimSpace(line[len("data:"):])
		}
	}

	// Flush a trailing event not followed by a blank line.
	if current.Type != "" || current.Data != "" {
		s.event = current
		return true
	}
	return false
}

// Event returns the most recently scanned event.
func (s *SSEScanner) Event() SSEEvent {
	return s.event
}

// Err returns the first read error encountered, if any. A false Scan with
// a nil Err means clean EOF; callers deciding whether a stream completed
// must check both.
func (s *SSEScanner) Err() error {
	return s.scanner.Err()
}
