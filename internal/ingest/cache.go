package ingest

import (
	"os"
	"sync"
	"time"
)

// Signature identifies a file's content cheaply: byte size plus
// modification time. Good enough for a staging directory the process
// itself writes; a content hash would cost a full read.
type Signature struct {
	Size    int64
	ModTime int64
}

// FileSignature builds the cache signature for a staged file.
func FileSignature(path string) (Signature, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Signature{}, err
	}
	return Signature{Size: info.Size(), ModTime: info.ModTime().UnixNano()}, nil
}

// ExtractCache memoizes extraction output keyed by file signature.
// Eviction is least-recently-inserted: insertion order is tracked
// explicitly rather than approximated by key ordering.
type ExtractCache struct {
	mu      sync.Mutex
	entries map[Signature]string
	order   []Signature
	cap     int
}

// NewExtractCache creates a cache bounded to cap entries.
func NewExtractCache(capacity int) *ExtractCache {
	if capacity < 1 {
		capacity = 1
	}
	return &ExtractCache{
		entries: make(map[Signature]string),
		cap:     capacity,
	}
}

// Get returns the cached text for a signature.
func (c *ExtractCache) Get(sig Signature) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	text, ok := c.entries[sig]
	return text, ok
}

// Put stores extraction output, evicting the oldest insertion when the
// cap is exceeded. Re-inserting an existing signature updates the value
// without changing its insertion position.
func (c *ExtractCache) Put(sig Signature, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[sig]; exists {
		c.entries[sig] = text
		return
	}

	c.entries[sig] = text
	c.order = append(c.order, sig)

	for len(c.order) > c.cap {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// Len returns the number of cached entries.
func (c *ExtractCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// PurgeStaging removes staged files older than the retention window. Runs
// opportunistically at process start and stop, never on the request path.
func PurgeStaging(dir string, retention time.Duration) (removed int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	cutoff := time.Now().Add(-retention)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(dir + string(os.PathSeparator) + entry.Name()); err == nil {
				removed++
			}
		}
	}
	return removed
}
