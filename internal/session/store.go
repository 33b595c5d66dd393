// Package session owns the per-user conversation state: ordered message
// history and user preferences, both process-lifetime only. The store is
// the single writer for this state; callers serialize a user's turn with
// LockUser so overlapping messages from one user cannot interleave their
// history mutations.
package session

import (
	"sync"
	"time"

	"github.com/entrepeneur4lyf/chatforge/internal/llm"
	"github.com/entrepeneur4lyf/chatforge/internal/models"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// SystemPreamble is the fixed persona instruction prepended to every
// prompt. It sets tone, bans markdown (chat transports render it poorly),
// and reminds the model that the conversation is continuous.
const SystemPreamble = `Answer briefly and to the point, the way people chat; use emoji where it fits.
Strictly avoid Markdown markup.
You are a helpful chat assistant.
The user may send text, documents, or images; when a file arrives you receive a description of its contents and can analyze it and answer questions about it.
IMPORTANT: you are holding an ongoing dialog with the user. Remember earlier messages and answer in the context of the conversation.`

// ChatMessage is one stored history entry. Immutable once created.
type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Preferences holds one user's tunable settings. Created on first
// interaction, mutated only by explicit commands.
type Preferences struct {
	PreferredModel string  `json:"preferredModel"`
	Temperature    float64 `json:"temperature"`
	MaxTokens      int     `json:"maxTokens"`
	ShowReasoning  bool    `json:"showReasoning"`
}

func defaultPreferences() *Preferences {
	return &Preferences{
		PreferredModel: models.AutoModelID,
		Temperature:    0.7,
		MaxTokens:      1024,
		ShowReasoning:  false,
	}
}

// MemoryStats summarizes a user's stored dialog for status reporting.
type MemoryStats struct {
	Messages          int
	UserMessages      int
	AssistantMessages int
	EstimatedTokens   int
	HistoryCap        int
	TokenBudget       int
}

// Store owns all per-user histories and preferences, keyed by user id.
type Store struct {
	mu      sync.Mutex
	history map[int64][]ChatMessage
	prefs   map[int64]*Preferences
	turns   map[int64]*sync.Mutex

	maxHistory       int
	tokenBudget      int
	tokenReserve     int
	estimatorDivisor int
}

// NewStore creates an empty store with the given bounds.
func NewStore(maxHistory, tokenBudget, tokenReserve, estimatorDivisor int) *Store {
	return &Store{
		history:          make(map[int64][]ChatMessage),
		prefs:            make(map[int64]*Preferences),
		turns:            make(map[int64]*sync.Mutex),
		maxHistory:       maxHistory,
		tokenBudget:      tokenBudget,
		tokenReserve:     tokenReserve,
		estimatorDivisor: estimatorDivisor,
	}
}

// LockUser serializes one logical turn for a user. It returns the unlock
// function; unrelated users are never serialized against each other.
func (s *Store) LockUser(userID int64) func() {
	s.mu.Lock()
	m, ok := s.turns[userID]
	if !ok {
		m = &sync.Mutex{}
		s.turns[userID] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Append adds a message to a user's history, dropping from the front when
// the count cap is exceeded. It never fails.
func (s *Store) Append(userID int64, role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := append(s.history[userID], ChatMessage{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	if len(h) > s.maxHistory {
		h = h[len(h)-s.maxHistory:]
	}
	s.history[userID] = h
}

// History returns a copy of a user's stored messages in order.
func (s *Store) History(userID int64) []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.history[userID]
	out := make([]ChatMessage, len(h))
	copy(out, h)
	return out
}

// BuildPrompt assembles the stored history as provider messages, with the
// system preamble prepended when requested. Pure read.
func (s *Store) BuildPrompt(userID int64, includeSystem bool) []llm.Message {
	history := s.History(userID)

	messages := make([]llm.Message, 0, len(history)+1)
	if includeSystem {
		messages = append(messages, llm.TextMessage(RoleSystem, SystemPreamble))
	}
	for _, msg := range history {
		messages = append(messages, llm.TextMessage(msg.Role, msg.Content))
	}
	return messages
}

// TrimToBudget applies the store's configured token budget to a prompt.
func (s *Store) TrimToBudget(messages []llm.Message) []llm.Message {
	return Trim(messages, s.tokenBudget, s.tokenReserve, s.estimatorDivisor)
}

// Clear removes a user's history entirely and returns how many messages
// were dropped. Clearing an absent user is a no-op.
func (s *Store) Clear(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.history[userID])
	delete(s.history, userID)
	return n
}

// Preferences returns the user's settings, creating defaults on first use.
// The returned value is a copy; mutations go through the setters.
func (s *Store) Preferences(userID int64) Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.prefsLocked(userID)
}

func (s *Store) prefsLocked(userID int64) *Preferences {
	p, ok := s.prefs[userID]
	if !ok {
		p = defaultPreferences()
		s.prefs[userID] = p
	}
	return p
}

// SetPreferredModel pins a model (or the auto sentinel) for a user.
func (s *Store) SetPreferredModel(userID int64, modelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefsLocked(userID).PreferredModel = modelID
}

// SetShowReasoning toggles whether reasoning sections are shown and
// returns the new value.
func (s *Store) SetShowReasoning(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.prefsLocked(userID)
	p.ShowReasoning = !p.ShowReasoning
	return p.ShowReasoning
}

// SetSampling overrides a user's temperature and max-token settings.
func (s *Store) SetSampling(userID int64, temperature float64, maxTokens int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.prefsLocked(userID)
	p.Temperature = temperature
	p.MaxTokens = maxTokens
}

// Stats reports the current memory usage of a user's dialog.
func (s *Store) Stats(userID int64) MemoryStats {
	history := s.History(userID)

	stats := MemoryStats{
		Messages:    len(history),
		HistoryCap:  s.maxHistory,
		TokenBudget: s.tokenBudget,
	}
	for _, msg := range history {
		stats.EstimatedTokens += EstimateTokens(msg.Content, s.estimatorDivisor)
		switch msg.Role {
		case RoleUser:
			stats.UserMessages++
		case RoleAssistant:
			stats.AssistantMessages++
		}
	}
	return stats
}
