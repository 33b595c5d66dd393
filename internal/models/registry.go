// Package models holds the static model catalog and the fixed candidate
// orderings the orchestrator tries during a turn.
package models

// AutoModelID is the pseudo-id users pick to delegate model choice. It is
// never sent to the provider; candidate selection resolves it to
// AutoPriority at call time.
const AutoModelID = "auto"

// ModelDescriptor describes one entry in the static catalog.
type ModelDescriptor struct {
	ID             string
	DisplayName    string
	SupportsVision bool
}

// Catalog is the static model catalog in declaration order. Declaration
// order doubles as the fallback order after a pinned model fails.
var Catalog = []ModelDescriptor{
	{ID: AutoModelID, DisplayName: "Auto (smart choice)"},
	{ID: "openai/gpt-oss-120b", DisplayName: "GPT-OSS-120B", SupportsVision: true},
	{ID: "openai/gpt-oss-20b", DisplayName: "GPT-OSS-20B"},
	{ID: "deepseek/deepseek-r1-0528:free", DisplayName: "DeepSeek R1 (free)"},
	{ID: "qwen/qwen3-235b-a22b:free", DisplayName: "Qwen3-235B (free)"},
	{ID: "qwen/qwen-2.5-coder-32b-instruct:free", DisplayName: "Qwen Coder (free)"},
	{ID: "moonshotai/kimi-k2", DisplayName: "Kimi K2", SupportsVision: true},
	{ID: "anthropic/claude-sonnet-4", DisplayName: "Claude Sonnet 4", SupportsVision: true},
	{ID: "google/gemini-2.5-pro", DisplayName: "Gemini 2.5 Pro", SupportsVision: true},
}

// autoPriority is the fixed general-purpose ordering used when the user
// preference is the auto sentinel.
var autoPriority = []string{
	"openai/gpt-oss-120b",
	"google/gemini-2.5-pro",
	"anthropic/claude-sonnet-4",
	"deepseek/deepseek-r1-0528:free",
	"qwen/qwen3-235b-a22b:free",
	"qwen/qwen-2.5-coder-32b-instruct:free",
	"moonshotai/kimi-k2",
	"openai/gpt-oss-20b",
}

// visionPriority is the fixed quality ordering for image content,
// restricted to vision-capable entries and distinct from the general list.
var visionPriority = []string{
	"google/gemini-2.5-pro",
	"anthropic/claude-sonnet-4",
	"openai/gpt-oss-120b",
	"moonshotai/kimi-k2",
}

// Lookup returns the descriptor for a model id.
func Lookup(id string) (ModelDescriptor, bool) {
	for _, m := range Catalog {
		if m.ID == id {
			return m, true
		}
	}
	return ModelDescriptor{}, false
}

// Exists reports whether id names a catalog entry (the auto sentinel
// included).
func Exists(id string) bool {
	_, ok := Lookup(id)
	return ok
}

// DisplayName returns the human-readable name for a model id, falling back
// to the id itself for unknown models.
func DisplayName(id string) string {
	if m, ok := Lookup(id); ok {
		return m.DisplayName
	}
	return id
}

// AutoPriority returns the candidate list for the auto sentinel.
func AutoPriority() []string {
	out := make([]string, len(autoPriority))
	copy(out, autoPriority)
	return out
}

// FallbackOrder returns the candidate list for a pinned model: the pinned
// model first, then the remaining catalog entries in declaration order,
// excluding the auto sentinel. An unknown pin still goes first; every
// catalog model backs it up.
func FallbackOrder(pinned string) []string {
	out := []string{pinned}
	for _, m := range Catalog {
		if m.ID == AutoModelID || m.ID == pinned {
			continue
		}
		out = append(out, m.ID)
	}
	return out
}

// VisionPriority returns the candidate list for image content when the
// preference is auto.
func VisionPriority() []string {
	out := make([]string, len(visionPriority))
	copy(out, visionPriority)
	return out
}

// VisionCandidates resolves the vision candidate list for a preference. A
// pinned vision-capable model is tried alone; a pinned non-vision model
// falls back to the best vision model, matching the original behavior of
// honoring the pin's intent without sending images to a text-only model.
func VisionCandidates(preferred string) []string {
	if preferred != AutoModelID {
		if m, ok := Lookup(preferred); ok && m.SupportsVision {
			return []string{preferred}
		}
		return []string{visionPriority[0]}
	}
	return VisionPriority()
}
