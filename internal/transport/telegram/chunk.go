package telegram

// ChunkMessage hard-splits text into pieces of at most limit runes, in
// order, so every piece fits the transport's message ceiling. No attempt
// is made to split on word boundaries.
func ChunkMessage(text string, limit int) []string {
	if limit <= 0 || text == "" {
		return []string{text}
	}

	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	chunks := make([]string, 0, len(runes)/limit+1)
	for start := 0; start < len(runes); start += limit {
		end := start + limit
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
