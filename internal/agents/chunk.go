package agents

import "strings"

// ChunkText splits text into overlapping chunks of roughly size runes,
// preferring to cut at paragraph then sentence boundaries near the limit.
func ChunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= size {
		return []string{string(runes)}
	}

	out := make([]string, 0, len(runes)/size+1)
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			out = append(out, strings.TrimSpace(string(runes[start:])))
			break
		}
		cut := findCut(runes, start, end)
		out = append(out, strings.TrimSpace(string(runes[start:cut])))
		next := cut - overlap
		if next <= start {
			next = cut
		}
		start = next
	}

	filtered := out[:0]
	for _, c := range out {
		if c != "" {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// findCut looks backwards from end for a paragraph break, then a sentence
// end, within the last quarter of the window.
func findCut(runes []rune, start, end int) int {
	floor := end - (end-start)/4
	for i := end - 1; i > floor; i-- {
		if runes[i] == '\n' && i > 0 && runes[i-1] == '\n' {
			return i
		}
	}
	for i := end - 1; i > floor; i-- {
		switch runes[i] {
		case '.', '!', '?', '。', '！', '？', '\n':
			return i + 1
		}
	}
	return end
}
