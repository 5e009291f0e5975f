package tts

import "strings"

// SentenceBuffer accumulates streamed tokens and extracts complete sentences,
// so synthesis can start on the first finished sentence instead of waiting
// for the whole response.
type SentenceBuffer struct {
	buffer strings.Builder
}

// NewSentenceBuffer creates an empty buffer.
func NewSentenceBuffer() *SentenceBuffer {
	return &SentenceBuffer{}
}

// Add appends text and returns any complete sentences.
func (b *SentenceBuffer) Add(text string) []string {
	b.buffer.WriteString(text)

	content := b.buffer.String()
	var sentences []string

	lastEnd := 0
	for i := 0; i < len(content); i++ {
		if isSentenceEnd(content, i) {
			sentence := strings.TrimSpace(content[lastEnd : i+1])
			if sentence != "" {
				sentences = append(sentences, sentence)
			}
			lastEnd = i + 1
		}
	}

	if lastEnd > 0 {
		rest := content[lastEnd:]
		b.buffer.Reset()
		b.buffer.WriteString(rest)
	}

	return sentences
}

// Flush returns any remaining text and clears the buffer.
func (b *SentenceBuffer) Flush() string {
	result := strings.TrimSpace(b.buffer.String())
	b.buffer.Reset()
	return result
}

// isSentenceEnd checks if position i is a sentence boundary.
func isSentenceEnd(s string, i int) bool {
	c := s[i]
	if c != '.' && c != '!' && c != '?' {
		return false
	}
	if c == '.' && isAbbreviation(s, i) {
		return false
	}
	// Require whitespace or end of string after the terminator.
	if i+1 < len(s) && s[i+1] != ' ' && s[i+1] != '\n' && s[i+1] != '\t' {
		return false
	}
	return true
}

// isAbbreviation guards against treating "Dr." or "2 p.m." as a boundary.
func isAbbreviation(s string, i int) bool {
	if i < 1 {
		return false
	}

	abbreviations := []string{
		"Dr.", "Mr.", "Mrs.", "Ms.", "Jr.", "Sr.", "St.",
		"Inc.", "Ltd.", "Co.", "vs.", "etc.",
		"i.e.", "e.g.", "a.m.", "p.m.",
	}

	start := i
	for start > 0 && s[start-1] != ' ' && s[start-1] != '\n' {
		start--
	}
	word := s[start : i+1]

	for _, abbr := range abbreviations {
		if strings.EqualFold(word, abbr) {
			return true
		}
	}

	// Single uppercase initial followed by a period.
	if s[i-1] >= 'A' && s[i-1] <= 'Z' {
		if i < 2 || s[i-2] == ' ' || s[i-2] == '\n' {
			return true
		}
	}

	return false
}
