package flow

import "unicode/utf8"

const (
	// MaxMessageRunes is the longest reply sent as a single message.
	MaxMessageRunes = 4000
	// ChunkRunes is the size of each piece when a reply is split.
	ChunkRunes = 3000
)

// Chunk splits text into ordered pieces that fit in one message. Lengths are
// counted in runes so multi-byte characters are never cut. Invalid UTF-8
// bytes count as one rune each and are kept as is.
func Chunk(text string) []string {
	n := utf8.RuneCountInString(text)
	if n <= MaxMessageRunes {
		return []string{text}
	}
	chunks := make([]string, 0, n/ChunkRunes+1)
	for len(text) > 0 {
		end := 0
		for count := 0; end < len(text) && count < ChunkRunes; count++ {
			_, size := utf8.DecodeRuneInString(text[end:])
			end += size
		}
		chunks = append(chunks, text[:end])
		text = text[end:]
	}
	return chunks
}
