package vectorstore

import "strings"

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

// Chunk splits text by greedy word accumulation. A boundary is emitted once
// adding the next word would exceed size characters. The next chunk re-includes
// the trailing words of the previous one, approximated as overlap/10 words and
// capped at a quarter of the previous chunk's word count, so context survives
// the boundary. Empty or whitespace-only chunks are dropped.
//
// A single word longer than size becomes its own oversized chunk rather than
// being split mid-word.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	var current []string
	curLen := 0

	for _, w := range words {
		add := len(w)
		if curLen > 0 {
			add++ // joining space
		}

		if curLen+add > size && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))

			carry := overlap / 10
			if max := len(current) / 4; carry > max {
				carry = max
			}
			if carry > 0 {
				tail := make([]string, carry)
				copy(tail, current[len(current)-carry:])
				current = tail
				curLen = len(strings.Join(current, " "))
			} else {
				current = nil
				curLen = 0
			}
		}

		if curLen > 0 {
			curLen++
		}
		curLen += len(w)
		current = append(current, w)
	}

	if len(current) > 0 {
		last := strings.Join(current, " ")
		if strings.TrimSpace(last) != "" {
			chunks = append(chunks, last)
		}
	}

	return chunks
}
