package chunking

import "strings"

type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 900
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var out []string
	start := 0
	for start < len(runes) {
		end := start + s.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = snapToSentenceEnd(runes, start, end)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - s.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// snapToSentenceEnd moves the cut back to the last sentence boundary in the
// final third of the chunk, so narrative text is not split mid-sentence.
func snapToSentenceEnd(runes []rune, start, end int) int {
	limit := start + (end-start)*2/3
	for i := end - 1; i > limit; i-- {
		switch runes[i] {
		case '。', '！', '？', '；', '\n':
			return i + 1
		}
	}
	return end
}
