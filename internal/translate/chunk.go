package translate

import (
	"regexp"
	"strings"
)

var paragraphBreak = regexp.MustCompile(`\n{2,}`)

// SplitIntoChunks cuts text into pieces of at most maxChars, breaking
// at blank lines first and hard-splitting only paragraphs that are
// single-handedly over the limit.
func SplitIntoChunks(text string, maxChars int) []string {
	if maxChars <= 0 || len(text) <= maxChars {
		return []string{text}
	}

	paragraphs := paragraphBreak.Split(text, -1)
	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	for _, para := range paragraphs {
		if para == "" {
			continue
		}
		if len(para) > maxChars {
			flush()
			for i := 0; i < len(para); i += maxChars {
				end := i + maxChars
				if end > len(para) {
					end = len(para)
				}
				part := strings.TrimSpace(para[i:end])
				if part != "" {
					chunks = append(chunks, part)
				}
			}
			continue
		}
		// +2 accounts for the paragraph break re-added on join.
		if current.Len()+len(para)+2 <= maxChars {
			current.WriteString(para)
			current.WriteString("\n\n")
		} else {
			flush()
			current.WriteString(para)
			current.WriteString("\n\n")
		}
	}
	flush()
	return chunks
}
