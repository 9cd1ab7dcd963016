package subtitle

import (
	"strings"
	"unicode"
)

// Retime distributes translated text across the original cues,
// keeping their indices and time ranges. When the text yields at
// least as many sentences as cues, sentences are allocated
// proportionally; otherwise the text is cut by the original cues'
// length ratios, snapping cuts to whitespace.
func Retime(original []Cue, translated string) []Cue {
	if len(original) == 0 {
		return nil
	}

	sentences := splitSentences(translated, ".!?")
	if len(sentences) == 1 && len(original) > 1 {
		sentences = splitSentences(translated, ",;:")
	}

	var segments []string
	if len(sentences) >= len(original) {
		segments = allocateProportionally(sentences, len(original))
	} else {
		segments = splitByLengthRatios(translated, original)
	}

	// Pad with the last segment so every cue carries text.
	for len(segments) < len(original) {
		if len(segments) > 0 {
			segments = append(segments, segments[len(segments)-1])
		} else {
			segments = append(segments, translated)
		}
	}
	// A ratio cut can leave empty pieces; reuse the nearest text
	// rather than emitting blank cues.
	lastNonEmpty := strings.TrimSpace(translated)
	for i, seg := range segments {
		if seg == "" {
			segments[i] = lastNonEmpty
		} else {
			lastNonEmpty = seg
		}
	}

	out := make([]Cue, len(original))
	for i, c := range original {
		out[i] = Cue{Index: c.Index, Start: c.Start, End: c.End, Text: segments[i]}
	}
	return out
}

// splitSentences cuts text after any rune in delims followed by
// whitespace.
func splitSentences(text string, delims string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var out []string
	var current strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		current.WriteRune(runes[i])
		if strings.ContainsRune(delims, runes[i]) &&
			(i+1 == len(runes) || unicode.IsSpace(runes[i+1])) {
			if s := strings.TrimSpace(current.String()); s != "" {
				out = append(out, s)
			}
			current.Reset()
			// Swallow the separating whitespace.
			for i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
				i++
			}
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		out = append(out, s)
	}
	return out
}

func allocateProportionally(sentences []string, blocks int) []string {
	perBlock := float64(len(sentences)) / float64(blocks)
	out := make([]string, 0, blocks)
	for i := 0; i < blocks; i++ {
		start := int(float64(i) * perBlock)
		end := int(float64(i+1) * perBlock)
		if end > len(sentences) {
			end = len(sentences)
		}
		out = append(out, strings.Join(sentences[start:end], " "))
	}
	return out
}

func splitByLengthRatios(translated string, original []Cue) []string {
	totalOriginal := 0
	for _, c := range original {
		totalOriginal += len(c.Text)
	}
	if totalOriginal == 0 {
		return []string{translated}
	}

	out := make([]string, 0, len(original))
	start := 0
	for i, c := range original {
		if i == len(original)-1 {
			// The last cue takes whatever remains.
			out = append(out, strings.TrimSpace(translated[start:]))
			break
		}
		ratio := float64(len(c.Text)) / float64(totalOriginal)
		segLen := int(float64(len(translated)) * ratio)
		end := start + segLen
		if end > len(translated) {
			end = len(translated)
		}
		// Snap forward to the nearest space so words stay whole, and
		// backward if the end of the text got swallowed.
		if end < len(translated) {
			fwd := end
			for fwd < len(translated) && translated[fwd] != ' ' {
				fwd++
			}
			if fwd == len(translated) {
				back := start + segLen
				for back > start && translated[back-1] != ' ' {
					back--
				}
				if back > start {
					end = back
				} else {
					end = fwd
				}
			} else {
				end = fwd
			}
		}
		out = append(out, strings.TrimSpace(translated[start:end]))
		start = end
	}
	return out
}
