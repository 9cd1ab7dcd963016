// Package subtitle builds, parses and re-times SRT files.
package subtitle

import (
	"fmt"
	"strings"

	astisub "github.com/asticode/go-astisub"

	"github.com/scribe-archive/scribe/internal/voice"
)

// Cue bounds per the transcription contract: a cue closes when adding
// the next word would push the text over MaxChars or the cue past
// MaxDuration.
const (
	MaxChars    = 40
	MaxDuration = 5.0 // seconds
)

// Cue is one subtitle block.
type Cue struct {
	Index int
	Start float64
	End   float64
	Text  string
}

// BuildCues folds timed words into cues under the MaxChars and
// MaxDuration bounds. A single oversized word still gets its own cue.
func BuildCues(words []voice.Word) []Cue {
	var cues []Cue
	var line []string
	var start float64

	for _, w := range words {
		if len(line) == 0 {
			start = w.Start
			line = append(line, w.Text)
			continue
		}

		current := strings.Join(line, " ")
		next := current + " " + w.Text
		duration := w.End - start

		if len(next) > MaxChars || duration > MaxDuration {
			cues = append(cues, Cue{
				Index: len(cues) + 1,
				Start: start,
				End:   w.Start,
				Text:  current,
			})
			line = []string{w.Text}
			start = w.Start
		} else {
			line = append(line, w.Text)
		}
	}

	if len(line) > 0 {
		last := words[len(words)-1]
		cues = append(cues, Cue{
			Index: len(cues) + 1,
			Start: start,
			End:   last.End,
			Text:  strings.Join(line, " "),
		})
	}
	return cues
}

// FormatTimestamp renders seconds as the SRT HH:MM:SS,mmm form.
func FormatTimestamp(seconds float64) string {
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	ms := int((seconds - float64(total)) * 1000)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// Format renders cues as SRT: blocks of index, time range and text
// separated by single blank lines. Zero cues yield an empty file.
func Format(cues []Cue) string {
	if len(cues) == 0 {
		return ""
	}
	var lines []string
	for _, c := range cues {
		lines = append(lines,
			fmt.Sprintf("%d", c.Index),
			fmt.Sprintf("%s --> %s", FormatTimestamp(c.Start), FormatTimestamp(c.End)),
			c.Text,
			"",
		)
	}
	return strings.Join(lines, "\n")
}

// ParseFile reads an SRT from disk into cues.
func ParseFile(path string) ([]Cue, error) {
	subs, err := astisub.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("parsing subtitle file: %w", err)
	}
	cues := make([]Cue, 0, len(subs.Items))
	for i, item := range subs.Items {
		var parts []string
		for _, line := range item.Lines {
			if s := line.String(); s != "" {
				parts = append(parts, s)
			}
		}
		cues = append(cues, Cue{
			Index: i + 1,
			Start: item.StartAt.Seconds(),
			End:   item.EndAt.Seconds(),
			Text:  strings.Join(parts, "\n"),
		})
	}
	return cues, nil
}
