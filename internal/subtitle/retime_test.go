package subtitle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func origCues(texts ...string) []Cue {
	cues := make([]Cue, len(texts))
	for i, text := range texts {
		cues[i] = Cue{Index: i + 1, Start: float64(i), End: float64(i) + 0.9, Text: text}
	}
	return cues
}

func TestRetimePreservesTiming(t *testing.T) {
	orig := origCues("erste Zeile hier", "zweite Zeile hier", "dritte Zeile hier")
	out := Retime(orig, "First sentence. Second sentence. Third sentence.")

	require.Len(t, out, 3)
	for i := range orig {
		assert.Equal(t, orig[i].Index, out[i].Index)
		assert.Equal(t, orig[i].Start, out[i].Start)
		assert.Equal(t, orig[i].End, out[i].End)
		assert.NotEmpty(t, out[i].Text)
	}
}

func TestRetimeSentenceAllocation(t *testing.T) {
	orig := origCues("a", "b")
	out := Retime(orig, "One. Two. Three. Four.")
	require.Len(t, out, 2)
	assert.Equal(t, "One. Two.", out[0].Text)
	assert.Equal(t, "Three. Four.", out[1].Text)
}

func TestRetimeCommaFallback(t *testing.T) {
	orig := origCues("x", "y", "z")
	out := Retime(orig, "first part, second part, third part")
	require.Len(t, out, 3)
	joined := strings.Join([]string{out[0].Text, out[1].Text, out[2].Text}, " ")
	assert.Contains(t, joined, "first part")
	assert.Contains(t, joined, "third part")
}

func TestRetimeLengthRatioFallback(t *testing.T) {
	// One sentence, several cues: length-ratio split must not cut words.
	orig := origCues(
		"eine ziemlich lange erste Zeile",
		"kurze",
		"und noch eine lange letzte Zeile hier",
	)
	out := Retime(orig, "a translation without any sentence punctuation spread across cues")
	require.Len(t, out, 3)
	for _, c := range out {
		assert.NotEmpty(t, c.Text)
		assert.False(t, strings.HasPrefix(c.Text, " "))
		assert.False(t, strings.HasSuffix(c.Text, " "))
	}
	// No word may be cut in half: re-joining must preserve all words.
	rejoined := strings.Fields(strings.Join([]string{out[0].Text, out[1].Text, out[2].Text}, " "))
	original := strings.Fields("a translation without any sentence punctuation spread across cues")
	assert.Subset(t, original, rejoined)
}

func TestRetimePadsShortText(t *testing.T) {
	orig := origCues("a", "b", "c", "d")
	out := Retime(orig, "tiny")
	require.Len(t, out, 4)
	for _, c := range out {
		assert.NotEmpty(t, c.Text)
	}
}

func TestRetimeEmptyOriginal(t *testing.T) {
	assert.Nil(t, Retime(nil, "text"))
}
