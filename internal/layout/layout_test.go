package layout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"!!!.mp4":            "file.mp4",
		"Über File(1).mp3":   "uber_file_1.mp3",
		"Video.MKV":          "video.mkv",
		"simple.wav":         "simple.wav",
		"  spaces  here .m4a": "spaces_here.m4a",
		"Händel – Aria.flac": "handel_aria.flac",
		"___.ogg":            "file.ogg",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeFilename(in), "input %q", in)
	}
}

func TestSanitizeFilenameIdempotent(t *testing.T) {
	inputs := []string{
		"Über File(1).mp3",
		"!!!.mp4",
		"interview mit Frau Müller.mkv",
		"already_safe_name.wav",
	}
	for _, in := range inputs {
		once := SanitizeFilename(in)
		assert.Equal(t, once, SanitizeFilename(once), "sanitize must be idempotent for %q", in)
	}
}

func TestSanitizeFilenameCharset(t *testing.T) {
	out := SanitizeFilename("Śome Wéird ファイル name!!.MP3")
	for _, r := range out {
		ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '.'
		assert.True(t, ok, "unexpected rune %q in %q", r, out)
	}
}

func TestPaths(t *testing.T) {
	l := New("/out")
	safe := "interview_1.mp4"

	assert.Equal(t, filepath.Join("/out", "interview_1"), l.Dir(safe))
	assert.Equal(t, filepath.Join("/out", "interview_1", "interview_1.mp4"), l.SourcePath(safe))
	assert.Equal(t, filepath.Join("/out", "interview_1", "interview_1.mp3"), l.AudioPath(safe, "mp3"))
	assert.Equal(t, filepath.Join("/out", "interview_1", "interview_1.txt"), l.TranscriptPath(safe))
	assert.Equal(t, filepath.Join("/out", "interview_1", "interview_1.txt.segments.json"), l.SegmentsJSONPath(safe))
	assert.Equal(t, filepath.Join("/out", "interview_1", "interview_1.orig.srt"), l.SubtitlePath(safe, "orig"))
	assert.Equal(t, filepath.Join("/out", "interview_1", "interview_1.he.txt"), l.TranslationPath(safe, "he"))
	assert.Equal(t, filepath.Join("/out", "interview_1", "interview_1.he.srt"), l.SubtitlePath(safe, "he"))
}

func TestMaterializeSource(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "original.mp3")
	require.NoError(t, os.WriteFile(src, []byte("audio-bytes"), 0644))

	l := New(filepath.Join(root, "out"))

	dest, err := l.MaterializeSource(src, "original.mp3")
	require.NoError(t, err)
	assert.FileExists(t, dest)

	// Idempotent: a second call leaves the destination alone.
	dest2, err := l.MaterializeSource(src, "original.mp3")
	require.NoError(t, err)
	assert.Equal(t, dest, dest2)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "audio-bytes", string(data))
}
