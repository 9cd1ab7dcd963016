package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonAlnum    = regexp.MustCompile(`[^a-z0-9]`)
	underscores = regexp.MustCompile(`_+`)
)

// SanitizeFilename folds a filename to the canonical artifact-safe
// form: ASCII-folded, lower-cased, non-alphanumerics collapsed to a
// single underscore, trimmed; an empty stem collapses to "file". The
// extension is preserved lower-cased. Idempotent.
func SanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.ToLower(strings.TrimSuffix(filename, filepath.Ext(filename)))

	folded, _, err := transform.String(transform.Chain(
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
	), base)
	if err == nil {
		base = folded
	}
	// Strip whatever non-ASCII survived decomposition.
	base = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, base)

	base = nonAlnum.ReplaceAllString(base, "_")
	base = underscores.ReplaceAllString(base, "_")
	base = strings.Trim(base, "_")
	if base == "" {
		base = "file"
	}
	return base + ext
}

// Layout maps file identities to their on-disk artifact paths. All
// artifacts of one item live under <root>/<stem>/.
type Layout struct {
	root string
}

func New(outputRoot string) *Layout {
	return &Layout{root: outputRoot}
}

// Root returns the output root directory.
func (l *Layout) Root() string {
	return l.root
}

// stem is the safe filename without its extension.
func stem(safeFilename string) string {
	return strings.TrimSuffix(safeFilename, filepath.Ext(safeFilename))
}

// Dir returns the canonical directory for an item.
func (l *Layout) Dir(safeFilename string) string {
	return filepath.Join(l.root, stem(safeFilename))
}

// SourcePath is the in-directory copy (or link) of the original media.
func (l *Layout) SourcePath(safeFilename string) string {
	return filepath.Join(l.Dir(safeFilename), safeFilename)
}

// AudioPath is the extracted (or source) audio artifact.
func (l *Layout) AudioPath(safeFilename, audioExt string) string {
	return filepath.Join(l.Dir(safeFilename), stem(safeFilename)+"."+strings.TrimPrefix(audioExt, "."))
}

// TranscriptPath is the plain-text transcript artifact.
func (l *Layout) TranscriptPath(safeFilename string) string {
	return filepath.Join(l.Dir(safeFilename), stem(safeFilename)+".txt")
}

// SegmentsJSONPath holds the raw per-segment provider responses.
func (l *Layout) SegmentsJSONPath(safeFilename string) string {
	return l.TranscriptPath(safeFilename) + ".segments.json"
}

// SubtitlePath is the SRT for a language; "orig" is the source
// language subtitle built from transcription timings.
func (l *Layout) SubtitlePath(safeFilename, lang string) string {
	return filepath.Join(l.Dir(safeFilename), stem(safeFilename)+"."+lang+".srt")
}

// TranslationPath is the translated text for a target language.
func (l *Layout) TranslationPath(safeFilename, lang string) string {
	return filepath.Join(l.Dir(safeFilename), stem(safeFilename)+"."+lang+".txt")
}

// EnsureDir creates the canonical directory for an item.
func (l *Layout) EnsureDir(safeFilename string) (string, error) {
	dir := l.Dir(safeFilename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating artifact directory: %w", err)
	}
	return dir, nil
}

// MaterializeSource makes the original media available inside the
// canonical directory, preferring a symlink and falling back to a
// copy. Idempotent: an existing destination is left alone.
func (l *Layout) MaterializeSource(originalPath, safeFilename string) (string, error) {
	if _, err := l.EnsureDir(safeFilename); err != nil {
		return "", err
	}
	dest := l.SourcePath(safeFilename)
	if _, err := os.Lstat(dest); err == nil {
		return dest, nil
	}
	if err := os.Symlink(originalPath, dest); err == nil {
		return dest, nil
	}
	if err := copyFile(originalPath, dest); err != nil {
		return "", fmt.Errorf("materializing source: %w", err)
	}
	return dest, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := out.ReadFrom(in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
