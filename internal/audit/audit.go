// Package audit reconciles the tracking store with the artifact
// layout.
package audit

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/scribe-archive/scribe/internal/layout"
	"github.com/scribe-archive/scribe/internal/store"
)

// FileStatus classifies one (file, language) artifact.
type FileStatus string

const (
	Valid       FileStatus = "VALID"
	Placeholder FileStatus = "PLACEHOLDER"
	Missing     FileStatus = "MISSING"
	Orphaned    FileStatus = "ORPHANED"
	Corrupted   FileStatus = "CORRUPTED"
	Empty       FileStatus = "EMPTY"
)

// rtlTarget is the target language validated for actual RTL content.
const rtlTarget = "he"

var placeholderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\[HEBREW TRANSLATION\]`),
	regexp.MustCompile(`(?i)\[GERMAN TRANSLATION\]`),
	regexp.MustCompile(`(?i)\[ENGLISH TRANSLATION\]`),
	regexp.MustCompile(`(?i)<<<PLACEHOLDER>>>`),
	regexp.MustCompile(`(?i)Translation pending`),
	regexp.MustCompile(`(?i)TO BE TRANSLATED`),
}

var hebrewChars = regexp.MustCompile(`[\x{0590}-\x{05FF}]`)

// ContainsHebrew reports whether text holds at least one character in
// the Hebrew Unicode block.
func ContainsHebrew(text string) bool {
	return hebrewChars.MatchString(text)
}

// HasPlaceholder reports whether text carries any deferred-translation
// marker.
func HasPlaceholder(text string) bool {
	for _, p := range placeholderPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// Finding is one audit observation.
type Finding struct {
	FileID   string
	Language string // "transcript" for the transcription artifact
	Status   FileStatus
	Path     string
	Detail   string
}

// Result is a full audit pass.
type Result struct {
	Findings []Finding
	Checked  int
}

// Issues returns the findings that are not Valid.
func (r *Result) Issues() []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Status != Valid {
			out = append(out, f)
		}
	}
	return out
}

// Auditor walks the store and the artifact layout. It never touches
// artifacts; fixes go through the store only.
type Auditor struct {
	store  *store.Store
	layout *layout.Layout
	log    zerolog.Logger
}

func New(st *store.Store, lay *layout.Layout, logger zerolog.Logger) *Auditor {
	return &Auditor{
		store:  st,
		layout: lay,
		log:    logger.With().Str("component", "audit").Logger(),
	}
}

// Run classifies every tracked (file, language) pair and flags
// on-disk directories no tracked file owns.
func (a *Auditor) Run() (*Result, error) {
	records, err := a.store.ListAll()
	if err != nil {
		return nil, err
	}

	result := &Result{}
	stems := map[string]bool{}

	for _, rec := range records {
		stems[strings.TrimSuffix(rec.SafeFilename, filepath.Ext(rec.SafeFilename))] = true

		result.Findings = append(result.Findings,
			a.classify(rec, "transcript", rec.TranscriptionStatus, a.layout.TranscriptPath(rec.SafeFilename)))
		for _, lang := range store.TargetLanguages {
			result.Findings = append(result.Findings,
				a.classify(rec, lang, rec.TranslationStatus[lang], a.layout.TranslationPath(rec.SafeFilename, lang)))
		}
		result.Checked++
	}

	// Orphan scan: item directories without a tracked owner.
	if entries, err := os.ReadDir(a.layout.Root()); err == nil {
		for _, entry := range entries {
			if entry.IsDir() && !stems[entry.Name()] {
				result.Findings = append(result.Findings, Finding{
					Language: "",
					Status:   Orphaned,
					Path:     filepath.Join(a.layout.Root(), entry.Name()),
					Detail:   "directory has no tracked media file",
				})
			}
		}
	}
	return result, nil
}

// classify inspects one artifact against its tracked status.
func (a *Auditor) classify(rec *store.FileRecord, lang, stageStatus, path string) Finding {
	finding := Finding{FileID: rec.FileID, Language: lang, Path: path}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		if stageStatus == store.StageCompleted {
			finding.Status = Missing
			finding.Detail = "store says completed but artifact is absent"
		} else {
			finding.Status = Valid
			finding.Detail = "not yet produced"
		}
		return finding
	case err != nil:
		finding.Status = Corrupted
		finding.Detail = err.Error()
		return finding
	}

	if len(data) == 0 {
		finding.Status = Empty
		return finding
	}
	if !utf8.Valid(data) {
		finding.Status = Corrupted
		finding.Detail = "not valid UTF-8"
		return finding
	}

	text := string(data)
	if HasPlaceholder(text) {
		finding.Status = Placeholder
		finding.Detail = "placeholder marker present"
		return finding
	}
	if lang == rtlTarget && !ContainsHebrew(text) {
		finding.Status = Placeholder
		finding.Detail = "no RTL characters in Hebrew artifact"
		return finding
	}

	finding.Status = Valid
	return finding
}
