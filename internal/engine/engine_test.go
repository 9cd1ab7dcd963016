package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribe-archive/scribe/internal/config"
	"github.com/scribe-archive/scribe/internal/layout"
	"github.com/scribe-archive/scribe/internal/provider"
	"github.com/scribe-archive/scribe/internal/store"
	"github.com/scribe-archive/scribe/internal/translate"
	"github.com/scribe-archive/scribe/internal/voice"
)

func testSettings(root string) config.Settings {
	var s config.Settings
	s.OutputDirectory = filepath.Join(root, "out")
	s.DatabaseFile = filepath.Join(root, "tracking.db")
	s.ExtractAudioFormat = "mp3"
	s.ExtractAudioQuality = "192k"
	s.MaxAudioSizeMB = 25
	s.MaxSegmentSeconds = 600
	s.APIRetries = 8
	s.SegmentPauseSeconds = 0
	s.APITimeoutSeconds = 300
	s.TargetLanguages = []string{"en", "de", "he"}
	s.DefaultLanguage = "deu"
	s.AutoDetectLanguage = true
	s.TranscriptionModel = "scribe_v1"
	return s
}

type fixture struct {
	store    *store.Store
	layout   *layout.Layout
	settings config.Settings
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	settings := testSettings(root)
	st, err := store.Open(settings.DatabaseFile, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return &fixture{store: st, layout: layout.New(settings.OutputDirectory), settings: settings}
}

func (f *fixture) addAudioFile(t *testing.T, name, content string) *store.FileRecord {
	t.Helper()
	src := filepath.Join(filepath.Dir(f.settings.DatabaseFile), name)
	require.NoError(t, os.WriteFile(src, []byte(content), 0644))
	safe := layout.SanitizeFilename(name)
	id, err := f.store.AddMedia(src, safe, "audio", int64(len(content)), store.MetadataUpdate{})
	require.NoError(t, err)
	_, err = f.layout.MaterializeSource(src, safe)
	require.NoError(t, err)
	rec, err := f.store.GetStatus(id)
	require.NoError(t, err)
	return rec
}

// fakeSTT is a scripted speech-to-text provider.
type fakeSTT struct {
	calls    atomic.Int64
	failures int // transient failures before success
	result   *voice.TranscriptionResult
}

func (f *fakeSTT) Name() string      { return "fake-stt" }
func (f *fakeSTT) IsAvailable() bool { return true }

func (f *fakeSTT) Transcribe(ctx context.Context, audioPath string, opts voice.TranscribeOptions) (*voice.TranscriptionResult, error) {
	n := f.calls.Add(1)
	if int(n) <= f.failures {
		return nil, fmt.Errorf("%w: HTTP 503: overloaded", provider.ErrTransient)
	}
	return f.result, nil
}

func scribeResult(text string, words ...voice.Word) *voice.TranscriptionResult {
	return &voice.TranscriptionResult{
		Text:             text,
		Words:            words,
		DetectedLanguage: "deu",
		Raw:              []byte(`{"text": "` + text + `"}`),
	}
}

func TestTranscriberSingleShot(t *testing.T) {
	f := newFixture(t)
	rec := f.addAudioFile(t, "small.mp3", "tiny-audio")

	stt := &fakeSTT{result: scribeResult("guten Tag meine Damen",
		voice.Word{Text: "guten", Start: 0.0, End: 0.3},
		voice.Word{Text: "Tag", Start: 0.35, End: 0.6},
		voice.Word{Text: "meine", Start: 0.7, End: 1.0},
		voice.Word{Text: "Damen", Start: 1.1, End: 1.4},
	)}
	tr := NewTranscriber(f.store, f.layout, stt, f.settings, zerolog.Nop())

	require.NoError(t, tr.ProcessFile(context.Background(), rec))

	data, err := os.ReadFile(f.layout.TranscriptPath(rec.SafeFilename))
	require.NoError(t, err)
	assert.Equal(t, "guten Tag meine Damen", string(data))

	srt, err := os.ReadFile(f.layout.SubtitlePath(rec.SafeFilename, "orig"))
	require.NoError(t, err)
	assert.Contains(t, string(srt), "1\n00:00:00,000 -->")

	assert.FileExists(t, f.layout.SegmentsJSONPath(rec.SafeFilename))

	got, err := f.store.GetStatus(rec.FileID)
	require.NoError(t, err)
	assert.Equal(t, store.StageCompleted, got.TranscriptionStatus)
	assert.Equal(t, "deu", got.DetectedLanguage)
	assert.Equal(t, int64(1), stt.calls.Load())
}

func TestTranscriberZeroWordsWritesEmptySubtitle(t *testing.T) {
	f := newFixture(t)
	rec := f.addAudioFile(t, "silent.mp3", "noise")

	stt := &fakeSTT{result: scribeResult("nothing spoken")}
	tr := NewTranscriber(f.store, f.layout, stt, f.settings, zerolog.Nop())
	require.NoError(t, tr.ProcessFile(context.Background(), rec))

	srt, err := os.ReadFile(f.layout.SubtitlePath(rec.SafeFilename, "orig"))
	require.NoError(t, err)
	assert.Empty(t, srt, "no cues, but a well-formed empty file")
}

func TestTranscriberTransientThenSuccess(t *testing.T) {
	f := newFixture(t)
	rec := f.addAudioFile(t, "flaky.mp3", "bytes")

	stt := &fakeSTT{failures: 2, result: scribeResult("es klappt doch",
		voice.Word{Text: "es", Start: 0, End: 0.2})}
	tr := NewTranscriber(f.store, f.layout, stt, f.settings, zerolog.Nop())

	require.NoError(t, tr.ProcessFile(context.Background(), rec))
	assert.Equal(t, int64(3), stt.calls.Load())

	got, err := f.store.GetStatus(rec.FileID)
	require.NoError(t, err)
	assert.Equal(t, store.StageCompleted, got.TranscriptionStatus)

	// Prior stage errors are cleared on success.
	entries, err := f.store.ListErrors(rec.FileID, 0)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, "transcription", e.ProcessStage)
	}
}

func TestTranscriberSkipsExisting(t *testing.T) {
	f := newFixture(t)
	rec := f.addAudioFile(t, "done.mp3", "bytes")

	_, err := f.layout.EnsureDir(rec.SafeFilename)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(f.layout.TranscriptPath(rec.SafeFilename), []byte("already here"), 0644))

	stt := &fakeSTT{result: scribeResult("should never be used")}
	tr := NewTranscriber(f.store, f.layout, stt, f.settings, zerolog.Nop())
	require.NoError(t, tr.ProcessFile(context.Background(), rec))

	assert.Equal(t, int64(0), stt.calls.Load(), "existing transcript must short-circuit")
	got, err := f.store.GetStatus(rec.FileID)
	require.NoError(t, err)
	assert.Equal(t, store.StageCompleted, got.TranscriptionStatus)
}

func TestTranscriberPermanentErrorFails(t *testing.T) {
	f := newFixture(t)
	rec := f.addAudioFile(t, "broken.mp3", "bytes")

	stt := &permanentSTT{}
	tr := NewTranscriber(f.store, f.layout, stt, f.settings, zerolog.Nop())
	require.Error(t, tr.ProcessFile(context.Background(), rec))

	got, err := f.store.GetStatus(rec.FileID)
	require.NoError(t, err)
	assert.Equal(t, store.StageFailed, got.TranscriptionStatus)

	entries, err := f.store.ListErrors(rec.FileID, 0)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "transcription", entries[0].ProcessStage)
}

type permanentSTT struct{ calls atomic.Int64 }

func (p *permanentSTT) Name() string      { return "permanent-stt" }
func (p *permanentSTT) IsAvailable() bool { return true }
func (p *permanentSTT) Transcribe(context.Context, string, voice.TranscribeOptions) (*voice.TranscriptionResult, error) {
	p.calls.Add(1)
	return nil, fmt.Errorf("%w: HTTP 400: unsupported audio", provider.ErrPermanent)
}

// fakeTranslator is a scripted translation provider.
type fakeTranslator struct {
	name       string
	hebrew     bool // whether it supports the RTL target
	calls      atomic.Int64
	translated func(text, target string) string
}

func (f *fakeTranslator) Name() string       { return f.name }
func (f *fakeTranslator) MaxChunkChars() int { return 4500 }

func (f *fakeTranslator) Supports(sourceLang, targetLang string) bool {
	if translate.SameLanguage(targetLang, "he") {
		return f.hebrew
	}
	return true
}

func (f *fakeTranslator) Translate(ctx context.Context, text, targetLang, sourceLang string, opts translate.Options) (string, error) {
	f.calls.Add(1)
	if f.translated != nil {
		return f.translated(text, targetLang), nil
	}
	return "[" + targetLang + "] " + text, nil
}

func (f *fixture) completeTranscription(t *testing.T, rec *store.FileRecord, transcript string) *store.FileRecord {
	t.Helper()
	_, err := f.layout.EnsureDir(rec.SafeFilename)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(f.layout.TranscriptPath(rec.SafeFilename), []byte(transcript), 0644))
	require.NoError(t, f.store.UpdateStatus(rec.FileID, store.StatusUpdate{
		Transcription: store.StatusOf(store.StageCompleted),
	}))
	got, err := f.store.GetStatus(rec.FileID)
	require.NoError(t, err)
	return got
}

func TestTranslatorWritesArtifact(t *testing.T) {
	f := newFixture(t)
	rec := f.addAudioFile(t, "a.mp3", "bytes")
	rec = f.completeTranscription(t, rec, "Das ist ein Test.")

	prov := &fakeTranslator{name: "deepl", hebrew: false}
	reg := translate.NewRegistry("deepl", prov)
	tr := NewTranslator(f.store, f.layout, reg, nil, f.settings, zerolog.Nop())

	require.NoError(t, tr.ProcessFile(context.Background(), rec, "de", "", false))

	data, err := os.ReadFile(f.layout.TranslationPath(rec.SafeFilename, "de"))
	require.NoError(t, err)
	assert.Equal(t, "[de] Das ist ein Test.", string(data))

	got, err := f.store.GetStatus(rec.FileID)
	require.NoError(t, err)
	assert.Equal(t, store.StageCompleted, got.TranslationStatus["de"])
}

func TestTranslatorHebrewFallbackRoute(t *testing.T) {
	f := newFixture(t)
	rec := f.addAudioFile(t, "h.mp3", "bytes")
	rec = f.completeTranscription(t, rec, "Das ist ein deutsches Interview.")

	deepl := &fakeTranslator{name: "deepl", hebrew: false, translated: func(text, target string) string {
		return "This is a German interview."
	}}
	openai := &fakeTranslator{name: "openai", hebrew: true, translated: func(text, target string) string {
		return "זהו ריאיון גרמני."
	}}
	reg := translate.NewRegistry("deepl", deepl, openai)
	tr := NewTranslator(f.store, f.layout, reg, nil, f.settings, zerolog.Nop())

	require.NoError(t, tr.ProcessFile(context.Background(), rec, "he", "", false))

	data, err := os.ReadFile(f.layout.TranslationPath(rec.SafeFilename, "he"))
	require.NoError(t, err)
	assert.Regexp(t, `[\x{0590}-\x{05FF}]`, string(data), "output must contain RTL characters")

	assert.Equal(t, int64(1), deepl.calls.Load(), "intermediate English pass through the default provider")
	assert.Equal(t, int64(1), openai.calls.Load(), "RTL hop through the supporting provider")

	got, err := f.store.GetStatus(rec.FileID)
	require.NoError(t, err)
	assert.Equal(t, store.StageCompleted, got.TranslationStatus["he"])
}

func TestTranslatorParagraphRoutingSkipsEnglish(t *testing.T) {
	f := newFixture(t)
	rec := f.addAudioFile(t, "e.mp3", "bytes")
	transcript := "This paragraph is clearly written in the English language already.\n\n" +
		"And so is this one, with plenty of English words to make detection reliable."
	rec = f.completeTranscription(t, rec, transcript)

	prov := &fakeTranslator{name: "deepl"}
	reg := translate.NewRegistry("deepl", prov)
	tr := NewTranslator(f.store, f.layout, reg, nil, f.settings, zerolog.Nop())

	require.NoError(t, tr.ProcessFile(context.Background(), rec, "en", "", false))

	assert.Equal(t, int64(0), prov.calls.Load(), "already-English paragraphs must pass through")

	data, err := os.ReadFile(f.layout.TranslationPath(rec.SafeFilename, "en"))
	require.NoError(t, err)
	assert.Equal(t, transcript, string(data), "paragraph count and content preserved")
}

func TestTranslatorIdempotent(t *testing.T) {
	f := newFixture(t)
	rec := f.addAudioFile(t, "idem.mp3", "bytes")
	rec = f.completeTranscription(t, rec, "Ein Satz.")

	prov := &fakeTranslator{name: "deepl"}
	reg := translate.NewRegistry("deepl", prov)
	tr := NewTranslator(f.store, f.layout, reg, nil, f.settings, zerolog.Nop())

	require.NoError(t, tr.ProcessFile(context.Background(), rec, "de", "", false))
	firstCalls := prov.calls.Load()

	rec, err := f.store.GetStatus(rec.FileID)
	require.NoError(t, err)
	require.NoError(t, tr.ProcessFile(context.Background(), rec, "de", "", false))
	assert.Equal(t, firstCalls, prov.calls.Load(), "completed stage with force=false is a no-op")
}

func TestTranslatorRequiresTranscription(t *testing.T) {
	f := newFixture(t)
	rec := f.addAudioFile(t, "early.mp3", "bytes")

	prov := &fakeTranslator{name: "deepl"}
	reg := translate.NewRegistry("deepl", prov)
	tr := NewTranslator(f.store, f.layout, reg, nil, f.settings, zerolog.Nop())

	require.Error(t, tr.ProcessFile(context.Background(), rec, "de", "", false))

	got, err := f.store.GetStatus(rec.FileID)
	require.NoError(t, err)
	assert.Equal(t, store.StageFailed, got.TranslationStatus["de"])

	entries, err := f.store.ListErrors(rec.FileID, 0)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "translation_de", entries[0].ProcessStage)
}

func TestTranslatorPromotesOverallWhenAllDone(t *testing.T) {
	f := newFixture(t)
	rec := f.addAudioFile(t, "all.mp3", "bytes")
	rec = f.completeTranscription(t, rec, "Ein Satz auf Deutsch.")

	require.NoError(t, f.store.UpdateStatus(rec.FileID, store.StatusUpdate{
		Translation: map[string]string{"en": store.StageCompleted, "de": store.StageCompleted},
	}))
	rec, err := f.store.GetStatus(rec.FileID)
	require.NoError(t, err)

	prov := &fakeTranslator{name: "openai", hebrew: true, translated: func(text, target string) string {
		return "משפט בעברית."
	}}
	reg := translate.NewRegistry("openai", prov)
	tr := NewTranslator(f.store, f.layout, reg, nil, f.settings, zerolog.Nop())

	require.NoError(t, tr.ProcessFile(context.Background(), rec, "he", "", false))

	got, err := f.store.GetStatus(rec.FileID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, got.Status)
}
