package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/scribe-archive/scribe/internal/config"
	"github.com/scribe-archive/scribe/internal/engine"
	"github.com/scribe-archive/scribe/internal/layout"
	"github.com/scribe-archive/scribe/internal/store"
	"github.com/scribe-archive/scribe/internal/translate"
	"github.com/scribe-archive/scribe/internal/voice"
)

type fakeSTT struct {
	calls atomic.Int64
}

func (f *fakeSTT) Name() string      { return "fake-stt" }
func (f *fakeSTT) IsAvailable() bool { return true }
func (f *fakeSTT) Transcribe(ctx context.Context, audioPath string, opts voice.TranscribeOptions) (*voice.TranscriptionResult, error) {
	f.calls.Add(1)
	return &voice.TranscriptionResult{
		Text: "transcribed text",
		Words: []voice.Word{
			{Text: "transcribed", Start: 0, End: 0.5},
			{Text: "text", Start: 0.6, End: 1.0},
		},
		DetectedLanguage: "deu",
		Raw:              []byte(`{"text": "transcribed text"}`),
	}, nil
}

type fakeTranslator struct{ calls atomic.Int64 }

func (f *fakeTranslator) Name() string                  { return "fake" }
func (f *fakeTranslator) MaxChunkChars() int            { return 4500 }
func (f *fakeTranslator) Supports(src, tgt string) bool { return true }
func (f *fakeTranslator) Translate(ctx context.Context, text, tgt, src string, opts translate.Options) (string, error) {
	f.calls.Add(1)
	return "translated " + text, nil
}

type testEnv struct {
	pipe     *Pipeline
	store    *store.Store
	layout   *layout.Layout
	stt      *fakeSTT
	settings config.Settings
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()

	var settings config.Settings
	settings.OutputDirectory = filepath.Join(root, "out")
	settings.DatabaseFile = filepath.Join(root, "tracking.db")
	settings.ExtractAudioFormat = "mp3"
	settings.MaxAudioSizeMB = 25
	settings.MaxSegmentSeconds = 600
	settings.APIRetries = 2
	settings.APITimeoutSeconds = 30
	settings.BatchSize = 10
	settings.TranscriptionWorkers = 2
	settings.TranslationWorkers = 2
	settings.StalledTimeoutMinutes = 30
	settings.ItemTimeoutMinutes = 5
	settings.TargetLanguages = []string{"en", "de", "he"}
	settings.DefaultLanguage = "deu"
	settings.AutoDetectLanguage = true

	st, err := store.Open(settings.DatabaseFile, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	lay := layout.New(settings.OutputDirectory)
	stt := &fakeSTT{}
	reg := translate.NewRegistry("fake", &fakeTranslator{})

	extractor := engine.NewExtractor(st, lay, settings, zerolog.Nop())
	transcriber := engine.NewTranscriber(st, lay, stt, settings, zerolog.Nop())
	translator := engine.NewTranslator(st, lay, reg, nil, settings, zerolog.Nop())
	pipe := New(st, lay, extractor, transcriber, translator, settings, zerolog.Nop())

	return &testEnv{pipe: pipe, store: st, layout: lay, stt: stt, settings: settings}
}

func (e *testEnv) addAudio(t *testing.T, name string) string {
	t.Helper()
	src := filepath.Join(filepath.Dir(e.settings.DatabaseFile), name)
	require.NoError(t, os.WriteFile(src, []byte("fake audio bytes"), 0644))
	safe := layout.SanitizeFilename(name)
	id, err := e.store.AddMedia(src, safe, "audio", 16, store.MetadataUpdate{})
	require.NoError(t, err)
	_, err = e.layout.MaterializeSource(src, safe)
	require.NoError(t, err)
	return id
}

func (e *testEnv) backdate(t *testing.T, fileID string, age time.Duration) {
	t.Helper()
	db, err := sql.Open("sqlite", e.settings.DatabaseFile)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec("UPDATE processing_status SET last_updated = ? WHERE file_id = ?",
		time.Now().Add(-age), fileID)
	require.NoError(t, err)
}

func TestRunTranscriptionDrainsBacklog(t *testing.T) {
	env := newTestEnv(t)
	ids := []string{
		env.addAudio(t, "one.mp3"),
		env.addAudio(t, "two.mp3"),
		env.addAudio(t, "three.mp3"),
	}

	res := env.pipe.RunTranscription(context.Background(), 2, 10)
	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 0, res.Failed)

	for _, id := range ids {
		rec, err := env.store.GetStatus(id)
		require.NoError(t, err)
		assert.Equal(t, store.StageCompleted, rec.TranscriptionStatus, "file %s", id)
	}

	// A second run finds nothing to claim.
	res = env.pipe.RunTranscription(context.Background(), 2, 10)
	assert.Equal(t, 0, res.Processed+res.Failed)
	assert.Equal(t, int64(3), env.stt.calls.Load())
}

func TestRunTranslationWaitsForTranscript(t *testing.T) {
	env := newTestEnv(t)
	id := env.addAudio(t, "pending.mp3")

	// Transcription not done: the translation pool must leave it.
	res := env.pipe.RunTranslation(context.Background(), "de", 1, 10)
	assert.Equal(t, 0, res.Processed+res.Failed)

	rec, err := env.store.GetStatus(id)
	require.NoError(t, err)
	assert.Equal(t, store.StageNotStarted, rec.TranslationStatus["de"])
}

func TestFullPassTranscriptionThenTranslation(t *testing.T) {
	env := newTestEnv(t)
	id := env.addAudio(t, "full.mp3")

	env.pipe.RunTranscription(context.Background(), 1, 10)
	results := env.pipe.RunTranslations(context.Background(), []string{"en", "de"}, 1, 10)
	assert.Equal(t, 1, results["en"].Processed)
	assert.Equal(t, 1, results["de"].Processed)

	rec, err := env.store.GetStatus(id)
	require.NoError(t, err)
	assert.Equal(t, store.StageCompleted, rec.TranslationStatus["en"])
	assert.Equal(t, store.StageCompleted, rec.TranslationStatus["de"])
}

func TestResetStalled(t *testing.T) {
	env := newTestEnv(t)
	id := env.addAudio(t, "stalled.mp3")
	require.NoError(t, env.store.UpdateStatus(id, store.StatusUpdate{
		Overall:       store.StatusOf(store.StatusInProgress),
		Transcription: store.StatusOf(store.StageInProgress),
	}))
	env.backdate(t, id, time.Hour)

	counts, err := env.pipe.ResetStalled(30)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Total)
	assert.Equal(t, 1, counts.Transcription)

	rec, err := env.store.GetStatus(id)
	require.NoError(t, err)
	assert.Equal(t, store.StageFailed, rec.TranscriptionStatus)

	entries, err := env.store.ListErrors(id, 0)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "transcription", entries[0].ProcessStage)
	assert.Contains(t, entries[0].ErrorMessage, "stalled")
}

func TestResetStalledLeavesFreshWork(t *testing.T) {
	env := newTestEnv(t)
	id := env.addAudio(t, "fresh.mp3")
	require.NoError(t, env.store.UpdateStatus(id, store.StatusUpdate{
		Transcription: store.StatusOf(store.StageInProgress),
	}))

	counts, err := env.pipe.ResetStalled(30)
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Total)
}

func TestIdentifyProblemFiles(t *testing.T) {
	env := newTestEnv(t)

	// empty_output: completed but artifact absent.
	emptyID := env.addAudio(t, "empty.mp3")
	require.NoError(t, env.store.UpdateStatus(emptyID, store.StatusUpdate{
		Transcription: store.StatusOf(store.StageCompleted),
	}))

	// timeout class via error-log keywords.
	timeoutID := env.addAudio(t, "slow.mp3")
	require.NoError(t, env.store.LogError(timeoutID, "transcription", "request timed out", "read deadline exceeded"))

	// failed_multiple_times: three logged errors.
	flakyID := env.addAudio(t, "flaky.mp3")
	for i := 0; i < 3; i++ {
		require.NoError(t, env.store.LogError(flakyID, "transcription", fmt.Sprintf("failure %d", i), ""))
	}

	problems, err := env.pipe.IdentifyProblemFiles()
	require.NoError(t, err)
	assert.Contains(t, problems[ProblemEmptyOutput], emptyID)
	assert.Contains(t, problems[ProblemTimeout], timeoutID)
	assert.Contains(t, problems[ProblemFailedMultipleTimes], flakyID)
	assert.Empty(t, problems[ProblemStalled])
}

func TestRetryProblematicResetsAndReruns(t *testing.T) {
	env := newTestEnv(t)
	id := env.addAudio(t, "retryme.mp3")
	require.NoError(t, env.store.UpdateStatus(id, store.StatusUpdate{
		Overall:       store.StatusOf(store.StatusFailed),
		Transcription: store.StatusOf(store.StageFailed),
	}))
	for i := 0; i < 3; i++ {
		require.NoError(t, env.store.LogError(id, "transcription", "boom", ""))
	}

	res, err := env.pipe.RetryProblematic(context.Background(), nil, 1)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Processed, 1)

	rec, err := env.store.GetStatus(id)
	require.NoError(t, err)
	assert.Equal(t, store.StageCompleted, rec.TranscriptionStatus)

	entries, err := env.store.ListErrors(id, 0)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, "boom", e.ErrorMessage, "old errors are cleared before retry")
	}
}

func TestRunPoolHonorsCancellation(t *testing.T) {
	env := newTestEnv(t)
	env.addAudio(t, "c1.mp3")
	env.addAudio(t, "c2.mp3")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := env.pipe.RunTranscription(ctx, 1, 10)
	assert.Equal(t, 0, res.Processed)
}
