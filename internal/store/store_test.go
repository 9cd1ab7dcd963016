package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "tracking.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func addTestFile(t *testing.T, s *Store, path string) string {
	t.Helper()
	id, err := s.AddMedia(path, "interview_1.mp3", "audio", 2048, MetadataUpdate{})
	require.NoError(t, err)
	return id
}

func TestAddMediaCreatesBothRows(t *testing.T) {
	s := newTestStore(t)
	id := addTestFile(t, s, "/media/interview 1.mp3")

	rec, err := s.GetStatus(id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, rec.Status)
	assert.Equal(t, StageNotStarted, rec.TranscriptionStatus)
	for _, lang := range TargetLanguages {
		assert.Equal(t, StageNotStarted, rec.TranslationStatus[lang])
	}
	assert.Equal(t, 0, rec.Attempts)
	assert.Equal(t, int64(2048), rec.FileSize)
}

func TestAddMediaDuplicatePath(t *testing.T) {
	s := newTestStore(t)
	addTestFile(t, s, "/media/dup.mp3")

	_, err := s.AddMedia("/media/dup.mp3", "dup.mp3", "audio", 1, MetadataUpdate{})
	assert.ErrorIs(t, err, ErrDuplicatePath)
}

func TestGetByPath(t *testing.T) {
	s := newTestStore(t)
	id := addTestFile(t, s, "/media/findme.mp3")

	rec, err := s.GetByPath("/media/findme.mp3")
	require.NoError(t, err)
	assert.Equal(t, id, rec.FileID)

	_, err = s.GetByPath("/media/unknown.mp3")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatusAttemptsMonotonic(t *testing.T) {
	s := newTestStore(t)
	id := addTestFile(t, s, "/media/a.mp3")

	prev := 0
	for i := 0; i < 4; i++ {
		require.NoError(t, s.UpdateStatus(id, StatusUpdate{
			Transcription: StatusOf(StageInProgress),
		}))
		rec, err := s.GetStatus(id)
		require.NoError(t, err)
		assert.Greater(t, rec.Attempts, prev, "attempts must increase on every status write")
		prev = rec.Attempts
	}
}

func TestUpdateStatusStampsTimestamps(t *testing.T) {
	s := newTestStore(t)
	id := addTestFile(t, s, "/media/b.mp3")

	require.NoError(t, s.UpdateStatus(id, StatusUpdate{
		Overall:       StatusOf(StatusInProgress),
		Transcription: StatusOf(StageInProgress),
	}))
	rec, err := s.GetStatus(id)
	require.NoError(t, err)
	require.NotNil(t, rec.StartedAt)
	require.NotNil(t, rec.LastUpdated)
	firstStart := *rec.StartedAt

	// started_at is stamped only on the first in_progress transition.
	require.NoError(t, s.UpdateStatus(id, StatusUpdate{
		Transcription: StatusOf(StageInProgress),
	}))
	rec, err = s.GetStatus(id)
	require.NoError(t, err)
	assert.Equal(t, firstStart.Unix(), rec.StartedAt.Unix())

	require.NoError(t, s.UpdateStatus(id, StatusUpdate{
		Transcription: StatusOf(StageCompleted),
	}))
	rec, err = s.GetStatus(id)
	require.NoError(t, err)
	assert.NotNil(t, rec.CompletedAt)
}

func TestUpdateStatusUnknownFile(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateStatus("no-such-id", StatusUpdate{Overall: StatusOf(StatusFailed)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatusUnknownLanguage(t *testing.T) {
	s := newTestStore(t)
	id := addTestFile(t, s, "/media/c.mp3")
	err := s.UpdateStatus(id, StatusUpdate{Translation: map[string]string{"xx": StageCompleted}})
	assert.ErrorIs(t, err, ErrConstraint)
}

func TestListPendingForStage(t *testing.T) {
	s := newTestStore(t)
	id1 := addTestFile(t, s, "/media/p1.mp3")
	id2, err := s.AddMedia("/media/p2.mp3", "p2.mp3", "audio", 1, MetadataUpdate{})
	require.NoError(t, err)

	require.NoError(t, s.UpdateStatus(id1, StatusUpdate{
		Transcription: StatusOf(StageCompleted),
	}))

	pending, err := s.ListPendingForStage("transcription", 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, id2, pending[0].FileID)

	pendingHe, err := s.ListPendingForStage("translation_he", 0)
	require.NoError(t, err)
	assert.Len(t, pendingHe, 2)
}

func TestListForTranscriptionIncludesFailed(t *testing.T) {
	s := newTestStore(t)
	id := addTestFile(t, s, "/media/f.mp3")
	require.NoError(t, s.UpdateStatus(id, StatusUpdate{
		Transcription: StatusOf(StageFailed),
	}))

	records, err := s.ListForTranscription(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, id, records[0].FileID)
}

func TestListStalled(t *testing.T) {
	s := newTestStore(t)
	id := addTestFile(t, s, "/media/stall.mp3")
	require.NoError(t, s.UpdateStatus(id, StatusUpdate{
		Overall:       StatusOf(StatusInProgress),
		Transcription: StatusOf(StageInProgress),
	}))

	// Fresh rows are not stalled.
	stalled, err := s.ListStalled(30 * time.Minute)
	require.NoError(t, err)
	assert.Empty(t, stalled)

	// Backdate last_updated past the cutoff.
	_, err = s.db.Exec("UPDATE processing_status SET last_updated = ? WHERE file_id = ?",
		time.Now().Add(-time.Hour), id)
	require.NoError(t, err)

	stalled, err = s.ListStalled(30 * time.Minute)
	require.NoError(t, err)
	require.Len(t, stalled, 1)
	assert.Equal(t, id, stalled[0].FileID)
}

func TestErrorLogAndClear(t *testing.T) {
	s := newTestStore(t)
	id := addTestFile(t, s, "/media/e.mp3")

	require.NoError(t, s.LogError(id, "transcription", "boom", "details"))
	require.NoError(t, s.LogError(id, "translation_he", "boom2", ""))

	entries, err := s.ListErrors(id, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	counts, err := s.ErrorCountsByFile()
	require.NoError(t, err)
	assert.Equal(t, 2, counts[id])

	n, err := s.ClearErrors(id, "transcription")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	entries, err = s.ListErrors(id, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "translation_he", entries[0].ProcessStage)
}

func TestRecordQuality(t *testing.T) {
	s := newTestStore(t)
	id := addTestFile(t, s, "/media/q.mp3")

	require.NoError(t, s.RecordQuality(id, "he", "gpt-4.1", 8.5, []string{"minor idiom"}, "good"))

	evals, err := s.ListQuality(id)
	require.NoError(t, err)
	require.Len(t, evals, 1)
	assert.Equal(t, 8.5, evals[0].Score)
	assert.Equal(t, []string{"minor idiom"}, evals[0].Issues)
}

func TestUpdateMediaMetadata(t *testing.T) {
	s := newTestStore(t)
	id := addTestFile(t, s, "/media/m.mp3")

	duration := 123.5
	lang := "deu"
	require.NoError(t, s.UpdateMediaMetadata(id, MetadataUpdate{Duration: &duration, DetectedLanguage: &lang}))

	rec, err := s.GetStatus(id)
	require.NoError(t, err)
	require.NotNil(t, rec.Duration)
	assert.Equal(t, 123.5, *rec.Duration)
	assert.Equal(t, "deu", rec.DetectedLanguage)
}

func TestSummaryStatistics(t *testing.T) {
	s := newTestStore(t)
	id1 := addTestFile(t, s, "/media/s1.mp3")
	_, err := s.AddMedia("/media/s2.mp4", "s2.mp4", "video", 4096, MetadataUpdate{})
	require.NoError(t, err)
	require.NoError(t, s.UpdateStatus(id1, StatusUpdate{
		Transcription: StatusOf(StageCompleted),
	}))

	sum, err := s.SummaryStatistics()
	require.NoError(t, err)
	assert.Equal(t, 2, sum.TotalFiles)
	assert.Equal(t, 1, sum.StageCounts["transcription"][StageCompleted])
	assert.Equal(t, 1, sum.MediaTypeCounts["audio"])
	assert.Equal(t, 1, sum.MediaTypeCounts["video"])
}

func TestListUnknownLanguage(t *testing.T) {
	s := newTestStore(t)
	unknown := addTestFile(t, s, "/media/u1.mp3")
	known, err := s.AddMedia("/media/u2.mp3", "u2.mp3", "audio", 1, MetadataUpdate{})
	require.NoError(t, err)
	require.NoError(t, s.SetDetectedLanguage(known, "deu"))

	records, err := s.ListUnknownLanguage()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, unknown, records[0].FileID)
}

func TestStageColumn(t *testing.T) {
	col, err := StageColumn("transcription")
	require.NoError(t, err)
	assert.Equal(t, "transcription_status", col)

	col, err = StageColumn("translation_he")
	require.NoError(t, err)
	assert.Equal(t, "translation_he_status", col)

	_, err = StageColumn("translation_xx")
	assert.ErrorIs(t, err, ErrConstraint)

	_, err = StageColumn("bogus")
	assert.ErrorIs(t, err, ErrConstraint)
}
