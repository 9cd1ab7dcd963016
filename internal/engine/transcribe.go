package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/scribe-archive/scribe/internal/config"
	"github.com/scribe-archive/scribe/internal/layout"
	"github.com/scribe-archive/scribe/internal/media"
	"github.com/scribe-archive/scribe/internal/provider"
	"github.com/scribe-archive/scribe/internal/retry"
	"github.com/scribe-archive/scribe/internal/store"
	"github.com/scribe-archive/scribe/internal/subtitle"
	"github.com/scribe-archive/scribe/internal/voice"
)

// Transcriber drives one file from audio to transcript, timings JSON
// and source-language subtitle.
type Transcriber struct {
	store    *store.Store
	layout   *layout.Layout
	provider voice.SpeechToTextProvider
	settings config.Settings
	log      zerolog.Logger
}

func NewTranscriber(st *store.Store, lay *layout.Layout, prov voice.SpeechToTextProvider, settings config.Settings, logger zerolog.Logger) *Transcriber {
	return &Transcriber{
		store:    st,
		layout:   lay,
		provider: prov,
		settings: settings,
		log:      logger.With().Str("component", "transcriber").Logger(),
	}
}

// AudioPath resolves the audio artifact to transcribe: the extracted
// audio for video sources, the materialized source for audio sources.
func (t *Transcriber) AudioPath(rec *store.FileRecord) string {
	if rec.MediaType == "video" {
		return t.layout.AudioPath(rec.SafeFilename, t.settings.ExtractAudioFormat)
	}
	src := t.layout.SourcePath(rec.SafeFilename)
	if _, err := os.Stat(src); err == nil {
		return src
	}
	return rec.OriginalPath
}

// ProcessFile transcribes one file, updating its tracked status.
func (t *Transcriber) ProcessFile(ctx context.Context, rec *store.FileRecord) error {
	transcriptPath := t.layout.TranscriptPath(rec.SafeFilename)

	if !t.settings.ForceReprocess {
		if info, err := os.Stat(transcriptPath); err == nil && info.Size() > 0 {
			t.log.Info().Str("file_id", rec.FileID).Msg("transcript already on disk, marking completed")
			return t.store.UpdateStatus(rec.FileID, store.StatusUpdate{
				Transcription: store.StatusOf(store.StageCompleted),
			})
		}
	}

	if err := t.store.UpdateStatus(rec.FileID, store.StatusUpdate{
		Overall:       store.StatusOf(store.StatusInProgress),
		Transcription: store.StatusOf(store.StageInProgress),
	}); err != nil {
		return err
	}

	audioPath := t.AudioPath(rec)
	info, err := os.Stat(audioPath)
	if err != nil {
		return t.fail(rec.FileID, "audio file not found", audioPath)
	}

	langHint := t.languageHint(rec)
	opts := voice.TranscribeOptions{
		Model:          t.settings.TranscriptionModel,
		LanguageCode:   langHint,
		Diarize:        t.settings.Diarize,
		TagAudioEvents: true,
		WordTimestamps: true,
		TimeoutSeconds: t.settings.APITimeoutSeconds,
	}

	maxBytes := int64(t.settings.MaxAudioSizeMB) * 1024 * 1024
	var results []*voice.TranscriptionResult

	if info.Size() <= maxBytes {
		result, err := t.transcribeWithRetry(ctx, audioPath, opts, 0)
		if err != nil {
			return t.fail(rec.FileID, "transcription failed", err.Error())
		}
		results = append(results, result)
	} else {
		t.log.Info().
			Str("file_id", rec.FileID).
			Int64("size", info.Size()).
			Msg("audio exceeds single-request limit, splitting into segments")
		results, err = t.transcribeSegmented(ctx, rec, audioPath, maxBytes, opts)
		if err != nil {
			return t.fail(rec.FileID, "segmented transcription failed", err.Error())
		}
	}

	fullText, words := stitch(results)

	if _, err := t.layout.EnsureDir(rec.SafeFilename); err != nil {
		return t.fail(rec.FileID, "creating artifact directory failed", err.Error())
	}
	if err := os.WriteFile(transcriptPath, []byte(fullText), 0644); err != nil {
		return t.fail(rec.FileID, "writing transcript failed", err.Error())
	}
	if err := t.writeSegmentsJSON(rec.SafeFilename, results); err != nil {
		return t.fail(rec.FileID, "writing segments JSON failed", err.Error())
	}

	srt := subtitle.Format(subtitle.BuildCues(words))
	if err := os.WriteFile(t.layout.SubtitlePath(rec.SafeFilename, "orig"), []byte(srt), 0644); err != nil {
		return t.fail(rec.FileID, "writing subtitle failed", err.Error())
	}

	if lang := detectedLanguage(results); lang != "" {
		if err := t.store.SetDetectedLanguage(rec.FileID, lang); err != nil {
			t.log.Warn().Err(err).Str("file_id", rec.FileID).Msg("could not persist detected language")
		}
	}

	if err := t.store.UpdateStatus(rec.FileID, store.StatusUpdate{
		Transcription: store.StatusOf(store.StageCompleted),
	}); err != nil {
		return err
	}
	if _, err := t.store.ClearErrors(rec.FileID, "transcription"); err != nil {
		t.log.Warn().Err(err).Str("file_id", rec.FileID).Msg("could not clear stage errors")
	}

	t.log.Info().
		Str("file_id", rec.FileID).
		Int("words", len(words)).
		Msg("transcription completed")
	return nil
}

// transcribeSegmented splits the audio and feeds segments to the
// provider sequentially, offsetting every word by its segment start.
func (t *Transcriber) transcribeSegmented(ctx context.Context, rec *store.FileRecord, audioPath string, maxBytes int64, opts voice.TranscribeOptions) ([]*voice.TranscriptionResult, error) {
	scratch, err := os.MkdirTemp("", "audio_segments_")
	if err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	segments, err := media.SplitAudio(ctx, audioPath, scratch, media.SplitOptions{
		MaxSizeBytes:      maxBytes,
		MaxSegmentSeconds: t.settings.MaxSegmentSeconds,
		Bitrate:           t.settings.ExtractAudioQuality,
	})
	if err != nil {
		return nil, err
	}

	pause := time.Duration(t.settings.SegmentPauseSeconds) * time.Second
	results := make([]*voice.TranscriptionResult, 0, len(segments))

	for i, seg := range segments {
		t.log.Info().
			Str("file_id", rec.FileID).
			Int("segment", i+1).
			Int("total", len(segments)).
			Float64("start", seg.StartSeconds).
			Msg("transcribing segment")

		result, err := t.transcribeWithRetry(ctx, seg.Path, opts, seg.StartSeconds)
		if err != nil {
			return nil, fmt.Errorf("segment at %.2fs: %w", seg.StartSeconds, err)
		}
		results = append(results, result)

		if i < len(segments)-1 && pause > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(pause):
			}
		}
	}
	return results, nil
}

// transcribeWithRetry runs one provider call under the shared retry
// policy: transient errors back off exponentially (capped at 60s),
// permanent errors abort immediately.
func (t *Transcriber) transcribeWithRetry(ctx context.Context, path string, opts voice.TranscribeOptions, offset float64) (*voice.TranscriptionResult, error) {
	policy := retry.DefaultPolicy(t.settings.APIRetries)
	policy.RetryOn = provider.IsTransient

	result, err := retry.Do(policy, t.log, func() (*voice.TranscriptionResult, error) {
		return t.provider.Transcribe(ctx, path, opts)
	})
	if err != nil {
		return nil, err
	}
	if result.Text == "" {
		return nil, fmt.Errorf("%w: transcription returned no text", provider.ErrPermanent)
	}
	if offset != 0 {
		for i := range result.Words {
			result.Words[i].Start += offset
			result.Words[i].End += offset
		}
	}
	return result, nil
}

func (t *Transcriber) languageHint(rec *store.FileRecord) string {
	switch {
	case t.settings.ForceLanguage != "":
		return t.settings.ForceLanguage
	case t.settings.AutoDetectLanguage:
		return ""
	case rec.DetectedLanguage != "":
		return rec.DetectedLanguage
	default:
		return t.settings.DefaultLanguage
	}
}

// writeSegmentsJSON persists the raw provider responses as a pretty
// JSON array for audit.
func (t *Transcriber) writeSegmentsJSON(safeFilename string, results []*voice.TranscriptionResult) error {
	raw := make([]any, 0, len(results))
	for _, r := range results {
		var decoded any
		if err := json.Unmarshal(r.Raw, &decoded); err != nil {
			decoded = map[string]any{"text": r.Text}
		}
		raw = append(raw, decoded)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(raw); err != nil {
		return err
	}
	return os.WriteFile(t.layout.SegmentsJSONPath(safeFilename), buf.Bytes(), 0644)
}

func (t *Transcriber) fail(fileID, message, details string) error {
	if err := t.store.LogError(fileID, "transcription", message, details); err != nil {
		t.log.Error().Err(err).Str("file_id", fileID).Msg("could not log error")
	}
	if err := t.store.UpdateStatus(fileID, store.StatusUpdate{
		Overall:       store.StatusOf(store.StatusFailed),
		Transcription: store.StatusOf(store.StageFailed),
	}); err != nil {
		return err
	}
	return errors.New(message + ": " + details)
}

// stitch joins segment texts with single spaces and accumulates the
// already-offset words in order.
func stitch(results []*voice.TranscriptionResult) (string, []voice.Word) {
	var texts []string
	var words []voice.Word
	for _, r := range results {
		texts = append(texts, r.Text)
		words = append(words, r.Words...)
	}
	return strings.Join(texts, " "), words
}

func detectedLanguage(results []*voice.TranscriptionResult) string {
	for _, r := range results {
		if r.DetectedLanguage != "" {
			return r.DetectedLanguage
		}
	}
	return ""
}
