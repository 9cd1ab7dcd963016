package engine

import (
	"context"
	"errors"
	"os"

	"github.com/rs/zerolog"

	"github.com/scribe-archive/scribe/internal/config"
	"github.com/scribe-archive/scribe/internal/layout"
	"github.com/scribe-archive/scribe/internal/media"
	"github.com/scribe-archive/scribe/internal/store"
)

// Extractor materializes sources into the artifact layout and pulls
// normalized audio out of video recordings.
type Extractor struct {
	store    *store.Store
	layout   *layout.Layout
	settings config.Settings
	log      zerolog.Logger
}

func NewExtractor(st *store.Store, lay *layout.Layout, settings config.Settings, logger zerolog.Logger) *Extractor {
	return &Extractor{
		store:    st,
		layout:   lay,
		settings: settings,
		log:      logger.With().Str("component", "extractor").Logger(),
	}
}

// NeedsExtraction reports whether the file still lacks its audio
// artifact.
func (e *Extractor) NeedsExtraction(rec *store.FileRecord) bool {
	if rec.MediaType != "video" {
		return false
	}
	info, err := os.Stat(e.layout.AudioPath(rec.SafeFilename, e.settings.ExtractAudioFormat))
	return err != nil || info.Size() == 0
}

// ProcessFile links the original into the canonical directory and, for
// video sources, extracts the audio track. Idempotent.
func (e *Extractor) ProcessFile(ctx context.Context, rec *store.FileRecord) error {
	if _, err := os.Stat(rec.OriginalPath); err != nil {
		return e.fail(rec.FileID, "original file not found", rec.OriginalPath)
	}

	if _, err := e.layout.MaterializeSource(rec.OriginalPath, rec.SafeFilename); err != nil {
		return e.fail(rec.FileID, "materializing source failed", err.Error())
	}

	if rec.MediaType != "video" {
		return nil
	}
	if !e.NeedsExtraction(rec) {
		return nil
	}

	if err := e.store.UpdateStatus(rec.FileID, store.StatusUpdate{
		Overall: store.StatusOf(store.StatusInProgress),
	}); err != nil {
		return err
	}

	audioPath := e.layout.AudioPath(rec.SafeFilename, e.settings.ExtractAudioFormat)
	err := media.ExtractAudio(ctx, rec.OriginalPath, audioPath, media.ExtractOptions{
		Bitrate: e.settings.ExtractAudioQuality,
	})
	if err != nil {
		return e.fail(rec.FileID, "audio extraction failed", err.Error())
	}

	e.log.Info().
		Str("file_id", rec.FileID).
		Str("audio", audioPath).
		Msg("audio extracted")
	return nil
}

func (e *Extractor) fail(fileID, message, details string) error {
	if err := e.store.LogError(fileID, "extraction", message, details); err != nil {
		e.log.Error().Err(err).Str("file_id", fileID).Msg("could not log error")
	}
	if err := e.store.UpdateStatus(fileID, store.StatusUpdate{
		Overall: store.StatusOf(store.StatusFailed),
	}); err != nil {
		return err
	}
	return errors.New(message + ": " + details)
}
