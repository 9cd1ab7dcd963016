// Package discovery scans directories for media recordings and
// registers them in the tracking store.
package discovery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	"github.com/scribe-archive/scribe/internal/config"
	"github.com/scribe-archive/scribe/internal/layout"
	"github.com/scribe-archive/scribe/internal/media"
	"github.com/scribe-archive/scribe/internal/store"
)

// Scanner discovers media files and registers them with their initial
// processing state.
type Scanner struct {
	store    *store.Store
	layout   *layout.Layout
	settings config.Settings
	log      zerolog.Logger
}

func NewScanner(st *store.Store, lay *layout.Layout, settings config.Settings, logger zerolog.Logger) *Scanner {
	return &Scanner{
		store:    st,
		layout:   lay,
		settings: settings,
		log:      logger.With().Str("component", "discovery").Logger(),
	}
}

// mediaType classifies a path by extension, returning "" for
// non-media files.
func (s *Scanner) mediaType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range s.settings.MediaExtensions.Audio {
		if ext == strings.ToLower(e) {
			return "audio"
		}
	}
	for _, e := range s.settings.MediaExtensions.Video {
		if ext == strings.ToLower(e) {
			return "video"
		}
	}
	return ""
}

// ScanDirectory walks dir and registers every media file not yet
// tracked. Returns the ids of newly added files.
func (s *Scanner) ScanDirectory(ctx context.Context, dir string, limit int) ([]string, error) {
	var candidates []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		if s.mediaType(path) == "" {
			return nil
		}
		candidates = append(candidates, path)
		if limit > 0 && len(candidates) >= limit {
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}

	s.log.Info().Int("candidates", len(candidates)).Str("dir", dir).Msg("directory scanned")

	bar := progressbar.Default(int64(len(candidates)), "registering media")
	var added []string
	for _, path := range candidates {
		_ = bar.Add(1)
		fileID, err := s.AddFile(ctx, path)
		if errors.Is(err, store.ErrDuplicatePath) {
			continue
		}
		if err != nil {
			s.log.Error().Err(err).Str("path", path).Msg("could not register file")
			continue
		}
		added = append(added, fileID)
	}
	_ = bar.Finish()
	return added, nil
}

// AddFile registers a single media file: sanitize the name, insert
// the rows, materialize the source and probe metadata.
func (s *Scanner) AddFile(ctx context.Context, path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	mediaType := s.mediaType(absPath)
	if mediaType == "" {
		return "", fmt.Errorf("unsupported media extension: %s", absPath)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("stat: %w", err)
	}

	safeName := layout.SanitizeFilename(filepath.Base(absPath))
	fileID, err := s.store.AddMedia(absPath, safeName, mediaType, info.Size(), store.MetadataUpdate{})
	if err != nil {
		return "", err
	}

	if _, err := s.layout.MaterializeSource(absPath, safeName); err != nil {
		s.log.Warn().Err(err).Str("file_id", fileID).Msg("could not materialize source")
		_ = s.store.LogError(fileID, "discovery", "materializing source failed", err.Error())
	}

	s.probeMetadata(ctx, fileID, absPath)

	s.log.Info().
		Str("file_id", fileID).
		Str("safe_filename", safeName).
		Str("size", humanize.Bytes(uint64(info.Size()))).
		Msg("media file registered")
	return fileID, nil
}

// probeMetadata fills in duration and checksum after registration;
// failures are logged but do not unregister the file.
func (s *Scanner) probeMetadata(ctx context.Context, fileID, path string) {
	meta := store.MetadataUpdate{}

	if duration, err := media.ProbeDuration(ctx, path); err == nil {
		meta.Duration = &duration
	} else {
		s.log.Warn().Err(err).Str("file_id", fileID).Msg("could not probe duration")
		_ = s.store.LogError(fileID, "discovery", "duration probe failed", err.Error())
	}

	if sum, err := checksumFile(path); err == nil {
		meta.Checksum = &sum
	} else {
		s.log.Warn().Err(err).Str("file_id", fileID).Msg("could not checksum file")
	}

	if meta.Duration != nil || meta.Checksum != nil {
		if err := s.store.UpdateMediaMetadata(fileID, meta); err != nil {
			s.log.Warn().Err(err).Str("file_id", fileID).Msg("could not update metadata")
		}
	}
}

func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
