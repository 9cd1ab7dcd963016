package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AddMedia records a new media file and its initial processing status
// in one transaction and returns the generated file id.
func (s *Store) AddMedia(originalPath, safeFilename, mediaType string, size int64, meta MetadataUpdate) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Path lookup before insert keeps the duplicate error distinct
	// from generic constraint failures.
	var existing string
	err := s.db.QueryRow("SELECT file_id FROM media_files WHERE original_path = ?", originalPath).Scan(&existing)
	if err == nil {
		return "", fmt.Errorf("%w: %s", ErrDuplicatePath, originalPath)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", classifySQLiteErr(err)
	}

	fileID := uuid.NewString()
	now := time.Now()

	tx, err := s.db.Begin()
	if err != nil {
		return "", classifySQLiteErr(err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO media_files
			(file_id, original_path, safe_filename, file_size, duration, checksum, media_type, detected_language, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fileID, originalPath, safeFilename, size,
		nullFloat(meta.Duration), nullStr(meta.Checksum), mediaType,
		nullStr(meta.DetectedLanguage), now,
	)
	if err != nil {
		return "", classifySQLiteErr(err)
	}

	_, err = tx.Exec(`
		INSERT INTO processing_status
			(file_id, status, transcription_status,
			 translation_en_status, translation_de_status, translation_he_status,
			 last_updated, attempts)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
		fileID, StatusPending, StageNotStarted,
		StageNotStarted, StageNotStarted, StageNotStarted, now,
	)
	if err != nil {
		return "", classifySQLiteErr(err)
	}

	if err := tx.Commit(); err != nil {
		return "", classifySQLiteErr(err)
	}

	s.log.Debug().Str("file_id", fileID).Str("path", originalPath).Msg("media file added")
	return fileID, nil
}

// UpdateMediaMetadata applies the whitelisted post-probe fields.
func (s *Store) UpdateMediaMetadata(fileID string, meta MetadataUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := []string{}
	args := []any{}
	if meta.FileSize != nil {
		set = append(set, "file_size = ?")
		args = append(args, *meta.FileSize)
	}
	if meta.Duration != nil {
		set = append(set, "duration = ?")
		args = append(args, *meta.Duration)
	}
	if meta.Checksum != nil {
		set = append(set, "checksum = ?")
		args = append(args, *meta.Checksum)
	}
	if meta.DetectedLanguage != nil {
		set = append(set, "detected_language = ?")
		args = append(args, *meta.DetectedLanguage)
	}
	if meta.SafeFilename != nil {
		set = append(set, "safe_filename = ?")
		args = append(args, *meta.SafeFilename)
	}
	if len(set) == 0 {
		s.log.Warn().Str("file_id", fileID).Msg("metadata update with no recognized fields")
		return nil
	}

	args = append(args, fileID)
	res, err := s.db.Exec("UPDATE media_files SET "+joinSet(set)+" WHERE file_id = ?", args...)
	if err != nil {
		return classifySQLiteErr(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: media file %s", ErrNotFound, fileID)
	}
	return nil
}

// SetDetectedLanguage persists the language reported by transcription.
func (s *Store) SetDetectedLanguage(fileID, lang string) error {
	return s.UpdateMediaMetadata(fileID, MetadataUpdate{DetectedLanguage: &lang})
}

func joinSet(set []string) string {
	out := set[0]
	for _, s := range set[1:] {
		out += ", " + s
	}
	return out
}

func nullStr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
