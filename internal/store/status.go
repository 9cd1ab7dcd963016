package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// UpdateStatus applies a status update descriptor to one file. It
// always stamps last_updated and increments attempts; started_at is
// stamped on the first transition into in_progress, completed_at on
// transitions into completed or failed unless supplied.
func (s *Store) UpdateStatus(fileID string, u StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	set := []string{"last_updated = ?", "attempts = attempts + 1"}
	args := []any{now}

	if u.Overall != nil {
		set = append(set, "status = ?")
		args = append(args, *u.Overall)
	}
	if u.Transcription != nil {
		set = append(set, "transcription_status = ?")
		args = append(args, *u.Transcription)
	}
	for lang, st := range u.Translation {
		col, err := translationColumn(lang)
		if err != nil {
			return err
		}
		set = append(set, col+" = ?")
		args = append(args, st)
	}

	entersInProgress := statusEnters(u, StageInProgress)
	if entersInProgress {
		var startedAt sql.NullTime
		err := s.db.QueryRow("SELECT started_at FROM processing_status WHERE file_id = ?", fileID).Scan(&startedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: processing status %s", ErrNotFound, fileID)
		}
		if err != nil {
			return classifySQLiteErr(err)
		}
		if !startedAt.Valid {
			set = append(set, "started_at = ?")
			args = append(args, now)
		}
	}

	if u.CompletedAt != nil {
		set = append(set, "completed_at = ?")
		args = append(args, *u.CompletedAt)
	} else if statusEnters(u, StageCompleted) || statusEnters(u, StageFailed) {
		set = append(set, "completed_at = ?")
		args = append(args, now)
	}

	args = append(args, fileID)
	res, err := s.db.Exec(
		"UPDATE processing_status SET "+strings.Join(set, ", ")+" WHERE file_id = ?", args...)
	if err != nil {
		return classifySQLiteErr(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: processing status %s", ErrNotFound, fileID)
	}
	return nil
}

// statusEnters reports whether the update moves any field to target.
func statusEnters(u StatusUpdate, target string) bool {
	if u.Overall != nil && *u.Overall == target {
		return true
	}
	if u.Transcription != nil && *u.Transcription == target {
		return true
	}
	for _, st := range u.Translation {
		if st == target {
			return true
		}
	}
	return false
}

// GetStatus returns the joined record for one file.
func (s *Store) GetStatus(fileID string) (*FileRecord, error) {
	row := s.db.QueryRow(`
		SELECT `+fileRecordColumns+`
		FROM media_files m
		JOIN processing_status p ON m.file_id = p.file_id
		WHERE m.file_id = ?`, fileID)
	r, err := scanFileRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: file %s", ErrNotFound, fileID)
	}
	if err != nil {
		return nil, classifySQLiteErr(err)
	}
	return r, nil
}

// GetByPath returns the record for an original path, or ErrNotFound.
func (s *Store) GetByPath(path string) (*FileRecord, error) {
	row := s.db.QueryRow(`
		SELECT `+fileRecordColumns+`
		FROM media_files m
		JOIN processing_status p ON m.file_id = p.file_id
		WHERE m.original_path = ?`, path)
	r, err := scanFileRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: path %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, classifySQLiteErr(err)
	}
	return r, nil
}

// ListByStatus returns records whose overall status is in statuses,
// most recently updated first.
func (s *Store) ListByStatus(statuses []string, limit int) ([]*FileRecord, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")
	query := `
		SELECT ` + fileRecordColumns + `
		FROM media_files m
		JOIN processing_status p ON m.file_id = p.file_id
		WHERE p.status IN (` + placeholders + `)
		ORDER BY p.last_updated DESC`
	args := make([]any, len(statuses))
	for i, st := range statuses {
		args[i] = st
	}
	return s.queryRecords(query, args, limit)
}

// ListPendingForStage returns records whose stage status is
// not_started and whose overall status is not failed, oldest first.
func (s *Store) ListPendingForStage(stage string, limit int) ([]*FileRecord, error) {
	col, err := StageColumn(stage)
	if err != nil {
		return nil, err
	}
	query := `
		SELECT ` + fileRecordColumns + `
		FROM media_files m
		JOIN processing_status p ON m.file_id = p.file_id
		WHERE p.` + col + ` = ? AND p.status != ?
		ORDER BY p.last_updated ASC`
	return s.queryRecords(query, []any{StageNotStarted, StatusFailed}, limit)
}

// ListForTranscription returns files ready for transcription:
// not started or previously failed, regardless of overall status.
func (s *Store) ListForTranscription(limit int) ([]*FileRecord, error) {
	query := `
		SELECT ` + fileRecordColumns + `
		FROM media_files m
		JOIN processing_status p ON m.file_id = p.file_id
		WHERE p.transcription_status IN (?, ?)
		ORDER BY p.last_updated ASC`
	return s.queryRecords(query, []any{StageNotStarted, StageFailed}, limit)
}

// ListUnknownLanguage returns files with no detected language yet.
func (s *Store) ListUnknownLanguage() ([]*FileRecord, error) {
	query := `
		SELECT ` + fileRecordColumns + `
		FROM media_files m
		JOIN processing_status p ON m.file_id = p.file_id
		WHERE m.detected_language IS NULL OR m.detected_language = ''
		ORDER BY m.created_at ASC`
	return s.queryRecords(query, nil, 0)
}

// ListStalled returns records whose overall status or any stage is
// in_progress and whose last_updated is older than the cutoff.
func (s *Store) ListStalled(olderThan time.Duration) ([]*FileRecord, error) {
	cutoff := time.Now().Add(-olderThan)
	query := `
		SELECT ` + fileRecordColumns + `
		FROM media_files m
		JOIN processing_status p ON m.file_id = p.file_id
		WHERE p.last_updated < ?
		  AND (p.status = ?
		       OR p.transcription_status = ?
		       OR p.translation_en_status = ?
		       OR p.translation_de_status = ?
		       OR p.translation_he_status = ?)
		ORDER BY p.last_updated ASC`
	return s.queryRecords(query, []any{
		cutoff, StatusInProgress,
		StageInProgress, StageInProgress, StageInProgress, StageInProgress,
	}, 0)
}

// ListAll returns every tracked record.
func (s *Store) ListAll() ([]*FileRecord, error) {
	query := `
		SELECT ` + fileRecordColumns + `
		FROM media_files m
		JOIN processing_status p ON m.file_id = p.file_id
		ORDER BY m.created_at ASC`
	return s.queryRecords(query, nil, 0)
}

func (s *Store) queryRecords(query string, args []any, limit int) ([]*FileRecord, error) {
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, classifySQLiteErr(err)
	}
	defer rows.Close()

	var out []*FileRecord
	for rows.Next() {
		r, err := scanFileRecord(rows)
		if err != nil {
			return nil, classifySQLiteErr(err)
		}
		out = append(out, r)
	}
	return out, classifySQLiteErr(rows.Err())
}
