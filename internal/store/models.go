package store

import (
	"database/sql"
	"time"
)

// MediaFile mirrors one row of media_files.
type MediaFile struct {
	FileID           string
	OriginalPath     string
	SafeFilename     string
	FileSize         int64
	Duration         *float64
	Checksum         string
	MediaType        string
	DetectedLanguage string
	CreatedAt        time.Time
}

// FileRecord is a media_files row joined with its processing_status
// row; the unit every engine and worker operates on.
type FileRecord struct {
	MediaFile

	Status              string
	TranscriptionStatus string
	TranslationStatus   map[string]string
	StartedAt           *time.Time
	CompletedAt         *time.Time
	LastUpdated         *time.Time
	Attempts            int
}

// StageStatus returns the status of a stage tag ("transcription",
// "translation_en", ...), defaulting to not_started.
func (r *FileRecord) StageStatus(stage string) string {
	if stage == "transcription" {
		if r.TranscriptionStatus == "" {
			return StageNotStarted
		}
		return r.TranscriptionStatus
	}
	for _, lang := range TargetLanguages {
		if stage == "translation_"+lang {
			if st, ok := r.TranslationStatus[lang]; ok && st != "" {
				return st
			}
			return StageNotStarted
		}
	}
	return StageNotStarted
}

// ErrorLogEntry mirrors one row of errors.
type ErrorLogEntry struct {
	ErrorID      int64
	FileID       string
	ProcessStage string
	ErrorMessage string
	ErrorDetails string
	Timestamp    time.Time
}

// QualityEvaluation mirrors one row of quality_evaluations.
type QualityEvaluation struct {
	EvalID      int64
	FileID      string
	Language    string
	Model       string
	Score       float64
	Issues      []string
	Comment     string
	EvaluatedAt time.Time
}

// MetadataUpdate is the whitelist of media_files fields that may change
// after discovery. Nil fields are left untouched.
type MetadataUpdate struct {
	FileSize         *int64
	Duration         *float64
	Checksum         *string
	DetectedLanguage *string
	SafeFilename     *string
}

// StatusUpdate is the update descriptor for processing_status. Nil
// fields are left untouched; Translation maps language to new status.
type StatusUpdate struct {
	Overall       *string
	Transcription *string
	Translation   map[string]string
	CompletedAt   *time.Time
}

func strOf(s string) *string { return &s }

// StatusOf is a convenience for building StatusUpdate literals.
func StatusOf(s string) *string { return strOf(s) }

const fileRecordColumns = `
	m.file_id, m.original_path, m.safe_filename, m.file_size, m.duration,
	m.checksum, m.media_type, m.detected_language, m.created_at,
	p.status, p.transcription_status,
	p.translation_en_status, p.translation_de_status, p.translation_he_status,
	p.started_at, p.completed_at, p.last_updated, p.attempts`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFileRecord(row rowScanner) (*FileRecord, error) {
	var r FileRecord
	var duration sql.NullFloat64
	var size sql.NullInt64
	var checksum, mediaType, detectedLang sql.NullString
	var createdAt sql.NullTime
	var transcription, trEN, trDE, trHE sql.NullString
	var startedAt, completedAt, lastUpdated sql.NullTime

	err := row.Scan(
		&r.FileID, &r.OriginalPath, &r.SafeFilename, &size, &duration,
		&checksum, &mediaType, &detectedLang, &createdAt,
		&r.Status, &transcription,
		&trEN, &trDE, &trHE,
		&startedAt, &completedAt, &lastUpdated, &r.Attempts,
	)
	if err != nil {
		return nil, err
	}

	r.FileSize = size.Int64
	if duration.Valid {
		r.Duration = &duration.Float64
	}
	r.Checksum = checksum.String
	r.MediaType = mediaType.String
	r.DetectedLanguage = detectedLang.String
	r.CreatedAt = createdAt.Time
	r.TranscriptionStatus = orNotStarted(transcription)
	r.TranslationStatus = map[string]string{
		"en": orNotStarted(trEN),
		"de": orNotStarted(trDE),
		"he": orNotStarted(trHE),
	}
	if startedAt.Valid {
		r.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Time
	}
	if lastUpdated.Valid {
		r.LastUpdated = &lastUpdated.Time
	}
	return &r, nil
}

func orNotStarted(s sql.NullString) string {
	if s.Valid && s.String != "" {
		return s.String
	}
	return StageNotStarted
}
