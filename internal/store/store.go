package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Error kinds surfaced to callers. Retry is the caller's decision.
var (
	ErrNotFound         = errors.New("store: not found")
	ErrDuplicatePath    = errors.New("store: path already recorded")
	ErrStoreUnavailable = errors.New("store: unavailable")
	ErrConstraint       = errors.New("store: constraint violation")
)

// Overall statuses.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Per-stage statuses.
const (
	StageNotStarted = "not_started"
	StageInProgress = "in_progress"
	StageCompleted  = "completed"
	StageFailed     = "failed"
	StageQAFailed   = "qa_failed"
	// StageSegmented marks a parent file replaced by per-segment
	// child rows by the long-audio handler.
	StageSegmented = "segmented"
)

// TargetLanguages are the translation targets tracked as dedicated
// status columns.
var TargetLanguages = []string{"en", "de", "he"}

// Store is the durable tracking store. Writes serialize through mu;
// reads go straight to the pool.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
	log  zerolog.Logger
}

// Open opens (creating if needed) the tracking database at dbPath.
func Open(dbPath string, logger zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// WAL lets readers proceed concurrently with the single writer.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: enabling WAL: %v", ErrStoreUnavailable, err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: setting busy_timeout: %v", ErrStoreUnavailable, err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: enabling foreign keys: %v", ErrStoreUnavailable, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	s := &Store{
		db:   db,
		path: dbPath,
		log:  logger.With().Str("component", "store").Logger(),
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS media_files (
		file_id TEXT PRIMARY KEY,
		original_path TEXT NOT NULL UNIQUE,
		safe_filename TEXT NOT NULL,
		file_size INTEGER,
		duration REAL,
		checksum TEXT,
		media_type TEXT,
		detected_language TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS processing_status (
		file_id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		transcription_status TEXT,
		translation_en_status TEXT,
		translation_de_status TEXT,
		translation_he_status TEXT,
		started_at TIMESTAMP,
		completed_at TIMESTAMP,
		last_updated TIMESTAMP,
		attempts INTEGER DEFAULT 0,
		FOREIGN KEY (file_id) REFERENCES media_files(file_id)
	);

	CREATE TABLE IF NOT EXISTS errors (
		error_id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id TEXT NOT NULL,
		process_stage TEXT NOT NULL,
		error_message TEXT,
		error_details TEXT,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (file_id) REFERENCES media_files(file_id)
	);

	CREATE TABLE IF NOT EXISTS quality_evaluations (
		eval_id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id TEXT NOT NULL,
		language TEXT NOT NULL,
		model TEXT NOT NULL,
		score REAL NOT NULL,
		issues TEXT,
		comment TEXT,
		evaluated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (file_id) REFERENCES media_files(file_id)
	);

	CREATE INDEX IF NOT EXISTS idx_status ON processing_status(status);
	CREATE INDEX IF NOT EXISTS idx_transcription_status ON processing_status(transcription_status);
	CREATE INDEX IF NOT EXISTS idx_errors_file ON errors(file_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("%w: initializing schema: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the on-disk location of the database file.
func (s *Store) Path() string {
	return s.path
}

// translationColumn maps a language tag to its status column, guarding
// against anything that is not a tracked target.
func translationColumn(lang string) (string, error) {
	for _, t := range TargetLanguages {
		if t == lang {
			return "translation_" + lang + "_status", nil
		}
	}
	return "", fmt.Errorf("%w: unknown target language %q", ErrConstraint, lang)
}

// StageColumn resolves a stage tag like "transcription" or
// "translation_he" to its status column.
func StageColumn(stage string) (string, error) {
	if stage == "transcription" {
		return "transcription_status", nil
	}
	if lang, ok := strings.CutPrefix(stage, "translation_"); ok {
		return translationColumn(lang)
	}
	return "", fmt.Errorf("%w: unknown stage %q", ErrConstraint, stage)
}

func classifySQLiteErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint"),
		strings.Contains(msg, "FOREIGN KEY constraint"),
		strings.Contains(msg, "CHECK constraint"):
		return fmt.Errorf("%w: %v", ErrConstraint, err)
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}
