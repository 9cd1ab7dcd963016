package store

import (
	"encoding/json"
	"time"
)

// LogError appends an entry to the error log.
func (s *Store) LogError(fileID, processStage, message, details string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO errors (file_id, process_stage, error_message, error_details, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		fileID, processStage, message, details, time.Now())
	if err != nil {
		return classifySQLiteErr(err)
	}
	s.log.Debug().
		Str("file_id", fileID).
		Str("stage", processStage).
		Str("message", message).
		Msg("error logged")
	return nil
}

// ClearErrors deletes error-log rows. Empty fileID and stage clear
// everything; empty stage clears all stages for the file; empty fileID
// with a stage clears that stage for every file. Returns rows deleted.
func (s *Store) ClearErrors(fileID, stage string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := "DELETE FROM errors"
	var args []any
	switch {
	case fileID != "" && stage != "":
		query += " WHERE file_id = ? AND process_stage = ?"
		args = []any{fileID, stage}
	case fileID != "":
		query += " WHERE file_id = ?"
		args = []any{fileID}
	case stage != "":
		query += " WHERE process_stage = ?"
		args = []any{stage}
	}
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return 0, classifySQLiteErr(err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ListErrors returns error-log entries, newest first. Empty fileID
// lists across all files.
func (s *Store) ListErrors(fileID string, limit int) ([]ErrorLogEntry, error) {
	query := `
		SELECT error_id, file_id, process_stage, error_message, error_details, timestamp
		FROM errors`
	var args []any
	if fileID != "" {
		query += " WHERE file_id = ?"
		args = append(args, fileID)
	}
	query += " ORDER BY timestamp DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, classifySQLiteErr(err)
	}
	defer rows.Close()

	var out []ErrorLogEntry
	for rows.Next() {
		var e ErrorLogEntry
		if err := rows.Scan(&e.ErrorID, &e.FileID, &e.ProcessStage, &e.ErrorMessage, &e.ErrorDetails, &e.Timestamp); err != nil {
			return nil, classifySQLiteErr(err)
		}
		out = append(out, e)
	}
	return out, classifySQLiteErr(rows.Err())
}

// ErrorCountsByFile returns file_id -> number of logged errors.
func (s *Store) ErrorCountsByFile() (map[string]int, error) {
	rows, err := s.db.Query("SELECT file_id, COUNT(*) FROM errors GROUP BY file_id")
	if err != nil {
		return nil, classifySQLiteErr(err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, classifySQLiteErr(err)
		}
		out[id] = n
	}
	return out, classifySQLiteErr(rows.Err())
}

// RecordQuality stores one LLM quality evaluation.
func (s *Store) RecordQuality(fileID, language, model string, score float64, issues []string, comment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	serialized, err := json.Marshal(issues)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO quality_evaluations (file_id, language, model, score, issues, comment, evaluated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fileID, language, model, score, string(serialized), comment, time.Now())
	return classifySQLiteErr(err)
}

// ListQuality returns the evaluations for one file, newest first.
func (s *Store) ListQuality(fileID string) ([]QualityEvaluation, error) {
	rows, err := s.db.Query(`
		SELECT eval_id, file_id, language, model, score, issues, comment, evaluated_at
		FROM quality_evaluations
		WHERE file_id = ?
		ORDER BY evaluated_at DESC`, fileID)
	if err != nil {
		return nil, classifySQLiteErr(err)
	}
	defer rows.Close()

	var out []QualityEvaluation
	for rows.Next() {
		var q QualityEvaluation
		var issues string
		if err := rows.Scan(&q.EvalID, &q.FileID, &q.Language, &q.Model, &q.Score, &issues, &q.Comment, &q.EvaluatedAt); err != nil {
			return nil, classifySQLiteErr(err)
		}
		if issues != "" {
			_ = json.Unmarshal([]byte(issues), &q.Issues)
		}
		out = append(out, q)
	}
	return out, classifySQLiteErr(rows.Err())
}
