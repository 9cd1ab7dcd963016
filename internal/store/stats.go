package store

// Summary aggregates the counts the status command reports.
type Summary struct {
	TotalFiles      int
	StatusCounts    map[string]int
	StageCounts     map[string]map[string]int
	MediaTypeCounts map[string]int
	ErrorCounts     map[string]int
	LanguageCounts  map[string]int
	TotalDuration   float64
	TotalSize       int64
}

// SummaryStatistics gathers aggregate counts per stage and status.
func (s *Store) SummaryStatistics() (*Summary, error) {
	sum := &Summary{
		StatusCounts:    map[string]int{},
		StageCounts:     map[string]map[string]int{},
		MediaTypeCounts: map[string]int{},
		ErrorCounts:     map[string]int{},
		LanguageCounts:  map[string]int{},
	}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM media_files").Scan(&sum.TotalFiles); err != nil {
		return nil, classifySQLiteErr(err)
	}

	if err := s.countGroup("SELECT status, COUNT(*) FROM processing_status GROUP BY status", sum.StatusCounts); err != nil {
		return nil, err
	}

	stages := []string{"transcription_status", "translation_en_status", "translation_de_status", "translation_he_status"}
	names := []string{"transcription", "translation_en", "translation_de", "translation_he"}
	for i, col := range stages {
		counts := map[string]int{}
		if err := s.countGroup("SELECT COALESCE("+col+", 'not_started'), COUNT(*) FROM processing_status GROUP BY "+col, counts); err != nil {
			return nil, err
		}
		sum.StageCounts[names[i]] = counts
	}

	if err := s.countGroup("SELECT COALESCE(media_type, 'unknown'), COUNT(*) FROM media_files GROUP BY media_type", sum.MediaTypeCounts); err != nil {
		return nil, err
	}
	if err := s.countGroup("SELECT process_stage, COUNT(*) FROM errors GROUP BY process_stage", sum.ErrorCounts); err != nil {
		return nil, err
	}
	if err := s.countGroup("SELECT COALESCE(NULLIF(detected_language, ''), 'unknown'), COUNT(*) FROM media_files GROUP BY detected_language", sum.LanguageCounts); err != nil {
		return nil, err
	}

	row := s.db.QueryRow("SELECT COALESCE(SUM(duration), 0), COALESCE(SUM(file_size), 0) FROM media_files")
	if err := row.Scan(&sum.TotalDuration, &sum.TotalSize); err != nil {
		return nil, classifySQLiteErr(err)
	}
	return sum, nil
}

func (s *Store) countGroup(query string, into map[string]int) error {
	rows, err := s.db.Query(query)
	if err != nil {
		return classifySQLiteErr(err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return classifySQLiteErr(err)
		}
		into[key] = n
	}
	return classifySQLiteErr(rows.Err())
}
