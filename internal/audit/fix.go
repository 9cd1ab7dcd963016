package audit

import (
	"os"

	"github.com/scribe-archive/scribe/internal/store"
)

// FixReport counts the actions one fix pass applied (or would apply
// under dry-run).
type FixReport struct {
	PlaceholderReset int
	MissingFailed    int
	DiskCompleted    int
	DryRun           bool
}

// Total is the number of fixes in the report.
func (r FixReport) Total() int {
	return r.PlaceholderReset + r.MissingFailed + r.DiskCompleted
}

// Fix applies the idempotent status repairs for an audit result:
// placeholders reset to not_started, missing-but-completed flipped to
// failed, valid-on-disk promoted to completed. Every change goes
// through UpdateStatus; artifacts are never touched.
func (a *Auditor) Fix(result *Result, dryRun bool) (FixReport, error) {
	report := FixReport{DryRun: dryRun}

	for _, f := range result.Findings {
		if f.FileID == "" {
			continue // orphans have no status row to fix
		}
		rec, err := a.store.GetStatus(f.FileID)
		if err != nil {
			a.log.Warn().Err(err).Str("file_id", f.FileID).Msg("skipping fix for unknown file")
			continue
		}

		switch f.Status {
		case Placeholder:
			if a.stageStatus(rec, f.Language) == store.StageNotStarted {
				continue // already reset by a prior pass
			}
			report.PlaceholderReset++
			if dryRun {
				continue
			}
			if err := a.setStage(rec, f.Language, store.StageNotStarted); err != nil {
				return report, err
			}
		case Missing, Empty:
			if a.stageStatus(rec, f.Language) != store.StageCompleted {
				continue
			}
			report.MissingFailed++
			if dryRun {
				continue
			}
			if err := a.setStage(rec, f.Language, store.StageFailed); err != nil {
				return report, err
			}
		case Valid:
			// Promote only artifacts that exist on disk while the
			// store still says otherwise.
			if a.stageStatus(rec, f.Language) == store.StageCompleted {
				continue
			}
			if info, err := os.Stat(f.Path); err != nil || info.Size() == 0 {
				continue
			}
			report.DiskCompleted++
			if dryRun {
				continue
			}
			if err := a.setStage(rec, f.Language, store.StageCompleted); err != nil {
				return report, err
			}
		}
	}

	if !dryRun && report.Total() > 0 {
		a.log.Info().
			Int("placeholder_reset", report.PlaceholderReset).
			Int("missing_failed", report.MissingFailed).
			Int("disk_completed", report.DiskCompleted).
			Msg("fixes applied")
	}
	return report, nil
}

func (a *Auditor) stageStatus(rec *store.FileRecord, lang string) string {
	if lang == "transcript" {
		return rec.TranscriptionStatus
	}
	return rec.TranslationStatus[lang]
}

func (a *Auditor) setStage(rec *store.FileRecord, lang, status string) error {
	update := store.StatusUpdate{}
	if lang == "transcript" {
		update.Transcription = store.StatusOf(status)
	} else {
		update.Translation = map[string]string{lang: status}
	}
	return a.store.UpdateStatus(rec.FileID, update)
}
