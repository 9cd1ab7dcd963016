package pipeline

import (
	"context"
	"time"

	"github.com/scribe-archive/scribe/internal/store"
)

// StallResetCounts reports which stages the stall pass reset.
type StallResetCounts struct {
	Transcription int
	Translation   map[string]int
	Total         int
}

// ResetStalled flips every stage stuck in_progress past the timeout to
// failed so the operator can see what happened, and logs an error per
// reset stage.
func (p *Pipeline) ResetStalled(timeoutMinutes int) (StallResetCounts, error) {
	if timeoutMinutes <= 0 {
		timeoutMinutes = p.settings.StalledTimeoutMinutes
	}
	counts := StallResetCounts{Translation: map[string]int{}}

	stalled, err := p.store.ListStalled(time.Duration(timeoutMinutes) * time.Minute)
	if err != nil {
		return counts, err
	}

	for _, rec := range stalled {
		update := store.StatusUpdate{Translation: map[string]string{}}
		var stages []string

		if rec.TranscriptionStatus == store.StageInProgress {
			update.Transcription = store.StatusOf(store.StageFailed)
			counts.Transcription++
			stages = append(stages, "transcription")
		}
		for _, lang := range store.TargetLanguages {
			if rec.TranslationStatus[lang] == store.StageInProgress {
				update.Translation[lang] = store.StageFailed
				counts.Translation[lang]++
				stages = append(stages, "translation_"+lang)
			}
		}
		if rec.Status == store.StatusInProgress && !anyStageCompleted(rec) {
			update.Overall = store.StatusOf(store.StatusFailed)
		}
		if update.Transcription == nil && len(update.Translation) == 0 && update.Overall == nil {
			continue
		}

		if err := p.store.UpdateStatus(rec.FileID, update); err != nil {
			p.log.Error().Err(err).Str("file_id", rec.FileID).Msg("could not reset stalled file")
			continue
		}
		for _, stage := range stages {
			_ = p.store.LogError(rec.FileID, stage, "stalled processing reset",
				"stage exceeded stalled timeout, reset to failed")
		}
		counts.Total++
		p.log.Info().
			Str("file_id", rec.FileID).
			Strs("stages", stages).
			Msg("stalled file reset")
	}
	return counts, nil
}

func anyStageCompleted(rec *store.FileRecord) bool {
	if rec.TranscriptionStatus == store.StageCompleted || rec.TranscriptionStatus == store.StageQAFailed {
		return true
	}
	for _, st := range rec.TranslationStatus {
		if st == store.StageCompleted || st == store.StageQAFailed {
			return true
		}
	}
	return false
}

// MonitorOptions tune the foreground monitor loop.
type MonitorOptions struct {
	CheckInterval   time.Duration
	RestartInterval time.Duration
	AutoRestart     bool
}

// Monitor runs in the foreground: a stall-recovery pass on a timer,
// with optional automatic pool restarts for stages that still have
// not_started work. Stages reset to failed are not restarted. Returns on
// context cancellation.
func (p *Pipeline) Monitor(ctx context.Context, opts MonitorOptions) error {
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = time.Duration(p.settings.CheckIntervalSeconds) * time.Second
	}
	if opts.RestartInterval <= 0 {
		opts.RestartInterval = time.Duration(p.settings.RestartIntervalSeconds) * time.Second
	}

	p.log.Info().
		Dur("check_interval", opts.CheckInterval).
		Dur("restart_interval", opts.RestartInterval).
		Bool("auto_restart", opts.AutoRestart).
		Msg("monitor started")

	checkTicker := time.NewTicker(opts.CheckInterval)
	defer checkTicker.Stop()
	restartTicker := time.NewTicker(opts.RestartInterval)
	defer restartTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("monitor stopping")
			return nil
		case <-checkTicker.C:
			counts, err := p.ResetStalled(p.settings.StalledTimeoutMinutes)
			if err != nil {
				p.log.Error().Err(err).Msg("stall check failed")
				continue
			}
			if counts.Total > 0 {
				p.log.Warn().Int("reset", counts.Total).Msg("stalled files reset")
			}
		case <-restartTicker.C:
			if !opts.AutoRestart {
				continue
			}
			p.restartPending(ctx)
		}
	}
}

// restartPending starts a pool iteration for any stage with pending
// work.
func (p *Pipeline) restartPending(ctx context.Context) {
	if pending, _ := p.store.ListPendingForStage("transcription", 1); len(pending) > 0 {
		p.log.Info().Msg("restarting transcription pool")
		p.RunTranscription(ctx, p.settings.TranscriptionWorkers, p.settings.BatchSize)
	}
	for _, lang := range p.settings.TargetLanguages {
		if ctx.Err() != nil {
			return
		}
		if pending, _ := p.store.ListPendingForStage("translation_"+lang, 1); len(pending) > 0 {
			p.log.Info().Str("lang", lang).Msg("restarting translation pool")
			p.RunTranslation(ctx, lang, p.settings.TranslationWorkers, p.settings.BatchSize)
		}
	}
}
