// Package pipeline schedules files through extraction, transcription
// and translation with bounded worker pools.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/scribe-archive/scribe/internal/config"
	"github.com/scribe-archive/scribe/internal/engine"
	"github.com/scribe-archive/scribe/internal/layout"
	"github.com/scribe-archive/scribe/internal/store"
)

// Pipeline owns the worker pools and the engines they drive.
type Pipeline struct {
	store       *store.Store
	layout      *layout.Layout
	extractor   *engine.Extractor
	transcriber *engine.Transcriber
	translator  *engine.Translator
	settings    config.Settings
	log         zerolog.Logger
}

func New(st *store.Store, lay *layout.Layout, extractor *engine.Extractor, transcriber *engine.Transcriber, translator *engine.Translator, settings config.Settings, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		store:       st,
		layout:      lay,
		extractor:   extractor,
		transcriber: transcriber,
		translator:  translator,
		settings:    settings,
		log:         logger.With().Str("component", "pipeline").Logger(),
	}
}

// PoolResult counts one pool run's outcomes.
type PoolResult struct {
	Processed int
	Failed    int
}

// itemTimeout is the per-item soft cap.
func (p *Pipeline) itemTimeout() time.Duration {
	minutes := p.settings.ItemTimeoutMinutes
	if minutes <= 0 {
		minutes = 30
	}
	return time.Duration(minutes) * time.Minute
}

// RunTranscription drains the transcription backlog with a bounded
// worker pool. Extraction runs inline first for any video file whose
// audio is missing, keeping the per-file stage order.
func (p *Pipeline) RunTranscription(ctx context.Context, workers, batchSize int) PoolResult {
	return p.runPool(ctx, "transcription", workers, batchSize,
		func(limit int) ([]*store.FileRecord, error) {
			return p.store.ListPendingForStage("transcription", limit)
		},
		func(ctx context.Context, rec *store.FileRecord) error {
			if p.extractor.NeedsExtraction(rec) {
				if err := p.extractor.ProcessFile(ctx, rec); err != nil {
					return err
				}
			}
			return p.transcriber.ProcessFile(ctx, rec)
		})
}

// RunTranslation drains one target language's backlog.
func (p *Pipeline) RunTranslation(ctx context.Context, lang string, workers, batchSize int) PoolResult {
	stage := "translation_" + lang
	return p.runPool(ctx, stage, workers, batchSize,
		func(limit int) ([]*store.FileRecord, error) {
			recs, err := p.store.ListPendingForStage(stage, limit)
			if err != nil {
				return nil, err
			}
			// Translation waits for its transcript; unready rows stay
			// pending for a later pass.
			ready := recs[:0]
			for _, r := range recs {
				if r.TranscriptionStatus == store.StageCompleted {
					ready = append(ready, r)
				}
			}
			return ready, nil
		},
		func(ctx context.Context, rec *store.FileRecord) error {
			return p.translator.ProcessFile(ctx, rec, lang, "", false)
		})
}

// RunTranslations runs one pool per target language concurrently.
func (p *Pipeline) RunTranslations(ctx context.Context, langs []string, workers, batchSize int) map[string]PoolResult {
	results := make(map[string]PoolResult, len(langs))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, lang := range langs {
		wg.Add(1)
		go func(lang string) {
			defer wg.Done()
			res := p.RunTranslation(ctx, lang, workers, batchSize)
			mu.Lock()
			results[lang] = res
			mu.Unlock()
		}(lang)
	}
	wg.Wait()
	return results
}

// runPool claims batches until the claim function returns nothing,
// distributing items to a fixed set of workers. Item failures are
// already persisted by the engines; the pool only counts them.
func (p *Pipeline) runPool(ctx context.Context, name string, workers, batchSize int,
	claim func(limit int) ([]*store.FileRecord, error),
	process func(ctx context.Context, rec *store.FileRecord) error,
) PoolResult {
	if workers <= 0 {
		workers = 1
	}
	if batchSize <= 0 {
		batchSize = p.settings.BatchSize
	}
	if batchSize <= 0 {
		batchSize = 20
	}

	var result PoolResult
	var mu sync.Mutex

	logger := p.log.With().Str("pool", name).Logger()
	logger.Debug().Int("workers", workers).Int("batch_size", batchSize).Msg("pool starting")

	seen := map[string]bool{}
	for {
		if ctx.Err() != nil {
			break
		}
		batch, err := claim(batchSize)
		if err != nil {
			logger.Error().Err(err).Msg("claiming batch failed")
			break
		}
		// Drop anything already handed out this run; a row that failed
		// mid-batch must not spin the pool forever.
		fresh := batch[:0]
		for _, rec := range batch {
			if !seen[rec.FileID] {
				seen[rec.FileID] = true
				fresh = append(fresh, rec)
			}
		}
		if len(fresh) == 0 {
			break
		}

		items := make(chan *store.FileRecord)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(workerID int) {
				defer wg.Done()
				for rec := range items {
					itemCtx, cancel := context.WithTimeout(ctx, p.itemTimeout())
					err := process(itemCtx, rec)
					cancel()

					mu.Lock()
					if err != nil {
						result.Failed++
					} else {
						result.Processed++
					}
					mu.Unlock()

					if err != nil {
						logger.Warn().
							Int("worker", workerID).
							Str("file_id", rec.FileID).
							Err(err).
							Msg("item failed")
					}
					if ctx.Err() != nil {
						return
					}
				}
			}(i + 1)
		}

	feed:
		for _, rec := range fresh {
			select {
			case <-ctx.Done():
				break feed
			case items <- rec:
			}
		}
		close(items)
		wg.Wait()

		if ctx.Err() != nil {
			break
		}
	}

	logger.Info().
		Int("processed", result.Processed).
		Int("failed", result.Failed).
		Msg("pool drained")
	return result
}
