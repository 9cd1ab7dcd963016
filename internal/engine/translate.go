package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/rs/zerolog"

	"github.com/scribe-archive/scribe/internal/config"
	"github.com/scribe-archive/scribe/internal/layout"
	"github.com/scribe-archive/scribe/internal/provider"
	"github.com/scribe-archive/scribe/internal/retry"
	"github.com/scribe-archive/scribe/internal/store"
	"github.com/scribe-archive/scribe/internal/subtitle"
	"github.com/scribe-archive/scribe/internal/translate"
)

// rtlTarget is the right-to-left target in the supported set; it gets
// special provider routing and the optional glossary polish.
const rtlTarget = "he"

// routingTarget is the Western default target that gets per-paragraph
// language detection.
const routingTarget = "en"

// minDetectConfidence gates the paragraph pass-through: below this a
// paragraph is translated rather than skipped.
const minDetectConfidence = 0.7

// interChunkPause spaces consecutive chunk requests.
const interChunkPause = 200 * time.Millisecond

// Translator drives one (file, target language) pair from transcript
// to translated text and re-timed subtitle.
type Translator struct {
	store    *store.Store
	layout   *layout.Layout
	registry *translate.Registry
	polisher *Polisher // nil when no polishing capability is configured
	settings config.Settings
	log      zerolog.Logger
}

func NewTranslator(st *store.Store, lay *layout.Layout, reg *translate.Registry, polisher *Polisher, settings config.Settings, logger zerolog.Logger) *Translator {
	return &Translator{
		store:    st,
		layout:   lay,
		registry: reg,
		polisher: polisher,
		settings: settings,
		log:      logger.With().Str("component", "translator").Logger(),
	}
}

// ProcessFile translates one file into targetLang. providerOverride
// selects a provider by name; empty uses the configured default.
func (t *Translator) ProcessFile(ctx context.Context, rec *store.FileRecord, targetLang, providerOverride string, force bool) error {
	stage := "translation_" + targetLang
	logger := t.log.With().Str("file_id", rec.FileID).Str("target", targetLang).Logger()

	if rec.TranscriptionStatus != store.StageCompleted {
		return t.fail(rec.FileID, targetLang, "transcription not completed",
			fmt.Sprintf("transcription status: %s", rec.TranscriptionStatus))
	}

	if !force && rec.TranslationStatus[targetLang] == store.StageCompleted {
		logger.Debug().Msg("translation already completed")
		return nil
	}

	transcriptPath := t.layout.TranscriptPath(rec.SafeFilename)
	raw, err := os.ReadFile(transcriptPath)
	if err != nil || len(raw) == 0 {
		return t.fail(rec.FileID, targetLang, "transcript text not found", transcriptPath)
	}
	transcript := string(raw)

	if err := t.store.UpdateStatus(rec.FileID, store.StatusUpdate{
		Overall:     store.StatusOf(store.StatusInProgress),
		Translation: map[string]string{targetLang: store.StageInProgress},
	}); err != nil {
		return err
	}

	prov := t.registry.Default()
	if providerOverride != "" {
		prov = t.registry.Get(providerOverride)
	}
	if prov == nil {
		return t.fail(rec.FileID, targetLang, "no translation provider available", providerOverride)
	}

	sourceLang := rec.DetectedLanguage

	translated, err := t.translateRouted(ctx, prov, transcript, targetLang, sourceLang, logger)
	if err != nil {
		return t.fail(rec.FileID, targetLang, "translation failed", err.Error())
	}

	if targetLang == rtlTarget && t.polisher != nil {
		if polished, perr := t.polisher.PolishHebrew(ctx, transcript, translated); perr == nil && polished != "" {
			translated = polished
		} else if perr != nil {
			logger.Warn().Err(perr).Msg("polish pass failed, keeping draft")
		}
	}

	translationPath := t.layout.TranslationPath(rec.SafeFilename, targetLang)
	if _, err := t.layout.EnsureDir(rec.SafeFilename); err != nil {
		return t.fail(rec.FileID, targetLang, "creating artifact directory failed", err.Error())
	}
	if err := os.WriteFile(translationPath, []byte(translated), 0644); err != nil {
		return t.fail(rec.FileID, targetLang, "writing translation failed", err.Error())
	}

	// Subtitle re-timing failure does not fail the stage; the text
	// artifact is the contract, the SRT is derived.
	if err := t.retimeSubtitle(rec, targetLang, translated); err != nil {
		logger.Warn().Err(err).Msg("could not build translated subtitle")
		_ = t.store.LogError(rec.FileID, "subtitle_"+targetLang, "subtitle generation failed", err.Error())
	}

	update := store.StatusUpdate{Translation: map[string]string{targetLang: store.StageCompleted}}
	if t.allOtherTargetsCompleted(rec, targetLang) {
		update.Overall = store.StatusOf(store.StatusCompleted)
	}
	if err := t.store.UpdateStatus(rec.FileID, update); err != nil {
		return err
	}

	logger.Info().Str("stage", stage).Msg("translation completed")
	return nil
}

// translateRouted applies provider routing: a target the chosen
// provider cannot reach goes through an intermediate English pass,
// then a provider that does support the target.
func (t *Translator) translateRouted(ctx context.Context, prov translate.Provider, text, targetLang, sourceLang string, logger zerolog.Logger) (string, error) {
	if !prov.Supports(sourceLang, targetLang) {
		logger.Info().
			Str("provider", prov.Name()).
			Msg("provider does not support target, routing through intermediate English")

		intermediate := text
		if !translate.SameLanguage(sourceLang, "en") {
			var err error
			intermediate, err = t.translateText(ctx, prov, text, "en", sourceLang)
			if err != nil {
				return "", fmt.Errorf("intermediate translation: %w", err)
			}
		}

		hop := t.registry.FirstSupporting("en", targetLang)
		if hop == nil {
			return "", fmt.Errorf("no provider supports target language %s", targetLang)
		}
		return t.translateText(ctx, hop, intermediate, targetLang, "en")
	}

	if targetLang == routingTarget {
		return t.translateParagraphs(ctx, prov, text, targetLang, sourceLang)
	}
	return t.translateText(ctx, prov, text, targetLang, sourceLang)
}

// translateParagraphs runs per-paragraph language detection and only
// translates paragraphs not already in the target language.
func (t *Translator) translateParagraphs(ctx context.Context, prov translate.Provider, text, targetLang, sourceLang string) (string, error) {
	paragraphs := strings.Split(text, "\n\n")
	out := make([]string, 0, len(paragraphs))

	for _, para := range paragraphs {
		stripped := strings.TrimSpace(para)
		if stripped == "" {
			out = append(out, "")
			continue
		}

		info := whatlanggo.Detect(stripped)
		detected := whatlanggo.LangToString(info.Lang)
		if info.Confidence >= minDetectConfidence && translate.SameLanguage(detected, targetLang) {
			out = append(out, stripped)
			continue
		}

		src := sourceLang
		if detected != "" && info.Confidence >= minDetectConfidence {
			src = detected
		}
		translated, err := t.translateText(ctx, prov, stripped, targetLang, src)
		if err != nil {
			return "", err
		}
		out = append(out, translated)
	}
	return strings.Join(out, "\n\n"), nil
}

// translateText chunks as needed and sends each chunk through the
// provider under the shared retry policy. Any chunk failure fails the
// whole text.
func (t *Translator) translateText(ctx context.Context, prov translate.Provider, text, targetLang, sourceLang string) (string, error) {
	opts := translate.Options{Formality: translate.FormalityDefault}
	policy := retry.DefaultPolicy(t.settings.APIRetries)
	policy.RetryOn = provider.IsTransient

	chunks := translate.SplitIntoChunks(text, prov.MaxChunkChars())
	translated := make([]string, 0, len(chunks))

	for i, chunk := range chunks {
		result, err := retry.Do(policy, t.log, func() (string, error) {
			return prov.Translate(ctx, chunk, targetLang, sourceLang, opts)
		})
		if err != nil {
			return "", fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		translated = append(translated, result)

		if i < len(chunks)-1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(interChunkPause):
			}
		}
	}

	if len(translated) == 1 {
		return translated[0], nil
	}
	return strings.Join(translated, "\n\n"), nil
}

// retimeSubtitle distributes the translated text over the original
// subtitle's cue timing.
func (t *Translator) retimeSubtitle(rec *store.FileRecord, targetLang, translated string) error {
	origPath := t.layout.SubtitlePath(rec.SafeFilename, "orig")
	cues, err := subtitle.ParseFile(origPath)
	if err != nil {
		return err
	}
	if len(cues) == 0 {
		return errors.New("original subtitle has no cues")
	}
	retimed := subtitle.Retime(cues, translated)
	return os.WriteFile(
		t.layout.SubtitlePath(rec.SafeFilename, targetLang),
		[]byte(subtitle.Format(retimed)), 0644)
}

// allOtherTargetsCompleted checks whether finishing targetLang
// completes the whole file.
func (t *Translator) allOtherTargetsCompleted(rec *store.FileRecord, targetLang string) bool {
	targets := t.settings.TargetLanguages
	if len(targets) == 0 {
		targets = store.TargetLanguages
	}
	for _, lang := range targets {
		if lang == targetLang {
			continue
		}
		if rec.TranslationStatus[lang] != store.StageCompleted {
			return false
		}
	}
	return rec.TranscriptionStatus == store.StageCompleted
}

func (t *Translator) fail(fileID, targetLang, message, details string) error {
	stage := "translation_" + targetLang
	if err := t.store.LogError(fileID, stage, message, details); err != nil {
		t.log.Error().Err(err).Str("file_id", fileID).Msg("could not log error")
	}
	if err := t.store.UpdateStatus(fileID, store.StatusUpdate{
		Translation: map[string]string{targetLang: store.StageFailed},
	}); err != nil {
		return err
	}
	return errors.New(message + ": " + details)
}
