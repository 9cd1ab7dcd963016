package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/scribe-archive/scribe/internal/layout"
	"github.com/scribe-archive/scribe/internal/media"
	"github.com/scribe-archive/scribe/internal/store"
)

// Problem classes.
const (
	ProblemFailedMultipleTimes = "failed_multiple_times"
	ProblemStalled             = "stalled"
	ProblemEmptyOutput         = "empty_output"
	ProblemInvalidAudio        = "invalid_audio"
	ProblemTimeout             = "timeout"
)

// longStallCutoff is how long in_progress must sit before a file
// counts as a problem (distinct from the ordinary stall reset).
const longStallCutoff = 24 * time.Hour

// emptyOutputBytes is the minimum size of a credible transcript.
const emptyOutputBytes = 10

var problemKeywords = map[string][]string{
	ProblemInvalidAudio: {"invalid audio", "corrupt", "unsupported format", "invalid data"},
	ProblemTimeout:      {"timeout", "timed out", "connection reset", "deadline exceeded"},
}

// IdentifyProblemFiles classifies files using the error log and
// tracked status.
func (p *Pipeline) IdentifyProblemFiles() (map[string][]string, error) {
	problems := map[string][]string{
		ProblemFailedMultipleTimes: {},
		ProblemStalled:             {},
		ProblemEmptyOutput:         {},
		ProblemInvalidAudio:        {},
		ProblemTimeout:             {},
	}

	counts, err := p.store.ErrorCountsByFile()
	if err != nil {
		return nil, err
	}
	for fileID, n := range counts {
		if n >= 3 {
			problems[ProblemFailedMultipleTimes] = append(problems[ProblemFailedMultipleTimes], fileID)
		}
	}

	stalled, err := p.store.ListStalled(longStallCutoff)
	if err != nil {
		return nil, err
	}
	for _, rec := range stalled {
		problems[ProblemStalled] = append(problems[ProblemStalled], rec.FileID)
	}

	all, err := p.store.ListAll()
	if err != nil {
		return nil, err
	}
	for _, rec := range all {
		if rec.TranscriptionStatus != store.StageCompleted {
			continue
		}
		info, err := os.Stat(p.layout.TranscriptPath(rec.SafeFilename))
		if err != nil || info.Size() < emptyOutputBytes {
			problems[ProblemEmptyOutput] = append(problems[ProblemEmptyOutput], rec.FileID)
		}
	}

	entries, err := p.store.ListErrors("", 0)
	if err != nil {
		return nil, err
	}
	for class, keywords := range problemKeywords {
		seen := map[string]bool{}
		for _, e := range entries {
			text := strings.ToLower(e.ErrorMessage + " " + e.ErrorDetails)
			for _, kw := range keywords {
				if strings.Contains(text, kw) && !seen[e.FileID] {
					seen[e.FileID] = true
					problems[class] = append(problems[class], e.FileID)
					break
				}
			}
		}
	}
	return problems, nil
}

// RetryProblematic resets failed stages for the given files (all
// problem files when empty) and runs fresh pool iterations.
func (p *Pipeline) RetryProblematic(ctx context.Context, fileIDs []string, workers int) (PoolResult, error) {
	if len(fileIDs) == 0 {
		problems, err := p.IdentifyProblemFiles()
		if err != nil {
			return PoolResult{}, err
		}
		seen := map[string]bool{}
		for _, ids := range problems {
			for _, id := range ids {
				if !seen[id] {
					seen[id] = true
					fileIDs = append(fileIDs, id)
				}
			}
		}
	}

	for _, fileID := range fileIDs {
		rec, err := p.store.GetStatus(fileID)
		if err != nil {
			p.log.Warn().Err(err).Str("file_id", fileID).Msg("skipping unknown file")
			continue
		}
		update := store.StatusUpdate{Translation: map[string]string{}}
		if rec.TranscriptionStatus == store.StageFailed || rec.TranscriptionStatus == store.StageInProgress {
			update.Transcription = store.StatusOf(store.StageNotStarted)
		}
		for _, lang := range store.TargetLanguages {
			st := rec.TranslationStatus[lang]
			if st == store.StageFailed || st == store.StageInProgress {
				update.Translation[lang] = store.StageNotStarted
			}
		}
		if update.Transcription == nil && len(update.Translation) == 0 {
			continue
		}
		update.Overall = store.StatusOf(store.StatusPending)
		if err := p.store.UpdateStatus(fileID, update); err != nil {
			p.log.Error().Err(err).Str("file_id", fileID).Msg("could not reset file for retry")
			continue
		}
		if _, err := p.store.ClearErrors(fileID, ""); err != nil {
			p.log.Warn().Err(err).Str("file_id", fileID).Msg("could not clear errors")
		}
	}

	if workers <= 0 {
		workers = p.settings.TranscriptionWorkers
	}
	result := p.RunTranscription(ctx, workers, p.settings.BatchSize)
	for _, res := range p.RunTranslations(ctx, p.settings.TargetLanguages, workers, p.settings.BatchSize) {
		result.Processed += res.Processed
		result.Failed += res.Failed
	}
	return result, nil
}

// SpecialCaseProcessing applies the per-class repair handlers.
// Returns class -> handled count.
func (p *Pipeline) SpecialCaseProcessing(ctx context.Context, fileIDs []string) (map[string]int, error) {
	problems, err := p.IdentifyProblemFiles()
	if err != nil {
		return nil, err
	}

	requested := map[string]bool{}
	for _, id := range fileIDs {
		requested[id] = true
	}
	include := func(id string) bool {
		return len(requested) == 0 || requested[id]
	}

	handled := map[string]int{}
	handle := func(class, fileID string, fn func(context.Context, *store.FileRecord) error) {
		if !include(fileID) {
			return
		}
		rec, err := p.store.GetStatus(fileID)
		if err != nil {
			return
		}
		if err := fn(ctx, rec); err != nil {
			p.log.Warn().Err(err).Str("file_id", fileID).Str("class", class).Msg("handler failed")
			return
		}
		handled[class]++
	}

	for _, id := range problems[ProblemInvalidAudio] {
		handle(ProblemInvalidAudio, id, p.repairCorruptAudio)
	}
	for _, id := range problems[ProblemFailedMultipleTimes] {
		handle(ProblemFailedMultipleTimes, id, p.preprocessAudio)
	}
	for _, id := range problems[ProblemTimeout] {
		handle(ProblemTimeout, id, p.preprocessAudio)
	}
	for _, id := range problems[ProblemStalled] {
		handle(ProblemStalled, id, p.splitLongAudio)
	}
	for _, id := range problems[ProblemEmptyOutput] {
		handle(ProblemEmptyOutput, id, p.resetTranscription)
	}
	return handled, nil
}

// preprocessAudio rewrites the audio artifact with loudness
// normalization (mono, 44.1 kHz, high-quality MP3) and queues the file
// for a fresh transcription.
func (p *Pipeline) preprocessAudio(ctx context.Context, rec *store.FileRecord) error {
	audioPath := p.transcriber.AudioPath(rec)
	if _, err := os.Stat(audioPath); err != nil {
		return fmt.Errorf("audio not found: %w", err)
	}

	scratch, err := os.MkdirTemp("", "preprocess_")
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratch)

	normalized := filepath.Join(scratch, "normalized.mp3")
	if err := media.NormalizeLoudness(ctx, audioPath, normalized); err != nil {
		return err
	}
	if err := replaceArtifact(normalized, p.layout.AudioPath(rec.SafeFilename, "mp3")); err != nil {
		return err
	}
	return p.resetTranscription(ctx, rec)
}

// repairCorruptAudio re-encodes with error tolerance, falling back to
// a raw-PCM extract.
func (p *Pipeline) repairCorruptAudio(ctx context.Context, rec *store.FileRecord) error {
	audioPath := p.transcriber.AudioPath(rec)
	if _, err := os.Stat(audioPath); err != nil {
		return fmt.Errorf("audio not found: %w", err)
	}

	scratch, err := os.MkdirTemp("", "repair_")
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratch)

	repaired := filepath.Join(scratch, "repaired.mp3")
	if err := media.RepairAudio(ctx, audioPath, repaired, scratch); err != nil {
		return err
	}
	if err := replaceArtifact(repaired, p.layout.AudioPath(rec.SafeFilename, "mp3")); err != nil {
		return err
	}
	return p.resetTranscription(ctx, rec)
}

// splitLongAudio carves a long recording into child rows the normal
// pools can process, marking the parent as segmented. Files under 20
// minutes are left to the ordinary retry path.
func (p *Pipeline) splitLongAudio(ctx context.Context, rec *store.FileRecord) error {
	audioPath := p.transcriber.AudioPath(rec)
	duration, err := media.ProbeDuration(ctx, audioPath)
	if err != nil {
		return err
	}
	if duration < 1200 {
		return p.resetTranscription(ctx, rec)
	}

	segmentCount := int(duration/300) + 1
	if segmentCount < 2 {
		segmentCount = 2
	}
	segmentDuration := duration / float64(segmentCount)

	segmentsDir := filepath.Join(p.layout.Dir(rec.SafeFilename), rec.FileID+"_segments")
	if err := os.MkdirAll(segmentsDir, 0755); err != nil {
		return err
	}

	// An effectively unbounded size cap leaves the duration bound in
	// charge of the segment count.
	segments, err := media.SplitAudio(ctx, audioPath, segmentsDir, media.SplitOptions{
		MaxSizeBytes:      1 << 62,
		MaxSegmentSeconds: int(segmentDuration) + 1,
	})
	if err != nil {
		return err
	}

	type manifestSegment struct {
		Index     int     `json:"index"`
		Path      string  `json:"path"`
		StartTime float64 `json:"start_time"`
	}
	manifest := struct {
		FileID       string            `json:"file_id"`
		OriginalPath string            `json:"original_path"`
		SegmentCount int               `json:"segment_count"`
		Segments     []manifestSegment `json:"segments"`
	}{
		FileID:       rec.FileID,
		OriginalPath: rec.OriginalPath,
		SegmentCount: len(segments),
	}

	for i, seg := range segments {
		info, err := os.Stat(seg.Path)
		if err != nil {
			return err
		}
		segDuration := segmentDuration
		safeName := layout.SanitizeFilename(filepath.Base(seg.Path))
		meta := store.MetadataUpdate{Duration: &segDuration}
		if rec.DetectedLanguage != "" {
			lang := rec.DetectedLanguage
			meta.DetectedLanguage = &lang
		}
		if _, err := p.store.AddMedia(seg.Path, safeName, "audio", info.Size(), meta); err != nil {
			// Re-running the handler must not duplicate children.
			if !strings.Contains(err.Error(), "already recorded") {
				return err
			}
		}
		manifest.Segments = append(manifest.Segments, manifestSegment{
			Index:     i,
			Path:      seg.Path,
			StartTime: seg.StartSeconds,
		})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(manifest); err != nil {
		return err
	}
	manifestPath := filepath.Join(segmentsDir, rec.FileID+"_manifest.json")
	if err := os.WriteFile(manifestPath, buf.Bytes(), 0644); err != nil {
		return err
	}

	if err := p.store.UpdateStatus(rec.FileID, store.StatusUpdate{
		Transcription: store.StatusOf(store.StageSegmented),
	}); err != nil {
		return err
	}
	return p.store.LogError(rec.FileID, "special_processing",
		fmt.Sprintf("split into %d segments", len(segments)),
		"segment manifest: "+manifestPath)
}

func (p *Pipeline) resetTranscription(_ context.Context, rec *store.FileRecord) error {
	if err := p.store.UpdateStatus(rec.FileID, store.StatusUpdate{
		Overall:       store.StatusOf(store.StatusPending),
		Transcription: store.StatusOf(store.StageNotStarted),
	}); err != nil {
		return err
	}
	_, err := p.store.ClearErrors(rec.FileID, "transcription")
	return err
}

// replaceArtifact atomically swaps a rebuilt artifact into place,
// dropping any symlink that was there.
func replaceArtifact(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	tmp := dest + ".new"
	if err := copyFile(src, tmp); err != nil {
		return err
	}
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := out.ReadFrom(in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
