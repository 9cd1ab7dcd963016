package media

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/scribe-archive/scribe/internal/executils"
)

// ProbeDuration returns a file's duration in seconds using ffprobe,
// falling back to parsing ffmpeg's stderr banner when ffprobe gives
// nothing usable.
func ProbeDuration(ctx context.Context, path string) (float64, error) {
	res, err := executils.RunCapture(ctx, FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err == nil {
		if val, perr := strconv.ParseFloat(strings.TrimSpace(res.Stdout), 64); perr == nil && val > 0 {
			return val, nil
		}
	}
	return durationFromFFmpeg(ctx, path)
}

// durationFromFFmpeg parses "Duration: HH:MM:SS.cc" out of ffmpeg's
// stderr. ffmpeg exits non-zero for -f null probes; only the parse
// result matters.
func durationFromFFmpeg(ctx context.Context, path string) (float64, error) {
	res, _ := executils.RunCapture(ctx, FFmpegPath, "-i", path, "-hide_banner", "-f", "null", "-")

	out := res.Stderr
	idx := strings.Index(out, "Duration: ")
	if idx == -1 {
		return 0, fmt.Errorf("%w: no duration in ffmpeg output for %s", ErrProbeFailed, path)
	}
	start := idx + len("Duration: ")
	comma := strings.Index(out[start:], ",")
	if comma == -1 {
		return 0, fmt.Errorf("%w: unparseable duration for %s", ErrProbeFailed, path)
	}
	raw := out[start : start+comma]

	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%w: unexpected duration format %q", ErrProbeFailed, raw)
	}
	hours, err1 := strconv.ParseFloat(parts[0], 64)
	minutes, err2 := strconv.ParseFloat(parts[1], 64)
	seconds, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, fmt.Errorf("%w: unparseable duration %q", ErrProbeFailed, raw)
	}
	return hours*3600 + minutes*60 + seconds, nil
}

// FormatDuration renders seconds as "1h 12m 34s" / "23m 45s".
func FormatDuration(seconds float64) string {
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	return fmt.Sprintf("%dm %ds", m, s)
}
