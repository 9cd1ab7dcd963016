package media

import (
	"context"
	"errors"
	"fmt"

	"github.com/scribe-archive/scribe/internal/executils"
)

var (
	FFmpegPath  = "ffmpeg"
	FFprobePath = "ffprobe"
)

// ErrProbeFailed marks non-media input handed to the duration probe.
var ErrProbeFailed = errors.New("media: probe failed")

// ToolchainError reports a failed ffmpeg/ffprobe invocation together
// with the tool's captured stderr.
type ToolchainError struct {
	Op     string
	Detail string
	Err    error
}

func (e *ToolchainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("media: %s failed: %v: %s", e.Op, e.Err, e.Detail)
	}
	return fmt.Sprintf("media: %s failed: %v", e.Op, e.Err)
}

func (e *ToolchainError) Unwrap() error { return e.Err }

// ffmpeg runs FFmpegPath with -hide_banner -y appended, capturing
// stderr for diagnostics.
func ffmpeg(ctx context.Context, op string, arg ...string) error {
	arg = append(arg, "-hide_banner", "-y")
	res, err := executils.RunCapture(ctx, FFmpegPath, arg...)
	if err != nil {
		return &ToolchainError{Op: op, Detail: tail(res.Stderr, 2000), Err: err}
	}
	return nil
}

// tail keeps the last n bytes of s; ffmpeg puts the useful part of an
// error at the end of its stderr.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
