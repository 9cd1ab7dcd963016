package executils

import (
	"bytes"
	"context"
	"strings"
)

// CaptureResult holds the trimmed output of a finished subprocess.
type CaptureResult struct {
	Stdout string
	Stderr string
}

// RunCapture runs a command under ctx and returns its stdout/stderr.
// The returned error is the raw exec error; callers decide how to
// classify it using the captured stderr.
func RunCapture(ctx context.Context, name string, arg ...string) (CaptureResult, error) {
	cmd := CommandContext(ctx, name, arg...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return CaptureResult{
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
	}, err
}
