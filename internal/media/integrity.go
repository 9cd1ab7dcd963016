package media

import (
	"context"
	"fmt"
	"regexp"

	"github.com/scribe-archive/scribe/internal/executils"
)

var corruptionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`Invalid data found when processing input`),
	regexp.MustCompile(`Error while decoding stream`),
	regexp.MustCompile(`could not find codec parameters`),
	regexp.MustCompile(`Failed to open input`),
	regexp.MustCompile(`Invalid header`),
	regexp.MustCompile(`error reading header`),
	regexp.MustCompile(`moov atom not found`),
	regexp.MustCompile(`Invalid chunk offset`),
	regexp.MustCompile(`Error while decoding frame`),
	regexp.MustCompile(`broken frame`),
	regexp.MustCompile(`invalid frame size`),
	regexp.MustCompile(`Header missing`),
}

// CheckIntegrity decodes the file without output and reports whether
// ffmpeg flags the data as corrupt. The returned detail is the
// matching stderr excerpt.
func CheckIntegrity(ctx context.Context, path string) (corrupt bool, detail string, err error) {
	res, runErr := executils.RunCapture(ctx, FFmpegPath,
		"-loglevel", "error",
		"-i", path,
		"-t", "0",
		"-f", "null", "-",
	)
	for _, pattern := range corruptionPatterns {
		if pattern.MatchString(res.Stderr) {
			return true, tail(res.Stderr, 1000), nil
		}
	}
	if runErr != nil {
		return false, "", &ToolchainError{Op: "integrity-check", Detail: tail(res.Stderr, 1000), Err: runErr}
	}
	return false, "", nil
}

// NormalizeLoudness rewrites an audio file with EBU R128 loudness
// normalization, folded to mono at 44.1 kHz high-quality MP3. Used by
// the problem-file preprocessing handler.
func NormalizeLoudness(ctx context.Context, sourcePath, destPath string) error {
	return ConvertAudio(ctx, sourcePath, destPath,
		ExtractOptions{Codec: "libmp3lame", Bitrate: "192k", SampleRate: 44100},
		"-af", "loudnorm", "-ac", "1",
	)
}

// RepairAudio attempts an error-tolerant decode and re-encode. If the
// tolerant pass fails it falls back to extracting raw PCM and
// re-encoding that.
func RepairAudio(ctx context.Context, sourcePath, destPath, scratchDir string) error {
	err := ffmpeg(ctx, "repair",
		"-loglevel", "error",
		"-err_detect", "ignore_err",
		"-i", sourcePath,
		"-acodec", "libmp3lame", "-b:a", "192k", "-ar", "44100",
		destPath,
	)
	if err == nil {
		return nil
	}

	// Raw-PCM fallback: decode whatever is decodable, then re-encode.
	rawPath := fmt.Sprintf("%s/repair_raw.wav", scratchDir)
	if err := ffmpeg(ctx, "repair-raw-extract",
		"-loglevel", "error",
		"-err_detect", "ignore_err",
		"-i", sourcePath,
		"-acodec", "pcm_s16le", "-ar", "44100",
		rawPath,
	); err != nil {
		return err
	}
	return ffmpeg(ctx, "repair-raw-encode",
		"-loglevel", "error",
		"-i", rawPath,
		"-acodec", "libmp3lame", "-b:a", "192k", "-ar", "44100",
		destPath,
	)
}
