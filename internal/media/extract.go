package media

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
)

// ExtractOptions controls audio extraction from a video source.
type ExtractOptions struct {
	Codec      string // defaults to the codec matching the destination extension
	Bitrate    string // e.g. "192k"
	SampleRate int    // e.g. 44100
}

// ExtractAudio pulls the first audio track out of a media file into
// destPath, re-encoding to the format implied by the destination
// extension. An existing destination is overwritten.
func ExtractAudio(ctx context.Context, sourcePath, destPath string, opts ExtractOptions) error {
	opts = withDefaults(opts)

	args := []string{
		"-loglevel", "error",
		"-i", sourcePath,
		"-map", "0:a:0", "-vn",
	}
	args = append(args, codecArgs(destPath, opts)...)
	args = append(args, "-ar", strconv.Itoa(opts.SampleRate), destPath)

	return ffmpeg(ctx, "extract", args...)
}

// ConvertAudio re-encodes an audio file, with optional filter args
// (e.g. loudness normalization) inserted between input and codec.
func ConvertAudio(ctx context.Context, sourcePath, destPath string, opts ExtractOptions, filterArgs ...string) error {
	opts = withDefaults(opts)

	args := []string{
		"-loglevel", "error",
		"-i", sourcePath,
	}
	args = append(args, filterArgs...)
	args = append(args, codecArgs(destPath, opts)...)
	args = append(args, "-ar", strconv.Itoa(opts.SampleRate), destPath)

	return ffmpeg(ctx, "convert", args...)
}

func withDefaults(opts ExtractOptions) ExtractOptions {
	if opts.Bitrate == "" {
		opts.Bitrate = "192k"
	}
	if opts.SampleRate == 0 {
		opts.SampleRate = 44100
	}
	return opts
}

func codecArgs(destPath string, opts ExtractOptions) []string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(destPath)), ".")
	codec := opts.Codec
	if codec == "" {
		switch ext {
		case "m4a":
			codec = "aac"
		case "opus", "ogg":
			codec = "libopus"
		case "flac":
			codec = "flac"
		case "wav":
			codec = "pcm_s16le"
		default:
			codec = "libmp3lame"
		}
	}
	args := []string{"-acodec", codec}
	if codec != "flac" && codec != "pcm_s16le" {
		args = append(args, "-b:a", opts.Bitrate)
	}
	return args
}
