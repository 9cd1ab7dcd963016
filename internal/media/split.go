package media

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

// Segment is one slice of a long audio file with its absolute offset
// within the source.
type Segment struct {
	Path         string
	StartSeconds float64
}

// SplitOptions bounds segment size and duration.
type SplitOptions struct {
	MaxSizeBytes      int64
	MaxSegmentSeconds int // defaults to 600
	Bitrate           string
	SampleRate        int
}

// SplitAudio cuts an audio file into segments no larger than
// MaxSizeBytes and no longer than MaxSegmentSeconds, re-encoded to a
// consistent codec. Segment count starts at ceil(size/maxSize) and is
// raised if the per-segment duration would exceed the duration cap.
// The caller owns the destination directory's lifetime.
func SplitAudio(ctx context.Context, sourcePath, destDir string, opts SplitOptions) ([]Segment, error) {
	if opts.MaxSizeBytes <= 0 {
		return nil, fmt.Errorf("media: split requires a positive size bound")
	}
	if opts.MaxSegmentSeconds <= 0 {
		opts.MaxSegmentSeconds = 600
	}

	info, err := os.Stat(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("media: stat source: %w", err)
	}

	duration, err := ProbeDuration(ctx, sourcePath)
	if err != nil {
		return nil, err
	}

	numSegments, segmentDuration := segmentPlan(info.Size(), opts.MaxSizeBytes, duration, opts.MaxSegmentSeconds)

	bitrate := opts.Bitrate
	if bitrate == "" {
		bitrate = "192k"
	}
	sampleRate := opts.SampleRate
	if sampleRate == 0 {
		sampleRate = 44100
	}

	segments := make([]Segment, 0, numSegments)
	for i := 0; i < numSegments; i++ {
		start := float64(i) * segmentDuration
		segPath := filepath.Join(destDir, fmt.Sprintf("segment_%03d.mp3", i))

		args := []string{
			"-loglevel", "warning",
			"-i", sourcePath,
			"-ss", formatSeconds(start),
		}
		// The last segment runs to the end of the source.
		if i < numSegments-1 {
			args = append(args, "-t", formatSeconds(segmentDuration))
		}
		args = append(args,
			"-acodec", "libmp3lame",
			"-b:a", bitrate,
			"-ar", strconv.Itoa(sampleRate),
			segPath,
		)
		if err := ffmpeg(ctx, "split", args...); err != nil {
			return nil, err
		}
		segments = append(segments, Segment{Path: segPath, StartSeconds: start})
	}
	return segments, nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

// segmentPlan decides how many segments to cut: enough that each
// stays under the size bound, then more if the per-segment duration
// would exceed the duration cap.
func segmentPlan(size, maxSizeBytes int64, duration float64, maxSegmentSeconds int) (int, float64) {
	numSegments := int(math.Ceil(float64(size) / float64(maxSizeBytes)))
	if numSegments < 1 {
		numSegments = 1
	}
	segmentDuration := duration / float64(numSegments)
	if segmentDuration > float64(maxSegmentSeconds) {
		numSegments = int(math.Ceil(duration / float64(maxSegmentSeconds)))
		segmentDuration = duration / float64(numSegments)
	}
	return numSegments, segmentDuration
}
