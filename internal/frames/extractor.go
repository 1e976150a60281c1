// Package frames captures the last frame of a generated video as a still
// image, the seed for the next scene in a continuity chain.
package frames

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// lastFrameEpsilon backs off from the exact end of the stream; seeking to
// the precise duration often lands past the final decodable frame.
const lastFrameEpsilon = 0.1

// Frame is an encoded still image.
type Frame struct {
	Data []byte
	MIME string
}

// Extractor produces the final frame of a video file.
type Extractor interface {
	ExtractLastFrame(ctx context.Context, videoPath string) (*Frame, error)
}

// FFmpegExtractor shells out to ffprobe/ffmpeg.
type FFmpegExtractor struct {
	FFmpegPath  string
	FFprobePath string
}

func NewFFmpegExtractor() *FFmpegExtractor {
	return &FFmpegExtractor{FFmpegPath: "ffmpeg", FFprobePath: "ffprobe"}
}

// ExtractLastFrame probes the clip duration, seeks to just before the end
// (or the start for negligible durations) and decodes a single JPEG frame.
func (e *FFmpegExtractor) ExtractLastFrame(ctx context.Context, videoPath string) (*Frame, error) {
	duration, err := e.probeDuration(ctx, videoPath)
	if err != nil {
		return nil, err
	}
	seek := 0.0
	if duration > lastFrameEpsilon {
		seek = duration - lastFrameEpsilon
	}

	args := []string{
		"-v", "error",
		"-ss", strconv.FormatFloat(seek, 'f', 3, 64),
		"-i", videoPath,
		"-frames:v", "1",
		"-f", "image2",
		"-c:v", "mjpeg",
		"pipe:1",
	}
	cmd := exec.CommandContext(ctx, e.FFmpegPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("frames: capture frame: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("frames: no frame decoded from %s", videoPath)
	}
	return &Frame{Data: stdout.Bytes(), MIME: "image/jpeg"}, nil
}

func (e *FFmpegExtractor) probeDuration(ctx context.Context, videoPath string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	}
	cmd := exec.CommandContext(ctx, e.FFprobePath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("frames: probe duration: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(stdout.String()), 64)
	if err != nil {
		return 0, fmt.Errorf("frames: parse duration %q: %w", stdout.String(), err)
	}
	return duration, nil
}

var _ Extractor = (*FFmpegExtractor)(nil)
