// Package video muxes the composed still image with the final audio track
// into an MP4 by shelling out to ffmpeg, and probes durations with ffprobe.
// Encoding internals stay in ffmpeg; this package only builds arguments and
// supervises the processes.
package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

var ErrToolMissing = errors.New("required tool not found in PATH")

// EnsureTools verifies ffmpeg and ffprobe are callable before the pipeline
// commits to a run.
func EnsureTools() error {
	for _, tool := range []string{"ffmpeg", "ffprobe"} {
		cmd := exec.Command(tool, "-version")
		var buf bytes.Buffer
		cmd.Stdout, cmd.Stderr = &buf, &buf
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrToolMissing, tool, err)
		}
	}
	return nil
}

// ProbeDuration returns the media duration in seconds via ffprobe.
func ProbeDuration(path string) (float64, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	s := strings.TrimSpace(string(out))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	if sec < 0 {
		return 0, fmt.Errorf("negative duration for %s", path)
	}
	return sec, nil
}

// MuxArgs builds the ffmpeg argument list that freezes the still image for
// the full audio duration.
func MuxArgs(imagePath, audioPath, outPath string) []string {
	return []string{
		"-y",
		"-loop", "1",
		"-i", imagePath,
		"-i", audioPath,
		"-c:v", "libx264",
		"-tune", "stillimage",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		"-movflags", "+faststart",
		outPath,
	}
}

// Mux renders the video. The output duration equals the audio duration; the
// image is held for the whole track.
func Mux(ctx context.Context, imagePath, audioPath, outPath string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	args := MuxArgs(imagePath, audioPath, outPath)
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var buf bytes.Buffer
	cmd.Stdout, cmd.Stderr = &buf, &buf
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("ffmpeg timed out after %v", timeout)
		}
		return fmt.Errorf("ffmpeg: %w\n%s", err, buf.String())
	}
	return nil
}
