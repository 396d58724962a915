package media

import (
	"context"
	"fmt"
	"os/exec"
)

// Normalize re-encodes a source media file down to a small, consistently
// filtered track before it's handed to the transcription/diarization
// services: a narrow video scale (the viewer only ever shows a thumbnail)
// and a band-pass filter tuned for speech. If the filtered encode fails —
// some containers reject the video scale filter outright — it falls back
// to copying the video stream untouched and only applying the audio
// filter, matching the reference worker's two-attempt strategy.
func Normalize(ctx context.Context, src, dst string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-i", src,
		"-filter:v", "scale=320:-2",
		"-af", "lowpass=3000,highpass=200",
		dst,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		fallback := exec.CommandContext(ctx, "ffmpeg",
			"-y",
			"-i", src,
			"-c:v", "copy",
			"-af", "lowpass=3000,highpass=200",
			dst,
		)
		if out2, err2 := fallback.CombinedOutput(); err2 != nil {
			return fmt.Errorf("ffmpeg normalize failed (scale: %s) (copy: %s): %w", out, out2, err2)
		}
	}
	return nil
}

// Mix combines multiple isolated tracks (from a zip upload) into a single
// audio stream, letting downstream diarization work from one file the same
// way it would for a naturally multi-speaker recording.
func Mix(ctx context.Context, inputs []string, dst string) error {
	args := make([]string, 0, len(inputs)*2+4)
	for _, in := range inputs {
		args = append(args, "-i", in)
	}
	args = append(args, "-filter_complex", fmt.Sprintf("amix=inputs=%d:duration=first", len(inputs)), "-y", dst)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg mix failed: %s: %w", out, err)
	}
	return nil
}
