// Package media wraps the ffmpeg/ffprobe command-line tools Cobblepod
// shells out to, the same way the reference worker's audio processor did.
package media

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// probeFormat mirrors the subset of `ffprobe -show_format -print_format
// json` output Cobblepod cares about.
type probeFormat struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Duration shells out to ffprobe to measure how long a media file plays
// for. goccy/go-json decodes the probe's JSON output since it's
// appreciably faster than encoding/json for the small, flat documents
// ffprobe emits and this call sits on the hot path for every queue
// position estimate.
func Duration(ctx context.Context, path string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-print_format", "json",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	var parsed probeFormat
	if err := json.Unmarshal(out, &parsed); err != nil {
		return 0, fmt.Errorf("parse ffprobe output: %w", err)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(parsed.Format.Duration), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", parsed.Format.Duration, err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// HasAudioStream reports whether a file has at least one audio stream,
// the same guard the reference worker ran before committing to a full
// transcription pass on an unreadable or video-only upload.
func HasAudioStream(ctx context.Context, path string) (bool, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=index",
		"-print_format", "json",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("ffprobe: %w", err)
	}

	var parsed struct {
		Streams []struct {
			Index int `json:"index"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(out, &parsed); err != nil {
		return false, fmt.Errorf("parse ffprobe output: %w", err)
	}
	return len(parsed.Streams) > 0, nil
}
