package artifact

import (
	"cobblepod/internal/transcribe"
)

// MergeByStart interleaves the per-track transcripts produced from a
// multi-file zip upload into one chronological transcript, picking the
// earliest remaining segment across all tracks at each step. This mirrors
// the reference worker's zip-mode merge, which transcribed each isolated
// voice track independently and then merged the results by start time
// rather than by track order.
func MergeByStart(tracks [][]transcribe.Segment) []transcribe.Segment {
	cursors := make([]int, len(tracks))
	var merged []transcribe.Segment

	for {
		best := -1
		bestStart := 0.0
		for i, track := range tracks {
			if cursors[i] >= len(track) {
				continue
			}
			start := track[cursors[i]].Start
			if best == -1 || start < bestStart {
				best = i
				bestStart = start
			}
		}
		if best == -1 {
			break
		}
		merged = append(merged, tracks[best][cursors[best]])
		cursors[best]++
	}

	return merged
}
