// Package artifact builds the files Cobblepod hands back to a user once a
// job finishes: a SubRip subtitle track, an interactive HTML editor, and a
// zip bundle of everything produced for a download-all request.
package artifact

import (
	"fmt"
	"strings"
	"time"

	"cobblepod/internal/transcribe"
)

// SRT renders transcript segments as a standard SubRip (.srt) file.
func SRT(segments []transcribe.Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", srtTimestamp(seg.Start), srtTimestamp(seg.End))
		if seg.Speaker != "" {
			fmt.Fprintf(&b, "[%s] %s\n\n", seg.Speaker, seg.Text)
		} else {
			fmt.Fprintf(&b, "%s\n\n", seg.Text)
		}
	}
	return b.String()
}

// srtTimestamp formats seconds as SRT's HH:MM:SS,mmm.
func srtTimestamp(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	secs := d / time.Second
	d -= secs * time.Second
	millis := d / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}
