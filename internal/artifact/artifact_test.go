package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cobblepod/internal/transcribe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSRTFormatsTimestamps(t *testing.T) {
	segments := []transcribe.Segment{
		{Start: 0, End: 1.5, Text: "hello"},
		{Start: 61.2, End: 62, Speaker: "SPEAKER_00", Text: "world"},
	}

	out := SRT(segments)

	assert.Contains(t, out, "1\n00:00:00,000 --> 00:00:01,500\nhello")
	assert.Contains(t, out, "[SPEAKER_00] world")
	assert.Contains(t, out, "00:01:01,200 --> 00:01:02,000")
}

func TestEditorEscapesText(t *testing.T) {
	segments := []transcribe.Segment{
		{Start: 0, End: 1, Text: "<script>alert(1)</script>"},
	}

	out := Editor("talk.mp3", "de", "/media/u/talk.mp3.mp4", segments)

	assert.NotContains(t, out, "<script>alert(1)</script>")
	assert.Contains(t, out, "&lt;script&gt;")
}

func TestMergeByStartInterleavesTracks(t *testing.T) {
	trackA := []transcribe.Segment{{Start: 0, Text: "a1"}, {Start: 4, Text: "a2"}}
	trackB := []transcribe.Segment{{Start: 1, Text: "b1"}, {Start: 2, Text: "b2"}}

	merged := MergeByStart([][]transcribe.Segment{trackA, trackB})

	var order []string
	for _, seg := range merged {
		order = append(order, seg.Text)
	}
	assert.Equal(t, []string{"a1", "b1", "b2", "a2"}, order)
}

func TestSpliceEditReplacesRegionBetweenMarkers(t *testing.T) {
	original := Editor("talk.mp3", "de", "/media/u/talk.mp3.mp4", []transcribe.Segment{
		{Start: 0, Text: "original"},
	})

	update := `<div id="segments">edited text</div>`
	spliced, err := SpliceEdit(original, update)
	require.NoError(t, err)

	assert.Contains(t, spliced, "edited text")
	assert.NotContains(t, spliced, "original")
	// Everything outside the spliced region survives untouched.
	assert.True(t, strings.HasPrefix(spliced, original[:strings.Index(original, editMarker)+len(editMarker)]))
	assert.Contains(t, spliced, "var fileName =")
}

func TestPrepareDownloadIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	media := []byte{0x00, 0x01, 0x02, 0x03}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "talk.mp3.mp4"), media, 0o644))

	html := Editor("talk.mp3", "de", "/media/u/talk.mp3.mp4", []transcribe.Segment{
		{Start: 0, Text: "hello"},
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "talk.mp3.html"), []byte(html), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "talk.mp3.htmlupdate"), []byte(`<div>edited</div>`), 0o644))

	finalPath, err := PrepareDownload(dir, "talk.mp3", "talk.mp3.mp4")
	require.NoError(t, err)

	first, err := os.ReadFile(finalPath)
	require.NoError(t, err)
	assert.Contains(t, string(first), "edited")
	assert.Equal(t, 1, strings.Count(string(first), embeddedVar))

	_, err = os.Stat(filepath.Join(dir, "talk.mp3.htmlupdate"))
	assert.True(t, os.IsNotExist(err), "update file should be consumed")

	// Running it again with no pending update reproduces the same bytes.
	_, err = PrepareDownload(dir, "talk.mp3", "talk.mp3.mp4")
	require.NoError(t, err)
	second, err := os.ReadFile(finalPath)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, strings.Count(string(second), embeddedVar))
}
