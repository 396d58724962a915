package artifact

import (
	"encoding/base64"
	"fmt"
	"html"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"cobblepod/internal/transcribe"
)

// editMarker and fileNameMarker are the two splice points a saved edit is
// spliced between. The span runs from just after </nav> to the fileName
// assignment, so it covers the <video> tag, the segment list and the
// opening <script> tag; the page head, the <nav> and the script body from
// the fileName assignment onward are kept, while whatever the edit
// carries replaces everything in between.
const (
	editMarker     = "</nav>"
	fileNameMarker = "var fileName = "
	embeddedVar    = "embeddedMediaURL"
)

// editorTemplate is a minimal self-contained HTML page: inline CSS/JS, a
// <video> or <audio> tag pointed at the media endpoint, and one editable
// block per transcript segment. Keeping it a single file with no external
// assets means the download-all zip needs no asset-copying step and the
// page works from file:// if a user saves it locally.
const editorTemplate = `<!DOCTYPE html>
<html lang="%s">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
.segment { margin-bottom: 0.75rem; cursor: pointer; }
.segment:hover { background: #f0f0f0; }
.speaker { font-weight: bold; margin-right: 0.5rem; }
.timestamp { color: #888; font-size: 0.8rem; }
</style>
</head>
<body>
<nav><h1>%s</h1></nav>
<video controls src="%s"></video>
<div id="segments" contenteditable="true">
%s
</div>
<script>
var fileName = %s;
document.querySelectorAll('.segment').forEach(function (el) {
  el.addEventListener('click', function () {
    var video = document.querySelector('video');
    video.currentTime = parseFloat(el.dataset.start);
    video.play();
  });
});
</script>
</body>
</html>
`

// Editor renders the interactive HTML viewer for a finished job. mediaURL
// is the path the page's <video> tag should fetch the normalized media
// from (served separately by the frontend, never embedded inline until
// download-prep runs). The <nav> and "var fileName = " markers bracket
// everything a browser edit is allowed to replace.
func Editor(title, language, mediaURL string, segments []transcribe.Segment) string {
	var b strings.Builder
	for _, seg := range segments {
		speaker := ""
		if seg.Speaker != "" {
			speaker = fmt.Sprintf(`<span class="speaker">%s</span>`, html.EscapeString(seg.Speaker))
		}
		fmt.Fprintf(&b,
			`<div class="segment" data-start="%.3f">%s<span class="timestamp">%s</span> %s</div>`+"\n",
			seg.Start, speaker, srtTimestamp(seg.Start), html.EscapeString(seg.Text),
		)
	}
	return fmt.Sprintf(editorTemplate,
		html.EscapeString(language), html.EscapeString(title), html.EscapeString(title),
		html.EscapeString(mediaURL), b.String(), quoteJS(title),
	)
}

// quoteJS renders a Go string as a JavaScript double-quoted string
// literal. Go and JS share escaping rules for the characters filenames
// actually contain, so strconv-style quoting via fmt is enough here.
func quoteJS(s string) string {
	return fmt.Sprintf("%q", s)
}

// SpliceEdit replaces the region of original between the editMarker and
// fileNameMarker with update, which is what the browser posts back after
// a user edits the transcript in place. It fails if either marker is
// missing, which should only happen against a document that didn't come
// from Editor.
func SpliceEdit(original, update string) (string, error) {
	navIdx := strings.Index(original, editMarker)
	if navIdx == -1 {
		return "", fmt.Errorf("splice edit: %q marker not found", editMarker)
	}
	start := navIdx + len(editMarker)

	varIdx := strings.Index(original[start:], fileNameMarker)
	if varIdx == -1 {
		return "", fmt.Errorf("splice edit: %q marker not found", fileNameMarker)
	}

	return original[:start] + update + original[start+varIdx:], nil
}

// EmbedMedia inlines a media file as a base64 data URL, injected as a
// variable assignment at the end of the last <script> block, so a
// downloaded .htmlfinal plays its media with no companion file. It is
// idempotent: if the embed variable is already present the document is
// returned unchanged rather than appending a second block.
func EmbedMedia(document, mediaPath string) (string, error) {
	if strings.Contains(document, embeddedVar) {
		return document, nil
	}

	data, err := os.ReadFile(mediaPath)
	if err != nil {
		return "", fmt.Errorf("read media for embed: %w", err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(mediaPath))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))

	lastScript := strings.LastIndex(document, "</script>")
	if lastScript == -1 {
		return "", fmt.Errorf("embed media: no <script> block found")
	}
	statement := fmt.Sprintf("\nvar %s = %q;\n", embeddedVar, dataURL)
	return document[:lastScript] + statement + document[lastScript:], nil
}

// PrepareDownload builds <file>.htmlfinal from <file>.html: if a pending
// <file>.htmlupdate exists it is spliced into the canonical .html first
// (which is then persisted and the update file removed), and the result
// always gets the base64 media embed appended. Re-running it with no
// pending update reproduces byte-identical output, since EmbedMedia is a
// no-op once the embed is already present.
func PrepareDownload(outDir, filename, mediaFilename string) (string, error) {
	htmlPath := filepath.Join(outDir, filename+".html")
	updatePath := filepath.Join(outDir, filename+".htmlupdate")
	finalPath := filepath.Join(outDir, filename+".htmlfinal")

	content, err := os.ReadFile(htmlPath)
	if err != nil {
		return "", fmt.Errorf("read editor html: %w", err)
	}
	document := string(content)

	update, err := os.ReadFile(updatePath)
	switch {
	case err == nil:
		spliced, err := SpliceEdit(document, string(update))
		if err != nil {
			return "", err
		}
		document = spliced
		if err := os.WriteFile(htmlPath, []byte(document), 0o644); err != nil {
			return "", fmt.Errorf("persist spliced edit: %w", err)
		}
		if err := os.Remove(updatePath); err != nil {
			return "", fmt.Errorf("remove consumed update: %w", err)
		}
	case os.IsNotExist(err):
		// nothing pending
	default:
		return "", fmt.Errorf("read pending edit: %w", err)
	}

	mediaPath := filepath.Join(outDir, mediaFilename)
	embedded := document
	if _, err := os.Stat(mediaPath); err == nil {
		embedded, err = EmbedMedia(document, mediaPath)
		if err != nil {
			return "", err
		}
	}

	if err := os.WriteFile(finalPath, []byte(embedded), 0o644); err != nil {
		return "", fmt.Errorf("write final download: %w", err)
	}
	return finalPath, nil
}

// SaveEdit stores a browser-submitted edit as <file>.htmlupdate, pending
// the next download-prep.
func SaveEdit(outDir, filename, body string) error {
	return os.WriteFile(filepath.Join(outDir, filename+".htmlupdate"), []byte(body), 0o644)
}
