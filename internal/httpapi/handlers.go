package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cobblepod/internal/artifact"
	"cobblepod/internal/config"
	"cobblepod/internal/jobstore"
	"cobblepod/internal/media"
	"cobblepod/internal/session"

	"github.com/gin-gonic/gin"
)

type handlers struct {
	cfg   *config.Config
	store *jobstore.Store
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "cobblepod"})
}

// indexPage is the minimal upload form Cobblepod serves at "/". Everything
// else about presentation is left to whatever the operator fronts this
// with; this exists so a bare ROOT-only deployment is still usable.
const indexPage = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Cobblepod</title></head>
<body>
<h1>Cobblepod</h1>
<form action="/upload" method="post" enctype="multipart/form-data">
<input type="file" name="file">
<button type="submit">Upload</button>
</form>
<p><a href="/api/queue">queue status</a></p>
</body></html>
`

func (h *handlers) index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexPage))
}

// editorPage serves a finished job's interactive HTML viewer directly from
// the output tree.
func (h *handlers) editorPage(c *gin.Context) {
	userID, err := session.UserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	file := c.Query("file")
	if file == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file query parameter required"})
		return
	}
	path := filepath.Join(h.cfg.OutDir(), userID, file+".html")
	c.File(path)
}

// upload accepts a multipart file into the caller's inbox, along with the
// optional per-user "language" and "hotwords" form fields. Validation,
// sanitization, collision disambiguation, and the language.txt/hotwords.txt
// side-files are all jobstore's responsibility (AcceptUpload) — the
// handler's only job is translating the multipart request into that call
// and the resulting error into the right HTTP status.
func (h *handlers) upload(c *gin.Context) {
	userID, err := session.UserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field required"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read upload"})
		return
	}
	defer f.Close()

	stored, err := h.store.AcceptUpload(jobstore.UploadRequest{
		UserID:      userID,
		Filename:    fileHeader.Filename,
		Size:        fileHeader.Size,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Reader:      f,
		Language:    c.PostForm("language"),
		Hotwords:    c.PostForm("hotwords"),
	})
	if err != nil {
		switch {
		case errors.Is(err, jobstore.ErrUploadTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		case errors.Is(err, jobstore.ErrUnsupportedMediaType):
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
		case errors.Is(err, jobstore.ErrTooManyCollisions):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save upload"})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"filename": stored})
}

// queueStatus reports every job waiting for this user along with its
// position and an ETA computed from the jobs ahead of it.
func (h *handlers) queueStatus(c *gin.Context) {
	userID, err := session.UserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	positions, err := h.store.DescribeQueue(ctx, media.Duration, h.cfg.Online, h.cfg.Device)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not describe queue"})
		return
	}

	var mine []gin.H
	for _, p := range positions {
		if p.Job.UserID != userID {
			continue
		}
		mine = append(mine, gin.H{
			"filename":       p.Job.Filename,
			"position":       p.Position,
			"eta_seconds":    int(p.ETA.Seconds()),
			"duration_known": p.DurationKnown,
			"state":          h.store.State(userID, p.Job.Filename),
		})
	}

	c.JSON(http.StatusOK, gin.H{"jobs": mine})
}

// progress streams the live state of every job belonging to this user as
// server-sent events, one snapshot per wake-up. Each wake-up is driven by
// jobstore.WaitForChange, which wakes promptly on a worker-directory
// filesystem event (via fsnotify) and otherwise falls back to a one-second
// poll, so a client sees a heartbeat update shortly after the worker
// writes one without the server needing any in-memory pub/sub.
func (h *handlers) progress(c *gin.Context) {
	userID, err := session.UserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		jobs, err := h.store.ListQueued(userID)
		if err != nil {
			return false
		}

		result := make([]gin.H, 0, len(jobs))
		for _, j := range jobs {
			state, fraction, remaining := h.store.Progress(userID, j.Filename)
			entry := gin.H{
				"filename": j.Filename,
				"state":    state,
			}
			if state == jobstore.StateProcessing || state == jobstore.StatePostProcessing {
				entry["progress"] = fraction
				entry["remaining_seconds"] = remaining
			}
			if state == jobstore.StatePostProcessing {
				entry["message"] = "file is being finalized"
			}
			result = append(result, entry)
		}
		c.SSEvent("progress", gin.H{"jobs": result})

		h.store.WaitForChange(ctx, userID)
		return ctx.Err() == nil
	})
}

// saveEdit stores a browser-submitted transcript edit as a pending
// <file>.htmlupdate, consumed the next time that file is downloaded.
func (h *handlers) saveEdit(c *gin.Context) {
	userID, err := session.UserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	file := c.Query("file")
	if file == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file query parameter required"})
		return
	}
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read edit"})
		return
	}

	outDir := filepath.Join(h.cfg.OutDir(), userID)
	if err := artifact.SaveEdit(outDir, file, string(body)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save edit"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": true})
}

// download serves a finished job's artifact. kind is srt or html; html is
// rebuilt via PrepareDownload first so a pending edit is spliced in and
// the media embedded, exactly as "download all" does for every job.
func (h *handlers) download(c *gin.Context) {
	userID, err := session.UserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	kind := c.Param("kind")
	file := c.Param("file")
	outDir := filepath.Join(h.cfg.OutDir(), userID)

	switch kind {
	case "srt":
		path := filepath.Join(outDir, file+".srt")
		if _, err := os.Stat(path); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no subtitle for that file"})
			return
		}
		c.FileAttachment(path, file+".srt")
	case "html":
		finalPath, err := artifact.PrepareDownload(outDir, file, file+".mp4")
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no finished editor for that file"})
			return
		}
		c.FileAttachment(finalPath, file+".html")
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown download kind"})
	}
}

// downloadAll zips every ready .htmlfinal across all of the caller's
// completed jobs, each renamed to .html inside the archive.
func (h *handlers) downloadAll(c *gin.Context) {
	userID, err := session.UserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	outDir := filepath.Join(h.cfg.OutDir(), userID)
	dirEntries, err := os.ReadDir(outDir)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no completed jobs"})
		return
	}

	var bundleEntries []artifact.Entry
	for _, e := range dirEntries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".html") {
			continue
		}
		file := strings.TrimSuffix(e.Name(), ".html")
		finalPath, err := artifact.PrepareDownload(outDir, file, file+".mp4")
		if err != nil {
			slog.Warn("skipping file in download-all bundle", "file", file, "error", err)
			continue
		}
		bundleEntries = append(bundleEntries, artifact.Entry{Path: finalPath, Name: file + ".html"})
	}
	if len(bundleEntries) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no completed jobs"})
		return
	}

	tmp, err := os.CreateTemp("", "cobblepod-bundle-*.zip")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create bundle"})
		return
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	if err := artifact.Bundle(tmp.Name(), bundleEntries); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not build bundle"})
		return
	}

	c.FileAttachment(tmp.Name(), "cobblepod.zip")
}

// media serves a job's normalized media file for the editor's <video> tag.
func (h *handlers) media(c *gin.Context) {
	userID := c.Param("user")
	file := c.Param("file")
	c.File(filepath.Join(h.cfg.OutDir(), userID, file))
}

// data serves any other output-tree asset a job produced, by raw path.
func (h *handlers) data(c *gin.Context) {
	userID := c.Param("user")
	file := c.Param("file")
	c.File(filepath.Join(h.cfg.OutDir(), userID, file))
}
