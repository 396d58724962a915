// Package worker implements the single-threaded job pipeline: scan the
// inbox, claim the oldest eligible file, normalize it, transcribe and
// diarize it, write the artifacts, and release the claim. Unlike the
// reference processor's fan-out download/ffmpeg workers, this pipeline is
// deliberately sequential — the bottleneck is the transcription model
// itself, and running two jobs at once would only contend for the same
// accelerator.
package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cobblepod/internal/artifact"
	"cobblepod/internal/config"
	"cobblepod/internal/jobstore"
	"cobblepod/internal/media"
	"cobblepod/internal/transcribe"

	"log/slog"
)

// Pipeline processes jobs claimed from a Store one at a time.
type Pipeline struct {
	cfg    *config.Config
	store  *jobstore.Store
	client *transcribe.Client
}

// New builds a Pipeline wired to the given store and transcription client.
func New(cfg *config.Config, store *jobstore.Store, client *transcribe.Client) *Pipeline {
	return &Pipeline{cfg: cfg, store: store, client: client}
}

// Run services the queue until ctx is cancelled. It is meant to be the
// entire body of the worker process's main loop.
func (p *Pipeline) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.store.Next()
		if err != nil {
			slog.Error("failed to scan queue", "error", err)
			sleep(ctx)
			continue
		}
		if job == nil {
			sleep(ctx)
			continue
		}

		p.process(ctx, job)
	}
}

func sleep(ctx context.Context) {
	t := time.NewTimer(time.Second)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// process runs a single job end to end, always releasing its claim
// (`.processing` marker) on the way out whether it succeeded, errored, or
// was cancelled by the file disappearing mid-run.
func (p *Pipeline) process(ctx context.Context, job *jobstore.Job) {
	if err := p.store.Claim(job); err != nil {
		slog.Error("failed to claim job", "path", job.Path, "error", err)
		return
	}
	defer p.store.Release(job)

	slog.Info("processing job", "user", job.UserID, "file", job.Filename, "zip", job.IsZip)

	if job.IsZip {
		p.processZip(ctx, job)
		return
	}
	p.processSingle(ctx, job)
}

func (p *Pipeline) processSingle(ctx context.Context, job *jobstore.Job) {
	duration, err := media.Duration(ctx, job.Path)
	if err != nil {
		p.store.Fail(job, "file could not be read")
		return
	}

	estimate := jobstore.EstimateSeconds(duration, p.cfg.Online, p.cfg.Device)
	hbPath, err := p.store.WriteHeartbeat(job, estimate)
	if err != nil {
		slog.Error("failed to write heartbeat", "error", err)
	}
	defer p.store.ClearHeartbeat(hbPath)

	if ok, err := media.HasAudioStream(ctx, job.Path); err != nil || !ok {
		p.store.Fail(job, "audio track could not be read")
		return
	}

	if !p.store.Exists(job) {
		slog.Info("job cancelled, source file removed", "path", job.Path)
		return
	}

	outDir := filepath.Join(p.cfg.OutDir(), job.UserID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		p.store.Fail(job, "could not prepare output directory")
		return
	}
	normalized := filepath.Join(outDir, job.Filename+".mp4")
	if err := media.Normalize(ctx, job.Path, normalized); err != nil {
		slog.Warn("normalize failed, using source file directly", "error", err)
		normalized = job.Path
	}

	segments, err := p.transcribeAndDiarize(ctx, normalized, job.UserID)
	if err != nil {
		p.store.Fail(job, "transcription failed")
		return
	}

	if !p.store.Exists(job) {
		slog.Info("job cancelled mid-run, discarding output", "path", job.Path)
		return
	}

	p.writeArtifacts(job, normalized, segments)
}

func (p *Pipeline) transcribeAndDiarize(ctx context.Context, path, userID string) ([]transcribe.Segment, error) {
	language := p.store.LanguageFor(userID)
	hotwords := p.store.HotwordsFor(userID)

	segments, err := p.client.Transcribe(ctx, path, language, hotwords)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	turns, err := p.client.Diarize(ctx, path)
	if err != nil {
		slog.Warn("diarization failed, continuing without speaker labels", "error", err)
		return segments, nil
	}

	return transcribe.ApplySpeakers(segments, turns), nil
}

// writeArtifacts produces the SRT and HTML editor for a finished job, then
// removes the job's inbox file. The HTML file's existence is what the rest
// of Cobblepod treats as "done".
func (p *Pipeline) writeArtifacts(job *jobstore.Job, mediaPath string, segments []transcribe.Segment) {
	outDir := filepath.Join(p.cfg.OutDir(), job.UserID)
	language := p.store.LanguageFor(job.UserID)

	srtPath := filepath.Join(outDir, job.Filename+".srt")
	if err := os.WriteFile(srtPath, []byte(artifact.SRT(segments)), 0o644); err != nil {
		slog.Error("failed to write srt", "error", err)
	}

	mediaURL := fmt.Sprintf("/media/%s/%s", job.UserID, filepath.Base(mediaPath))
	editorHTML := artifact.Editor(job.Filename, language, mediaURL, segments)
	viewerPath := filepath.Join(outDir, job.Filename+".html")
	if err := os.WriteFile(viewerPath, []byte(editorHTML), 0o644); err != nil {
		slog.Error("failed to write editor", "error", err)
		return
	}

	if err := os.Remove(job.Path); err != nil && !os.IsNotExist(err) {
		slog.Error("failed to remove processed input", "path", job.Path, "error", err)
	}

	slog.Info("job complete", "user", job.UserID, "file", job.Filename)
}

// processZip handles a multi-track upload: each track inside the zip is
// transcribed and diarized independently as-is (no voice-isolation pass is
// applied), the transcripts are merged chronologically, and the tracks are
// mixed down into one media file for the editor.
func (p *Pipeline) processZip(ctx context.Context, job *jobstore.Job) {
	extractDir := filepath.Join(p.cfg.WorkerDir(), "zip", job.UserID)
	os.RemoveAll(extractDir)
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		p.store.Fail(job, "could not prepare extraction directory")
		return
	}
	defer os.RemoveAll(extractDir)

	tracks, err := extractZip(job.Path, extractDir)
	if err != nil {
		p.store.Fail(job, "zip could not be extracted")
		return
	}
	if len(tracks) == 0 {
		p.store.Fail(job, "zip contained no audio files")
		return
	}

	var estimate time.Duration
	for _, t := range tracks {
		if d, err := media.Duration(ctx, t); err == nil {
			estimate += d
		}
	}
	hbPath, _ := p.store.WriteHeartbeat(job, jobstore.EstimateSeconds(estimate, p.cfg.Online, p.cfg.Device))
	defer p.store.ClearHeartbeat(hbPath)

	var allSegments [][]transcribe.Segment
	for _, track := range tracks {
		segs, err := p.transcribeAndDiarize(ctx, track, job.UserID)
		if err != nil {
			p.store.Fail(job, "transcription failed for one or more tracks")
			return
		}
		allSegments = append(allSegments, segs)
	}
	merged := artifact.MergeByStart(allSegments)

	mixed := filepath.Join(p.cfg.WorkerDir(), "zip", job.UserID, "mixed.mp4")
	if err := media.Mix(ctx, tracks, mixed); err != nil {
		p.store.Fail(job, "could not mix tracks")
		return
	}

	outDir := filepath.Join(p.cfg.OutDir(), job.UserID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		p.store.Fail(job, "could not prepare output directory")
		return
	}
	finalMedia := filepath.Join(outDir, job.Filename+".mp4")
	if err := media.Normalize(ctx, mixed, finalMedia); err != nil {
		slog.Warn("normalize failed for mixed zip track, using mixdown directly", "error", err)
		finalMedia = mixed
	}

	p.writeArtifacts(job, finalMedia, merged)
}

// extractZip unpacks a zip upload and returns the paths of the audio
// tracks it contained, skipping directory entries and macOS "__MACOSX"
// metadata entries. Every other entry is returned as a track; file names
// and extensions are not checked.
func extractZip(zipPath, destDir string) ([]string, error) {
	r, err := zipReaderFor(zipPath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var tracks []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(f.Name, "__MACOSX") {
			continue
		}
		dest := filepath.Join(destDir, filepath.Base(f.Name))
		if err := extractOne(f, dest); err != nil {
			return nil, err
		}
		tracks = append(tracks, dest)
	}
	return tracks, nil
}
