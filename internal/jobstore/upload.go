package jobstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// maxUploadBytes is the hard cap on a single upload, matching the
// reference worker's 12 GiB guard against filling a shared disk.
const maxUploadBytes = 12 * 1024 * 1024 * 1024

// maxDisambiguationAttempts bounds the "_<i>" suffix search; beyond this a
// user's inbox is treated as pathologically full of one name.
const maxDisambiguationAttempts = 10000

var (
	// ErrUploadTooLarge is returned when a stream declares itself over
	// maxUploadBytes.
	ErrUploadTooLarge = errors.New("upload exceeds the 12GB size limit")
	// ErrUnsupportedMediaType is returned for anything that isn't
	// recognizable as audio, video, or a zip of tracks.
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	// ErrTooManyCollisions is returned once every "_1".."_10000" suffix
	// for a name is already taken in a user's inbox.
	ErrTooManyCollisions = errors.New("too-many-collisions")
)

// uploadNameDisallowed matches every byte outside the filename whitelist.
var uploadNameDisallowed = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// UploadRequest describes one inbound upload. Reader and Size come from
// the multipart file part; Language and Hotwords are optional form fields
// persisted as per-user config files alongside the job.
type UploadRequest struct {
	UserID      string
	Filename    string
	Size        int64
	ContentType string
	Reader      io.Reader
	Language    string
	Hotwords    string
}

// AcceptUpload validates, sanitizes, and persists an inbound upload,
// returning the filename it was stored under (which may differ from the
// one requested, per the collision-disambiguation rule). It rejects
// oversized or non-audio/video/zip uploads before touching the
// filesystem, sanitizes the name to the character whitelist
// `[A-Za-z0-9._-]` (prefixing a leading dot with "f" so a sanitized name
// can never become a hidden file), and disambiguates collisions by
// appending "_1" through "_10000". language.txt and hotwords.txt are
// written before the media stream so the worker sees a job's
// configuration no later than the job itself. Every write is flushed
// before returning so the worker may pick the job up immediately.
func (s *Store) AcceptUpload(req UploadRequest) (string, error) {
	if req.UserID == "" {
		return "", ErrUserIDRequired
	}
	if req.Size > maxUploadBytes {
		return "", ErrUploadTooLarge
	}
	if !allowedUploadType(req.ContentType, req.Filename) {
		return "", ErrUnsupportedMediaType
	}

	userDir := filepath.Join(s.cfg.InDir(), req.UserID)
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		return "", fmt.Errorf("prepare inbox: %w", err)
	}

	if err := writeUserConfig(userDir, req.Language, req.Hotwords); err != nil {
		return "", fmt.Errorf("write user config: %w", err)
	}

	dest, err := disambiguate(userDir, sanitizeUploadName(req.Filename))
	if err != nil {
		return "", err
	}

	if err := persistUpload(dest, io.LimitReader(req.Reader, maxUploadBytes+1)); err != nil {
		return "", fmt.Errorf("persist upload: %w", err)
	}

	return filepath.Base(dest), nil
}

// allowedUploadType reports whether a declared content type (or, failing
// that, the file extension) identifies an upload as audio, video, or zip.
// Browsers and API clients frequently fall back to a generic
// application/octet-stream for zip parts, so the extension is consulted
// whenever the content type isn't explicitly audio/video.
func allowedUploadType(contentType, filename string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if strings.HasPrefix(ct, "audio/") || strings.HasPrefix(ct, "video/") {
		return true
	}
	if ct == "application/zip" || ct == "application/x-zip-compressed" {
		return true
	}
	return strings.EqualFold(filepath.Ext(filename), ".zip")
}

// sanitizeUploadName strips any path component from a client-supplied
// name, replaces every character outside the whitelist with "_", and
// prepends "f" if the result would start with a dot (which would
// otherwise make the upload invisible to a plain directory listing).
func sanitizeUploadName(name string) string {
	name = filepath.Base(strings.NewReplacer("\\", "/").Replace(name))
	name = uploadNameDisallowed.ReplaceAllString(name, "_")
	if name == "" || name == "." {
		name = "_"
	}
	if strings.HasPrefix(name, ".") {
		name = "f" + name
	}
	return name
}

// disambiguate returns a path for name in dir that doesn't already exist,
// appending "_<i>" for i in 1..maxDisambiguationAttempts if needed.
func disambiguate(dir, name string) (string, error) {
	candidate := filepath.Join(dir, name)
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return candidate, nil
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; i <= maxDisambiguationAttempts; i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, i, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", ErrTooManyCollisions
}

// writeUserConfig persists the per-user language/hotwords side-files.
// language.txt always reflects the most recent upload's choice,
// defaulting to "de" if the client didn't specify one; hotwords.txt is
// removed entirely when empty rather than left as a stale empty file.
func writeUserConfig(userDir, language, hotwords string) error {
	language = strings.TrimSpace(language)
	if language == "" {
		language = "de"
	}
	if err := os.WriteFile(filepath.Join(userDir, "language.txt"), []byte(language), 0o644); err != nil {
		return err
	}

	hotwordsPath := filepath.Join(userDir, "hotwords.txt")
	if strings.TrimSpace(hotwords) == "" {
		if err := os.Remove(hotwordsPath); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	return os.WriteFile(hotwordsPath, []byte(hotwords), 0o644)
}

// persistUpload writes the upload stream to dest, refusing to overwrite
// anything disambiguate didn't already rule out, and flushes it to disk
// before returning so the worker can safely pick it up right away.
func persistUpload(dest string, r io.Reader) error {
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(dest)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
