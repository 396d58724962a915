package jobstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcceptUploadRejectsOversizedStream(t *testing.T) {
	s, _ := testStore(t)
	_, err := s.AcceptUpload(UploadRequest{
		UserID:      "alice",
		Filename:    "talk.mp3",
		Size:        maxUploadBytes + 1,
		ContentType: "audio/mpeg",
		Reader:      strings.NewReader("data"),
	})
	assert.ErrorIs(t, err, ErrUploadTooLarge)
}

func TestAcceptUploadRejectsUnsupportedType(t *testing.T) {
	s, _ := testStore(t)
	_, err := s.AcceptUpload(UploadRequest{
		UserID:      "alice",
		Filename:    "notes.txt",
		Size:        4,
		ContentType: "text/plain",
		Reader:      strings.NewReader("data"),
	})
	assert.ErrorIs(t, err, ErrUnsupportedMediaType)
}

func TestAcceptUploadSanitizesAndPersists(t *testing.T) {
	s, cfg := testStore(t)
	stored, err := s.AcceptUpload(UploadRequest{
		UserID:      "alice",
		Filename:    "../../etc/pass wd!@#.mp3",
		Size:        4,
		ContentType: "audio/mpeg",
		Reader:      strings.NewReader("data"),
		Language:    "en",
		Hotwords:    "foo\nbar",
	})
	require.NoError(t, err)
	assert.Regexp(t, `^pass_wd_+\.mp3$`, stored)

	data, err := os.ReadFile(filepath.Join(cfg.InDir(), "alice", stored))
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))

	lang, err := os.ReadFile(filepath.Join(cfg.InDir(), "alice", "language.txt"))
	require.NoError(t, err)
	assert.Equal(t, "en", string(lang))

	hw, err := os.ReadFile(filepath.Join(cfg.InDir(), "alice", "hotwords.txt"))
	require.NoError(t, err)
	assert.Equal(t, "foo\nbar", string(hw))
}

func TestAcceptUploadPrependsFForDotfile(t *testing.T) {
	s, cfg := testStore(t)
	stored, err := s.AcceptUpload(UploadRequest{
		UserID:      "alice",
		Filename:    ".hidden.mp3",
		Size:        4,
		ContentType: "audio/mpeg",
		Reader:      strings.NewReader("data"),
	})
	require.NoError(t, err)
	assert.Equal(t, "f.hidden.mp3", stored)
	_, err = os.Stat(filepath.Join(cfg.InDir(), "alice", stored))
	assert.NoError(t, err)
}

func TestAcceptUploadDisambiguatesCollisions(t *testing.T) {
	s, _ := testStore(t)
	for i := 0; i < 3; i++ {
		stored, err := s.AcceptUpload(UploadRequest{
			UserID:      "alice",
			Filename:    "talk.mp3",
			Size:        4,
			ContentType: "audio/mpeg",
			Reader:      strings.NewReader("data"),
		})
		require.NoError(t, err)
		if i == 0 {
			assert.Equal(t, "talk.mp3", stored)
		} else {
			assert.Equal(t, fmt.Sprintf("talk_%d.mp3", i), stored)
		}
	}
}

func TestAcceptUploadRejectsAfterTooManyCollisions(t *testing.T) {
	s, cfg := testStore(t)
	dir := filepath.Join(cfg.InDir(), "alice")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "talk.mp3"), []byte("x"), 0o644))
	for i := 1; i <= maxDisambiguationAttempts; i++ {
		name := fmt.Sprintf("talk_%d.mp3", i)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	_, err := s.AcceptUpload(UploadRequest{
		UserID:      "alice",
		Filename:    "talk.mp3",
		Size:        4,
		ContentType: "audio/mpeg",
		Reader:      strings.NewReader("data"),
	})
	assert.ErrorIs(t, err, ErrTooManyCollisions)
}

func TestAcceptUploadAllowsZipByExtensionWhenTypeGeneric(t *testing.T) {
	s, _ := testStore(t)
	_, err := s.AcceptUpload(UploadRequest{
		UserID:      "alice",
		Filename:    "tracks.zip",
		Size:        4,
		ContentType: "application/octet-stream",
		Reader:      strings.NewReader("data"),
	})
	assert.NoError(t, err)
}
