package worker

import (
	"archive/zip"
	"io"
	"os"
)

func zipReaderFor(path string) (*zip.ReadCloser, error) {
	return zip.OpenReader(path)
}

// extractOne copies a single zip entry to dest on disk.
func extractOne(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}
