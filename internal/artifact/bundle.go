package artifact

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
)

// Entry is one file to place into a bundle, with Name controlling what it
// appears as inside the archive (independent of its path on disk) — used
// so a ".htmlfinal" on disk is written into the zip as ".html".
type Entry struct {
	Path string
	Name string
}

// Bundle writes a zip archive containing every entry so a user can
// download everything in one request. The standard library's archive/zip
// is used deliberately here rather than a third-party archiver: it already
// handles the ZIP64 extension transparently for large media files, which
// is the only thing a replacement library would add.
func Bundle(dst string, entries []Entry) error {
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create bundle: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	defer zw.Close()

	for _, entry := range entries {
		if err := addFile(zw, entry); err != nil {
			return fmt.Errorf("add %s to bundle: %w", entry.Path, err)
		}
	}
	return nil
}

func addFile(zw *zip.Writer, entry Entry) error {
	in, err := os.Open(entry.Path)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = entry.Name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, in)
	return err
}
