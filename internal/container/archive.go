package container

import (
	"archive/tar"
	"bytes"
	"fmt"
)

// buildTar packs files into an in-memory tar archive suitable for
// PutArchive (§4.2 step 2: "wrap it as an in-memory archive").
func buildTar(files []File) ([]byte, error) {
	var buf bytes.Buffer
	w := tar.NewWriter(&buf)

	for _, f := range files {
		hdr := &tar.Header{
			Name: f.Path,
			Mode: 0o644,
			Size: int64(len(f.Content)),
		}
		if err := w.WriteHeader(hdr); err != nil {
			return nil, fmt.Errorf("write tar header for %q: %w", f.Path, err)
		}
		if _, err := w.Write(f.Content); err != nil {
			return nil, fmt.Errorf("write tar content for %q: %w", f.Path, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close tar archive: %w", err)
	}

	return buf.Bytes(), nil
}
