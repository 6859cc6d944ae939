// Package export copies a processed recording, or its original when
// processing failed, into a user-visible directory together with a JSON
// sidecar carrying the metadata record.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// SidecarName returns the sidecar filename for a media filename.
func SidecarName(mediaName string) string {
	return strings.TrimSuffix(mediaName, filepath.Ext(mediaName)) + ".json"
}

// Write copies the bundle into dir. Existing files with the same names are
// replaced; each file is written to a temporary name first and renamed.
func Write(dir string, b Bundle) (*Result, error) {
	if b.Name == "" || b.Name != filepath.Base(b.Name) {
		return nil, fmt.Errorf("invalid export name %q", b.Name)
	}

	var src io.Reader
	if b.Data != nil {
		src = bytes.NewReader(b.Data)
	} else {
		f, err := os.Open(b.SourcePath)
		if err != nil {
			return nil, fmt.Errorf("open export source: %w", err)
		}
		defer f.Close()
		src = f
	}

	mediaPath := filepath.Join(dir, b.Name)
	size, err := writeAtomic(mediaPath, func(w io.Writer) (int64, error) {
		return io.Copy(w, src)
	})
	if err != nil {
		return nil, fmt.Errorf("write media: %w", err)
	}

	sidecar := b.Sidecar
	sidecar.Filename = b.Name
	body, err := json.MarshalIndent(sidecar, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal sidecar: %w", err)
	}

	sidecarPath := filepath.Join(dir, SidecarName(b.Name))
	if _, err := writeAtomic(sidecarPath, func(w io.Writer) (int64, error) {
		n, err := w.Write(append(body, '\n'))
		return int64(n), err
	}); err != nil {
		os.Remove(mediaPath)
		return nil, fmt.Errorf("write sidecar: %w", err)
	}

	return &Result{MediaPath: mediaPath, SidecarPath: sidecarPath, Size: size}, nil
}

func writeAtomic(path string, fill func(io.Writer) (int64, error)) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, err
	}
	n, err := fill(tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}
	if err != nil {
		os.Remove(tmp.Name())
		return 0, err
	}
	return n, nil
}
