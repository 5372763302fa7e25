package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Uploader stores an attachment payload and returns a URL for the record.
type Uploader interface {
	Upload(ctx context.Context, data []byte, filename, mimeType, folder string) (string, error)
}

// LocalDisk keeps uploads under root/<folder>/. The returned URL is a
// file:// URL, good enough for a single-host engine; swap the Uploader for
// object storage when the ATS fronts this with a CDN.
type LocalDisk struct {
	Root string
}

func NewLocalDisk(root string) *LocalDisk {
	return &LocalDisk{Root: root}
}

func (l *LocalDisk) Upload(ctx context.Context, data []byte, filename, mimeType, folder string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("refusing to store empty file %q", filename)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := filepath.Join(l.Root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	name := uuid.NewString() + "_" + sanitizeFilename(filename)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return "file://" + filepath.ToSlash(abs), nil
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "attachment"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
