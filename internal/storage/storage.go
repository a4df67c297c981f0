package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidName is returned for object names that would escape the store root.
var ErrInvalidName = errors.New("invalid file name")

// FileStore keeps uploaded account files (profile images, documents).
type FileStore interface {
	Save(ctx context.Context, name, contentType string, r io.Reader) error
	Remove(ctx context.Context, name string) error
}

// NewObjectName derives a unique stored name from the client supplied file name,
// keeping its extension.
func NewObjectName(clientName string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(clientName)))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	return uuid.NewString() + ext
}

// URL joins a public base URL and a stored name.
func URL(baseURL, name string) string {
	return strings.TrimRight(baseURL, "/") + "/" + path.Base(name)
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
