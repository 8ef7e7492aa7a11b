package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

var (
	ErrObjectExists   = errors.New("object already exists")
	ErrObjectNotFound = errors.New("object not found")
	ErrInvalidName    = errors.New("invalid object name")
)

// Storage is a flat namespace of byte streams keyed by storage name.
type Storage interface {
	// Put writes r under name and returns the number of bytes written.
	// It fails with ErrObjectExists rather than overwrite.
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (int64, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Remove deletes name. Removing a missing object is not an error.
	Remove(ctx context.Context, name string) error
	List(ctx context.Context) ([]ObjectInfo, error)
}

type ObjectInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// ValidName reports whether name is usable as a single path segment.
func ValidName(name string) bool {
	if name == "" || len(name) > 255 {
		return false
	}
	if strings.HasPrefix(name, ".") {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00:")
}
