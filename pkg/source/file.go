package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// FileFetcher reads the type definitions from a local file. It is meant for
// development: editing the file triggers a restart on the next poll.
type FileFetcher struct {
	path string
	now  func() time.Time
}

// NewFileFetcher returns a fetcher for path. The file does not need to exist
// yet; a missing file surfaces as ErrNotFound on Fetch.
func NewFileFetcher(path string) (*FileFetcher, error) {
	if path == "" {
		return nil, fmt.Errorf("file source requires a path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", path, err)
	}
	return &FileFetcher{path: abs, now: time.Now}, nil
}

// Describe implements Fetcher.
func (f *FileFetcher) Describe() string {
	return "file:" + f.path
}

// Fetch implements Fetcher.
func (f *FileFetcher) Fetch(ctx context.Context) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewFetchError(f.Describe(), 0, fmt.Errorf("%w: %v", ErrUnavailable, err))
	}

	info, err := os.Stat(f.path)
	if err != nil {
		return nil, NewFetchError(f.Describe(), 0, fileError(err))
	}
	if info.IsDir() {
		return nil, NewFetchError(f.Describe(), 0, fmt.Errorf("%w: %s is a directory", ErrInvalidContent, f.path))
	}
	if info.Size() > maxArtifactSize {
		return nil, NewFetchError(f.Describe(), 0, fmt.Errorf("%w: larger than %d bytes", ErrInvalidContent, maxArtifactSize))
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, NewFetchError(f.Describe(), 0, fileError(err))
	}
	return NewArtifact(string(data), f.Describe(), f.now()), nil
}

func fileError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}
