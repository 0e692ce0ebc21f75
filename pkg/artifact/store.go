// Package artifact reads build outputs (the build-info record, the asset
// manifest) from wherever the build step left them.
//
// A build context is either a local directory or an S3 location:
//
//	store, err := artifact.Open(ctx, "dist")
//	store, err := artifact.Open(ctx, "s3://my-builds/web/2024-06-01/")
//
// Stores are read-only and safe for concurrent use.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrNotFound is returned when a named artifact does not exist in the store.
var ErrNotFound = errors.New("artifact not found")

// Store reads named build artifacts.
type Store interface {
	// Read returns the full content of the named artifact.
	// Missing artifacts yield an error wrapping ErrNotFound.
	Read(ctx context.Context, name string) ([]byte, error)

	// Location describes the store for log messages.
	Location() string
}

// DirStore reads artifacts from a local build directory.
type DirStore struct {
	dir string
}

// NewDirStore creates a store rooted at dir.
func NewDirStore(dir string) *DirStore {
	return &DirStore{dir: dir}
}

// Read implements Store.
func (s *DirStore) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.FromSlash(name)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path.Join(s.dir, name))
		}
		return nil, err
	}
	return data, nil
}

// Location implements Store.
func (s *DirStore) Location() string {
	return s.dir
}

// Open returns the store for a build context location. Locations of the
// form s3://bucket/prefix use the default AWS credential chain; anything
// else is treated as a local directory.
func Open(ctx context.Context, location string) (Store, error) {
	bucket, prefix, ok := parseS3(location)
	if !ok {
		return NewDirStore(location), nil
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3Store(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// parseS3 splits an s3://bucket/prefix location.
func parseS3(location string) (bucket, prefix string, ok bool) {
	rest, found := strings.CutPrefix(location, "s3://")
	if !found {
		return "", "", false
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", false
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return bucket, prefix, true
}
