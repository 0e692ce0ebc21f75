// Package buildinfo loads the immutable per-build metadata written by the
// build step: a timestamp and the symmetric key used to seal state envelopes.
//
// The record lives at build-info.json in the build context:
//
//	{"timestamp": "2024-06-01T10:00:00Z", "key": "<base64, 32 bytes>"}
//
// Servers load it once at startup through a Provider and must refuse to serve
// when loading fails.
package buildinfo

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vango-dev/splitrender/internal/errors"
	"github.com/vango-dev/splitrender/pkg/artifact"
)

// FileName is the build-info record name, relative to the build context.
const FileName = "build-info.json"

// KeySize is the length of the per-build envelope key.
const KeySize = 32

var (
	// ErrBuildInfoMissing is returned when the build-info record is absent.
	ErrBuildInfoMissing = errors.New("E100")

	// ErrBuildInfoCorrupt is returned when the record cannot be read or decoded.
	ErrBuildInfoCorrupt = errors.New("E101")
)

// BuildInfo is the metadata produced once per build.
type BuildInfo struct {
	Timestamp string
	Key       [KeySize]byte
}

// record is the on-disk form of BuildInfo.
type record struct {
	Timestamp string `json:"timestamp"`
	Key       string `json:"key"`
}

// Load reads and validates the build-info record from store.
func Load(ctx context.Context, store artifact.Store) (BuildInfo, error) {
	data, err := store.Read(ctx, FileName)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return BuildInfo{}, errors.New("E100").
				WithDetailf("no %s in %s", FileName, store.Location()).
				WithSuggestion("run 'splitrender keygen --out " + store.Location() + "'").
				Wrap(err)
		}
		return BuildInfo{}, errors.FromError(err, "E101")
	}
	return Decode(data)
}

// Decode parses a build-info record.
func Decode(data []byte) (BuildInfo, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return BuildInfo{}, errors.New("E101").Wrap(err)
	}
	if rec.Timestamp == "" {
		return BuildInfo{}, errors.New("E101").WithDetail("timestamp is empty")
	}

	key, err := base64.StdEncoding.DecodeString(rec.Key)
	if err != nil {
		return BuildInfo{}, errors.New("E101").WithDetail("key is not base64").Wrap(err)
	}
	if len(key) != KeySize {
		return BuildInfo{}, errors.New("E101").WithDetailf("key is %d bytes, want %d", len(key), KeySize)
	}

	info := BuildInfo{Timestamp: rec.Timestamp}
	copy(info.Key[:], key)
	return info, nil
}

// Encode returns the JSON record for info.
func Encode(info BuildInfo) ([]byte, error) {
	return json.MarshalIndent(record{
		Timestamp: info.Timestamp,
		Key:       base64.StdEncoding.EncodeToString(info.Key[:]),
	}, "", "  ")
}

// Generate creates a fresh BuildInfo with a random key from r.
// A nil reader uses crypto/rand.
func Generate(r io.Reader, now time.Time) (BuildInfo, error) {
	if r == nil {
		r = rand.Reader
	}
	info := BuildInfo{Timestamp: now.UTC().Format(time.RFC3339)}
	if _, err := io.ReadFull(r, info.Key[:]); err != nil {
		return BuildInfo{}, errors.New("E110").Wrap(err)
	}
	return info, nil
}

// Write stores info as dir/build-info.json, creating dir if needed.
func Write(dir string, info BuildInfo) error {
	data, err := Encode(info)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, FileName), append(data, '\n'), 0o600)
}

// Provider loads BuildInfo exactly once and hands the same result to every
// caller for the lifetime of the process. It is safe for concurrent use.
type Provider struct {
	store artifact.Store

	once sync.Once
	info BuildInfo
	err  error
}

// NewProvider creates a Provider reading from store.
func NewProvider(store artifact.Store) *Provider {
	return &Provider{store: store}
}

// Store returns the store the provider reads from.
func (p *Provider) Store() artifact.Store {
	return p.store
}

// Load returns the cached BuildInfo, reading it on first use.
// A failed first load is cached as well; restart the process after fixing
// the build context.
func (p *Provider) Load(ctx context.Context) (BuildInfo, error) {
	p.once.Do(func() {
		p.info, p.err = Load(ctx, p.store)
	})
	return p.info, p.err
}
