// Package assets reads the bundler's build manifest and resolves the
// stylesheets and scripts of each output chunk.
//
// The manifest maps chunk names to one file or a list of files:
//
//	{
//	  "assetsByChunkName": {
//	    "runtime": "runtime.1a2b.js",
//	    "main": ["main.3c4d.css", "main.5e6f.js"],
//	    "comments": ["comments.7a8b.css", "comments.9c0d.js"]
//	  }
//	}
//
// Chunk order is kept as written, since entry scripts are emitted in
// manifest order.
package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/vango-dev/splitrender/internal/errors"
	"github.com/vango-dev/splitrender/pkg/artifact"
)

// FileName is the manifest's name within the build context.
const FileName = "manifest.json"

var (
	// ErrAssetNotFound is returned for chunks the manifest does not list.
	ErrAssetNotFound = errors.New("E120")

	// ErrManifestCorrupt is returned for manifests that cannot be read.
	ErrManifestCorrupt = errors.New("E121")
)

// Manifest holds the files of every chunk in manifest order.
// It is safe for concurrent use.
type Manifest struct {
	mu     sync.RWMutex
	chunks []string
	files  map[string][]string
}

// NewManifest creates an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{files: make(map[string][]string)}
}

// Load reads and parses the manifest called name from store.
func Load(ctx context.Context, store artifact.Store, name string) (*Manifest, error) {
	data, err := store.Read(ctx, name)
	if err != nil {
		return nil, errors.New("E121").WithDetailf("%s in %s", name, store.Location()).Wrap(err)
	}
	return Parse(data)
}

// Parse decodes a manifest, keeping the order of assetsByChunkName.
func Parse(data []byte) (*Manifest, error) {
	m := NewManifest()
	dec := json.NewDecoder(bytes.NewReader(data))

	if err := expectDelim(dec, '{'); err != nil {
		return nil, corrupt(err)
	}
	found := false
	for dec.More() {
		key, err := stringToken(dec)
		if err != nil {
			return nil, corrupt(err)
		}
		if key != "assetsByChunkName" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, corrupt(err)
			}
			continue
		}
		found = true
		if err := m.decodeChunks(dec); err != nil {
			return nil, corrupt(err)
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, corrupt(err)
	}
	if !found {
		return nil, corrupt(fmt.Errorf("missing assetsByChunkName"))
	}
	return m, nil
}

func (m *Manifest) decodeChunks(dec *json.Decoder) error {
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	for dec.More() {
		chunk, err := stringToken(dec)
		if err != nil {
			return err
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		files, err := decodeFiles(raw)
		if err != nil {
			return fmt.Errorf("chunk %q: %w", chunk, err)
		}
		m.Set(chunk, files...)
	}
	return expectDelim(dec, '}')
}

// decodeFiles accepts a single file name or a list of them.
func decodeFiles(raw json.RawMessage) ([]string, error) {
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return []string{one}, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, fmt.Errorf("want a file name or a list of file names")
	}
	return many, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func stringToken(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	s, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected an object key, got %v", tok)
	}
	return s, nil
}

func corrupt(err error) error {
	return errors.New("E121").Wrap(err)
}

// Set replaces the files of chunk. New chunks are appended to the order.
func (m *Manifest) Set(chunk string, files ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[chunk]; !ok {
		m.chunks = append(m.chunks, chunk)
	}
	m.files[chunk] = append([]string(nil), files...)
}

// Chunks returns the chunk names in manifest order.
func (m *Manifest) Chunks() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]string(nil), m.chunks...)
}

// Has returns true if the manifest lists chunk.
func (m *Manifest) Has(chunk string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.files[chunk]
	return ok
}

// Len returns the number of chunks in the manifest.
func (m *Manifest) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.chunks)
}

// Files returns every file of chunk, or ErrAssetNotFound.
func (m *Manifest) Files(chunk string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files, ok := m.files[chunk]
	if !ok {
		return nil, errors.New("E120").WithDetailf("chunk %q", chunk)
	}
	return append([]string(nil), files...), nil
}

// Stylesheets returns the CSS files of chunk.
func (m *Manifest) Stylesheets(chunk string) ([]string, error) {
	return m.filter(chunk, ".css")
}

// Scripts returns the JavaScript files of chunk.
func (m *Manifest) Scripts(chunk string) ([]string, error) {
	return m.filter(chunk, ".js", ".mjs")
}

func (m *Manifest) filter(chunk string, exts ...string) ([]string, error) {
	files, err := m.Files(chunk)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, f := range files {
		ext := strings.ToLower(path.Ext(stripQuery(f)))
		for _, want := range exts {
			if ext == want {
				out = append(out, f)
				break
			}
		}
	}
	return out, nil
}

// stripQuery drops a cache-busting query or fragment from a file name.
func stripQuery(f string) string {
	if i := strings.IndexAny(f, "?#"); i >= 0 {
		return f[:i]
	}
	return f
}
