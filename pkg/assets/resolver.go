package assets

import "strings"

// Resolver turns manifest file names into URLs under the build's public
// path.
type Resolver struct {
	manifest   *Manifest
	publicPath string
}

// NewResolver creates a Resolver for m. publicPath is prepended to every
// file; it may be empty, a path such as "/static/", or an absolute CDN URL.
func NewResolver(m *Manifest, publicPath string) *Resolver {
	if m == nil {
		m = NewManifest()
	}
	return &Resolver{manifest: m, publicPath: publicPath}
}

// Manifest returns the underlying manifest.
func (r *Resolver) Manifest() *Manifest { return r.manifest }

// PublicPath returns the configured public path.
func (r *Resolver) PublicPath() string { return r.publicPath }

// Asset returns the URL of file. Absolute URLs are returned unchanged.
//
//	NewResolver(m, "/static/").Asset("main.3c4d.js") // "/static/main.3c4d.js"
func (r *Resolver) Asset(file string) string {
	if r.publicPath == "" || isAbsolute(file) {
		return file
	}
	if strings.HasSuffix(r.publicPath, "/") {
		return r.publicPath + strings.TrimPrefix(file, "/")
	}
	return r.publicPath + "/" + strings.TrimPrefix(file, "/")
}

// Stylesheets returns the stylesheet URLs of chunk.
func (r *Resolver) Stylesheets(chunk string) ([]string, error) {
	files, err := r.manifest.Stylesheets(chunk)
	return r.urls(files), err
}

// Scripts returns the script URLs of chunk.
func (r *Resolver) Scripts(chunk string) ([]string, error) {
	files, err := r.manifest.Scripts(chunk)
	return r.urls(files), err
}

func (r *Resolver) urls(files []string) []string {
	if len(files) == 0 {
		return nil
	}
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = r.Asset(f)
	}
	return out
}

func isAbsolute(file string) bool {
	return strings.HasPrefix(file, "//") || strings.Contains(file, "://")
}
