// Package splitrender serves server-rendered documents for applications
// whose component trees contain asynchronously loaded code splits.
//
// A Handler renders the application in bounded rounds until every split
// placeholder has resolved, seals the injected configuration and initial
// state into an envelope keyed by the build, and assembles the final
// document with the stylesheets of the resolved splits:
//
//	build, err := splitrender.LoadBuild(ctx, buildinfo.NewProvider(store))
//	build.PublicPath = "/static/"
//	build.Settings = map[string]any{"apiURL": "/api", "sentryDSN": "..."}
//	build.Private = []string{"sentryDSN"}
//
//	h, err := splitrender.New(build,
//	    splitrender.WithApplication(app),
//	    splitrender.WithModuleCache(cache),
//	)
//	http.Handle("/", h)
package splitrender

import (
	"context"
	"net/http"
	"sort"

	"github.com/vango-dev/splitrender/internal/errors"
	"github.com/vango-dev/splitrender/pkg/assets"
	"github.com/vango-dev/splitrender/pkg/buildinfo"
	"github.com/vango-dev/splitrender/pkg/ssr"
)

// Build is the read-only output of the build step.
type Build struct {
	// Info holds the build timestamp and the envelope key.
	Info buildinfo.BuildInfo

	// Manifest lists the files of every chunk. Nil means an empty manifest.
	Manifest *assets.Manifest

	// PublicPath is prepended to every asset URL.
	PublicPath string

	// Settings is the application configuration handed to BeforeRender.
	Settings map[string]any

	// Private names Settings keys that must never reach the client.
	Private []string
}

// LoadBuild reads the build-info record through p and the manifest from
// the same store.
func LoadBuild(ctx context.Context, p *buildinfo.Provider) (Build, error) {
	info, err := p.Load(ctx)
	if err != nil {
		return Build{}, err
	}
	manifest, err := assets.Load(ctx, p.Store(), assets.FileName)
	if err != nil {
		return Build{}, err
	}
	return Build{Info: info, Manifest: manifest}, nil
}

// SanitizedConfig is Build.Settings without the private keys.
type SanitizedConfig map[string]any

// Keys returns the config keys in sorted order.
func (c SanitizedConfig) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sanitize(settings map[string]any, private []string) SanitizedConfig {
	drop := make(map[string]bool, len(private))
	for _, k := range private {
		drop[k] = true
	}
	out := make(SanitizedConfig, len(settings))
	for k, v := range settings {
		if !drop[k] {
			out[k] = v
		}
	}
	return out
}

// Injection is the per-request data produced by BeforeRender.
type Injection struct {
	// Config is sealed into the envelope. Nil means the sanitized config.
	Config map[string]any

	// Store is rendered against and its snapshot sealed as initial state.
	Store ssr.StateSource

	// ExtraScripts are appended verbatim to the document.
	ExtraScripts []string
}

// BeforeRender prepares the injection for one request.
type BeforeRender func(r *http.Request, config SanitizedConfig) (Injection, error)

// Payload is the sealed content of the envelope.
type Payload struct {
	Config map[string]any `json:"config"`
	State  any            `json:"state,omitempty"`
}

func validateBuild(b Build) error {
	if b.Info.Timestamp == "" || b.Info.Key == ([buildinfo.KeySize]byte{}) {
		return errors.New("E100").WithDetail("build has no build-info record")
	}
	return nil
}
