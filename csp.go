package splitrender

import (
	"encoding/base64"
	"io"
	"strings"

	"github.com/vango-dev/splitrender/internal/errors"
)

// nonceSize is the number of random bytes in a CSP nonce.
const nonceSize = 16

// CSPPolicy is the Content-Security-Policy of one response. Directives keep
// the order they were first set in.
type CSPPolicy struct {
	// Nonce is added to every script tag the document emits.
	Nonce string

	order      []string
	directives map[string][]string
}

// NewCSPPolicy returns the default policy for nonce.
func NewCSPPolicy(nonce string) *CSPPolicy {
	p := &CSPPolicy{Nonce: nonce, directives: make(map[string][]string)}
	p.Set("default-src", "'self'")
	p.Set("script-src", "'self'", "'nonce-"+nonce+"'")
	p.Set("object-src", "'none'")
	p.Set("base-uri", "'self'")
	return p
}

// Set replaces the sources of directive.
func (p *CSPPolicy) Set(directive string, sources ...string) {
	if _, ok := p.directives[directive]; !ok {
		p.order = append(p.order, directive)
	}
	p.directives[directive] = append([]string(nil), sources...)
}

// Add appends sources to directive, creating it if needed.
func (p *CSPPolicy) Add(directive string, sources ...string) {
	p.Set(directive, append(p.directives[directive], sources...)...)
}

// Get returns the sources of directive.
func (p *CSPPolicy) Get(directive string) []string {
	return append([]string(nil), p.directives[directive]...)
}

// Remove deletes directive.
func (p *CSPPolicy) Remove(directive string) {
	if _, ok := p.directives[directive]; !ok {
		return
	}
	delete(p.directives, directive)
	for i, d := range p.order {
		if d == directive {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// String returns the header value, or "" for an empty policy.
func (p *CSPPolicy) String() string {
	parts := make([]string, 0, len(p.order))
	for _, d := range p.order {
		if sources := p.directives[d]; len(sources) > 0 {
			parts = append(parts, d+" "+strings.Join(sources, " "))
		} else {
			parts = append(parts, d)
		}
	}
	return strings.Join(parts, "; ")
}

func newNonce(r io.Reader) (string, error) {
	b := make([]byte, nonceSize)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", errors.New("E110").WithDetail("nonce generation failed").Wrap(err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
