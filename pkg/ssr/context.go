package ssr

import (
	"context"
	"net/http"

	"github.com/vango-dev/splitrender/internal/errors"
)

// ErrRenderThrew wraps errors and panics raised by the application while
// rendering a round.
var ErrRenderThrew = errors.New("E130")

// Renderable produces markup for a tree.
type Renderable interface {
	Render(rc *RenderContext) (string, error)
}

// RenderFunc adapts a function to Renderable.
type RenderFunc func(rc *RenderContext) (string, error)

// Render implements Renderable.
func (f RenderFunc) Render(rc *RenderContext) (string, error) {
	return f(rc)
}

// StateSource exposes a serializable snapshot of application state for the
// client to start from.
type StateSource interface {
	Snapshot() (any, error)
}

// HeadCollector produces head-tag metadata.
type HeadCollector interface {
	CollectHead() Head
}

// RenderContext is the per-request state passed through every render round.
// It is owned by a single Loop run and must not be shared across requests.
type RenderContext struct {
	ctx     context.Context
	request *http.Request
	store   StateSource
	splits  *Registry

	// Per-round state; reset before each round so the final round wins.
	status       int
	redirect     string
	redirectCode int
	head         Head
}

// NewRenderContext creates the context for one request. store may be nil.
func NewRenderContext(r *http.Request, store StateSource) *RenderContext {
	ctx := context.Background()
	if r != nil {
		ctx = r.Context()
	}
	return &RenderContext{
		ctx:     ctx,
		request: r,
		store:   store,
	}
}

// Context returns the request context.
func (rc *RenderContext) Context() context.Context { return rc.ctx }

// Request returns the inbound request, if any.
func (rc *RenderContext) Request() *http.Request { return rc.request }

// Store returns the request's state source, if any.
func (rc *RenderContext) Store() StateSource { return rc.store }

// Split registers a code-split placeholder and returns its current state.
// Ready splits carry frozen markup; pending ones should render a fallback.
func (rc *RenderContext) Split(id string) (ResolvedSplit, error) {
	if rc.splits == nil {
		return ResolvedSplit{}, errors.New("E131").WithDetailf("split %q rendered outside a render loop", id)
	}
	return rc.splits.Register(id)
}

// SetStatus overrides the response status code.
func (rc *RenderContext) SetStatus(code int) { rc.status = code }

// Status returns the status override, or 0.
func (rc *RenderContext) Status() int { return rc.status }

// Redirect asks the handler to redirect instead of sending a document.
func (rc *RenderContext) Redirect(url string, code int) {
	rc.redirect = url
	rc.redirectCode = code
}

// SetTitle sets the document title.
func (rc *RenderContext) SetTitle(title string) { rc.head.Title = title }

// AddMeta appends a meta tag to the document head.
func (rc *RenderContext) AddMeta(m MetaTag) { rc.head.Meta = append(rc.head.Meta, m) }

// AddLink appends a link tag to the document head.
func (rc *RenderContext) AddLink(l LinkTag) { rc.head.Links = append(rc.head.Links, l) }

// CollectHead implements HeadCollector with the tags set during the
// current round.
func (rc *RenderContext) CollectHead() Head { return rc.head.clone() }

// RequestedChunks returns the chunk names of every split discovered so far,
// in first-discovery order.
func (rc *RenderContext) RequestedChunks() []string {
	if rc.splits == nil {
		return nil
	}
	return rc.splits.RequestedChunks()
}

// Splits returns a snapshot of the split registry.
func (rc *RenderContext) Splits() map[string]ResolvedSplit {
	if rc.splits == nil {
		return map[string]ResolvedSplit{}
	}
	return rc.splits.Snapshot()
}

func (rc *RenderContext) resetRound() {
	rc.status = 0
	rc.redirect = ""
	rc.redirectCode = 0
	rc.head = Head{}
}
