package ssr

import (
	"context"
	"fmt"
	"time"

	"github.com/vango-dev/splitrender/internal/errors"
	"github.com/vango-dev/splitrender/pkg/splits"
)

// ResolvedSplit is the state of one code split within a request.
// Once Ready, Markup is frozen for the rest of the request.
type ResolvedSplit struct {
	ID     string `json:"id"`
	Markup string `json:"markup"`
	Ready  bool   `json:"ready"`
	Failed bool   `json:"failed,omitempty"`
}

// Registry tracks the code splits of one request across render rounds.
//
// Register is called by the render primitive; the other methods are called
// by the Loop between rounds. All of them run on the loop goroutine. Loads
// complete on other goroutines and are handed over through a channel, so
// the registry itself needs no locking.
type Registry struct {
	cache *splits.Cache[Renderable]
	rc    *RenderContext

	order     []string
	chunks    []string
	seenChunk map[string]bool
	entries   map[string]*ResolvedSplit
	rendering map[string]bool
	unready   int

	loading  map[string]bool
	done     chan splits.Result[Renderable]
	closed   chan struct{}
	failures []error
}

func newRegistry(cache *splits.Cache[Renderable], rc *RenderContext) *Registry {
	return &Registry{
		cache:     cache,
		rc:        rc,
		seenChunk: make(map[string]bool),
		entries:   make(map[string]*ResolvedSplit),
		rendering: make(map[string]bool),
		loading:   make(map[string]bool),
		done:      make(chan splits.Result[Renderable]),
		closed:    make(chan struct{}),
	}
}

// Register records a split placeholder encountered during rendering.
//
// The first registration of an id fixes its discovery position. If the
// module is already loaded the split is rendered with the current context
// and its markup frozen; otherwise a load is scheduled and a pending entry
// is returned. Ready splits are returned as-is and never re-rendered.
// A split whose own render hits a pending nested split stays pending, so
// frozen markup never contains a fallback.
func (r *Registry) Register(id string) (ResolvedSplit, error) {
	entry, ok := r.entries[id]
	if !ok {
		chunk, defined := r.cache.Chunk(id)
		if !defined {
			return ResolvedSplit{}, errors.New("E131").WithDetailf("split %q", id)
		}
		entry = &ResolvedSplit{ID: id}
		r.entries[id] = entry
		r.order = append(r.order, id)
		if !r.seenChunk[chunk] {
			r.seenChunk[chunk] = true
			r.chunks = append(r.chunks, chunk)
		}
	}

	if entry.Ready {
		return *entry, nil
	}
	if entry.Failed || r.rendering[id] {
		r.unready++
		return *entry, nil
	}

	module, loaded := r.cache.Loaded(id)
	if !loaded {
		r.schedule(id)
		r.unready++
		return *entry, nil
	}

	before := r.unready
	r.rendering[id] = true
	markup, err := module.Render(r.rc)
	delete(r.rendering, id)
	if err != nil {
		return ResolvedSplit{}, fmt.Errorf("split %q: %w", id, err)
	}
	if r.unready > before {
		r.unready++
		return *entry, nil
	}

	entry.Markup = markup
	entry.Ready = true
	return *entry, nil
}

// schedule starts loading id unless a load is already in flight.
func (r *Registry) schedule(id string) {
	if r.loading[id] {
		return
	}
	r.loading[id] = true

	ch := r.cache.Load(id)
	go func() {
		select {
		case res := <-ch:
			select {
			case r.done <- res:
			case <-r.closed:
			}
		case <-r.closed:
		}
	}()
}

// Wait blocks until every in-flight load has completed, max has elapsed,
// or ctx is done. It returns ctx's error in the last case.
func (r *Registry) Wait(ctx context.Context, max time.Duration) error {
	if len(r.loading) == 0 {
		return nil
	}

	timer := time.NewTimer(max)
	defer timer.Stop()

	for len(r.loading) > 0 {
		select {
		case res := <-r.done:
			r.settle(res)
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (r *Registry) settle(res splits.Result[Renderable]) {
	delete(r.loading, res.ID)
	if res.Err != nil {
		if entry, ok := r.entries[res.ID]; ok {
			entry.Failed = true
		}
		r.failures = append(r.failures, res.Err)
	}
}

// takeFailures returns and clears the load errors seen since the last call.
func (r *Registry) takeFailures() []error {
	f := r.failures
	r.failures = nil
	return f
}

// IsStable reports whether every registered split is ready.
func (r *Registry) IsStable() bool {
	for _, e := range r.entries {
		if !e.Ready {
			return false
		}
	}
	return true
}

// Snapshot returns a copy of every registered split.
func (r *Registry) Snapshot() map[string]ResolvedSplit {
	out := make(map[string]ResolvedSplit, len(r.entries))
	for id, e := range r.entries {
		out[id] = *e
	}
	return out
}

// RequestedChunks returns the chunk of every registered split in
// first-discovery order, without duplicates.
func (r *Registry) RequestedChunks() []string {
	return append([]string(nil), r.chunks...)
}

// ChunkNames returns the chunks of ready splits in first-discovery order,
// without duplicates.
func (r *Registry) ChunkNames() []string {
	seen := make(map[string]bool)
	var out []string
	for _, id := range r.order {
		if !r.entries[id].Ready {
			continue
		}
		chunk, _ := r.cache.Chunk(id)
		if seen[chunk] {
			continue
		}
		seen[chunk] = true
		out = append(out, chunk)
	}
	return out
}

// Pending returns the ids of splits that are not ready, in discovery order.
func (r *Registry) Pending() []string {
	var out []string
	for _, id := range r.order {
		if !r.entries[id].Ready {
			out = append(out, id)
		}
	}
	return out
}

// progress returns the number of discovered and ready splits.
func (r *Registry) progress() (discovered, ready int) {
	for _, e := range r.entries {
		if e.Ready {
			ready++
		}
	}
	return len(r.order), ready
}

// close releases the goroutines forwarding loads that are still in flight.
// The loads themselves continue and land in the process cache.
func (r *Registry) close() {
	close(r.closed)
}
