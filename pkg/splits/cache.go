// Package splits holds the process-wide cache of code-split modules.
//
// A split is defined once at startup with an id, the build chunk that carries
// its assets, and a loader. The first request that renders the split triggers
// the loader; every later request reuses the loaded module. The cache is
// append-only by id: definitions and loaded modules are never replaced, and
// concurrent loads of the same id share one loader call.
package splits

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/sync/singleflight"

	"github.com/vango-dev/splitrender/internal/errors"
)

// DefaultLoadTimeout bounds a single loader call.
const DefaultLoadTimeout = 30 * time.Second

// ErrDuplicate is returned when an id is defined twice.
var ErrDuplicate = errors.New("E132")

// ErrUnknown is returned for ids that were never defined.
var ErrUnknown = errors.New("E131")

// Loader produces the module behind a split. It runs at most once per
// successful load and may block; ctx carries the cache's load timeout.
type Loader[M any] func(ctx context.Context) (M, error)

// Result is the outcome of one load.
type Result[M any] struct {
	ID     string
	Module M
	Err    error
}

type definition[M any] struct {
	chunk string
	load  Loader[M]
}

// Cache is the process-scoped module cache. The zero value is not usable;
// create one with New.
type Cache[M any] struct {
	defs   sync.Map // id -> *definition[M]
	loaded sync.Map // id -> M
	group  singleflight.Group

	loadTimeout time.Duration
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	loadTimeout time.Duration
}

// WithLoadTimeout bounds each loader call. Zero disables the bound.
func WithLoadTimeout(d time.Duration) Option {
	return func(o *options) {
		o.loadTimeout = d
	}
}

// New creates an empty cache.
func New[M any](opts ...Option) *Cache[M] {
	o := options{loadTimeout: DefaultLoadTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[M]{loadTimeout: o.loadTimeout}
}

// ValidID reports whether id can name a split. Ids are embedded in HTML
// comment markers, so they must be non-empty printable text without "--",
// "<" or ">".
func ValidID(id string) bool {
	if id == "" || strings.Contains(id, "--") {
		return false
	}
	for _, r := range id {
		if r == '<' || r == '>' || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// Define registers a split. chunk names the build chunk whose stylesheets
// belong to the split; it may equal id.
func (c *Cache[M]) Define(id, chunk string, load Loader[M]) error {
	if load == nil {
		return fmt.Errorf("splits: define %q: loader is required", id)
	}
	if !ValidID(id) {
		return fmt.Errorf("splits: define %q: invalid id", id)
	}
	if _, exists := c.defs.LoadOrStore(id, &definition[M]{chunk: chunk, load: load}); exists {
		return errors.New("E132").WithDetailf("split %q", id)
	}
	return nil
}

// MustDefine is like Define but panics on error. Use it in package init.
func (c *Cache[M]) MustDefine(id, chunk string, load Loader[M]) {
	if err := c.Define(id, chunk, load); err != nil {
		panic(err)
	}
}

// Provide defines a split whose module is already available.
func (c *Cache[M]) Provide(id, chunk string, module M) error {
	if err := c.Define(id, chunk, func(context.Context) (M, error) { return module, nil }); err != nil {
		return err
	}
	c.loaded.LoadOrStore(id, module)
	return nil
}

// Chunk returns the chunk name of a defined split.
func (c *Cache[M]) Chunk(id string) (string, bool) {
	d, ok := c.defs.Load(id)
	if !ok {
		return "", false
	}
	return d.(*definition[M]).chunk, true
}

// Loaded returns the module for id if it finished loading.
func (c *Cache[M]) Loaded(id string) (M, bool) {
	m, ok := c.loaded.Load(id)
	if !ok {
		var zero M
		return zero, false
	}
	return m.(M), true
}

// Load starts loading id, or joins a load already in flight, and returns a
// channel that receives exactly one Result. Loaded modules are returned
// without calling the loader again.
func (c *Cache[M]) Load(id string) <-chan Result[M] {
	out := make(chan Result[M], 1)

	if m, ok := c.Loaded(id); ok {
		out <- Result[M]{ID: id, Module: m}
		return out
	}

	d, ok := c.defs.Load(id)
	if !ok {
		out <- Result[M]{ID: id, Err: errors.New("E131").WithDetailf("split %q", id)}
		return out
	}
	def := d.(*definition[M])

	ch := c.group.DoChan(id, func() (any, error) {
		if m, ok := c.Loaded(id); ok {
			return m, nil
		}

		ctx := context.Background()
		if c.loadTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.loadTimeout)
			defer cancel()
		}

		m, err := def.load(ctx)
		if err != nil {
			return nil, fmt.Errorf("splits: load %q: %w", id, err)
		}
		actual, _ := c.loaded.LoadOrStore(id, m)
		return actual, nil
	})

	go func() {
		res := <-ch
		if res.Err != nil {
			out <- Result[M]{ID: id, Err: res.Err}
			return
		}
		out <- Result[M]{ID: id, Module: res.Val.(M)}
	}()
	return out
}

// Preload loads the given splits, or every defined split when ids is empty,
// and waits for them. It returns the first load error.
func (c *Cache[M]) Preload(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		c.defs.Range(func(key, _ any) bool {
			ids = append(ids, key.(string))
			return true
		})
	}

	pending := make([]<-chan Result[M], 0, len(ids))
	for _, id := range ids {
		pending = append(pending, c.Load(id))
	}

	var firstErr error
	for _, ch := range pending {
		select {
		case res := <-ch:
			if res.Err != nil && firstErr == nil {
				firstErr = res.Err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return firstErr
}

// IDs returns the ids of every defined split, in no particular order.
func (c *Cache[M]) IDs() []string {
	var ids []string
	c.defs.Range(func(key, _ any) bool {
		ids = append(ids, key.(string))
		return true
	})
	return ids
}
