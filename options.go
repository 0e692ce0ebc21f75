package splitrender

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/splitrender/pkg/splits"
	"github.com/vango-dev/splitrender/pkg/ssr"
)

// ErrorHandler writes the response for a request that failed internally.
// It is called at most once per request.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Option configures a Handler.
type Option func(*options)

type options struct {
	app          ssr.Renderable
	beforeRender BeforeRender
	maxRounds    int
	roundWait    time.Duration
	cspHook      func(*http.Request, *CSPPolicy)
	logger       *slog.Logger
	errorHandler ErrorHandler
	observer     ssr.Observer
	cache        *splits.Cache[ssr.Renderable]
	entryChunks  []string
	rootID       string
	lang         string
	tracer       trace.Tracer
	rand         io.Reader
}

func defaultOptions() options {
	return options{
		maxRounds: ssr.DefaultMaxRounds,
		roundWait: ssr.DefaultRoundWait,
	}
}

// WithApplication sets the root component tree.
func WithApplication(app ssr.Renderable) Option {
	return func(o *options) {
		o.app = app
	}
}

// WithBeforeRender sets the hook that prepares each request's injection.
func WithBeforeRender(fn BeforeRender) Option {
	return func(o *options) {
		o.beforeRender = fn
	}
}

// WithMaxSSRRounds sets the render budget. 0 disables server rendering and
// sends the empty document scaffold. Default: 10.
func WithMaxSSRRounds(n int) Option {
	return func(o *options) {
		if n < 0 {
			n = 0
		}
		o.maxRounds = n
	}
}

// WithRoundWait bounds the wait for split loads between rounds.
func WithRoundWait(d time.Duration) Option {
	return func(o *options) {
		o.roundWait = d
	}
}

// WithCSPHook lets the application adjust each response's CSP.
func WithCSPHook(fn func(*http.Request, *CSPPolicy)) Option {
	return func(o *options) {
		o.cspHook = fn
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithErrorHandler sets the handler for internal failures.
// Default: log the error and reply 500.
func WithErrorHandler(fn ErrorHandler) Option {
	return func(o *options) {
		o.errorHandler = fn
	}
}

// WithObserver receives render loop events, e.g. *middleware.Metrics.
func WithObserver(obs ssr.Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithModuleCache sets the cache split modules are resolved from.
func WithModuleCache(cache *splits.Cache[ssr.Renderable]) Option {
	return func(o *options) {
		o.cache = cache
	}
}

// WithEntryChunks sets the chunks every document loads.
// Default: polyfill, runtime, main.
func WithEntryChunks(chunks ...string) Option {
	return func(o *options) {
		o.entryChunks = chunks
	}
}

// WithRootID sets the id of the element the markup is rendered into.
func WithRootID(id string) Option {
	return func(o *options) {
		o.rootID = id
	}
}

// WithLang sets the document language. Default: "en".
func WithLang(lang string) Option {
	return func(o *options) {
		o.lang = lang
	}
}

// WithTracer sets the tracer for render and seal spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithRandom sets the random source for IVs and CSP nonces. It is shared
// by concurrent requests and must be safe for concurrent use.
// Default: crypto/rand.
func WithRandom(r io.Reader) Option {
	return func(o *options) {
		o.rand = r
	}
}
