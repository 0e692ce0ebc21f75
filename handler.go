package splitrender

import (
	"context"
	"crypto/rand"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/splitrender/pkg/assets"
	"github.com/vango-dev/splitrender/pkg/document"
	"github.com/vango-dev/splitrender/pkg/envelope"
	"github.com/vango-dev/splitrender/pkg/ssr"
)

// Handler serves server-rendered documents. It is safe for concurrent use;
// requests share only the build and the module cache.
type Handler struct {
	build     Build
	settings  SanitizedConfig
	opts      options
	loop      *ssr.Loop
	sealer    envelope.Sealer
	assembler *document.Assembler
}

// New creates a Handler for build.
func New(build Build, opts ...Option) (*Handler, error) {
	if err := validateBuild(build); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer("splitrender")
	}
	if o.rand == nil {
		o.rand = rand.Reader
	}
	if o.errorHandler == nil {
		o.errorHandler = defaultErrorHandler(o.logger)
	}
	if build.Manifest == nil {
		build.Manifest = assets.NewManifest()
	}

	return &Handler{
		build:    build,
		settings: sanitize(build.Settings, build.Private),
		opts:     o,
		loop: ssr.NewLoop(ssr.Config{
			Cache:     o.cache,
			MaxRounds: o.maxRounds,
			RoundWait: o.roundWait,
			Logger:    o.logger,
			Observer:  o.observer,
			Tracer:    o.tracer,
		}),
		sealer: envelope.Sealer{Rand: o.rand},
		assembler: document.New(document.Config{
			Resolver:    assets.NewResolver(build.Manifest, build.PublicPath),
			EntryChunks: o.entryChunks,
			RootID:      o.rootID,
			Logger:      o.logger,
		}),
	}, nil
}

// Config returns the sanitized configuration handed to BeforeRender.
func (h *Handler) Config() SanitizedConfig {
	out := make(SanitizedConfig, len(h.settings))
	for k, v := range h.settings {
		out[k] = v
	}
	return out
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.serve(w, r); err != nil {
		if r.Context().Err() != nil {
			h.opts.logger.Debug("request canceled during render", "path", r.URL.Path, "error", err)
			return
		}
		h.opts.errorHandler(w, r, err)
	}
}

// serve writes the document or returns an error before writing anything.
func (h *Handler) serve(w http.ResponseWriter, r *http.Request) error {
	inj := Injection{}
	if h.opts.beforeRender != nil {
		var err error
		if inj, err = h.opts.beforeRender(r, h.Config()); err != nil {
			return err
		}
	}
	if inj.Config == nil {
		inj.Config = h.Config()
	}

	payload := Payload{Config: inj.Config}
	if inj.Store != nil {
		state, err := inj.Store.Snapshot()
		if err != nil {
			return err
		}
		payload.State = state
	}

	nonce, err := newNonce(h.opts.rand)
	if err != nil {
		return err
	}
	csp := NewCSPPolicy(nonce)
	if h.opts.cspHook != nil {
		h.opts.cspHook(r, csp)
	}

	var (
		res *ssr.Result
		env envelope.Envelope
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		rc := ssr.NewRenderContext(r, inj.Store)
		var err error
		res, err = h.loop.Run(ctx, h.opts.app, rc)
		return err
	})
	g.Go(func() error {
		var err error
		env, err = h.seal(ctx, payload)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if res.Redirect != "" {
		code := res.RedirectCode
		if code == 0 {
			code = http.StatusFound
		}
		http.Redirect(w, r, res.Redirect, code)
		return nil
	}

	doc := h.assembler.Assemble(document.Page{
		Result:       res,
		Envelope:     env.String(),
		ExtraScripts: inj.ExtraScripts,
		Nonce:        csp.Nonce,
		Lang:         h.opts.lang,
	})

	status := http.StatusOK
	if res.StatusCode != 0 {
		status = res.StatusCode
	}
	if policy := csp.String(); policy != "" {
		w.Header().Set("Content-Security-Policy", policy)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(doc)); err != nil {
		h.opts.logger.Debug("write failed", "path", r.URL.Path, "error", err)
	}

	h.opts.logger.Debug("document served",
		"path", r.URL.Path, "status", status, "state", res.State.String(), "rounds", res.Rounds)
	return nil
}

func (h *Handler) seal(ctx context.Context, payload Payload) (envelope.Envelope, error) {
	_, span := h.opts.tracer.Start(ctx, "envelope.seal")
	defer span.End()

	env, err := h.sealer.Seal(h.build.Info.Key[:], payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return envelope.Envelope{}, err
	}
	return env, nil
}

func defaultErrorHandler(logger *slog.Logger) ErrorHandler {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("ssr failed", "path", r.URL.Path, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
