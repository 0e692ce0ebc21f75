package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/vango-dev/splitrender"
	"github.com/vango-dev/splitrender/internal/config"
	"github.com/vango-dev/splitrender/internal/demo"
	"github.com/vango-dev/splitrender/internal/errors"
	"github.com/vango-dev/splitrender/pkg/artifact"
	"github.com/vango-dev/splitrender/pkg/buildinfo"
	"github.com/vango-dev/splitrender/pkg/middleware"
)

type serveFlags struct {
	config  string
	addr    string
	build   string
	latency time.Duration
}

func serveCmd() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo application",
		Long: `Serve the demo blog with server-side rendering.

The build location must hold build-info.json (see 'splitrender keygen')
and manifest.json; the server refuses to start without them.

Examples:
  splitrender serve
  splitrender serve --config deploy/splitrender.yaml
  splitrender serve --build s3://assets/web/v42 --addr :8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.config, "config", "c", "", "Config file (default: splitrender.yaml in the working directory)")
	cmd.Flags().StringVarP(&flags.addr, "addr", "a", "", "Listen address (overrides config)")
	cmd.Flags().StringVarP(&flags.build, "build", "b", "", "Build location (overrides config)")
	cmd.Flags().DurationVar(&flags.latency, "split-latency", 50*time.Millisecond, "Simulated load time of every demo split")

	return cmd
}

// loadConfig reads path, or the working directory's config file. A missing
// default config file yields the defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	cfg, err := config.Load(".")
	if errors.Is(err, errors.New("E141")) {
		return config.New(), nil
	}
	return cfg, err
}

func runServe(ctx context.Context, flags serveFlags) error {
	cfg, err := loadConfig(flags.config)
	if err != nil {
		return err
	}
	if flags.addr != "" {
		cfg.Addr = flags.addr
	}
	if flags.build != "" {
		cfg.Build.Location = flags.build
	}
	logger := cfg.NewLogger(os.Stderr)

	store, err := artifact.Open(ctx, cfg.BuildLocation())
	if err != nil {
		return err
	}
	build, err := splitrender.LoadBuild(ctx, buildinfo.NewProvider(store))
	if err != nil {
		logger.Error("refusing to serve", "build", store.Location(), "error", err)
		return err
	}
	build.PublicPath = cfg.Build.PublicPath
	build.Settings = cfg.Settings
	build.Private = cfg.Private

	router, err := newRouter(cfg, build, demo.New(demo.Options{Latency: flags.latency}), logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving", "addr", cfg.Addr, "build", store.Location(), "built", build.Info.Timestamp)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newRouter wires the document handler, the metrics endpoint and the
// static files behind the chi middleware stack.
func newRouter(cfg *config.Config, build splitrender.Build, app *demo.App, logger *slog.Logger) (http.Handler, error) {
	opts := []splitrender.Option{
		splitrender.WithApplication(app.Application()),
		splitrender.WithModuleCache(app.Cache()),
		splitrender.WithBeforeRender(app.BeforeRender),
		splitrender.WithMaxSSRRounds(cfg.MaxRounds()),
		splitrender.WithRoundWait(cfg.RoundWait()),
		splitrender.WithLogger(logger),
		splitrender.WithTracer(otel.Tracer("splitrender")),
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(cfg.RequestTimeout()))
	r.Use(middleware.OpenTelemetry())

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metricsOpts := []middleware.MetricsOption{middleware.WithRegistry(reg)}
		if cfg.Metrics.Namespace != "" {
			metricsOpts = append(metricsOpts, middleware.WithNamespace(cfg.Metrics.Namespace))
		}
		metrics := middleware.NewMetrics(metricsOpts...)
		opts = append(opts, splitrender.WithObserver(metrics))

		r.Use(metrics.Handler)
		r.Method(http.MethodGet, cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	if dir := cfg.StaticDir(); dir != "" && strings.HasPrefix(build.PublicPath, "/") {
		prefix := strings.TrimSuffix(build.PublicPath, "/")
		r.Handle(prefix+"/*", http.StripPrefix(prefix, http.FileServer(http.Dir(dir))))
	}

	h, err := splitrender.New(build, opts...)
	if err != nil {
		return nil, err
	}
	r.Handle("/*", h)
	return r, nil
}
