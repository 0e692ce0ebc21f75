// Package middleware provides observability for the SSR handler.
//
// # Prometheus Metrics
//
// Metrics records HTTP request metrics and, as an ssr.Observer, render loop
// metrics:
//   - splitrender_http_requests_total: requests by method and status code
//   - splitrender_http_request_duration_seconds: request duration histogram
//   - splitrender_http_requests_in_flight: requests being served
//   - splitrender_renders_total: finished render loops by terminal state
//   - splitrender_render_rounds: rounds per render loop
//   - splitrender_render_duration_seconds: render loop duration histogram
//   - splitrender_render_pending_splits: unresolved splits after each round
//
//	m := middleware.NewMetrics(middleware.WithRegistry(reg))
//	h, _ := splitrender.New(build, splitrender.WithObserver(m))
//	http.Handle("/", m.Handler(h))
//
// # OpenTelemetry
//
// OpenTelemetry starts a server span per request and stores it in the
// request context, so the render loop span becomes its child:
//
//	http.Handle("/", middleware.OpenTelemetry()(h))
//
// The tracer uses the global OpenTelemetry tracer provider unless
// WithTracer is given.
package middleware
