package ssr

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/splitrender/internal/errors"
	"github.com/vango-dev/splitrender/pkg/splits"
)

// DefaultMaxRounds is the round budget used by the HTTP handler.
const DefaultMaxRounds = 10

// DefaultRoundWait bounds how long the loop waits for loads between rounds.
const DefaultRoundWait = 200 * time.Millisecond

// State is the render loop state.
type State uint8

const (
	StateRendering State = iota
	StateStable
	StateBudgetExhausted
	StateRoundLimitZero
	StateNoProgress
)

// String returns the string representation of the State.
func (s State) String() string {
	switch s {
	case StateRendering:
		return "rendering"
	case StateStable:
		return "stable"
	case StateBudgetExhausted:
		return "budget_exhausted"
	case StateRoundLimitZero:
		return "round_limit_zero"
	case StateNoProgress:
		return "no_progress"
	default:
		return "unknown"
	}
}

// Result is the output of the final render round.
type Result struct {
	Markup       string
	ChunkNames   []string
	Splits       map[string]ResolvedSplit
	Head         Head
	StatusCode   int
	Redirect     string
	RedirectCode int

	State  State
	Rounds int
}

// Observer receives render loop events. Implementations must be safe for
// concurrent use across requests.
type Observer interface {
	RoundCompleted(round, pending int)
	RenderFinished(state State, rounds int, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) RoundCompleted(int, int)                  {}
func (nopObserver) RenderFinished(State, int, time.Duration) {}

// Config configures a Loop.
type Config struct {
	// Cache is the process-wide module cache splits are resolved from.
	Cache *splits.Cache[Renderable]

	// MaxRounds is the render budget. 0 disables server rendering entirely.
	MaxRounds int

	// RoundWait bounds the wait for in-flight loads between rounds.
	// Default: DefaultRoundWait.
	RoundWait time.Duration

	// Logger receives loop diagnostics. If nil, slog.Default() is used.
	Logger *slog.Logger

	// Observer receives per-round and terminal events.
	Observer Observer

	// Tracer creates the render span. If nil, the global provider is used.
	Tracer trace.Tracer
}

// Loop is the bounded multi-round renderer. A Loop is stateless between
// runs and safe for concurrent use.
type Loop struct {
	config Config
}

// NewLoop creates a Loop.
func NewLoop(config Config) *Loop {
	if config.Cache == nil {
		config.Cache = splits.New[Renderable]()
	}
	if config.RoundWait <= 0 {
		config.RoundWait = DefaultRoundWait
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Observer == nil {
		config.Observer = nopObserver{}
	}
	if config.Tracer == nil {
		config.Tracer = otel.Tracer("splitrender/ssr")
	}
	return &Loop{config: config}
}

// Run renders app until it is stable or the budget runs out.
//
// A canceled ctx stops the loop before the next round or during a wait;
// Run then returns ctx's error and no result. Application errors and panics
// abort the run with ErrRenderThrew.
func (l *Loop) Run(ctx context.Context, app Renderable, rc *RenderContext) (*Result, error) {
	start := time.Now()
	ctx, span := l.config.Tracer.Start(ctx, "ssr.render",
		trace.WithAttributes(attribute.Int("ssr.max_rounds", l.config.MaxRounds)))
	defer span.End()

	reg := newRegistry(l.config.Cache, rc)
	defer reg.close()
	rc.ctx = ctx
	rc.splits = reg

	if l.config.MaxRounds <= 0 || app == nil {
		res := &Result{State: StateRoundLimitZero, Splits: map[string]ResolvedSplit{}}
		l.finish(span, res, start)
		return res, nil
	}

	var (
		rounds int
		markup string
		state  State
	)
	for state == StateRendering {
		if err := ctx.Err(); err != nil {
			return nil, l.abort(span, err)
		}

		discovered, ready := reg.progress()
		rc.resetRound()

		out, err := renderRound(app, rc)
		rounds++
		if err != nil {
			return nil, l.abort(span, errors.New("E130").WithDetailf("round %d", rounds).Wrap(err))
		}
		markup = out

		nowDiscovered, nowReady := reg.progress()
		pending := nowDiscovered - nowReady
		l.config.Observer.RoundCompleted(rounds, pending)
		span.AddEvent("round", trace.WithAttributes(
			attribute.Int("ssr.round", rounds),
			attribute.Int("ssr.splits", nowDiscovered),
			attribute.Int("ssr.pending", pending),
		))
		l.config.Logger.Debug("ssr round complete", "round", rounds, "splits", nowDiscovered, "pending", pending)

		switch {
		case reg.IsStable():
			state = StateStable
		case rounds >= l.config.MaxRounds:
			state = StateBudgetExhausted
		case nowDiscovered == discovered && nowReady == ready:
			state = StateNoProgress
		default:
			if err := reg.Wait(ctx, l.config.RoundWait); err != nil {
				return nil, l.abort(span, err)
			}
			for _, loadErr := range reg.takeFailures() {
				l.config.Logger.Warn("split load failed, deferring to client", "error", loadErr)
			}
		}
	}

	if state != StateStable {
		l.config.Logger.Info("ssr finished with unresolved splits",
			"state", state.String(), "rounds", rounds, "pending", reg.Pending())
	}

	head := rc.CollectHead()
	if hc, ok := app.(HeadCollector); ok {
		head = head.Merge(hc.CollectHead())
	}

	res := &Result{
		Markup:       markup,
		ChunkNames:   reg.ChunkNames(),
		Splits:       reg.Snapshot(),
		Head:         head,
		StatusCode:   rc.status,
		Redirect:     rc.redirect,
		RedirectCode: rc.redirectCode,
		State:        state,
		Rounds:       rounds,
	}
	l.finish(span, res, start)
	return res, nil
}

func (l *Loop) finish(span trace.Span, res *Result, start time.Time) {
	span.SetAttributes(
		attribute.String("ssr.state", res.State.String()),
		attribute.Int("ssr.rounds", res.Rounds),
	)
	span.SetStatus(codes.Ok, "")
	l.config.Observer.RenderFinished(res.State, res.Rounds, time.Since(start))
}

func (l *Loop) abort(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// renderRound invokes the application once, converting panics to errors.
func renderRound(app Renderable, rc *RenderContext) (markup string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return app.Render(rc)
}
