package generate

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/stellarlinkco/moodclaw/internal/metrics"
)

// GuardOptions configures a Guard. A RatePerMinute of 0 disables the limiter.
type GuardOptions struct {
	Timeout         time.Duration
	RatePerMinute   int
	BreakerFailures int
	BreakerCooldown time.Duration
	Metrics         *metrics.Metrics
	Logger          *zap.Logger
}

// Guard bounds every call with a timeout, a process-wide rate limit and a
// circuit breaker, and converts failures to *Error.
type Guard struct {
	next    Generator
	timeout time.Duration
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewGuard(next Generator, opts GuardOptions) *Guard {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.BreakerFailures <= 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	logger := opts.Logger.Named("generate")

	g := &Guard{
		next:    next,
		timeout: opts.Timeout,
		metrics: opts.Metrics,
		logger:  logger,
	}
	if opts.RatePerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RatePerMinute)), opts.RatePerMinute)
	}

	failures := uint32(opts.BreakerFailures)
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "generation",
		MaxRequests: 1,
		Timeout:     opts.BreakerCooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return g
}

func (g *Guard) Generate(ctx context.Context, prompt string) (string, error) {
	if g.limiter != nil && !g.limiter.Allow() {
		err := &Error{Kind: KindRateLimited, Err: fmt.Errorf("more than %v calls per second", g.limiter.Limit())}
		g.metrics.ObserveGeneration(0, string(err.Kind))
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.next.Generate(ctx, prompt)
	})
	elapsed := time.Since(start)

	if err != nil {
		ge := AsError(err)
		if ctx.Err() == context.DeadlineExceeded {
			ge = &Error{Kind: KindTimeout, Err: err}
		}
		g.metrics.ObserveGeneration(elapsed, string(ge.Kind))
		g.logger.Warn("generation failed",
			zap.String("kind", string(ge.Kind)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return "", ge
	}
	g.metrics.ObserveGeneration(elapsed, "")
	return out.(string), nil
}
