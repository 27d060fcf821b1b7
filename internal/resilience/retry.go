package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"eino_dealer_bot/pkg"
	"eino_dealer_bot/src/logger"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxRetries     int           // retries after the first attempt
	InitialDelay   time.Duration // delay before the first retry
	MaxDelay       time.Duration // cap on any single delay
	Multiplier     float64       // growth factor per retry
	AttemptTimeout time.Duration // per-attempt deadline, zero disables it
}

// ErrAttemptTimeout is returned when an attempt loses the race against its
// timeout. The remote side may still complete, so the outcome is unknown.
var ErrAttemptTimeout = errors.New("attempt timed out")

// maxJitter bounds the random factor added to each delay
const maxJitter = 0.3

// Retrier runs operations with exponential backoff and jitter
type Retrier struct {
	cfg      RetryConfig
	jitter   func() float64
	newTimer func() backoff.Timer
}

// RetrierOption customizes a Retrier
type RetrierOption func(*Retrier)

// WithJitter replaces the jitter source, it must return values in [0, 0.3)
func WithJitter(jitter func() float64) RetrierOption {
	return func(r *Retrier) { r.jitter = jitter }
}

// WithTimer replaces the backoff timer, tests use it to skip the sleeps
func WithTimer(newTimer func() backoff.Timer) RetrierOption {
	return func(r *Retrier) { r.newTimer = newTimer }
}

// NewRetrier builds a retrier for cfg
func NewRetrier(cfg RetryConfig, opts ...RetrierOption) *Retrier {
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2
	}
	r := &Retrier{
		cfg:    cfg,
		jitter: func() float64 { return rand.Float64() * maxJitter },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Delay returns the wait before retry number n (1-based):
// min(initial * multiplier^(n-1) * (1 + jitter), max)
func (r *Retrier) Delay(n int) time.Duration {
	d := float64(r.cfg.InitialDelay) * math.Pow(r.cfg.Multiplier, float64(n-1)) * (1 + r.jitter())
	if r.cfg.MaxDelay > 0 && d > float64(r.cfg.MaxDelay) {
		return r.cfg.MaxDelay
	}
	return time.Duration(d)
}

// jitterBackOff adapts Retrier.Delay to backoff.BackOff
type jitterBackOff struct {
	r       *Retrier
	retries int
}

func (b *jitterBackOff) NextBackOff() time.Duration {
	b.retries++
	return b.r.Delay(b.retries)
}

func (b *jitterBackOff) Reset() {
	b.retries = 0
}

// Retry runs fn until it succeeds, fails with a non-retryable error or the
// retry budget is spent. Terminal failures are *pkg.RetryError.
func Retry[T any](ctx context.Context, r *Retrier, op string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	attempts := 0

	policy := backoff.WithContext(
		backoff.WithMaxRetries(&jitterBackOff{r: r}, uint64(r.cfg.MaxRetries)),
		ctx,
	)

	operation := func() (T, error) {
		attempts++
		result, err := runAttempt(ctx, r.cfg.AttemptTimeout, fn)
		if err != nil && !IsRetryable(err) {
			return result, backoff.Permanent(err)
		}
		return result, err
	}

	notify := func(err error, next time.Duration) {
		logger.Warn().
			Err(err).
			Str("dependency", op).
			Int("attempt", attempts).
			Dur("retry_in", next).
			Msg("Attempt failed, retrying")
	}

	var timer backoff.Timer
	if r.newTimer != nil {
		timer = r.newTimer()
	}

	result, err := backoff.RetryNotifyWithTimerAndData[T](operation, policy, notify, timer)
	if err != nil {
		var zero T
		return zero, &pkg.RetryError{Op: op, Attempts: attempts, Elapsed: time.Since(start), Err: err}
	}
	return result, nil
}

// runAttempt races fn against the attempt timeout. On timeout the goroutine
// is abandoned and its result dropped.
func runAttempt[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(attemptCtx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-attemptCtx.Done():
		var zero T
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, fmt.Errorf("%w after %s", ErrAttemptTimeout, timeout)
	}
}

var retryableStatus = map[int]bool{429: true, 500: true, 502: true, 503: true, 504: true}

var (
	statusCodeRe = regexp.MustCompile(`\b(429|500|502|503|504)\b`)

	retryablePatterns = []string{
		"timeout",
		"timed out",
		"deadline exceeded",
		"connection refused",
		"connection reset",
		"broken pipe",
		"network",
		"eof",
		"rate limit",
		"too many requests",
		"bad gateway",
		"service unavailable",
		"internal server error",
	}

	nonRetryablePatterns = []string{
		"unauthorized",
		"forbidden",
		"invalid api key",
		"401",
		"403",
	}
)

// IsRetryable classifies an error as transient: network failures, timeouts
// and HTTP 429/500/502/503/504. Everything else is final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var circuitErr *pkg.CircuitOpenError
	if errors.As(err, &circuitErr) {
		return false
	}
	if errors.Is(err, ErrAttemptTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var upstream *pkg.UpstreamError
	if errors.As(err, &upstream) && upstream.StatusCode > 0 {
		return retryableStatus[upstream.StatusCode]
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range nonRetryablePatterns {
		if strings.Contains(msg, p) {
			return false
		}
	}
	if statusCodeRe.MatchString(msg) {
		return true
	}
	for _, p := range retryablePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
