package errors

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"snowbank/internal/logging"
)

// RetryConfig describes an exponential backoff.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Jitter adds up to 30% to every delay.
	Jitter bool
	// RetryableError decides whether an error is worth another attempt.
	// DefaultRetryable is used when nil.
	RetryableError func(error) bool
}

func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialDelay:   time.Second,
		MaxDelay:       30 * time.Second,
		Multiplier:     2,
		Jitter:         true,
		RetryableError: DefaultRetryable,
	}
}

// DefaultRetryable accepts recoverable errors and the transient
// connection codes.
func DefaultRetryable(err error) bool {
	if IsRecoverable(err) {
		return true
	}
	switch GetErrorCode(err) {
	case ErrCodeConnectionTimeout, ErrCodeNetworkUnavailable, ErrCodeTimeout, ErrCodeServiceUnavailable:
		return true
	}
	return false
}

type RetryableFunc func(ctx context.Context) error

// delay is the wait after the given zero-based attempt.
func (c *RetryConfig) delay(attempt int) time.Duration {
	d := math.Min(float64(c.InitialDelay)*math.Pow(c.Multiplier, float64(attempt)), float64(c.MaxDelay))
	if c.Jitter {
		d += d * 0.3 * rand.Float64()
	}
	return time.Duration(d)
}

// Retry calls fn until it succeeds, returns a non-retryable error, the
// context ends or MaxRetries extra attempts have been made. Exhaustion is
// reported as ErrCodeMaxRetriesExceeded wrapping the last error.
func Retry(ctx context.Context, cfg *RetryConfig, fn RetryableFunc) error {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	retryable := cfg.RetryableError
	if retryable == nil {
		retryable = DefaultRetryable
	}

	attempts := cfg.MaxRetries + 1
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil || !retryable(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		wait := cfg.delay(attempt)
		logging.Warn().Err(err).
			Int("attempt", attempt+1).
			Int("max_attempts", attempts).
			Dur("backoff", wait).
			Msg("retrying")

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return Wrap(err, ErrCodeMaxRetriesExceeded, fmt.Sprintf("Operation failed after %d attempts", attempts))
}

type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// CircuitBreaker fails fast once maxFailures calls have failed and lets a
// single probe through after cooldown.
type CircuitBreaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time

	mu       sync.Mutex
	state    CircuitState
	failures int
	openedAt time.Time
}

func NewCircuitBreaker(name string, maxFailures int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{name: name, maxFailures: maxFailures, cooldown: cooldown, now: time.Now}
}

// State reports the breaker position.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Execute runs fn unless the breaker is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != StateOpen {
		return nil
	}
	retryAt := cb.openedAt.Add(cb.cooldown)
	if cb.now().After(retryAt) {
		cb.state = StateHalfOpen
		return nil
	}
	return Newf(ErrCodeServiceUnavailable, "Circuit breaker '%s' is open", cb.name).
		WithContext("failures", cb.failures).
		WithContext("retry_at", retryAt).
		WithSuggestions("Wait for the circuit to reset", "Check Snowflake service status")
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err == nil {
		cb.failures = 0
		cb.state = StateClosed
		return
	}
	cb.failures++
	if cb.state == StateOpen {
		return
	}
	if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
		logging.Warn().Str("breaker", cb.name).Int("failures", cb.failures).Msg("circuit opened")
		cb.state = StateOpen
		cb.openedAt = cb.now()
	}
}
