package transport

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// RetryConfig defines retry behavior for transient transport failures
type RetryConfig struct {
	MaxRetries      int           // Maximum number of retry attempts
	InitialBackoff  time.Duration // Initial backoff duration
	MaxBackoff      time.Duration // Maximum backoff duration
	BackoffFactor   float64       // Multiplier for exponential backoff
	Jitter          float64       // Random jitter factor (0-1)
	RetryableErrors []int         // HTTP status codes to retry
}

// DefaultRetryConfig returns production-ready retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         0.1,
		RetryableErrors: []int{
			http.StatusTooManyRequests,     // 429
			http.StatusInternalServerError, // 500
			http.StatusBadGateway,          // 502
			http.StatusServiceUnavailable,  // 503
			http.StatusGatewayTimeout,      // 504
		},
	}
}

// RetryResult describes how a retried operation concluded
type RetryResult struct {
	Attempts      int
	LastError     error
	TotalDuration time.Duration
}

// Retrier handles retry logic with exponential backoff. It only retries
// network faults and retryable HTTP statuses; provider rejections pass
// straight through.
type Retrier struct {
	config *RetryConfig
}

// NewRetrier creates a new retrier with the given config
func NewRetrier(config *RetryConfig) *Retrier {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &Retrier{config: config}
}

// ShouldRetry determines if an exchange outcome should be retried
func (r *Retrier) ShouldRetry(resp *Response, err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	if err != nil || resp == nil {
		return false
	}
	for _, code := range r.config.RetryableErrors {
		if resp.StatusCode == code {
			return true
		}
	}
	return false
}

// CalculateBackoff calculates the backoff duration for a given attempt
func (r *Retrier) CalculateBackoff(attempt int) time.Duration {
	backoff := float64(r.config.InitialBackoff) * math.Pow(r.config.BackoffFactor, float64(attempt))

	if r.config.Jitter > 0 {
		jitter := backoff * r.config.Jitter * (rand.Float64()*2 - 1)
		backoff += jitter
	}

	if backoff > float64(r.config.MaxBackoff) {
		backoff = float64(r.config.MaxBackoff)
	}

	return time.Duration(backoff)
}

// RetryableFunc is one attempt of a retryable exchange
type RetryableFunc func(ctx context.Context) (*Response, error)

// Do executes fn until it succeeds, fails non-retryably, or runs out of
// attempts. The last response and error are returned alongside the
// retry bookkeeping.
func (r *Retrier) Do(ctx context.Context, fn RetryableFunc) (*Response, *RetryResult) {
	result := &RetryResult{}
	startTime := time.Now()
	var lastResp *Response

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		result.Attempts = attempt + 1

		resp, err := fn(ctx)
		lastResp = resp
		result.LastError = err

		if err == nil && resp != nil && resp.Success {
			result.TotalDuration = time.Since(startTime)
			return resp, result
		}

		if !r.ShouldRetry(resp, err) || attempt >= r.config.MaxRetries {
			result.TotalDuration = time.Since(startTime)
			return lastResp, result
		}

		backoff := r.CalculateBackoff(attempt)
		// A throttling provider knows its own recovery window better
		// than our exponential schedule does.
		if resp != nil && resp.RetryAfter > backoff {
			backoff = resp.RetryAfter
			if backoff > r.config.MaxBackoff {
				backoff = r.config.MaxBackoff
			}
		}

		select {
		case <-ctx.Done():
			result.LastError = ctx.Err()
			result.TotalDuration = time.Since(startTime)
			return lastResp, result
		case <-time.After(backoff):
		}
	}

	result.TotalDuration = time.Since(startTime)
	return lastResp, result
}

// CircuitBreaker implements a simple circuit breaker pattern for a
// provider endpoint
type CircuitBreaker struct {
	mu           sync.Mutex
	failures     int
	successes    int
	state        CircuitState
	lastFailure  time.Time
	threshold    int
	resetTimeout time.Duration
	halfOpenMax  int
}

type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(threshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold:    threshold,
		resetTimeout: resetTimeout,
		halfOpenMax:  3,
		state:        CircuitClosed,
	}
}

// Allow checks if a request should be allowed
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if time.Since(cb.lastFailure) >= cb.resetTimeout {
			cb.state = CircuitHalfOpen
			cb.successes = 0
			return true
		}
		return false
	case CircuitHalfOpen:
		return cb.successes < cb.halfOpenMax
	}
	return false
}

// RecordSuccess records a successful operation
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitHalfOpen {
		cb.successes++
		if cb.successes >= cb.halfOpenMax {
			cb.state = CircuitClosed
			cb.failures = 0
		}
	} else {
		cb.failures = 0
	}
}

// RecordFailure records a failed operation
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()

	if cb.failures >= cb.threshold {
		cb.state = CircuitOpen
	}
}

// State returns the current circuit state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = CircuitClosed
	cb.failures = 0
	cb.successes = 0
}
