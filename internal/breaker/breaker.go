// Package breaker wraps sony/gobreaker with the settings used for all remote
// provider calls (embedding and tagging). It exists so the two client
// packages share one failure policy instead of configuring gobreaker twice.
package breaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrOpen is returned when the breaker is open and rejecting calls.
var ErrOpen = errors.New("circuit breaker is open")

// Config tunes the breaker thresholds.
type Config struct {
	// Name labels the breaker in state-change handling.
	Name string

	// MaxFailures is the consecutive-failure count that trips the circuit.
	MaxFailures uint32

	// Timeout is how long the circuit stays open before probing half-open.
	Timeout time.Duration

	// HalfOpenMaxSuccesses is how many successes close a half-open circuit.
	HalfOpenMaxSuccesses uint32
}

// Breaker protects a remote dependency from cascading failures.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// New creates a breaker with defaults matching the provider retry policy:
// 3 consecutive failures trip it, it probes again after 30 seconds, and two
// half-open successes close it.
func New(name string) *Breaker {
	return NewWithConfig(Config{
		Name:                 name,
		MaxFailures:          3,
		Timeout:              30 * time.Second,
		HalfOpenMaxSuccesses: 2,
	})
}

// NewWithConfig creates a breaker with explicit thresholds.
func NewWithConfig(cfg Config) *Breaker {
	return &Breaker{
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        cfg.Name,
			MaxRequests: cfg.HalfOpenMaxSuccesses,
			Timeout:     cfg.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.MaxFailures
			},
		}),
	}
}

// Execute runs fn through the breaker. An open circuit returns ErrOpen
// without invoking fn. A context already cancelled fails fast without
// counting against the breaker state.
func (b *Breaker) Execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := b.cb.Execute(func() (interface{}, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrOpen
	}
	return result, err
}

// State reports the current breaker state as one of "closed", "open", or
// "half-open".
func (b *Breaker) State() string {
	switch b.cb.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}
