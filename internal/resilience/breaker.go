// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrOpen is returned, wrapped in an *OpenError, while a breaker rejects calls
var ErrOpen = errors.New("circuit breaker open")

// State of a Breaker
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// BreakerConfig tunes a Breaker
type BreakerConfig struct {
	Name string

	// Threshold consecutive counted failures open the breaker. Default 5.
	Threshold int

	// Cooldown is how long the breaker stays open before a single probe call. Default 30s.
	Cooldown time.Duration

	// Counts decides which errors count as failures. Default Retryable.
	Counts func(error) bool

	// OnTransition is called with the breaker lock held; it must not call back into the breaker.
	OnTransition func(name string, from, to State)
}

// OpenError describes a rejected call
type OpenError struct {
	Name     string
	Failures int
	Since    time.Time
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("%s breaker open after %d failures", e.Name, e.Failures)
}

func (e *OpenError) Is(target error) bool { return target == ErrOpen }

// Breaker stops calling a failing service until a cooldown has passed. In
// half-open state exactly one probe is let through; its outcome closes or
// reopens the breaker.
type Breaker struct {
	cfg BreakerConfig
	now func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a closed breaker
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Counts == nil {
		cfg.Counts = Retryable
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// Do runs fn unless the breaker is open
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	b.record(err)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			return &OpenError{Name: b.cfg.Name, Failures: b.failures, Since: b.openedAt}
		}
		b.transition(StateHalfOpen)
		b.probing = true
	case StateHalfOpen:
		if b.probing {
			return &OpenError{Name: b.cfg.Name, Failures: b.failures, Since: b.openedAt}
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	failed := err != nil && b.cfg.Counts(err)
	wasProbe := b.state == StateHalfOpen
	b.probing = false

	// a caller giving up says nothing about the service
	if errors.Is(err, context.Canceled) {
		return
	}

	if !failed {
		b.failures = 0
		if wasProbe {
			b.transition(StateClosed)
		}
		return
	}
	b.failures++
	if wasProbe || b.failures >= b.cfg.Threshold {
		b.openedAt = b.now()
		b.transition(StateOpen)
	}
}

func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	if b.cfg.OnTransition != nil {
		b.cfg.OnTransition(b.cfg.Name, from, to)
	}
}

// State returns the current state. An open breaker whose cooldown has
// elapsed still reports open until the next call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset closes the breaker and forgets past failures
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probing = false
	b.transition(StateClosed)
}
