// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }
func down(context.Context) error         { return Transient(errors.New("down")) }
func fine(context.Context) error         { return nil }
func rejected(context.Context) error     { return errors.New("bad reply") }

func newTestBreaker(threshold int, transitions *[]string) (*Breaker, *clock) {
	c := &clock{t: time.Unix(1700000000, 0)}
	b := NewBreaker(BreakerConfig{
		Name:      "classifier",
		Threshold: threshold,
		Cooldown:  time.Minute,
		OnTransition: func(_ string, from, to State) {
			if transitions != nil {
				*transitions = append(*transitions, from.String()+">"+to.String())
			}
		},
	})
	b.now = c.now
	return b, c
}

func TestBreakerOpensAndRecovers(t *testing.T) {
	var transitions []string
	b, c := newTestBreaker(2, &transitions)
	ctx := context.Background()

	assert.Error(t, b.Do(ctx, down))
	assert.Equal(t, StateClosed, b.State())
	assert.Error(t, b.Do(ctx, down))
	assert.Equal(t, StateOpen, b.State())

	calls := 0
	err := b.Do(ctx, func(context.Context) error { calls++; return nil })
	require.ErrorIs(t, err, ErrOpen)
	assert.Zero(t, calls)

	c.advance(time.Minute)
	require.NoError(t, b.Do(ctx, fine))
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, []string{"closed>open", "open>half-open", "half-open>closed"}, transitions)
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	b, c := newTestBreaker(1, nil)
	ctx := context.Background()

	_ = b.Do(ctx, down)
	c.advance(time.Minute)
	assert.Error(t, b.Do(ctx, down))
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Do(ctx, fine), ErrOpen)
}

func TestBreakerSingleProbe(t *testing.T) {
	b, c := newTestBreaker(1, nil)
	ctx := context.Background()
	_ = b.Do(ctx, down)
	c.advance(time.Minute)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- b.Do(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	assert.ErrorIs(t, b.Do(ctx, fine), ErrOpen)
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerIgnoresUncountedErrors(t *testing.T) {
	b, _ := newTestBreaker(1, nil)
	for range 3 {
		assert.Error(t, b.Do(context.Background(), rejected))
	}
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	b, _ := newTestBreaker(2, nil)
	ctx := context.Background()
	_ = b.Do(ctx, down)
	_ = b.Do(ctx, fine)
	_ = b.Do(ctx, down)
	assert.Equal(t, StateClosed, b.State())

	_ = b.Do(ctx, down)
	assert.Equal(t, StateOpen, b.State())
	b.Reset()
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerCancellationLeavesCount(t *testing.T) {
	b, _ := newTestBreaker(2, nil)
	ctx := context.Background()
	_ = b.Do(ctx, down)
	_ = b.Do(ctx, func(context.Context) error { return context.Canceled })
	_ = b.Do(ctx, down)
	assert.Equal(t, StateOpen, b.State())
}
