// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFibonacciBackOffGrowsTowardCap(t *testing.T) {
	base := 10 * time.Millisecond
	max := 200 * time.Millisecond
	b := newFibonacciBackOff(base, max)

	maxJitter := max/4/2 + 1

	seen := make([]time.Duration, 0, 20)
	for i := 0; i < 20; i++ {
		d := b.NextBackOff()
		require.GreaterOrEqual(t, d, time.Duration(0))
		require.LessOrEqual(t, d, max+maxJitter)
		seen = append(seen, d)
	}

	// the sequence must actually have reached the cap at some point
	// within 20 steps starting from a 10ms base (fibonacci overtakes
	// 200ms well before then).
	reachedCap := false
	for _, d := range seen {
		if d > max-max/4 {
			reachedCap = true
			break
		}
	}
	require.True(t, reachedCap, "expected the backoff sequence to approach its cap")
}

func TestFibonacciBackOffNeverExceedsCapByMoreThanJitter(t *testing.T) {
	base := time.Millisecond
	max := 50 * time.Millisecond
	b := newFibonacciBackOff(base, max)

	maxJitter := max/4/2 + 1
	for i := 0; i < 50; i++ {
		d := b.NextBackOff()
		require.LessOrEqual(t, d, max+maxJitter)
	}
}

func TestFibonacciBackOffResetRestartsSequence(t *testing.T) {
	base := 5 * time.Millisecond
	max := 500 * time.Millisecond
	b := newFibonacciBackOff(base, max)

	for i := 0; i < 10; i++ {
		b.NextBackOff()
	}

	b.Reset()
	first := b.NextBackOff()

	maxJitter := base/4/2 + 1
	require.LessOrEqual(t, first, base+maxJitter)
}
