// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"math/rand"
	"time"

	"github.com/cenkalti/backoff"
)

// fibonacciBackOff implements backoff.BackOff with a Fibonacci delay
// sequence, jittered by up to ±12.5% and capped at max. cenkalti/backoff
// ships only exponential and constant policies; the Fibonacci shape is
// produced here and driven through the library's BackOff/Retry machinery.
type fibonacciBackOff struct {
	base   time.Duration
	max    time.Duration
	prev   time.Duration
	cur    time.Duration
	random *rand.Rand
}

// newFibonacciBackOff returns a backoff.BackOff starting at base and
// capped at max, unbounded in retry count.
func newFibonacciBackOff(base, max time.Duration) *fibonacciBackOff {
	return &fibonacciBackOff{
		base:   base,
		max:    max,
		prev:   0,
		cur:    base,
		random: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NextBackOff returns the next jittered Fibonacci delay. Never returns
// backoff.Stop: RPC retries are unbounded per the driver-timing rules,
// only capped in magnitude.
func (f *fibonacciBackOff) NextBackOff() time.Duration {
	delay := f.cur
	if delay > f.max {
		delay = f.max
	}

	next := f.prev + f.cur
	f.prev = f.cur
	f.cur = next

	spread := delay / 4
	jitter := time.Duration(f.random.Int63n(int64(spread)+1)) - spread/2
	result := delay + jitter
	if result < 0 {
		result = 0
	}
	return result
}

// Reset restarts the sequence from base.
func (f *fibonacciBackOff) Reset() {
	f.prev = 0
	f.cur = f.base
}

var _ backoff.BackOff = (*fibonacciBackOff)(nil)
