// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package driver

import "time"

const (
	timeoutBase   = 250 * time.Millisecond
	timeoutGrowth = 1.5
	timeoutMaxExp = 8
	timeoutCap    = 30 * time.Second
)

// TimeoutPolicy returns how long the self-timeout task should wait before
// arming a dummy vote, given the number of rounds that are currently
// unfinalized (current_round - finality_consensus). The curve grows
// geometrically with the unfinalized backlog so a node that has fallen
// behind backs off its own timeout voting instead of hammering the
// network, but never exceeds timeoutCap and is always strictly positive.
func TimeoutPolicy(unfinalizedRounds uint64) time.Duration {
	exp := unfinalizedRounds
	if exp > timeoutMaxExp {
		exp = timeoutMaxExp
	}
	d := float64(timeoutBase)
	for i := uint64(0); i < exp; i++ {
		d *= timeoutGrowth
	}
	dur := time.Duration(d)
	if dur > timeoutCap {
		return timeoutCap
	}
	return dur
}
