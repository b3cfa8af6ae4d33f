// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package driver_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/bfte/driver"
)

func TestTimeoutPolicyIsStrictlyPositive(t *testing.T) {
	for _, n := range []uint64{0, 1, 5, 8, 100, 1_000_000} {
		require.Greater(t, driver.TimeoutPolicy(n), time.Duration(0))
	}
}

func TestTimeoutPolicyGrowsThenPlateaus(t *testing.T) {
	prev := driver.TimeoutPolicy(0)
	for n := uint64(1); n <= 8; n++ {
		cur := driver.TimeoutPolicy(n)
		require.Greater(t, cur, prev)
		prev = cur
	}

	plateau := driver.TimeoutPolicy(8)
	require.Equal(t, plateau, driver.TimeoutPolicy(9))
	require.Equal(t, plateau, driver.TimeoutPolicy(1000))
}

func TestTimeoutPolicyNeverExceedsCap(t *testing.T) {
	for _, n := range []uint64{0, 1, 2, 8, 9, 50} {
		require.LessOrEqual(t, driver.TimeoutPolicy(n), 30*time.Second)
	}
}
