// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package appmodule

import "errors"

// ErrApplyRoundTooSoon is returned when a requested params apply round does
// not clear the scheduler's configured minimum delay from the current
// round.
var ErrApplyRoundTooSoon = errors.New("appmodule: apply round is too soon")
