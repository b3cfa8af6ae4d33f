// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

// Errs accumulates the first error seen across a batch of fallible
// operations (here, prometheus metric registrations), so callers can keep
// registering the rest of a metric set and check once at the end.
type Errs struct {
	Err error
}

// Add records err if no error has been recorded yet.
func (e *Errs) Add(err error) {
	if e.Err == nil && err != nil {
		e.Err = err
	}
}
