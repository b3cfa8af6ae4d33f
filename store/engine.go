// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package store implements the consensus core's persisted state: a small
// transactional typed-table layer on top of a pluggable flat key/value
// Engine, with commit hooks and single-value "watch channel" pub/sub for
// round/timeout/finality/vote/proposal notifications.
package store

// Batch is a set of writes applied atomically to an Engine.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Size() int
	Write() error
	Reset()
}

// Engine is the abstract, pluggable key-value backend the typed-table
// layer is built on. Any durable single-writer/multi-reader store
// satisfying this can back the consensus store; no particular on-disk
// format is mandated.
type Engine interface {
	Reader
	Writer
	NewBatch() Batch
	Close() error
}

// Reader reads from an Engine.
type Reader interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
	// Iterate calls fn for every key in [lowerBound, upperBound) in
	// ascending order, stopping early if fn returns false. upperBound nil
	// means no upper bound.
	Iterate(lowerBound, upperBound []byte, fn func(key, value []byte) bool) error
}

// Writer writes to an Engine.
type Writer interface {
	Put(key, value []byte) error
	Delete(key []byte) error
}
