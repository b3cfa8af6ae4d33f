// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import "sync"

// ReadTx is a read-only view of the store, valid for the lifetime of the
// callback passed to Store.Read.
type ReadTx struct {
	r Reader
}

// Has reports whether key exists.
func (tx *ReadTx) Has(key []byte) (bool, error) {
	return tx.r.Has(key)
}

// Get returns the value for key, or nil if absent.
func (tx *ReadTx) Get(key []byte) ([]byte, error) {
	return tx.r.Get(key)
}

// Iterate walks keys in [lowerBound, upperBound) in ascending order.
func (tx *ReadTx) Iterate(lowerBound, upperBound []byte, fn func(key, value []byte) bool) error {
	return tx.r.Iterate(lowerBound, upperBound, fn)
}

// WriteTx is a single read-write transaction. All of its writes are
// applied atomically when the enclosing Store.Write callback returns nil;
// none are applied if it returns an error. OnCommit hooks registered on a
// WriteTx fire only after a successful commit, in the order registered.
type WriteTx struct {
	engine  Engine
	batch   Batch
	hooks   []func()
	pending map[string][]byte // staged puts; used so reads-after-write see uncommitted changes
	deleted map[string]bool   // staged deletes
}

func newWriteTx(engine Engine) *WriteTx {
	return &WriteTx{
		engine:  engine,
		batch:   engine.NewBatch(),
		pending: make(map[string][]byte),
		deleted: make(map[string]bool),
	}
}

// Has reports whether key exists, accounting for writes already staged in
// this transaction.
func (tx *WriteTx) Has(key []byte) (bool, error) {
	k := string(key)
	if tx.deleted[k] {
		return false, nil
	}
	if _, ok := tx.pending[k]; ok {
		return true, nil
	}
	return tx.engine.Has(key)
}

// Get returns the value for key, accounting for writes already staged in
// this transaction.
func (tx *WriteTx) Get(key []byte) ([]byte, error) {
	k := string(key)
	if tx.deleted[k] {
		return nil, nil
	}
	if v, ok := tx.pending[k]; ok {
		return v, nil
	}
	return tx.engine.Get(key)
}

// Iterate walks keys in [lowerBound, upperBound), merging this
// transaction's staged writes over the engine's committed state.
func (tx *WriteTx) Iterate(lowerBound, upperBound []byte, fn func(key, value []byte) bool) error {
	overlay := make(map[string][]byte, len(tx.pending))
	for k, v := range tx.pending {
		overlay[k] = v
	}
	seen := make(map[string]bool)
	stop := false
	err := tx.engine.Iterate(lowerBound, upperBound, func(key, value []byte) bool {
		k := string(key)
		seen[k] = true
		if tx.deleted[k] {
			return true
		}
		if v, ok := overlay[k]; ok {
			value = v
		}
		if !fn(key, value) {
			stop = true
			return false
		}
		return true
	})
	if err != nil || stop {
		return err
	}
	for k, v := range overlay {
		if seen[k] {
			continue
		}
		if inRange(k, lowerBound, upperBound) && !fn([]byte(k), v) {
			return nil
		}
	}
	return nil
}

func inRange(k string, lowerBound, upperBound []byte) bool {
	if lowerBound != nil && k < string(lowerBound) {
		return false
	}
	if upperBound != nil && k >= string(upperBound) {
		return false
	}
	return true
}

// Put stages a write.
func (tx *WriteTx) Put(key, value []byte) error {
	k := string(key)
	v := make([]byte, len(value))
	copy(v, value)
	tx.pending[k] = v
	delete(tx.deleted, k)
	return tx.batch.Put(key, value)
}

// Delete stages a delete.
func (tx *WriteTx) Delete(key []byte) error {
	k := string(key)
	delete(tx.pending, k)
	tx.deleted[k] = true
	return tx.batch.Delete(key)
}

// OnCommit registers fn to run after this transaction commits
// successfully. Hooks run in registration order, after the write is
// durable, while the Store's commit-serializing lock is still held (so a
// hook observing store state sees a fully-applied commit and no
// interleaved concurrent commit).
func (tx *WriteTx) OnCommit(fn func()) {
	tx.hooks = append(tx.hooks, fn)
}

// Store is the transactional typed-table layer: a process-wide
// commit-serializing mutex around a pluggable Engine, with commit hooks
// and watch channels layered on top.
type Store struct {
	engine   Engine
	commitMu sync.Mutex
	watches  watchRegistry
}

// Open wraps engine as a transactional Store.
func Open(engine Engine) *Store {
	return &Store{engine: engine}
}

// Read runs fn against the store's committed state, read-only. It takes no
// snapshot: each read inside fn sees whatever has been committed when that
// read runs.
func (s *Store) Read(fn func(tx *ReadTx) error) error {
	return fn(&ReadTx{r: s.engine})
}

// Write runs fn inside a single write transaction. Writes are serialized
// across the whole Store: only one Write call executes at a time. If fn
// returns nil, the transaction's writes are committed atomically and its
// OnCommit hooks fire in order; if fn returns an error, nothing is
// written and no hook runs.
func (s *Store) Write(fn func(tx *WriteTx) error) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	tx := newWriteTx(s.engine)
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.batch.Write(); err != nil {
		return err
	}
	for _, hook := range tx.hooks {
		hook()
	}
	return nil
}

// Close releases the underlying engine.
func (s *Store) Close() error {
	return s.engine.Close()
}
