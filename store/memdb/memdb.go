// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package memdb is an in-memory store.Engine reference implementation,
// used for tests and for a freshly-initialized genesis node before any
// durable backend is configured.
package memdb

import (
	"sort"
	"sync"

	"github.com/luxfi/bfte/store"
)

// DB is a sorted in-memory key/value store implementing store.Engine.
type DB struct {
	mu   sync.RWMutex
	data map[string][]byte
	keys []string // kept sorted
}

// New returns an empty in-memory Engine.
func New() *DB {
	return &DB{data: make(map[string][]byte)}
}

func (d *DB) Has(key []byte) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.data[string(key)]
	return ok, nil
}

func (d *DB) Get(key []byte) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.data[string(key)]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (d *DB) Put(key, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.putLocked(key, value)
	return nil
}

func (d *DB) putLocked(key, value []byte) {
	k := string(key)
	if _, exists := d.data[k]; !exists {
		i := sort.SearchStrings(d.keys, k)
		d.keys = append(d.keys, "")
		copy(d.keys[i+1:], d.keys[i:])
		d.keys[i] = k
	}
	v := make([]byte, len(value))
	copy(v, value)
	d.data[k] = v
}

func (d *DB) Delete(key []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deleteLocked(key)
	return nil
}

func (d *DB) deleteLocked(key []byte) {
	k := string(key)
	if _, exists := d.data[k]; !exists {
		return
	}
	delete(d.data, k)
	i := sort.SearchStrings(d.keys, k)
	if i < len(d.keys) && d.keys[i] == k {
		d.keys = append(d.keys[:i], d.keys[i+1:]...)
	}
}

func (d *DB) Iterate(lowerBound, upperBound []byte, fn func(key, value []byte) bool) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	lo := string(lowerBound)
	start := sort.SearchStrings(d.keys, lo)
	for i := start; i < len(d.keys); i++ {
		k := d.keys[i]
		if upperBound != nil && k >= string(upperBound) {
			break
		}
		if !fn([]byte(k), d.data[k]) {
			break
		}
	}
	return nil
}

func (d *DB) NewBatch() store.Batch {
	return &batch{db: d}
}

func (d *DB) Close() error {
	return nil
}

type op struct {
	del   bool
	key   []byte
	value []byte
}

type batch struct {
	db  *DB
	ops []op
}

func (b *batch) Put(key, value []byte) error {
	b.ops = append(b.ops, op{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
	return nil
}

func (b *batch) Delete(key []byte) error {
	b.ops = append(b.ops, op{del: true, key: append([]byte(nil), key...)})
	return nil
}

func (b *batch) Size() int {
	return len(b.ops)
}

func (b *batch) Write() error {
	b.db.mu.Lock()
	defer b.db.mu.Unlock()
	for _, o := range b.ops {
		if o.del {
			b.db.deleteLocked(o.key)
		} else {
			b.db.putLocked(o.key, o.value)
		}
	}
	return nil
}

func (b *batch) Reset() {
	b.ops = b.ops[:0]
}
