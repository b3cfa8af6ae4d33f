// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"github.com/dgraph-io/ristretto/v2"

	"github.com/luxfi/bfte/consensuscore"
)

// ParamsCache is a read-through cache in front of the params table.
// ConsensusParams lookups happen on every vote and proposal processed
// (each one resolves consensus_params_for(round) before doing anything
// else) but params themselves only change on a schedule, so they are
// close to ideal Ristretto material: hot, content-addressed, and
// effectively immutable once written.
type ParamsCache struct {
	store *Store
	cache *ristretto.Cache[consensuscore.ConsensusParamsHash, *consensuscore.ConsensusParams]
}

// NewParamsCache builds a ParamsCache backed by s. maxCost bounds the
// cache's total tracked cost (roughly total cached bytes); pass 0 for a
// reasonable default.
func NewParamsCache(s *Store, maxCost int64) (*ParamsCache, error) {
	if maxCost <= 0 {
		maxCost = 32 << 20 // 32 MiB of cached ConsensusParams
	}
	c, err := ristretto.NewCache(&ristretto.Config[consensuscore.ConsensusParamsHash, *consensuscore.ConsensusParams]{
		NumCounters: 1e5,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &ParamsCache{store: s, cache: c}, nil
}

// Get resolves hash, first from the cache and, on a miss, from the
// store's params table — populating the cache for next time.
func (pc *ParamsCache) Get(tx reader, hash consensuscore.ConsensusParamsHash) (*consensuscore.ConsensusParams, bool, error) {
	if v, ok := pc.cache.Get(hash); ok {
		return v, true, nil
	}
	params, ok, err := GetParams(tx, hash)
	if err != nil || !ok {
		return nil, ok, err
	}
	pc.cache.Set(hash, params, int64(params.Len()))
	return params, true, nil
}

// Put writes params through to the store and seeds the cache with it.
func (pc *ParamsCache) Put(tx writer, params *consensuscore.ConsensusParams) error {
	if err := PutParams(tx, params); err != nil {
		return err
	}
	hash := params.Hash()
	tx.OnCommit(func() { pc.cache.Set(hash, params, int64(params.Len())) })
	return nil
}

// Wait blocks until every Set queued so far (including those from commit
// hooks) has been applied. Ristretto applies sets asynchronously;
// production callers never need this, but tests that write then
// immediately assert a cache hit do.
func (pc *ParamsCache) Wait() {
	pc.cache.Wait()
}

// Close releases cache resources.
func (pc *ParamsCache) Close() {
	pc.cache.Close()
}
