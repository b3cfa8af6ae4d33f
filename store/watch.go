// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import "sync"

// Watch is a single-value, overwrite-last notification channel: each send
// on the underlying channel replaces any value still sitting unread in
// it, so a slow consumer only ever sees the most recent notification
// instead of an unbounded backlog. This matches the consensus driver's
// need to learn "something changed, go re-check the table" without
// caring how many times it changed while it was busy.
type Watch[T any] struct {
	mu sync.Mutex
	ch chan T
}

// NewWatch returns a ready-to-use Watch.
func NewWatch[T any]() *Watch[T] {
	return &Watch[T]{ch: make(chan T, 1)}
}

// Chan returns the channel to receive notifications on. The same channel
// is returned on every call.
func (w *Watch[T]) Chan() <-chan T {
	return w.ch
}

// Notify delivers value, discarding any previously queued, unread value.
func (w *Watch[T]) Notify(value T) {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.ch:
	default:
	}
	w.ch <- value
}

// watchKey names one of the store's well-known notification streams.
type watchKey string

const (
	watchCurrentRound   watchKey = "current_round"
	watchTimeout        watchKey = "timeout"
	watchFinality       watchKey = "finality"
	watchVotesBlock     watchKey = "votes_block"
	watchVotesDummy     watchKey = "votes_dummy"
	watchBlocksProposal watchKey = "blocks_proposal"
)

// watchRegistry lazily creates and hands out Watch[struct{}] instances
// keyed by watchKey, so every table that wants to signal "I changed" can
// share one map instead of the Store wiring a field per table.
type watchRegistry struct {
	mu sync.Mutex
	m  map[watchKey]*Watch[struct{}]
}

func (r *watchRegistry) get(key watchKey) *Watch[struct{}] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.m == nil {
		r.m = make(map[watchKey]*Watch[struct{}])
	}
	w, ok := r.m[key]
	if !ok {
		w = NewWatch[struct{}]()
		r.m[key] = w
	}
	return w
}

func (r *watchRegistry) notify(key watchKey) {
	r.get(key).Notify(struct{}{})
}

// WatchCurrentRound returns the channel notified whenever the current
// round advances.
func (s *Store) WatchCurrentRound() <-chan struct{} {
	return s.watches.get(watchCurrentRound).Chan()
}

// WatchTimeout returns the channel notified whenever the round's timeout
// deadline is (re)armed.
func (s *Store) WatchTimeout() <-chan struct{} {
	return s.watches.get(watchTimeout).Chan()
}

// NotifyTimeout schedules watchTimeout's notification for tx's commit.
// consensus.Machine.checkRoundEnd computes the needs-timeout condition
// itself (it depends on vote counts and params, which live outside the
// store package) and publishes it here on every commit where the round
// advanced or the condition holds, the same way SetCurrentRound publishes
// watchCurrentRound.
func NotifyTimeout(tx writer, s *Store) {
	tx.OnCommit(func() { s.watches.notify(watchTimeout) })
}

// WatchFinality returns the channel notified whenever the finality vote
// or finality consensus tables change.
func (s *Store) WatchFinality() <-chan struct{} {
	return s.watches.get(watchFinality).Chan()
}

// WatchVotesBlock returns the channel notified whenever a new block vote
// is recorded.
func (s *Store) WatchVotesBlock() <-chan struct{} {
	return s.watches.get(watchVotesBlock).Chan()
}

// WatchVotesDummy returns the channel notified whenever a new dummy vote
// is recorded.
func (s *Store) WatchVotesDummy() <-chan struct{} {
	return s.watches.get(watchVotesDummy).Chan()
}

// WatchBlocksProposal returns the channel notified whenever a new block
// proposal is recorded.
func (s *Store) WatchBlocksProposal() <-chan struct{} {
	return s.watches.get(watchBlocksProposal).Chan()
}
