// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensuscore

import (
	"fmt"

	"github.com/luxfi/bfte/codec"
)

// NumPeers is the size of a federation's current peer set. It fits in a
// single byte: a federation never has more than 255 members.
type NumPeers uint8

func (n NumPeers) String() string {
	return fmt.Sprintf("%d", uint8(n))
}

// Total is the number of peers in the federation.
func (n NumPeers) Total() int {
	return int(n)
}

// MaxFaulty is the maximum number of Byzantine peers this federation size
// can tolerate: floor((n-1)/3).
func (n NumPeers) MaxFaulty() int {
	total := n.Total()
	if total == 0 {
		return 0
	}
	return (total - 1) / 3
}

// Threshold is the number of matching signatures/votes required to reach
// consensus: n - max_faulty.
func (n NumPeers) Threshold() int {
	return n.Total() - n.MaxFaulty()
}

// PeerIdxIter returns every PeerIdx in [0, n) in order.
func (n NumPeers) PeerIdxIter() []PeerIdx {
	out := make([]PeerIdx, n.Total())
	for i := range out {
		out[i] = PeerIdx(i)
	}
	return out
}

// Encode writes the peer count as a single byte.
func (n NumPeers) Encode(w *codec.Writer) error {
	return w.WriteU8(uint8(n))
}

// Decode reads a single-byte peer count.
func (n *NumPeers) Decode(r *codec.Reader) error {
	v, err := r.ReadU8()
	if err != nil {
		return err
	}
	*n = NumPeers(v)
	return nil
}
