package appmodule_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/bfte/appmodule"
	"github.com/luxfi/bfte/consensuscore"
	"github.com/luxfi/bfte/crypto"
	"github.com/luxfi/bfte/store"
	"github.com/luxfi/bfte/store/memdb"
)

func newTestParams(t *testing.T, n int) *consensuscore.ConsensusParams {
	t.Helper()
	peers := make([]crypto.PeerPubkey, n)
	for i := range peers {
		sk, err := crypto.GenerateSeckey()
		require.NoError(t, err)
		peers[i] = sk.Pubkey()
	}
	return &consensuscore.ConsensusParams{
		Version: consensuscore.NewConsensusVersion(0, 1),
		Peers:   consensuscore.NewPeerSet(peers),
	}
}

func TestSchedulerWritesParamsAndSchedule(t *testing.T) {
	s := store.Open(memdb.New())
	sched := appmodule.NewScheduler(s, 10)

	next := newTestParams(t, 3)
	require.NoError(t, sched.ScheduleConsensusParams(next, 10))

	require.NoError(t, s.Read(func(tx *store.ReadTx) error {
		hash, ok, err := store.ParamsForRound(tx, 10)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, next.Hash(), hash)

		got, ok, err := store.GetParams(tx, hash)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, next.NumPeers(), got.NumPeers())
		return nil
	}))
}

func TestSchedulerRejectsTooSoonApplyRound(t *testing.T) {
	s := store.Open(memdb.New())
	sched := appmodule.NewScheduler(s, 10)

	next := newTestParams(t, 3)
	err := sched.ScheduleConsensusParams(next, 5)
	require.ErrorIs(t, err, appmodule.ErrApplyRoundTooSoon)
}
