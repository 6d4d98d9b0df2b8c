package merkle

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hushnetwork-social/hush-server-node-sub008/core/feed"
	"github.com/Hushnetwork-social/hush-server-node-sub008/core/types"
	"github.com/Hushnetwork-social/hush-server-node-sub008/db/kv"
)

func setupMaintainer(t *testing.T) (*Maintainer, *kv.Store, *feed.Bus) {
	t.Helper()
	store, err := kv.NewKVStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	bus := feed.NewBus()
	m := NewMaintainer(context.Background(), store.Feeds(), bus)
	t.Cleanup(func() {
		require.NoError(t, m.Stop())
	})
	return m, store, bus
}

func saveCommitments(t *testing.T, store *kv.Store, feedID types.FeedID, leaves [][]byte) {
	t.Helper()
	uow, err := store.Feeds().Writable()
	require.NoError(t, err)
	for _, leaf := range leaves {
		require.NoError(t, uow.SaveCommitment(&types.FeedMemberCommitment{
			FeedID:         feedID,
			UserCommitment: leaf,
		}))
	}
	require.NoError(t, uow.Commit())
}

func TestMaintainer_RebuildsOnMembershipChange(t *testing.T) {
	m, store, bus := setupMaintainer(t)
	ctx := context.Background()
	feedID := types.NewFeedID()
	saveCommitments(t, store, feedID, commitments(3))

	bus.Publish(ctx, &feed.Event{
		Type: feed.FeedMembershipChanged,
		Data: &feed.FeedMembershipChangedData{FeedID: feedID, BlockIndex: 6},
	})
	require.NoError(t, m.Status())

	stored, err := store.Feeds().Commitments(ctx, feedID)
	require.NoError(t, err)
	expected := BuildRoot(stored)

	history, err := store.Feeds().RecentMerkleRoots(ctx, feedID, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, expected, history[0].MerkleRoot)
	assert.Equal(t, types.BlockIndex(6), history[0].BlockHeight)

	root, err := m.Root(ctx, feedID)
	require.NoError(t, err)
	assert.Equal(t, expected, root)
}

func TestMaintainer_RootFallsBackToHistoryThenEmpty(t *testing.T) {
	m, store, _ := setupMaintainer(t)
	ctx := context.Background()
	feedID := types.NewFeedID()

	// No history at all: the empty root.
	root, err := m.Root(ctx, feedID)
	require.NoError(t, err)
	assert.Equal(t, EmptyRoot(), root)

	// Persisted history without a warm cache is still found.
	uow, err := store.Feeds().Writable()
	require.NoError(t, err)
	persisted := crypto.Keccak256([]byte("somewhere"))
	require.NoError(t, uow.SaveMerkleRoot(&types.MerkleRootHistory{
		FeedID:      feedID,
		MerkleRoot:  persisted,
		BlockHeight: 2,
		CreatedAt:   types.Now(),
	}))
	require.NoError(t, uow.Commit())

	cold := NewMaintainer(ctx, store.Feeds(), feed.NewBus())
	t.Cleanup(func() {
		require.NoError(t, cold.Stop())
	})
	root, err = cold.Root(ctx, feedID)
	require.NoError(t, err)
	assert.Equal(t, persisted, root)
}

func TestMaintainer_ProveMembership(t *testing.T) {
	m, store, _ := setupMaintainer(t)
	ctx := context.Background()
	feedID := types.NewFeedID()
	leaves := commitments(4)
	saveCommitments(t, store, feedID, leaves)

	stored, err := store.Feeds().Commitments(ctx, feedID)
	require.NoError(t, err)

	root, path, err := m.ProveMembership(ctx, feedID, stored[1])
	require.NoError(t, err)
	assert.True(t, VerifyProof(root, stored[1], path))

	_, _, err = m.ProveMembership(ctx, feedID, crypto.Keccak256([]byte("stranger")))
	require.ErrorIs(t, err, ErrLeafNotFound)
}
