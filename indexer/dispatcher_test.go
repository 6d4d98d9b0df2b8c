package indexer

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hushnetwork-social/hush-server-node-sub008/core/feed"
	"github.com/Hushnetwork-social/hush-server-node-sub008/core/registry"
	"github.com/Hushnetwork-social/hush-server-node-sub008/core/types"
)

type failingStrategy struct {
	calls int
}

func (s *failingStrategy) CanHandle(_ *types.ValidatedTransaction) bool { return true }

func (s *failingStrategy) Handle(_ context.Context, _ types.BlockIndex, _ *types.ValidatedTransaction) error {
	s.calls++
	return errors.New("strategy broke")
}

func finalizedBlock(t *testing.T, index types.BlockIndex, txs ...*types.ValidatedTransaction) *types.FinalizedBlock {
	t.Helper()
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	signed, err := types.SignBlock(priv, &types.UnsignedBlock{
		ID:           types.NewBlockID(),
		Timestamp:    types.Now(),
		Index:        index,
		PreviousID:   types.NewBlockID(),
		NextID:       types.NewBlockID(),
		Transactions: txs,
	})
	require.NoError(t, err)
	block, err := types.FinalizeBlock(signed)
	require.NoError(t, err)
	return block
}

func TestDispatcher_IndexesBlockAndPublishesCompletion(t *testing.T) {
	store := setupStore(t)
	bus := feed.NewBus()
	reg := registry.New()
	require.NoError(t, reg.Register(&registry.Entry{Kind: types.KindReward, Strategy: NewRewardStrategy(store.Bank())}))
	require.NoError(t, reg.Register(&registry.Entry{Kind: types.KindNewFeedMessage, Strategy: NewMessageStrategy(store.Feeds())}))

	var completed []types.BlockIndex
	bus.Subscribe(feed.BlockIndexCompleted, func(_ context.Context, ev *feed.Event) error {
		completed = append(completed, ev.Data.(*feed.BlockIndexCompletedData).Index)
		return nil
	})
	d := NewDispatcher(context.Background(), reg, bus)
	d.Start()
	defer func() {
		require.NoError(t, d.Stop())
	}()

	msgID := types.NewFeedMessageID()
	block := finalizedBlock(t, 3,
		validated(t, &types.RewardPayload{IssuerPublicAddress: "0xminer", Token: "HUSH", Amount: "10"}),
		validated(t, &types.NewFeedMessagePayload{
			FeedMessageID:       msgID,
			FeedID:              types.NewFeedID(),
			IssuerPublicAddress: "0xaa",
			Content:             "hi",
			Timestamp:           types.Now(),
		}),
	)

	// The dispatcher is driven by the bus; publishing the block indexes it.
	bus.Publish(context.Background(), &feed.Event{
		Type: feed.BlockCreated,
		Data: &feed.BlockCreatedData{Block: block},
	})

	assert.Equal(t, []types.BlockIndex{3}, completed)
	require.NoError(t, d.Status())

	assert.Equal(t, "10", balance(t, store, "0xminer", "HUSH"))
	exists, err := store.Feeds().HasFeedMessage(context.Background(), msgID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDispatcher_SkipsTransactionWithForgedCountersignature(t *testing.T) {
	store := setupStore(t)
	bus := feed.NewBus()
	reg := registry.New()
	require.NoError(t, reg.Register(&registry.Entry{Kind: types.KindReward, Strategy: NewRewardStrategy(store.Bank())}))
	d := NewDispatcher(context.Background(), reg, bus)

	forged := validated(t, &types.RewardPayload{IssuerPublicAddress: "0xminer", Token: "HUSH", Amount: "10"})
	forged.PayloadSize++

	honest := validated(t, &types.RewardPayload{IssuerPublicAddress: "0xhonest", Token: "HUSH", Amount: "5"})
	block := finalizedBlock(t, 6, forged, honest)

	err := d.IndexBlock(context.Background(), block)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid validator signature")

	// The forged transaction never reached a strategy; the honest one did.
	assert.Equal(t, "0", balance(t, store, "0xminer", "HUSH"))
	assert.Equal(t, "5", balance(t, store, "0xhonest", "HUSH"))
}

func TestDispatcher_FailingStrategyNeverStallsTheBlock(t *testing.T) {
	store := setupStore(t)
	bus := feed.NewBus()
	reg := registry.New()
	require.NoError(t, reg.Register(&registry.Entry{Kind: types.KindReward, Strategy: NewRewardStrategy(store.Bank())}))
	failing := &failingStrategy{}
	reg.RegisterExtraStrategy(failing)

	var completed int
	bus.Subscribe(feed.BlockIndexCompleted, func(_ context.Context, _ *feed.Event) error {
		completed++
		return nil
	})
	d := NewDispatcher(context.Background(), reg, bus)

	block := finalizedBlock(t, 4,
		validated(t, &types.RewardPayload{IssuerPublicAddress: "0xminer", Token: "HUSH", Amount: "10"}),
	)
	err := d.IndexBlock(context.Background(), block)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strategy broke")

	// Completion fires regardless and the healthy strategy still applied.
	assert.Equal(t, 1, completed)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, "10", balance(t, store, "0xminer", "HUSH"))
}
