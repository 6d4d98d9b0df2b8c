package indexer

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hushnetwork-social/hush-server-node-sub008/core/types"
	"github.com/Hushnetwork-social/hush-server-node-sub008/db/kv"
)

func setupStore(t *testing.T) *kv.Store {
	t.Helper()
	store, err := kv.NewKVStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func validated(t *testing.T, payload types.Payload) *types.ValidatedTransaction {
	t.Helper()
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	unsigned, err := types.NewUnsignedTransaction(payload)
	require.NoError(t, err)
	signed, err := types.SignTransaction(priv, unsigned)
	require.NoError(t, err)
	tx, err := types.CountersignTransaction(priv, signed)
	require.NoError(t, err)
	return tx
}

func balance(t *testing.T, store *kv.Store, address, token string) string {
	t.Helper()
	row, err := store.Bank().Balance(context.Background(), address, token)
	require.NoError(t, err)
	return row.Balance
}

func TestReward_CreditsOncePerTransaction(t *testing.T) {
	store := setupStore(t)
	s := NewRewardStrategy(store.Bank())
	tx := validated(t, &types.RewardPayload{IssuerPublicAddress: "0xminer", Token: "HUSH", Amount: "10"})

	require.NoError(t, s.Handle(context.Background(), 1, tx))
	assert.Equal(t, "10", balance(t, store, "0xminer", "HUSH"))

	// Replaying the same transaction id finds the mark and skips.
	require.NoError(t, s.Handle(context.Background(), 1, tx))
	assert.Equal(t, "10", balance(t, store, "0xminer", "HUSH"))
}

func TestFunds_TransfersAtomically(t *testing.T) {
	store := setupStore(t)
	require.NoError(t, NewRewardStrategy(store.Bank()).Handle(context.Background(), 1,
		validated(t, &types.RewardPayload{IssuerPublicAddress: "0xaa", Token: "HUSH", Amount: "10"})))

	s := NewFundsStrategy(store.Bank())
	tx := validated(t, &types.SendFundsPayload{FromAddress: "0xaa", ToAddress: "0xbb", Token: "HUSH", Amount: "4"})
	require.NoError(t, s.Handle(context.Background(), 2, tx))

	assert.Equal(t, "6", balance(t, store, "0xaa", "HUSH"))
	assert.Equal(t, "4", balance(t, store, "0xbb", "HUSH"))

	require.NoError(t, s.Handle(context.Background(), 2, tx))
	assert.Equal(t, "6", balance(t, store, "0xaa", "HUSH"))
	assert.Equal(t, "4", balance(t, store, "0xbb", "HUSH"))
}

func TestFunds_InsufficientBalanceSkipsTransfer(t *testing.T) {
	store := setupStore(t)
	s := NewFundsStrategy(store.Bank())
	tx := validated(t, &types.SendFundsPayload{FromAddress: "0xpoor", ToAddress: "0xbb", Token: "HUSH", Amount: "100"})

	// The skip is not an error and balances stay untouched.
	require.NoError(t, s.Handle(context.Background(), 1, tx))
	assert.Equal(t, "0", balance(t, store, "0xpoor", "HUSH"))
	assert.Equal(t, "0", balance(t, store, "0xbb", "HUSH"))

	// The mark committed with the skip, so a later replay stays a no-op even
	// if the sender has funds by then.
	require.NoError(t, NewRewardStrategy(store.Bank()).Handle(context.Background(), 2,
		validated(t, &types.RewardPayload{IssuerPublicAddress: "0xpoor", Token: "HUSH", Amount: "200"})))
	require.NoError(t, s.Handle(context.Background(), 1, tx))
	assert.Equal(t, "200", balance(t, store, "0xpoor", "HUSH"))
}

func TestFunds_RejectsNegativeAmount(t *testing.T) {
	store := setupStore(t)
	s := NewFundsStrategy(store.Bank())
	tx := validated(t, &types.SendFundsPayload{FromAddress: "0xaa", ToAddress: "0xbb", Token: "HUSH", Amount: "-1"})
	require.Error(t, s.Handle(context.Background(), 1, tx))
}

func TestBankStrategies_CanHandle(t *testing.T) {
	store := setupStore(t)
	reward := validated(t, &types.RewardPayload{IssuerPublicAddress: "0xaa", Token: "HUSH", Amount: "1"})
	transfer := validated(t, &types.SendFundsPayload{FromAddress: "0xaa", ToAddress: "0xbb", Token: "HUSH", Amount: "1"})

	assert.True(t, NewRewardStrategy(store.Bank()).CanHandle(reward))
	assert.False(t, NewRewardStrategy(store.Bank()).CanHandle(transfer))
	assert.True(t, NewFundsStrategy(store.Bank()).CanHandle(transfer))
	assert.False(t, NewFundsStrategy(store.Bank()).CanHandle(reward))
}
