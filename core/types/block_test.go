package types

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignBlock_FinalizeAndRow(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	unsignedTx, err := NewUnsignedTransaction(&RewardPayload{IssuerPublicAddress: AddressFromKey(priv), Token: "HUSH", Amount: "1"})
	require.NoError(t, err)
	signedTx, err := SignTransaction(priv, unsignedTx)
	require.NoError(t, err)
	validatedTx, err := CountersignTransaction(priv, signedTx)
	require.NoError(t, err)

	unsigned := &UnsignedBlock{
		ID:           GenesisBlockID,
		Timestamp:    Now(),
		Index:        GenesisBlockIndex,
		PreviousID:   EmptyBlockID,
		NextID:       NewBlockID(),
		Transactions: []*ValidatedTransaction{validatedTx},
	}
	signed, err := SignBlock(priv, unsigned)
	require.NoError(t, err)
	assert.True(t, signed.VerifyProducerSignature())

	finalized, err := FinalizeBlock(signed)
	require.NoError(t, err)
	assert.NotEmpty(t, finalized.Hash)

	row, err := finalized.Row()
	require.NoError(t, err)
	assert.Equal(t, finalized.ID, row.ID)
	assert.Equal(t, finalized.Index, row.Index)
	assert.Equal(t, finalized.Hash, row.Hash)

	decoded, err := DecodeFinalizedBlock(row.BlockJSON)
	require.NoError(t, err)
	assert.Equal(t, finalized.Hash, decoded.Hash)
	assert.True(t, decoded.VerifyProducerSignature())
	require.Len(t, decoded.Transactions, 1)
	assert.True(t, decoded.Transactions[0].VerifyValidatorSignature())
}

func TestFinalizeBlock_HashChangesWithContent(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	a := &UnsignedBlock{ID: NewBlockID(), Timestamp: Now(), Index: 2, PreviousID: GenesisBlockID, NextID: NewBlockID()}
	b := &UnsignedBlock{ID: NewBlockID(), Timestamp: a.Timestamp, Index: 3, PreviousID: a.ID, NextID: NewBlockID()}

	signedA, err := SignBlock(priv, a)
	require.NoError(t, err)
	signedB, err := SignBlock(priv, b)
	require.NoError(t, err)

	finalA, err := FinalizeBlock(signedA)
	require.NoError(t, err)
	finalB, err := FinalizeBlock(signedB)
	require.NoError(t, err)
	assert.NotEqual(t, finalA.Hash, finalB.Hash)
}

func TestGenesisState(t *testing.T) {
	state := GenesisState()
	assert.Equal(t, GenesisBlockIndex, state.Index)
	assert.Equal(t, GenesisBlockID, state.CurrentID)
	assert.True(t, state.PreviousID.IsEmpty())
	assert.True(t, state.IsGenesis())

	state.NextID = NewBlockID()
	assert.False(t, state.IsGenesis())
}
