package ecvote

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto/bn256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// voteFor builds a well-formed ciphertext voting for one slot, using scalar
// multiples of the base point as stand-in ElGamal components.
func voteFor(t *testing.T, slot int, scalar int64) Ciphertext {
	t.Helper()
	v := Zero()
	p := new(bn256.G1).ScalarBaseMult(big.NewInt(scalar))
	enc := p.Marshal()
	v.C1X[slot] = enc[:CoordinateSize]
	v.C1Y[slot] = enc[CoordinateSize:]
	q := new(bn256.G1).ScalarBaseMult(big.NewInt(scalar + 1))
	enc = q.Marshal()
	v.C2X[slot] = enc[:CoordinateSize]
	v.C2Y[slot] = enc[CoordinateSize:]
	return v
}

func TestZero_ShapeAndIdentity(t *testing.T) {
	z := Zero()
	require.NoError(t, z.Validate())
	assert.True(t, z.IsZero())
}

func TestValidate_BadShape(t *testing.T) {
	v := Zero()
	v.C1X = v.C1X[:Slots-1]
	require.ErrorIs(t, v.Validate(), ErrBadShape)

	v = Zero()
	v.C2Y[0] = make([]byte, CoordinateSize-1)
	require.ErrorIs(t, v.Validate(), ErrBadShape)
}

func TestCombine_AddThenSubtractRestoresTally(t *testing.T) {
	tally := Zero()
	vote := voteFor(t, 2, 7)

	added, err := Combine(tally, vote, 1)
	require.NoError(t, err)
	assert.False(t, added.IsZero())
	assert.True(t, added.Equal(vote))

	restored, err := Combine(added, vote, -1)
	require.NoError(t, err)
	assert.True(t, restored.IsZero())
}

func TestCombine_VoteChangeSwapsCiphertexts(t *testing.T) {
	first := voteFor(t, 0, 3)
	second := voteFor(t, 4, 11)

	tally, err := Combine(Zero(), first, 1)
	require.NoError(t, err)

	// Swap: remove the old vote, add the new one.
	tally, err = Combine(tally, first, -1)
	require.NoError(t, err)
	tally, err = Combine(tally, second, 1)
	require.NoError(t, err)
	assert.True(t, tally.Equal(second))
}

func TestCombine_TwoVotesAccumulate(t *testing.T) {
	a := voteFor(t, 1, 5)
	b := voteFor(t, 1, 9)

	sum, err := Combine(a, b, 1)
	require.NoError(t, err)

	// Point addition on the same slot: 5G + 9G = 14G.
	expected := voteFor(t, 1, 14)
	assert.Equal(t, expected.C1X[1], sum.C1X[1])
	assert.Equal(t, expected.C1Y[1], sum.C1Y[1])
}

func TestCombine_RejectsBadShape(t *testing.T) {
	bad := Zero()
	bad.C1X = bad.C1X[:2]
	_, err := Combine(Zero(), bad, 1)
	require.Error(t, err)
}

func TestCombine_RejectsOffCurvePoint(t *testing.T) {
	bad := Zero()
	bad.C1X[0][31] = 1 // (1, 0) is not on the curve
	_, err := Combine(Zero(), bad, 1)
	require.Error(t, err)
}
