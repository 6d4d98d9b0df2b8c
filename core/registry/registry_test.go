package registry

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hushnetwork-social/hush-server-node-sub008/core/types"
)

type noopStrategy struct{ kind types.PayloadKind }

func (s *noopStrategy) CanHandle(tx *types.ValidatedTransaction) bool {
	return tx.PayloadKind == s.kind
}

func (s *noopStrategy) Handle(_ context.Context, _ types.BlockIndex, _ *types.ValidatedTransaction) error {
	return nil
}

func TestRegister_DuplicateKindFails(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register(&Entry{Kind: types.KindSendFunds}))
	require.Error(t, reg.Register(&Entry{Kind: types.KindSendFunds}))
}

func TestEntry_UnknownKind(t *testing.T) {
	reg := New()
	_, err := reg.Entry(types.KindSendFunds)
	require.ErrorIs(t, err, types.ErrUnknownPayloadKind)
}

func TestStrategies_CollectsRegisteredAndExtra(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register(&Entry{
		Kind:     types.KindSendFunds,
		Strategy: &noopStrategy{kind: types.KindSendFunds},
	}))
	require.NoError(t, reg.Register(&Entry{Kind: types.KindUpdateIdentity}))
	reg.RegisterExtraStrategy(&noopStrategy{kind: types.KindReward})

	assert.Len(t, reg.Strategies(), 2)
}

func TestDecode_RoutesByEnvelope(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	reg := New()
	require.NoError(t, reg.Register(&Entry{Kind: types.KindSendFunds}))

	unsigned, err := types.NewUnsignedTransaction(&types.SendFundsPayload{
		FromAddress: "0xaa", ToAddress: "0xbb", Token: "HUSH", Amount: "3",
	})
	require.NoError(t, err)
	signed, err := types.SignTransaction(priv, unsigned)
	require.NoError(t, err)

	wire, err := json.Marshal(signed)
	require.NoError(t, err)
	decoded, err := reg.Decode(wire)
	require.NoError(t, err)
	_, isSigned := decoded.(*types.SignedTransaction)
	assert.True(t, isSigned)

	validated, err := types.CountersignTransaction(priv, signed)
	require.NoError(t, err)
	wire, err = json.Marshal(validated)
	require.NoError(t, err)
	decoded, err = reg.Decode(wire)
	require.NoError(t, err)
	_, isValidated := decoded.(*types.ValidatedTransaction)
	assert.True(t, isValidated)
}

func TestDecodeSigned_UnknownKind(t *testing.T) {
	reg := New()
	_, err := reg.DecodeSigned([]byte(`{"payloadKind":"7f1c5a02-8a6e-4f5b-9d3a-1e0b6f2c8d91"}`))
	require.ErrorIs(t, err, types.ErrUnknownPayloadKind)
}
