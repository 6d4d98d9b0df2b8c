package types

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignTransaction_VerifyRoundTrip(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	unsigned, err := NewUnsignedTransaction(&SendFundsPayload{
		FromAddress: "0xaa",
		ToAddress:   "0xbb",
		Token:       "HUSH",
		Amount:      "10",
	})
	require.NoError(t, err)
	require.Equal(t, KindSendFunds, unsigned.PayloadKind)
	require.Equal(t, len(unsigned.Payload), unsigned.PayloadSize)

	signed, err := SignTransaction(priv, unsigned)
	require.NoError(t, err)
	assert.True(t, signed.VerifyUserSignature())
	assert.Equal(t, AddressFromKey(priv), signed.UserSignature.SignatoryPublicAddress)
}

func TestSignTransaction_TamperedPayloadFailsVerify(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	unsigned, err := NewUnsignedTransaction(&SendFundsPayload{FromAddress: "0xaa", ToAddress: "0xbb", Token: "HUSH", Amount: "10"})
	require.NoError(t, err)
	signed, err := SignTransaction(priv, unsigned)
	require.NoError(t, err)

	raw, err := EncodePayload(&SendFundsPayload{FromAddress: "0xaa", ToAddress: "0xcc", Token: "HUSH", Amount: "10"})
	require.NoError(t, err)
	signed.Payload = raw
	assert.False(t, signed.VerifyUserSignature())
}

func TestCountersignTransaction_BothSignaturesHold(t *testing.T) {
	userKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	producerKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	unsigned, err := NewUnsignedTransaction(&UpdateIdentityPayload{PublicSigningAddress: "0xaa", Alias: "alice"})
	require.NoError(t, err)
	signed, err := SignTransaction(userKey, unsigned)
	require.NoError(t, err)
	validated, err := CountersignTransaction(producerKey, signed)
	require.NoError(t, err)

	assert.True(t, validated.VerifyUserSignature())
	assert.True(t, validated.VerifyValidatorSignature())
	assert.Equal(t, AddressFromKey(producerKey), validated.ValidatorSignature.SignatoryPublicAddress)
}

func TestDecodeValidatedTransaction_WireRoundTrip(t *testing.T) {
	userKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	unsigned, err := NewUnsignedTransaction(&FullIdentityPayload{
		PublicSigningAddress: "0xaa",
		Alias:                "alice",
		ShortAlias:           "al",
		IsPublic:             true,
	})
	require.NoError(t, err)
	signed, err := SignTransaction(userKey, unsigned)
	require.NoError(t, err)
	validated, err := CountersignTransaction(userKey, signed)
	require.NoError(t, err)

	wire, err := json.Marshal(validated)
	require.NoError(t, err)
	decoded, err := DecodeValidatedTransaction(wire)
	require.NoError(t, err)

	assert.Equal(t, validated.ID, decoded.ID)
	assert.True(t, decoded.VerifyUserSignature())
	assert.True(t, decoded.VerifyValidatorSignature())

	payload, err := decoded.DecodedPayload()
	require.NoError(t, err)
	identity, ok := payload.(*FullIdentityPayload)
	require.True(t, ok)
	assert.Equal(t, "alice", identity.Alias)
}

func TestDecodePayload_UnknownKind(t *testing.T) {
	_, err := DecodePayload(PayloadKind{}, []byte(`{}`))
	require.ErrorIs(t, err, ErrUnknownPayloadKind)
}

func TestTimestamp_CanonicalForm(t *testing.T) {
	ts, err := ParseTimestamp("2024-03-01T12:30:45.1234567Z")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T12:30:45.1234567Z", ts.String())

	enc, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-01T12:30:45.1234567Z"`, string(enc))

	var decoded Timestamp
	require.NoError(t, json.Unmarshal(enc, &decoded))
	assert.Equal(t, ts.Time(), decoded.Time())
}

func TestTimestamp_NowSurvivesRoundTrip(t *testing.T) {
	ts := Now()
	enc, err := json.Marshal(ts)
	require.NoError(t, err)
	var decoded Timestamp
	require.NoError(t, json.Unmarshal(enc, &decoded))
	assert.Equal(t, ts.String(), decoded.String())
	assert.True(t, ts.Time().Equal(decoded.Time()))
}
