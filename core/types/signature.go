package types

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// SignatureInfo carries a signature together with the public address of the
// signatory. Signatures are produced over the keccak digest of a canonical
// JSON encoding, so the same bytes always yield the same signature.
type SignatureInfo struct {
	SignatoryPublicAddress string        `json:"signatoryPublicAddress"`
	Signature              hexutil.Bytes `json:"signature"`
}

// AddressFromKey derives the public address string for a signing key.
func AddressFromKey(priv *ecdsa.PrivateKey) string {
	return crypto.PubkeyToAddress(priv.PublicKey).Hex()
}

// Sign produces a SignatureInfo over the given canonical bytes.
func Sign(priv *ecdsa.PrivateKey, canonical []byte) (*SignatureInfo, error) {
	if priv == nil {
		return nil, errors.New("nil signing key")
	}
	digest := crypto.Keccak256(canonical)
	sig, err := crypto.Sign(digest, priv)
	if err != nil {
		return nil, errors.Wrap(err, "could not sign digest")
	}
	return &SignatureInfo{
		SignatoryPublicAddress: AddressFromKey(priv),
		Signature:              sig,
	}, nil
}

// Verify reports whether info is a valid signature over the canonical bytes
// by the claimed signatory.
func Verify(canonical []byte, info *SignatureInfo) bool {
	if info == nil || len(info.Signature) != crypto.SignatureLength {
		return false
	}
	digest := crypto.Keccak256(canonical)
	pub, err := crypto.SigToPub(digest, info.Signature)
	if err != nil {
		return false
	}
	return crypto.PubkeyToAddress(*pub).Hex() == info.SignatoryPublicAddress
}
