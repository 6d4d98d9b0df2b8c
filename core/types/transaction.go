package types

import (
	"crypto/ecdsa"
	"encoding/json"

	"github.com/pkg/errors"
)

// UnsignedTransaction is the first of the three transaction states. Its
// canonical JSON (field order as declared) is the content the user signs.
type UnsignedTransaction struct {
	ID          TransactionID   `json:"id"`
	PayloadKind PayloadKind     `json:"payloadKind"`
	Timestamp   Timestamp       `json:"timestamp"`
	Payload     json.RawMessage `json:"payload"`
	PayloadSize int             `json:"payloadSize"`
}

// SignedTransaction is an unsigned transaction plus the user's signature
// over the unsigned canonical JSON.
type SignedTransaction struct {
	UnsignedTransaction
	UserSignature *SignatureInfo `json:"userSignature"`
}

// ValidatedTransaction is a signed transaction plus the block producer's
// countersignature over the signed canonical JSON.
type ValidatedTransaction struct {
	SignedTransaction
	ValidatorSignature *SignatureInfo `json:"validatorSignature"`
}

// NewUnsignedTransaction wraps a payload into a fresh unsigned transaction.
func NewUnsignedTransaction(p Payload) (*UnsignedTransaction, error) {
	raw, err := EncodePayload(p)
	if err != nil {
		return nil, err
	}
	return &UnsignedTransaction{
		ID:          NewTransactionID(),
		PayloadKind: p.Kind(),
		Timestamp:   Now(),
		Payload:     raw,
		PayloadSize: len(raw),
	}, nil
}

// CanonicalJSON renders the stable signing form of the unsigned state.
func (u *UnsignedTransaction) CanonicalJSON() ([]byte, error) {
	enc, err := json.Marshal(u)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode unsigned transaction")
	}
	return enc, nil
}

// DecodedPayload decodes the carried payload according to the kind tag.
func (u *UnsignedTransaction) DecodedPayload() (Payload, error) {
	return DecodePayload(u.PayloadKind, u.Payload)
}

// SignTransaction attaches the user signature, producing the signed state.
func SignTransaction(priv *ecdsa.PrivateKey, u *UnsignedTransaction) (*SignedTransaction, error) {
	canonical, err := u.CanonicalJSON()
	if err != nil {
		return nil, err
	}
	sig, err := Sign(priv, canonical)
	if err != nil {
		return nil, err
	}
	return &SignedTransaction{UnsignedTransaction: *u, UserSignature: sig}, nil
}

// CanonicalJSON renders the stable signing form of the signed state.
func (s *SignedTransaction) CanonicalJSON() ([]byte, error) {
	enc, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode signed transaction")
	}
	return enc, nil
}

// ExtractUnsigned projects the signed state back to its unsigned form.
func (s *SignedTransaction) ExtractUnsigned() *UnsignedTransaction {
	u := s.UnsignedTransaction
	return &u
}

// VerifyUserSignature checks the user signature against the unsigned form.
func (s *SignedTransaction) VerifyUserSignature() bool {
	canonical, err := s.ExtractUnsigned().CanonicalJSON()
	if err != nil {
		return false
	}
	return Verify(canonical, s.UserSignature)
}

// CountersignTransaction attaches the validator signature, producing the
// validated state.
func CountersignTransaction(priv *ecdsa.PrivateKey, s *SignedTransaction) (*ValidatedTransaction, error) {
	canonical, err := s.CanonicalJSON()
	if err != nil {
		return nil, err
	}
	sig, err := Sign(priv, canonical)
	if err != nil {
		return nil, err
	}
	return &ValidatedTransaction{SignedTransaction: *s, ValidatorSignature: sig}, nil
}

// ExtractSigned projects the validated state back to its signed form.
func (v *ValidatedTransaction) ExtractSigned() *SignedTransaction {
	s := v.SignedTransaction
	return &s
}

// VerifyValidatorSignature checks the countersignature against the signed form.
func (v *ValidatedTransaction) VerifyValidatorSignature() bool {
	canonical, err := v.ExtractSigned().CanonicalJSON()
	if err != nil {
		return false
	}
	return Verify(canonical, v.ValidatorSignature)
}

// DecodeSignedTransaction parses a signed transaction from wire JSON.
func DecodeSignedTransaction(raw []byte) (*SignedTransaction, error) {
	s := &SignedTransaction{}
	if err := json.Unmarshal(raw, s); err != nil {
		return nil, errors.Wrap(err, "could not decode signed transaction")
	}
	return s, nil
}

// DecodeValidatedTransaction parses a validated transaction from wire JSON.
func DecodeValidatedTransaction(raw []byte) (*ValidatedTransaction, error) {
	v := &ValidatedTransaction{}
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, errors.Wrap(err, "could not decode validated transaction")
	}
	return v, nil
}
