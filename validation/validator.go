// Package validation implements the per-kind content validators that admit
// transactions into the mempool: structural checks, user signature
// verification and the producer countersignature.
package validation

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Hushnetwork-social/hush-server-node-sub008/config/params"
	"github.com/Hushnetwork-social/hush-server-node-sub008/core/types"
)

var log = logrus.WithField("prefix", "validation")

// ErrValidationFailed wraps every rejection so callers can map it to a
// Rejected status without inspecting causes.
var ErrValidationFailed = errors.New("validation failed")

// SigningValidator performs the checks shared by all payload kinds:
// envelope sanity, payload-kind equality, user signature verification, then
// countersigning with the producer credential.
type SigningValidator struct {
	kind  types.PayloadKind
	creds *params.Credentials
}

// NewSigningValidator returns the generic validator for one payload kind.
func NewSigningValidator(kind types.PayloadKind, creds *params.Credentials) *SigningValidator {
	return &SigningValidator{kind: kind, creds: creds}
}

// CanValidate reports whether this validator owns the kind.
func (v *SigningValidator) CanValidate(kind types.PayloadKind) bool {
	return kind == v.kind
}

// ValidateAndSign runs the common checks and countersigns.
func (v *SigningValidator) ValidateAndSign(ctx context.Context, tx *types.SignedTransaction) (*types.ValidatedTransaction, error) {
	if err := v.validate(ctx, tx); err != nil {
		return nil, err
	}
	return types.CountersignTransaction(v.creds.PrivateKey, tx)
}

func (v *SigningValidator) validate(_ context.Context, tx *types.SignedTransaction) error {
	if tx == nil || tx.UserSignature == nil {
		return errors.Wrap(ErrValidationFailed, "missing user signature")
	}
	if tx.PayloadKind != v.kind {
		return errors.Wrapf(ErrValidationFailed, "payload kind %s routed to validator for %s", tx.PayloadKind, v.kind)
	}
	if tx.PayloadSize != len(tx.Payload) {
		return errors.Wrap(ErrValidationFailed, "payload size mismatch")
	}
	payload, err := tx.DecodedPayload()
	if err != nil {
		return errors.Wrap(ErrValidationFailed, err.Error())
	}
	if payload.Kind() != tx.PayloadKind {
		return errors.Wrap(ErrValidationFailed, "payload kind tag mismatch")
	}
	if !tx.VerifyUserSignature() {
		return errors.Wrap(ErrValidationFailed, "invalid user signature")
	}
	return nil
}
