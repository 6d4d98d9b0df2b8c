// Package registry maps payload-kind tags to their decoder, content
// validator and index strategy. Dispatch is data-driven: wire bytes are
// peeked for the kind tag and routed to the registered entry.
package registry

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/Hushnetwork-social/hush-server-node-sub008/core/types"
)

// ContentValidator validates a signed transaction of its kind and
// countersigns it with the block producer credential.
type ContentValidator interface {
	CanValidate(kind types.PayloadKind) bool
	ValidateAndSign(ctx context.Context, tx *types.SignedTransaction) (*types.ValidatedTransaction, error)
}

// IndexStrategy projects one committed transaction onto derived state.
// Strategies are idempotent on (block index, transaction id).
type IndexStrategy interface {
	CanHandle(tx *types.ValidatedTransaction) bool
	Handle(ctx context.Context, blockIndex types.BlockIndex, tx *types.ValidatedTransaction) error
}

// Entry binds one payload kind to its codec, validator and strategy.
type Entry struct {
	Kind            types.PayloadKind
	DecodeSigned    func(raw []byte) (*types.SignedTransaction, error)
	DecodeValidated func(raw []byte) (*types.ValidatedTransaction, error)
	Validator       ContentValidator
	Strategy        IndexStrategy
}

// Registry is populated once at startup and read-only afterwards.
type Registry struct {
	entries    map[types.PayloadKind]*Entry
	strategies []IndexStrategy
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[types.PayloadKind]*Entry)}
}

// Register adds one entry. Registering the same kind twice is a wiring bug.
func (r *Registry) Register(e *Entry) error {
	if _, exists := r.entries[e.Kind]; exists {
		return errors.Errorf("payload kind already registered: %s", e.Kind)
	}
	if e.DecodeSigned == nil {
		e.DecodeSigned = types.DecodeSignedTransaction
	}
	if e.DecodeValidated == nil {
		e.DecodeValidated = types.DecodeValidatedTransaction
	}
	r.entries[e.Kind] = e
	if e.Strategy != nil {
		r.strategies = append(r.strategies, e.Strategy)
	}
	return nil
}

// RegisterExtraStrategy adds a strategy that is not bound to a single
// entry, such as the identity and membership strategies that own several
// payload kinds.
func (r *Registry) RegisterExtraStrategy(s IndexStrategy) {
	r.strategies = append(r.strategies, s)
}

// Entry returns the entry of a kind, failing with ErrUnknownPayloadKind for
// unregistered tags.
func (r *Registry) Entry(kind types.PayloadKind) (*Entry, error) {
	e, ok := r.entries[kind]
	if !ok {
		return nil, errors.Wrapf(types.ErrUnknownPayloadKind, "%s", kind)
	}
	return e, nil
}

// ValidatorFor returns the content validator of a kind.
func (r *Registry) ValidatorFor(kind types.PayloadKind) (ContentValidator, error) {
	e, err := r.Entry(kind)
	if err != nil {
		return nil, err
	}
	return e.Validator, nil
}

// Strategies returns all registered strategies. The dispatcher filters them
// through CanHandle per transaction.
func (r *Registry) Strategies() []IndexStrategy {
	return r.strategies
}

// envelopePeek is the minimal wire shape needed to route a transaction.
type envelopePeek struct {
	PayloadKind        types.PayloadKind    `json:"payloadKind"`
	ValidatorSignature *types.SignatureInfo `json:"validatorSignature"`
}

// DecodeSigned routes wire bytes to the kind's signed decoder.
func (r *Registry) DecodeSigned(raw []byte) (*types.SignedTransaction, error) {
	e, err := r.peek(raw)
	if err != nil {
		return nil, err
	}
	return e.DecodeSigned(raw)
}

// Decode routes wire bytes to the kind's decoder, picking the validated
// decoder when a validator signature is present.
func (r *Registry) Decode(raw []byte) (interface{}, error) {
	peek := &envelopePeek{}
	if err := json.Unmarshal(raw, peek); err != nil {
		return nil, errors.Wrap(err, "could not peek transaction envelope")
	}
	e, err := r.Entry(peek.PayloadKind)
	if err != nil {
		return nil, err
	}
	if peek.ValidatorSignature != nil {
		return e.DecodeValidated(raw)
	}
	return e.DecodeSigned(raw)
}

func (r *Registry) peek(raw []byte) (*Entry, error) {
	peek := &envelopePeek{}
	if err := json.Unmarshal(raw, peek); err != nil {
		return nil, errors.Wrap(err, "could not peek transaction envelope")
	}
	return r.Entry(peek.PayloadKind)
}
