// Package types holds the primitive value types of the Hush network:
// opaque identifiers, canonical timestamps, signature envelopes, the
// transaction tri-state and the block forms. Everything downstream of the
// transaction pipeline speaks in these types.
package types

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// BlockIndex is the height of a block in the chain. It only ever advances
// by one per committed block.
type BlockIndex int64

const (
	// EmptyBlockIndex marks an unset index.
	EmptyBlockIndex BlockIndex = -1
	// GenesisBlockIndex is the index of the very first block.
	GenesisBlockIndex BlockIndex = 1
)

// BlockID identifies a block.
type BlockID uuid.UUID

// BlockchainStateID identifies the single chain-tip row.
type BlockchainStateID uuid.UUID

// TransactionID identifies a transaction.
type TransactionID uuid.UUID

// FeedID identifies a feed.
type FeedID uuid.UUID

// FeedMessageID identifies a message within a feed.
type FeedMessageID uuid.UUID

// ReactionID identifies an anonymous reaction submission.
type ReactionID uuid.UUID

var (
	// EmptyBlockID is the zero block id, used as the previous id of genesis.
	EmptyBlockID = BlockID(uuid.Nil)
	// GenesisBlockID is the well-known id of block #1.
	GenesisBlockID = BlockID(uuid.MustParse("0f42400e-98c1-47a9-9f46-b2a5f1b0c9d1"))
	// ChainStateID is the well-known id of the single chain-state row.
	ChainStateID = BlockchainStateID(uuid.MustParse("6d5af0cf-37d0-4b3f-b2a1-0c4f9a7e55e2"))
	// EmptyFeedID is the zero feed id.
	EmptyFeedID = FeedID(uuid.Nil)
	// EmptyFeedMessageID is the zero message id.
	EmptyFeedMessageID = FeedMessageID(uuid.Nil)
)

// NewBlockID mints a fresh block id.
func NewBlockID() BlockID { return BlockID(uuid.New()) }

// NewTransactionID mints a fresh transaction id.
func NewTransactionID() TransactionID { return TransactionID(uuid.New()) }

// NewFeedID mints a fresh feed id.
func NewFeedID() FeedID { return FeedID(uuid.New()) }

// NewFeedMessageID mints a fresh feed message id.
func NewFeedMessageID() FeedMessageID { return FeedMessageID(uuid.New()) }

// NewReactionID mints a fresh reaction id.
func NewReactionID() ReactionID { return ReactionID(uuid.New()) }

func (id BlockID) String() string           { return uuid.UUID(id).String() }
func (id BlockchainStateID) String() string { return uuid.UUID(id).String() }
func (id TransactionID) String() string     { return uuid.UUID(id).String() }
func (id FeedID) String() string            { return uuid.UUID(id).String() }
func (id FeedMessageID) String() string     { return uuid.UUID(id).String() }
func (id ReactionID) String() string        { return uuid.UUID(id).String() }

// IsEmpty reports whether the id is the zero uuid.
func (id BlockID) IsEmpty() bool       { return uuid.UUID(id) == uuid.Nil }
func (id FeedID) IsEmpty() bool        { return uuid.UUID(id) == uuid.Nil }
func (id FeedMessageID) IsEmpty() bool { return uuid.UUID(id) == uuid.Nil }

// Bytes returns the raw 16-byte form, used as a database key.
func (id BlockID) Bytes() []byte       { b := uuid.UUID(id); return b[:] }
func (id TransactionID) Bytes() []byte { b := uuid.UUID(id); return b[:] }
func (id FeedID) Bytes() []byte        { b := uuid.UUID(id); return b[:] }
func (id FeedMessageID) Bytes() []byte { b := uuid.UUID(id); return b[:] }

func marshalID(u uuid.UUID) ([]byte, error) {
	return []byte(`"` + u.String() + `"`), nil
}

func unmarshalID(data []byte) (uuid.UUID, error) {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return uuid.Nil, errors.New("id is not a JSON string")
	}
	u, err := uuid.Parse(string(data[1 : len(data)-1]))
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "could not parse id")
	}
	return u, nil
}

// MarshalJSON renders the id in its canonical string form.
func (id BlockID) MarshalJSON() ([]byte, error)           { return marshalID(uuid.UUID(id)) }
func (id BlockchainStateID) MarshalJSON() ([]byte, error) { return marshalID(uuid.UUID(id)) }
func (id TransactionID) MarshalJSON() ([]byte, error)     { return marshalID(uuid.UUID(id)) }
func (id FeedID) MarshalJSON() ([]byte, error)            { return marshalID(uuid.UUID(id)) }
func (id FeedMessageID) MarshalJSON() ([]byte, error)     { return marshalID(uuid.UUID(id)) }
func (id ReactionID) MarshalJSON() ([]byte, error)        { return marshalID(uuid.UUID(id)) }

// UnmarshalJSON parses the canonical string form.
func (id *BlockID) UnmarshalJSON(data []byte) error {
	u, err := unmarshalID(data)
	if err != nil {
		return err
	}
	*id = BlockID(u)
	return nil
}

func (id *BlockchainStateID) UnmarshalJSON(data []byte) error {
	u, err := unmarshalID(data)
	if err != nil {
		return err
	}
	*id = BlockchainStateID(u)
	return nil
}

func (id *TransactionID) UnmarshalJSON(data []byte) error {
	u, err := unmarshalID(data)
	if err != nil {
		return err
	}
	*id = TransactionID(u)
	return nil
}

func (id *FeedID) UnmarshalJSON(data []byte) error {
	u, err := unmarshalID(data)
	if err != nil {
		return err
	}
	*id = FeedID(u)
	return nil
}

func (id *FeedMessageID) UnmarshalJSON(data []byte) error {
	u, err := unmarshalID(data)
	if err != nil {
		return err
	}
	*id = FeedMessageID(u)
	return nil
}

func (id *ReactionID) UnmarshalJSON(data []byte) error {
	u, err := unmarshalID(data)
	if err != nil {
		return err
	}
	*id = ReactionID(u)
	return nil
}

// ParseFeedID parses the canonical string form of a feed id.
func ParseFeedID(s string) (FeedID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return EmptyFeedID, errors.Wrap(err, "could not parse feed id")
	}
	return FeedID(u), nil
}

// ParseFeedMessageID parses the canonical string form of a message id.
func ParseFeedMessageID(s string) (FeedMessageID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return EmptyFeedMessageID, errors.Wrap(err, "could not parse message id")
	}
	return FeedMessageID(u), nil
}

// FeedIDFromBytes builds a FeedID from its raw 16-byte form.
func FeedIDFromBytes(b []byte) (FeedID, error) {
	u, err := uuid.FromBytes(b)
	if err != nil {
		return EmptyFeedID, errors.Wrap(err, "invalid feed id bytes")
	}
	return FeedID(u), nil
}

// FeedMessageIDFromBytes builds a FeedMessageID from its raw 16-byte form.
func FeedMessageIDFromBytes(b []byte) (FeedMessageID, error) {
	u, err := uuid.FromBytes(b)
	if err != nil {
		return EmptyFeedMessageID, errors.Wrap(err, "invalid message id bytes")
	}
	return FeedMessageID(u), nil
}
