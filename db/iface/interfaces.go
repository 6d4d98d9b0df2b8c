// Package iface defines the persistence façade. Storage is split into five
// bounded contexts; each context hands out read-only snapshot queries plus a
// writable unit of work that owns a single transaction and defers all side
// effects to Commit.
package iface

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/Hushnetwork-social/hush-server-node-sub008/core/types"
)

// ErrNotFound is returned by lookups that miss.
var ErrNotFound = errors.New("not found")

// ErrInsufficientFunds is returned when a debit would drive a balance
// negative.
var ErrInsufficientFunds = errors.New("insufficient funds")

// UnitOfWork is the common commit surface of all writable units of work.
// Exactly one of Commit or Rollback must be called; Rollback after Commit is
// a no-op so it can be deferred unconditionally.
type UnitOfWork interface {
	Commit() error
	Rollback() error
}

// BlockchainUnitOfWork writes blocks and the chain tip atomically.
type BlockchainUnitOfWork interface {
	UnitOfWork
	SaveBlock(block *types.BlockchainBlock) error
	SaveChainState(state *types.BlockchainState) error
}

// BlockchainContext is the blockchain bounded context.
type BlockchainContext interface {
	Writable() (BlockchainUnitOfWork, error)
	ChainState(ctx context.Context) (*types.BlockchainState, error)
	Block(ctx context.Context, id types.BlockID) (*types.BlockchainBlock, error)
	BlockByIndex(ctx context.Context, index types.BlockIndex) (*types.BlockchainBlock, error)
	HighestIndex(ctx context.Context) (types.BlockIndex, error)
}

// BankUnitOfWork mutates balances under the non-negativity invariant and
// records applied transfer ids for replay idempotence.
type BankUnitOfWork interface {
	UnitOfWork
	MarkApplied(id types.TransactionID) (bool, error)
	Credit(address, token string, amount decimal.Decimal) error
	Debit(address, token string, amount decimal.Decimal) error
}

// BankContext is the bank bounded context.
type BankContext interface {
	Writable() (BankUnitOfWork, error)
	Balance(ctx context.Context, address, token string) (*types.AddressBalance, error)
}

// IdentityUnitOfWork writes identity profiles.
type IdentityUnitOfWork interface {
	UnitOfWork
	SaveProfile(profile *types.IdentityProfile) error
}

// IdentityContext is the identity bounded context.
type IdentityContext interface {
	Writable() (IdentityUnitOfWork, error)
	Profile(ctx context.Context, publicSigningAddress string) (*types.IdentityProfile, error)
	SearchProfiles(ctx context.Context, partialAlias string) ([]*types.IdentityProfile, error)
}

// FeedsUnitOfWork writes feed state: feeds, participants, messages,
// member commitments, bans and merkle root history.
type FeedsUnitOfWork interface {
	UnitOfWork
	SaveFeed(feed *types.Feed) error
	SaveParticipant(p *types.FeedParticipant) error
	RemoveParticipant(feedID types.FeedID, memberAddress string) error
	// SaveMessage inserts a message row; a duplicate key is a no-op and
	// reports false.
	SaveMessage(msg *types.FeedMessage) (bool, error)
	SaveCommitment(c *types.FeedMemberCommitment) error
	RemoveCommitment(feedID types.FeedID, commitment []byte) error
	SaveBan(feedID types.FeedID, memberAddress string) error
	RemoveBan(feedID types.FeedID, memberAddress string) error
	SaveMerkleRoot(root *types.MerkleRootHistory) error
}

// FeedsContext is the feeds bounded context.
type FeedsContext interface {
	Writable() (FeedsUnitOfWork, error)
	Feed(ctx context.Context, id types.FeedID) (*types.Feed, error)
	PersonalFeedOf(ctx context.Context, ownerAddress string) (*types.Feed, error)
	Participants(ctx context.Context, feedID types.FeedID) ([]*types.FeedParticipant, error)
	FeedsForMember(ctx context.Context, memberAddress string) ([]*types.Feed, error)
	HasFeedMessage(ctx context.Context, id types.FeedMessageID) (bool, error)
	Message(ctx context.Context, id types.FeedMessageID) (*types.FeedMessage, error)
	MessagesForFeed(ctx context.Context, feedID types.FeedID, limit int) ([]*types.FeedMessage, error)
	IsBanned(ctx context.Context, feedID types.FeedID, memberAddress string) (bool, error)
	Commitments(ctx context.Context, feedID types.FeedID) ([][]byte, error)
	IsCommitmentRegistered(ctx context.Context, feedID types.FeedID, commitment []byte) (bool, error)
	RecentMerkleRoots(ctx context.Context, feedID types.FeedID, n int) ([]*types.MerkleRootHistory, error)
}

// ReactionsUnitOfWork moves a nullifier record and its message tally
// together in one transaction. The reads see writes made earlier in the
// same unit of work, which is what lets two same-nullifier reactions inside
// one block resolve in block order.
type ReactionsUnitOfWork interface {
	UnitOfWork
	Nullifier(nullifier []byte) (*types.ReactionNullifier, error)
	Tally(messageID types.FeedMessageID) (*types.MessageReactionTally, error)
	SaveNullifier(record *types.ReactionNullifier) error
	SaveTally(tally *types.MessageReactionTally) error
}

// ReactionsContext is the reactions bounded context.
type ReactionsContext interface {
	Writable() (ReactionsUnitOfWork, error)
	Tally(ctx context.Context, messageID types.FeedMessageID) (*types.MessageReactionTally, error)
	Tallies(ctx context.Context, feedID types.FeedID, messageIDs []types.FeedMessageID) ([]*types.MessageReactionTally, error)
	Nullifier(ctx context.Context, nullifier []byte) (*types.ReactionNullifier, error)
	NullifierExists(ctx context.Context, nullifier []byte) (bool, error)
}

// Database aggregates the five bounded contexts.
type Database interface {
	io.Closer
	Blockchain() BlockchainContext
	Bank() BankContext
	Identity() IdentityContext
	Feeds() FeedsContext
	Reactions() ReactionsContext
	DatabasePath() string
	ClearDB() error
}
