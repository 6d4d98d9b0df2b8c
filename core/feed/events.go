// Package feed is the in-process event bus that connects the transaction
// pipeline: block production publishes, indexing subscribes, and the
// idempotency gate and scheduler react to completion events.
//
// How to add a new event:
//  1. Add a constant describing the event to the list below.
//  2. Add a structure named `<event>Data` carrying the event fields.
//
// The same event value is handed to every subscriber, so subscribers must
// treat the data as read-only.
package feed

import (
	"time"

	"github.com/Hushnetwork-social/hush-server-node-sub008/core/types"
)

// EventType is the type that defines the type of event.
type EventType int

const (
	// BlockchainInitialized is sent once the chain foundation has verified
	// or created the chain state and block production may begin.
	BlockchainInitialized EventType = iota + 1
	// TransactionReceived is sent when a validated transaction enters the
	// mempool.
	TransactionReceived
	// BlockCreated is sent after a block and its chain state have been
	// committed atomically.
	BlockCreated
	// BlockIndexCompleted is sent after every index strategy for every
	// transaction of a block has returned.
	BlockIndexCompleted
	// IdentityUpdated is sent when an identity strategy changed a profile.
	IdentityUpdated
	// FeedMembershipChanged is sent when a membership strategy changed the
	// commitment set of a feed; the merkle maintainer rebuilds on it.
	FeedMembershipChanged
)

// Event is the value published on the bus.
type Event struct {
	// Type is the type of event.
	Type EventType
	// Data is event-specific data.
	Data interface{}
}

// BlockchainInitializedData is the data sent with BlockchainInitialized.
type BlockchainInitializedData struct {
	// StartTime is the time at which the node considered the chain ready.
	StartTime time.Time
	// Index is the chain tip index at initialization.
	Index types.BlockIndex
}

// TransactionReceivedData is the data sent with TransactionReceived.
type TransactionReceivedData struct {
	// ID of the transaction that entered the mempool.
	ID types.TransactionID
	// Kind is the payload kind of the transaction.
	Kind types.PayloadKind
}

// BlockCreatedData is the data sent with BlockCreated.
type BlockCreatedData struct {
	// Block is the committed finalized block.
	Block *types.FinalizedBlock
}

// BlockIndexCompletedData is the data sent with BlockIndexCompleted.
type BlockIndexCompletedData struct {
	// Index of the block whose indexing finished.
	Index types.BlockIndex
}

// IdentityUpdatedData is the data sent with IdentityUpdated.
type IdentityUpdatedData struct {
	// PublicSigningAddress of the updated profile.
	PublicSigningAddress string
}

// FeedMembershipChangedData is the data sent with FeedMembershipChanged.
type FeedMembershipChangedData struct {
	// FeedID whose commitment set changed.
	FeedID types.FeedID
	// BlockIndex of the block that carried the membership change.
	BlockIndex types.BlockIndex
}
