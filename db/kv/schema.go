package kv

// The schema of the five bounded-context databases. Each bucket is one
// table; key layouts are noted per bucket.
var (
	// blockchain.db
	blocksBucket     = []byte("blocks")      // block id -> BlockchainBlock
	blockIndexBucket = []byte("block-index") // big-endian index -> block id
	chainStateBucket = []byte("chain-state") // "state" -> BlockchainState

	// bank.db
	balancesBucket = []byte("balances") // address|token -> AddressBalance
	appliedBucket  = []byte("applied")  // transaction id -> 0x01

	// identity.db
	profilesBucket = []byte("profiles") // signing address -> IdentityProfile

	// feeds.db
	feedsBucket        = []byte("feeds")         // feed id -> Feed
	participantsBucket = []byte("participants")  // feed id|address -> FeedParticipant
	personalBucket     = []byte("personal")      // owner address -> feed id
	messagesBucket     = []byte("messages")      // message id -> FeedMessage
	feedMessagesBucket = []byte("feed-messages") // feed id|message id -> message id
	commitmentsBucket  = []byte("commitments")   // feed id|commitment -> 0x01
	bansBucket         = []byte("bans")          // feed id|address -> 0x01
	merkleRootsBucket  = []byte("merkle-roots")  // feed id|big-endian height -> MerkleRootHistory

	// reactions.db
	talliesBucket    = []byte("tallies")    // message id -> MessageReactionTally
	nullifiersBucket = []byte("nullifiers") // nullifier -> ReactionNullifier
)

var chainStateKey = []byte("state")
