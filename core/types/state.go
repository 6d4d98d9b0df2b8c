package types

// Derived rows projected from committed blocks by the index strategies.
// These are never written from RPC paths.

// AddressBalance is the balance of one token held by one address. The
// balance is a fixed-precision decimal encoded as a string and never goes
// negative.
type AddressBalance struct {
	PublicAddress string `json:"publicAddress"`
	Token         string `json:"token"`
	Balance       string `json:"balance"`
}

// IdentityProfile is the registered identity of a public signing address.
type IdentityProfile struct {
	PublicSigningAddress string     `json:"publicSigningAddress"`
	Alias                string     `json:"alias"`
	ShortAlias           string     `json:"shortAlias"`
	PublicEncryptAddress string     `json:"publicEncryptAddress"`
	IsPublic             bool       `json:"isPublic"`
	BlockIndex           BlockIndex `json:"blockIndex"`
}

// FeedType distinguishes the three feed shapes.
type FeedType string

const (
	FeedTypePersonal FeedType = "Personal"
	FeedTypeChat     FeedType = "Chat"
	FeedTypeGroup    FeedType = "Group"
)

// ParticipantType is the role of a member within a feed.
type ParticipantType string

const (
	ParticipantOwner  ParticipantType = "Owner"
	ParticipantMember ParticipantType = "Member"
)

// Feed is a personal, chat or group feed.
type Feed struct {
	FeedID        FeedID     `json:"feedId"`
	Title         string     `json:"title"`
	FeedType      FeedType   `json:"feedType"`
	FeedPublicKey []byte     `json:"feedPublicKey"`
	BlockIndex    BlockIndex `json:"blockIndex"`
}

// FeedParticipant is one member of a feed, keyed by (FeedID, member address).
type FeedParticipant struct {
	FeedID              FeedID          `json:"feedId"`
	MemberPublicAddress string          `json:"memberPublicAddress"`
	ParticipantType     ParticipantType `json:"participantType"`
	EncryptedFeedKey    string          `json:"encryptedFeedKey"`
	KeyGeneration       int64           `json:"keyGeneration"`
}

// FeedMessage is one message posted to a feed.
type FeedMessage struct {
	FeedMessageID       FeedMessageID `json:"feedMessageId"`
	FeedID              FeedID        `json:"feedId"`
	IssuerPublicAddress string        `json:"issuerPublicAddress"`
	Content             string        `json:"content"`
	AuthorCommitment    []byte        `json:"authorCommitment"`
	Timestamp           Timestamp     `json:"timestamp"`
	BlockIndex          BlockIndex    `json:"blockIndex"`
}

// MessageReactionTally is the per-message aggregate of encrypted reaction
// votes: six elliptic-curve point pairs (one per emoji slot) plus a
// plaintext count. Coordinate slices hold six 32-byte elements each.
type MessageReactionTally struct {
	MessageID  FeedMessageID `json:"messageId"`
	FeedID     FeedID        `json:"feedId"`
	TallyC1X   [][]byte      `json:"tallyC1X"`
	TallyC1Y   [][]byte      `json:"tallyC1Y"`
	TallyC2X   [][]byte      `json:"tallyC2X"`
	TallyC2Y   [][]byte      `json:"tallyC2Y"`
	TotalCount int64         `json:"totalCount"`
	Version    int64         `json:"version"`
}

// ReactionNullifier records that a (user, message) pair has voted, without
// revealing the user. A nullifier persists in at most one row; a repeat
// appearance updates the row in place.
type ReactionNullifier struct {
	Nullifier       []byte        `json:"nullifier"`
	MessageID       FeedMessageID `json:"messageId"`
	VoteC1X         [][]byte      `json:"voteC1X"`
	VoteC1Y         [][]byte      `json:"voteC1Y"`
	VoteC2X         [][]byte      `json:"voteC2X"`
	VoteC2Y         [][]byte      `json:"voteC2Y"`
	EncryptedBackup []byte        `json:"encryptedBackup"`
	CreatedAt       Timestamp     `json:"createdAt"`
	UpdatedAt       Timestamp     `json:"updatedAt"`
}

// FeedMemberCommitment registers an anonymous member commitment for a feed.
// It is intentionally not linked to any identity row.
type FeedMemberCommitment struct {
	FeedID         FeedID `json:"feedId"`
	UserCommitment []byte `json:"userCommitment"`
}

// MerkleRootHistory is one historical membership merkle root of a feed.
type MerkleRootHistory struct {
	FeedID      FeedID     `json:"feedId"`
	MerkleRoot  []byte     `json:"merkleRoot"`
	BlockHeight BlockIndex `json:"blockHeight"`
	CreatedAt   Timestamp  `json:"createdAt"`
}
