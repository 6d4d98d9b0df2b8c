package types

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// PayloadKind is the 128-bit tag that identifies a transaction payload
// variant on the wire.
type PayloadKind uuid.UUID

// The kind tags are fixed protocol constants. They never change between
// releases; adding a variant means minting a new tag.
var (
	KindReward          = PayloadKind(uuid.MustParse("7f1c5a02-8a6e-4f5b-9d3a-1e0b6f2c8d91"))
	KindFullIdentity    = PayloadKind(uuid.MustParse("a94d2b17-3c58-49e0-8fd2-64b1c9a07e35"))
	KindUpdateIdentity  = PayloadKind(uuid.MustParse("bc27e6f0-91d4-4a8b-a5c3-7d9e0f1b2a46"))
	KindNewPersonalFeed = PayloadKind(uuid.MustParse("c3a81d59-6e2f-4b07-9a84-f05d7c3e1b28"))
	KindNewChatFeed     = PayloadKind(uuid.MustParse("d40f92e6-7b13-4c5a-8e97-2a6b0d4f8c17"))
	KindJoinGroupFeed   = PayloadKind(uuid.MustParse("e57b03a8-2d4c-46f1-b0e9-8c15a7d2f369"))
	KindLeaveGroupFeed  = PayloadKind(uuid.MustParse("f6803c1b-5e97-4d2a-9f48-0b3d6a1e7c52"))
	KindNewFeedMessage  = PayloadKind(uuid.MustParse("0a9d4e72-8c61-4f3b-a2d5-6e08b9f1c374"))
	KindSendFunds       = PayloadKind(uuid.MustParse("1b2e5f84-9d70-4a6c-b3e8-7f19c0d2a485"))
	KindNewReaction     = PayloadKind(uuid.MustParse("2c3f6095-ae81-4b7d-c4f9-802ad1e3b596"))
)

func (k PayloadKind) String() string { return uuid.UUID(k).String() }

// MarshalJSON renders the kind tag in its canonical string form.
func (k PayloadKind) MarshalJSON() ([]byte, error) { return marshalID(uuid.UUID(k)) }

// UnmarshalJSON parses the canonical string form.
func (k *PayloadKind) UnmarshalJSON(data []byte) error {
	u, err := unmarshalID(data)
	if err != nil {
		return err
	}
	*k = PayloadKind(u)
	return nil
}

// Payload is a transaction payload variant. Beyond its kind tag and its
// canonical JSON form, each payload is only interpreted by its validator and
// its index strategy.
type Payload interface {
	Kind() PayloadKind
}

// RewardPayload credits the block producer for assembling a block.
type RewardPayload struct {
	IssuerPublicAddress string `json:"issuerPublicAddress"`
	Token               string `json:"token"`
	Amount              string `json:"amount"`
}

// FullIdentityPayload registers a complete identity profile.
type FullIdentityPayload struct {
	PublicSigningAddress string `json:"publicSigningAddress"`
	Alias                string `json:"alias"`
	ShortAlias           string `json:"shortAlias"`
	PublicEncryptAddress string `json:"publicEncryptAddress"`
	IsPublic             bool   `json:"isPublic"`
}

// UpdateIdentityPayload changes the alias of an existing profile.
type UpdateIdentityPayload struct {
	PublicSigningAddress string `json:"publicSigningAddress"`
	Alias                string `json:"alias"`
}

// NewPersonalFeedPayload creates the single personal feed of a user.
type NewPersonalFeedPayload struct {
	FeedID             FeedID        `json:"feedId"`
	Title              string        `json:"title"`
	OwnerPublicAddress string        `json:"ownerPublicAddress"`
	EncryptedFeedKey   string        `json:"encryptedFeedKey"`
	FeedPublicKey      hexutil.Bytes `json:"feedPublicKey"`
}

// ChatFeedParticipant is one initial member of a chat feed.
type ChatFeedParticipant struct {
	MemberPublicAddress string `json:"memberPublicAddress"`
	EncryptedFeedKey    string `json:"encryptedFeedKey"`
}

// NewChatFeedPayload creates a chat feed with its initial participant set.
type NewChatFeedPayload struct {
	FeedID             FeedID                `json:"feedId"`
	Title              string                `json:"title"`
	OwnerPublicAddress string                `json:"ownerPublicAddress"`
	EncryptedFeedKey   string                `json:"encryptedFeedKey"`
	FeedPublicKey      hexutil.Bytes         `json:"feedPublicKey"`
	Participants       []ChatFeedParticipant `json:"participants"`
}

// JoinGroupFeedPayload adds a member (or reinstates a banned one) to a group
// feed, registering the member's anonymous commitment.
type JoinGroupFeedPayload struct {
	FeedID              FeedID        `json:"feedId"`
	MemberPublicAddress string        `json:"memberPublicAddress"`
	UserCommitment      hexutil.Bytes `json:"userCommitment"`
	EncryptedFeedKey    string        `json:"encryptedFeedKey"`
	KeyGeneration       int64         `json:"keyGeneration"`
	Reinstate           bool          `json:"reinstate"`
}

// LeaveGroupFeedPayload removes a member from a group feed. When Banned is
// set the removal is a moderation action and is recorded as such.
type LeaveGroupFeedPayload struct {
	FeedID              FeedID        `json:"feedId"`
	MemberPublicAddress string        `json:"memberPublicAddress"`
	UserCommitment      hexutil.Bytes `json:"userCommitment"`
	Banned              bool          `json:"banned"`
}

// NewFeedMessagePayload posts a message to a feed. The author commitment is
// carried so later anonymous reactions can prove authorship membership.
type NewFeedMessagePayload struct {
	FeedMessageID       FeedMessageID `json:"feedMessageId"`
	FeedID              FeedID        `json:"feedId"`
	IssuerPublicAddress string        `json:"issuerPublicAddress"`
	Content             string        `json:"content"`
	AuthorCommitment    hexutil.Bytes `json:"authorCommitment"`
	Timestamp           Timestamp     `json:"timestamp"`
}

// SendFundsPayload moves an amount of one token between two addresses.
type SendFundsPayload struct {
	FromAddress string `json:"fromAddress"`
	ToAddress   string `json:"toAddress"`
	Token       string `json:"token"`
	Amount      string `json:"amount"`
}

// NewReactionPayload is an anonymous encrypted reaction to a feed message.
// The four coordinate arrays each carry six 32-byte curve coordinates, one
// per emoji slot, forming the ElGamal ciphertext pair (C1, C2).
type NewReactionPayload struct {
	ReactionID      ReactionID      `json:"reactionId"`
	FeedID          FeedID          `json:"feedId"`
	MessageID       FeedMessageID   `json:"messageId"`
	Nullifier       hexutil.Bytes   `json:"nullifier"`
	VoteC1X         []hexutil.Bytes `json:"voteC1X"`
	VoteC1Y         []hexutil.Bytes `json:"voteC1Y"`
	VoteC2X         []hexutil.Bytes `json:"voteC2X"`
	VoteC2Y         []hexutil.Bytes `json:"voteC2Y"`
	Proof           hexutil.Bytes   `json:"proof"`
	CircuitVersion  string          `json:"circuitVersion"`
	EncryptedBackup hexutil.Bytes   `json:"encryptedBackup"`
}

func (RewardPayload) Kind() PayloadKind          { return KindReward }
func (FullIdentityPayload) Kind() PayloadKind    { return KindFullIdentity }
func (UpdateIdentityPayload) Kind() PayloadKind  { return KindUpdateIdentity }
func (NewPersonalFeedPayload) Kind() PayloadKind { return KindNewPersonalFeed }
func (NewChatFeedPayload) Kind() PayloadKind     { return KindNewChatFeed }
func (JoinGroupFeedPayload) Kind() PayloadKind   { return KindJoinGroupFeed }
func (LeaveGroupFeedPayload) Kind() PayloadKind  { return KindLeaveGroupFeed }
func (NewFeedMessagePayload) Kind() PayloadKind  { return KindNewFeedMessage }
func (SendFundsPayload) Kind() PayloadKind       { return KindSendFunds }
func (NewReactionPayload) Kind() PayloadKind     { return KindNewReaction }

// ErrUnknownPayloadKind is returned when a kind tag has no registered variant.
var ErrUnknownPayloadKind = errors.New("unknown payload kind")

// EncodePayload renders the canonical JSON of a payload.
func EncodePayload(p Payload) ([]byte, error) {
	enc, err := json.Marshal(p)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode payload")
	}
	return enc, nil
}

// DecodePayload decodes the canonical JSON of a payload according to its
// kind tag. Encoding and decoding is data-driven; there is no inheritance.
func DecodePayload(kind PayloadKind, raw []byte) (Payload, error) {
	var p Payload
	switch kind {
	case KindReward:
		p = &RewardPayload{}
	case KindFullIdentity:
		p = &FullIdentityPayload{}
	case KindUpdateIdentity:
		p = &UpdateIdentityPayload{}
	case KindNewPersonalFeed:
		p = &NewPersonalFeedPayload{}
	case KindNewChatFeed:
		p = &NewChatFeedPayload{}
	case KindJoinGroupFeed:
		p = &JoinGroupFeedPayload{}
	case KindLeaveGroupFeed:
		p = &LeaveGroupFeedPayload{}
	case KindNewFeedMessage:
		p = &NewFeedMessagePayload{}
	case KindSendFunds:
		p = &SendFundsPayload{}
	case KindNewReaction:
		p = &NewReactionPayload{}
	default:
		return nil, errors.Wrapf(ErrUnknownPayloadKind, "%s", kind)
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, errors.Wrap(err, "could not decode payload")
	}
	return p, nil
}
