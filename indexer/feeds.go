package indexer

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/Hushnetwork-social/hush-server-node-sub008/core/types"
	"github.com/Hushnetwork-social/hush-server-node-sub008/db/iface"
)

// PersonalFeedStrategy creates the single personal feed of a user together
// with its owner participant row.
type PersonalFeedStrategy struct {
	feeds iface.FeedsContext
}

// NewPersonalFeedStrategy wires the personal feed strategy.
func NewPersonalFeedStrategy(feeds iface.FeedsContext) *PersonalFeedStrategy {
	return &PersonalFeedStrategy{feeds: feeds}
}

// CanHandle reports whether the transaction creates a personal feed.
func (s *PersonalFeedStrategy) CanHandle(tx *types.ValidatedTransaction) bool {
	return tx.PayloadKind == types.KindNewPersonalFeed
}

// Handle writes the feed and its owner row. Both writes overwrite by key,
// so replays converge. A user owns at most one personal feed, so a second
// creation for the same owner is skipped.
func (s *PersonalFeedStrategy) Handle(ctx context.Context, blockIndex types.BlockIndex, tx *types.ValidatedTransaction) error {
	payload, err := tx.DecodedPayload()
	if err != nil {
		return err
	}
	p, ok := payload.(*types.NewPersonalFeedPayload)
	if !ok {
		return errors.Errorf("unexpected payload for personal feed: %T", payload)
	}
	if p.FeedID == types.EmptyFeedID {
		return errors.New("personal feed payload is missing a feed id")
	}
	if strings.TrimSpace(p.OwnerPublicAddress) == "" || strings.TrimSpace(p.EncryptedFeedKey) == "" {
		return errors.New("personal feed payload is missing the owner address or feed key")
	}
	existing, err := s.feeds.PersonalFeedOf(ctx, p.OwnerPublicAddress)
	if err != nil && !errors.Is(err, iface.ErrNotFound) {
		return err
	}
	if existing != nil {
		log.WithField("owner", p.OwnerPublicAddress).Debug("Owner already has a personal feed, skipping")
		return nil
	}

	uow, err := s.feeds.Writable()
	if err != nil {
		return err
	}
	defer rollback(uow)
	if err := uow.SaveFeed(&types.Feed{
		FeedID:        p.FeedID,
		Title:         p.Title,
		FeedType:      types.FeedTypePersonal,
		FeedPublicKey: p.FeedPublicKey,
		BlockIndex:    blockIndex,
	}); err != nil {
		return err
	}
	if err := uow.SaveParticipant(&types.FeedParticipant{
		FeedID:              p.FeedID,
		MemberPublicAddress: p.OwnerPublicAddress,
		ParticipantType:     types.ParticipantOwner,
		EncryptedFeedKey:    p.EncryptedFeedKey,
		KeyGeneration:       1,
	}); err != nil {
		return err
	}
	return uow.Commit()
}

// ChatFeedStrategy creates a chat feed together with its owner and its
// initial participant set.
type ChatFeedStrategy struct {
	feeds iface.FeedsContext
}

// NewChatFeedStrategy wires the chat feed strategy.
func NewChatFeedStrategy(feeds iface.FeedsContext) *ChatFeedStrategy {
	return &ChatFeedStrategy{feeds: feeds}
}

// CanHandle reports whether the transaction creates a chat feed.
func (s *ChatFeedStrategy) CanHandle(tx *types.ValidatedTransaction) bool {
	return tx.PayloadKind == types.KindNewChatFeed
}

// Handle writes the feed, the owner row and every initial participant in
// one unit of work.
func (s *ChatFeedStrategy) Handle(_ context.Context, blockIndex types.BlockIndex, tx *types.ValidatedTransaction) error {
	payload, err := tx.DecodedPayload()
	if err != nil {
		return err
	}
	p, ok := payload.(*types.NewChatFeedPayload)
	if !ok {
		return errors.Errorf("unexpected payload for chat feed: %T", payload)
	}

	uow, err := s.feeds.Writable()
	if err != nil {
		return err
	}
	defer rollback(uow)
	if err := uow.SaveFeed(&types.Feed{
		FeedID:        p.FeedID,
		Title:         p.Title,
		FeedType:      types.FeedTypeChat,
		FeedPublicKey: p.FeedPublicKey,
		BlockIndex:    blockIndex,
	}); err != nil {
		return err
	}
	if err := uow.SaveParticipant(&types.FeedParticipant{
		FeedID:              p.FeedID,
		MemberPublicAddress: p.OwnerPublicAddress,
		ParticipantType:     types.ParticipantOwner,
		EncryptedFeedKey:    p.EncryptedFeedKey,
		KeyGeneration:       1,
	}); err != nil {
		return err
	}
	for _, member := range p.Participants {
		if err := uow.SaveParticipant(&types.FeedParticipant{
			FeedID:              p.FeedID,
			MemberPublicAddress: member.MemberPublicAddress,
			ParticipantType:     types.ParticipantMember,
			EncryptedFeedKey:    member.EncryptedFeedKey,
			KeyGeneration:       1,
		}); err != nil {
			return err
		}
	}
	return uow.Commit()
}

// MessageStrategy appends a message to its feed. The message id is the
// storage key and duplicates are a silent no-op, which is what makes the
// whole message pipeline replay-safe end to end.
type MessageStrategy struct {
	feeds iface.FeedsContext
}

// NewMessageStrategy wires the message strategy.
func NewMessageStrategy(feeds iface.FeedsContext) *MessageStrategy {
	return &MessageStrategy{feeds: feeds}
}

// CanHandle reports whether the transaction carries a feed message.
func (s *MessageStrategy) CanHandle(tx *types.ValidatedTransaction) bool {
	return tx.PayloadKind == types.KindNewFeedMessage
}

// Handle inserts the message row.
func (s *MessageStrategy) Handle(_ context.Context, blockIndex types.BlockIndex, tx *types.ValidatedTransaction) error {
	payload, err := tx.DecodedPayload()
	if err != nil {
		return err
	}
	p, ok := payload.(*types.NewFeedMessagePayload)
	if !ok {
		return errors.Errorf("unexpected payload for feed message: %T", payload)
	}

	uow, err := s.feeds.Writable()
	if err != nil {
		return err
	}
	defer rollback(uow)
	inserted, err := uow.SaveMessage(&types.FeedMessage{
		FeedMessageID:       p.FeedMessageID,
		FeedID:              p.FeedID,
		IssuerPublicAddress: p.IssuerPublicAddress,
		Content:             p.Content,
		AuthorCommitment:    p.AuthorCommitment,
		Timestamp:           p.Timestamp,
		BlockIndex:          blockIndex,
	})
	if err != nil {
		return err
	}
	if !inserted {
		log.WithField("messageId", p.FeedMessageID).Debug("Message already indexed, skipping")
		return nil
	}
	return uow.Commit()
}
