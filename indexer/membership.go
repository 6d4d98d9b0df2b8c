package indexer

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Hushnetwork-social/hush-server-node-sub008/core/feed"
	"github.com/Hushnetwork-social/hush-server-node-sub008/core/types"
	"github.com/Hushnetwork-social/hush-server-node-sub008/db/iface"
)

// MembershipStrategy applies group feed joins and leaves: participant rows,
// anonymous member commitments, and the ban list. Every change publishes
// FeedMembershipChanged so the merkle maintainer rebuilds the root.
type MembershipStrategy struct {
	feeds iface.FeedsContext
	bus   *feed.Bus
}

// NewMembershipStrategy wires the membership strategy.
func NewMembershipStrategy(feeds iface.FeedsContext, bus *feed.Bus) *MembershipStrategy {
	return &MembershipStrategy{feeds: feeds, bus: bus}
}

// CanHandle reports whether the transaction changes group membership.
func (s *MembershipStrategy) CanHandle(tx *types.ValidatedTransaction) bool {
	return tx.PayloadKind == types.KindJoinGroupFeed || tx.PayloadKind == types.KindLeaveGroupFeed
}

// Handle applies the membership change in one unit of work.
func (s *MembershipStrategy) Handle(ctx context.Context, blockIndex types.BlockIndex, tx *types.ValidatedTransaction) error {
	payload, err := tx.DecodedPayload()
	if err != nil {
		return err
	}
	var (
		feedID  types.FeedID
		changed bool
	)
	switch p := payload.(type) {
	case *types.JoinGroupFeedPayload:
		feedID = p.FeedID
		changed, err = s.join(ctx, blockIndex, p)
	case *types.LeaveGroupFeedPayload:
		feedID = p.FeedID
		changed, err = s.leave(ctx, p)
	default:
		return errors.Errorf("unexpected payload for membership: %T", payload)
	}
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	s.bus.Publish(ctx, &feed.Event{
		Type: feed.FeedMembershipChanged,
		Data: &feed.FeedMembershipChangedData{FeedID: feedID, BlockIndex: blockIndex},
	})
	return nil
}

// join adds a member and its commitment. The first join of an unknown feed
// creates the group feed row with the joiner as owner. A banned member is
// rejected unless the join reinstates it.
func (s *MembershipStrategy) join(ctx context.Context, blockIndex types.BlockIndex, p *types.JoinGroupFeedPayload) (bool, error) {
	banned, err := s.feeds.IsBanned(ctx, p.FeedID, p.MemberPublicAddress)
	if err != nil {
		return false, err
	}
	if banned && !p.Reinstate {
		log.WithFields(logrus.Fields{
			"feedId": p.FeedID,
			"member": p.MemberPublicAddress,
		}).Warn("Skipping join, member is banned")
		return false, nil
	}

	role := types.ParticipantMember
	existing, err := s.feeds.Feed(ctx, p.FeedID)
	if err != nil && !errors.Is(err, iface.ErrNotFound) {
		return false, err
	}

	uow, err := s.feeds.Writable()
	if err != nil {
		return false, err
	}
	defer rollback(uow)
	if existing == nil {
		role = types.ParticipantOwner
		if err := uow.SaveFeed(&types.Feed{
			FeedID:     p.FeedID,
			FeedType:   types.FeedTypeGroup,
			BlockIndex: blockIndex,
		}); err != nil {
			return false, err
		}
	}
	if banned {
		if err := uow.RemoveBan(p.FeedID, p.MemberPublicAddress); err != nil {
			return false, err
		}
	}
	if err := uow.SaveParticipant(&types.FeedParticipant{
		FeedID:              p.FeedID,
		MemberPublicAddress: p.MemberPublicAddress,
		ParticipantType:     role,
		EncryptedFeedKey:    p.EncryptedFeedKey,
		KeyGeneration:       p.KeyGeneration,
	}); err != nil {
		return false, err
	}
	if len(p.UserCommitment) > 0 {
		if err := uow.SaveCommitment(&types.FeedMemberCommitment{
			FeedID:         p.FeedID,
			UserCommitment: p.UserCommitment,
		}); err != nil {
			return false, err
		}
	}
	if err := uow.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// leave removes a member and its commitment; a moderation leave also
// records the ban so the member cannot rejoin without reinstatement.
func (s *MembershipStrategy) leave(_ context.Context, p *types.LeaveGroupFeedPayload) (bool, error) {
	uow, err := s.feeds.Writable()
	if err != nil {
		return false, err
	}
	defer rollback(uow)
	if err := uow.RemoveParticipant(p.FeedID, p.MemberPublicAddress); err != nil {
		return false, err
	}
	if len(p.UserCommitment) > 0 {
		if err := uow.RemoveCommitment(p.FeedID, p.UserCommitment); err != nil {
			return false, err
		}
	}
	if p.Banned {
		if err := uow.SaveBan(p.FeedID, p.MemberPublicAddress); err != nil {
			return false, err
		}
	}
	if err := uow.Commit(); err != nil {
		return false, err
	}
	return true, nil
}
