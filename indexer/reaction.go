package indexer

import (
	"context"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Hushnetwork-social/hush-server-node-sub008/core/types"
	"github.com/Hushnetwork-social/hush-server-node-sub008/crypto/ecvote"
	"github.com/Hushnetwork-social/hush-server-node-sub008/db/iface"
)

// ReactionStrategy maintains the nullifier records and the homomorphic
// per-message tallies. The nullifier decides the path: an unseen nullifier
// is a first vote and adds into the tally; a known one is a vote change and
// swaps the old ciphertext out of the tally for the new one. Both the
// nullifier row and the tally move in one unit of work, and reads inside
// the unit see earlier writes, so two same-nullifier reactions in one block
// resolve in block order.
type ReactionStrategy struct {
	reactions iface.ReactionsContext
}

// NewReactionStrategy wires the reaction strategy.
func NewReactionStrategy(reactions iface.ReactionsContext) *ReactionStrategy {
	return &ReactionStrategy{reactions: reactions}
}

// CanHandle reports whether the transaction carries a reaction.
func (s *ReactionStrategy) CanHandle(tx *types.ValidatedTransaction) bool {
	return tx.PayloadKind == types.KindNewReaction
}

// Handle applies the vote to the tally.
func (s *ReactionStrategy) Handle(_ context.Context, _ types.BlockIndex, tx *types.ValidatedTransaction) error {
	payload, err := tx.DecodedPayload()
	if err != nil {
		return err
	}
	p, ok := payload.(*types.NewReactionPayload)
	if !ok {
		return errors.Errorf("unexpected payload for reaction: %T", payload)
	}
	vote := ecvote.Ciphertext{
		C1X: coords(p.VoteC1X),
		C1Y: coords(p.VoteC1Y),
		C2X: coords(p.VoteC2X),
		C2Y: coords(p.VoteC2Y),
	}
	if err := vote.Validate(); err != nil {
		return err
	}

	uow, err := s.reactions.Writable()
	if err != nil {
		return err
	}
	defer rollback(uow)

	existing, err := uow.Nullifier(p.Nullifier)
	if err != nil {
		return err
	}
	tally, err := uow.Tally(p.MessageID)
	if err != nil {
		return err
	}
	if tally == nil {
		zero := ecvote.Zero()
		tally = &types.MessageReactionTally{
			MessageID: p.MessageID,
			FeedID:    p.FeedID,
			TallyC1X:  zero.C1X,
			TallyC1Y:  zero.C1Y,
			TallyC2X:  zero.C2X,
			TallyC2Y:  zero.C2Y,
		}
	}
	running := ecvote.Ciphertext{
		C1X: tally.TallyC1X,
		C1Y: tally.TallyC1Y,
		C2X: tally.TallyC2X,
		C2Y: tally.TallyC2Y,
	}

	now := types.Now()
	record := &types.ReactionNullifier{
		Nullifier:       p.Nullifier,
		MessageID:       p.MessageID,
		VoteC1X:         vote.C1X,
		VoteC1Y:         vote.C1Y,
		VoteC2X:         vote.C2X,
		VoteC2Y:         vote.C2Y,
		EncryptedBackup: p.EncryptedBackup,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if existing == nil {
		running, err = ecvote.Combine(running, vote, 1)
		if err != nil {
			return err
		}
		tally.TotalCount++
	} else {
		previous := ecvote.Ciphertext{
			C1X: existing.VoteC1X,
			C1Y: existing.VoteC1Y,
			C2X: existing.VoteC2X,
			C2Y: existing.VoteC2Y,
		}
		if previous.Equal(vote) {
			log.WithField("messageId", p.MessageID).Debug("Reaction unchanged, skipping")
			return nil
		}
		running, err = ecvote.Combine(running, previous, -1)
		if err != nil {
			return err
		}
		running, err = ecvote.Combine(running, vote, 1)
		if err != nil {
			return err
		}
		record.CreatedAt = existing.CreatedAt
	}

	tally.TallyC1X = running.C1X
	tally.TallyC1Y = running.C1Y
	tally.TallyC2X = running.C2X
	tally.TallyC2Y = running.C2Y
	tally.Version++

	if err := uow.SaveNullifier(record); err != nil {
		return err
	}
	if err := uow.SaveTally(tally); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"messageId":  p.MessageID,
		"totalCount": tally.TotalCount,
		"version":    tally.Version,
	}).Debug("Reaction tallied")
	return nil
}

func coords(in []hexutil.Bytes) [][]byte {
	out := make([][]byte, len(in))
	for i, b := range in {
		out[i] = b
	}
	return out
}
