package validation

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Hushnetwork-social/hush-server-node-sub008/config/params"
	"github.com/Hushnetwork-social/hush-server-node-sub008/core/types"
	"github.com/Hushnetwork-social/hush-server-node-sub008/crypto/ecvote"
	"github.com/Hushnetwork-social/hush-server-node-sub008/crypto/zk"
	"github.com/Hushnetwork-social/hush-server-node-sub008/db/iface"
)

// devModePrefix marks circuit versions whose proofs are not verified.
// Local networks and tests run under it.
const devModePrefix = "dev-mode"

// ReactionValidator extends the common checks with the anonymous-reaction
// proof pipeline: ciphertext shape, feed key and author commitment lookups,
// and proof verification against a grace window of recent merkle roots.
type ReactionValidator struct {
	base     *SigningValidator
	feeds    iface.FeedsContext
	verifier zk.Verifier
	grace    int
}

// NewReactionValidator wires the reaction validator.
func NewReactionValidator(creds *params.Credentials, feeds iface.FeedsContext, verifier zk.Verifier, grace int) *ReactionValidator {
	return &ReactionValidator{
		base:     NewSigningValidator(types.KindNewReaction, creds),
		feeds:    feeds,
		verifier: verifier,
		grace:    grace,
	}
}

// CanValidate reports whether this validator owns the kind.
func (v *ReactionValidator) CanValidate(kind types.PayloadKind) bool {
	return kind == types.KindNewReaction
}

// ValidateAndSign runs the common checks, then the proof pipeline. Any
// failure from the verifier or the lookups rejects the transaction; nothing
// propagates.
func (v *ReactionValidator) ValidateAndSign(ctx context.Context, tx *types.SignedTransaction) (*types.ValidatedTransaction, error) {
	if err := v.base.validate(ctx, tx); err != nil {
		return nil, err
	}
	payload, err := tx.DecodedPayload()
	if err != nil {
		return nil, errors.Wrap(ErrValidationFailed, err.Error())
	}
	reaction, ok := payload.(*types.NewReactionPayload)
	if !ok {
		return nil, errors.Wrap(ErrValidationFailed, "payload is not a reaction")
	}
	if err := v.verifyProof(ctx, reaction); err != nil {
		return nil, err
	}
	return types.CountersignTransaction(v.base.creds.PrivateKey, tx)
}

func (v *ReactionValidator) verifyProof(ctx context.Context, reaction *types.NewReactionPayload) error {
	vote := ciphertextFromPayload(reaction)
	if err := vote.Validate(); err != nil {
		return errors.Wrap(ErrValidationFailed, err.Error())
	}
	if len(reaction.Nullifier) != 32 {
		return errors.Wrap(ErrValidationFailed, "nullifier must be 32 bytes")
	}
	if strings.HasPrefix(reaction.CircuitVersion, devModePrefix) {
		log.WithField("messageId", reaction.MessageID).Debug("Dev-mode circuit, skipping proof verification")
		return nil
	}

	feed, err := v.feeds.Feed(ctx, reaction.FeedID)
	if err != nil {
		return errors.Wrap(ErrValidationFailed, "unknown feed")
	}
	if len(feed.FeedPublicKey) == 0 {
		return errors.Wrap(ErrValidationFailed, "feed has no public key")
	}
	msg, err := v.feeds.Message(ctx, reaction.MessageID)
	if err != nil {
		return errors.Wrap(ErrValidationFailed, "unknown message")
	}
	if len(msg.AuthorCommitment) == 0 {
		return errors.Wrap(ErrValidationFailed, "message has no author commitment")
	}
	roots, err := v.feeds.RecentMerkleRoots(ctx, reaction.FeedID, v.grace)
	if err != nil || len(roots) == 0 {
		return errors.Wrap(ErrValidationFailed, "no merkle roots for feed")
	}

	msgID := reaction.MessageID
	for _, root := range roots {
		inputs := &zk.PublicInputs{
			Nullifier:        reaction.Nullifier,
			VoteC1X:          vote.C1X,
			VoteC1Y:          vote.C1Y,
			VoteC2X:          vote.C2X,
			VoteC2Y:          vote.C2Y,
			MessageID:        msgID.Bytes(),
			FeedPublicKey:    feed.FeedPublicKey,
			MerkleRoot:       root.MerkleRoot,
			AuthorCommitment: msg.AuthorCommitment,
		}
		ok, err := v.verifier.Verify(ctx, reaction.Proof, inputs, reaction.CircuitVersion)
		if err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"messageId":   reaction.MessageID,
				"blockHeight": root.BlockHeight,
			}).Warn("Proof verification errored")
			continue
		}
		if ok {
			return nil
		}
	}
	return errors.Wrap(ErrValidationFailed, "proof did not verify against any recent merkle root")
}

func ciphertextFromPayload(reaction *types.NewReactionPayload) ecvote.Ciphertext {
	conv := func(in []hexutil.Bytes) [][]byte {
		out := make([][]byte, len(in))
		for i, b := range in {
			out[i] = b
		}
		return out
	}
	return ecvote.Ciphertext{
		C1X: conv(reaction.VoteC1X),
		C1Y: conv(reaction.VoteC1Y),
		C2X: conv(reaction.VoteC2X),
		C2Y: conv(reaction.VoteC2Y),
	}
}
