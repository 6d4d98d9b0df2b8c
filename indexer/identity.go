package indexer

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/Hushnetwork-social/hush-server-node-sub008/core/feed"
	"github.com/Hushnetwork-social/hush-server-node-sub008/core/types"
	"github.com/Hushnetwork-social/hush-server-node-sub008/db/iface"
)

// IdentityStrategy projects full and partial identity payloads onto the
// identity profiles. Saving a profile is an overwrite, so replays converge
// on the same row.
type IdentityStrategy struct {
	identity iface.IdentityContext
	bus      *feed.Bus
}

// NewIdentityStrategy wires the identity strategy.
func NewIdentityStrategy(identity iface.IdentityContext, bus *feed.Bus) *IdentityStrategy {
	return &IdentityStrategy{identity: identity, bus: bus}
}

// CanHandle reports whether the transaction carries an identity payload.
func (s *IdentityStrategy) CanHandle(tx *types.ValidatedTransaction) bool {
	return tx.PayloadKind == types.KindFullIdentity || tx.PayloadKind == types.KindUpdateIdentity
}

// Handle writes the profile and announces the change.
func (s *IdentityStrategy) Handle(ctx context.Context, blockIndex types.BlockIndex, tx *types.ValidatedTransaction) error {
	payload, err := tx.DecodedPayload()
	if err != nil {
		return err
	}
	var profile *types.IdentityProfile
	switch p := payload.(type) {
	case *types.FullIdentityPayload:
		// Full identity is an insert. A registered address keeps the
		// profile it already published.
		_, err := s.identity.Profile(ctx, p.PublicSigningAddress)
		if err == nil {
			log.WithField("address", p.PublicSigningAddress).Debug("Profile already registered, skipping")
			return nil
		}
		if !errors.Is(err, iface.ErrNotFound) {
			return err
		}
		profile = &types.IdentityProfile{
			PublicSigningAddress: p.PublicSigningAddress,
			Alias:                p.Alias,
			ShortAlias:           p.ShortAlias,
			PublicEncryptAddress: p.PublicEncryptAddress,
			IsPublic:             p.IsPublic,
			BlockIndex:           blockIndex,
		}
	case *types.UpdateIdentityPayload:
		if strings.TrimSpace(p.Alias) == "" {
			log.WithField("address", p.PublicSigningAddress).Warn("Skipping alias update, blank alias")
			return nil
		}
		existing, err := s.identity.Profile(ctx, p.PublicSigningAddress)
		if err != nil {
			if errors.Is(err, iface.ErrNotFound) {
				log.WithField("address", p.PublicSigningAddress).Warn("Skipping alias update, unknown profile")
				return nil
			}
			return err
		}
		existing.Alias = p.Alias
		existing.BlockIndex = blockIndex
		profile = existing
	default:
		return errors.Errorf("unexpected payload for identity: %T", payload)
	}

	uow, err := s.identity.Writable()
	if err != nil {
		return err
	}
	defer rollback(uow)
	if err := uow.SaveProfile(profile); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	s.bus.Publish(ctx, &feed.Event{
		Type: feed.IdentityUpdated,
		Data: &feed.IdentityUpdatedData{PublicSigningAddress: profile.PublicSigningAddress},
	})
	return nil
}
