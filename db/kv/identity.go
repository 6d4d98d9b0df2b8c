package kv

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/Hushnetwork-social/hush-server-node-sub008/core/types"
	"github.com/Hushnetwork-social/hush-server-node-sub008/db/iface"
)

// Identity returns the identity bounded context.
func (s *Store) Identity() iface.IdentityContext {
	return &identityContext{store: s}
}

type identityContext struct {
	store *Store
}

type identityUnitOfWork struct {
	tx        *bolt.Tx
	committed bool
}

// Writable begins a unit of work on the identity database.
func (c *identityContext) Writable() (iface.IdentityUnitOfWork, error) {
	tx, err := c.store.identityDB.Begin(true)
	if err != nil {
		return nil, errors.Wrap(err, "could not begin identity transaction")
	}
	return &identityUnitOfWork{tx: tx}, nil
}

func (u *identityUnitOfWork) SaveProfile(profile *types.IdentityProfile) error {
	enc, err := encode(profile)
	if err != nil {
		return err
	}
	key := []byte(profile.PublicSigningAddress)
	return errors.Wrap(u.tx.Bucket(profilesBucket).Put(key, enc), "could not save profile")
}

func (u *identityUnitOfWork) Commit() error {
	if err := u.tx.Commit(); err != nil {
		return errors.Wrap(err, "could not commit identity transaction")
	}
	u.committed = true
	return nil
}

func (u *identityUnitOfWork) Rollback() error {
	if u.committed {
		return nil
	}
	return u.tx.Rollback()
}

// Profile reads one profile row; a miss yields ErrNotFound.
func (c *identityContext) Profile(_ context.Context, publicSigningAddress string) (*types.IdentityProfile, error) {
	var profile *types.IdentityProfile
	err := c.store.identityDB.View(func(tx *bolt.Tx) error {
		enc := tx.Bucket(profilesBucket).Get([]byte(publicSigningAddress))
		if enc == nil {
			return iface.ErrNotFound
		}
		profile = &types.IdentityProfile{}
		return decode(enc, profile)
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// SearchProfiles returns the public profiles whose alias or short alias
// contains the partial string, case-insensitively.
func (c *identityContext) SearchProfiles(_ context.Context, partialAlias string) ([]*types.IdentityProfile, error) {
	needle := strings.ToLower(partialAlias)
	var found []*types.IdentityProfile
	err := c.store.identityDB.View(func(tx *bolt.Tx) error {
		return tx.Bucket(profilesBucket).ForEach(func(_, enc []byte) error {
			profile := &types.IdentityProfile{}
			if err := decode(enc, profile); err != nil {
				return err
			}
			if !profile.IsPublic {
				return nil
			}
			if strings.Contains(strings.ToLower(profile.Alias), needle) ||
				strings.Contains(strings.ToLower(profile.ShortAlias), needle) {
				found = append(found, profile)
			}
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not search profiles")
	}
	return found, nil
}
