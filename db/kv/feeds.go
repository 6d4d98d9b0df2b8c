package kv

import (
	"bytes"
	"context"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/Hushnetwork-social/hush-server-node-sub008/core/types"
	"github.com/Hushnetwork-social/hush-server-node-sub008/db/iface"
)

// Feeds returns the feeds bounded context.
func (s *Store) Feeds() iface.FeedsContext {
	return &feedsContext{store: s}
}

type feedsContext struct {
	store *Store
}

type feedsUnitOfWork struct {
	tx        *bolt.Tx
	committed bool
}

// Writable begins a unit of work on the feeds database.
func (c *feedsContext) Writable() (iface.FeedsUnitOfWork, error) {
	tx, err := c.store.feedsDB.Begin(true)
	if err != nil {
		return nil, errors.Wrap(err, "could not begin feeds transaction")
	}
	return &feedsUnitOfWork{tx: tx}, nil
}

func (u *feedsUnitOfWork) SaveFeed(feed *types.Feed) error {
	enc, err := encode(feed)
	if err != nil {
		return err
	}
	if err := u.tx.Bucket(feedsBucket).Put(feed.FeedID.Bytes(), enc); err != nil {
		return errors.Wrap(err, "could not save feed")
	}
	return nil
}

func (u *feedsUnitOfWork) SaveParticipant(p *types.FeedParticipant) error {
	enc, err := encode(p)
	if err != nil {
		return err
	}
	key := participantKey(p.FeedID, p.MemberPublicAddress)
	if err := u.tx.Bucket(participantsBucket).Put(key, enc); err != nil {
		return errors.Wrap(err, "could not save participant")
	}
	if p.ParticipantType == types.ParticipantOwner {
		// The personal index is what makes "one personal feed per user"
		// checkable in O(1); chat and group owners are indexed too but
		// only personal lookups consult it per feed type.
		feedEnc := u.tx.Bucket(feedsBucket).Get(p.FeedID.Bytes())
		if feedEnc != nil {
			feed := &types.Feed{}
			if err := decode(feedEnc, feed); err != nil {
				return err
			}
			if feed.FeedType == types.FeedTypePersonal {
				if err := u.tx.Bucket(personalBucket).Put([]byte(p.MemberPublicAddress), p.FeedID.Bytes()); err != nil {
					return errors.Wrap(err, "could not index personal feed")
				}
			}
		}
	}
	return nil
}

func (u *feedsUnitOfWork) RemoveParticipant(feedID types.FeedID, memberAddress string) error {
	key := participantKey(feedID, memberAddress)
	return errors.Wrap(u.tx.Bucket(participantsBucket).Delete(key), "could not remove participant")
}

// SaveMessage inserts a message row keyed by FeedMessageID. A duplicate key
// is a no-op reporting false, which is the idempotence guarantee the
// message strategy relies on.
func (u *feedsUnitOfWork) SaveMessage(msg *types.FeedMessage) (bool, error) {
	bkt := u.tx.Bucket(messagesBucket)
	if bkt.Get(msg.FeedMessageID.Bytes()) != nil {
		return false, nil
	}
	enc, err := encode(msg)
	if err != nil {
		return false, err
	}
	if err := bkt.Put(msg.FeedMessageID.Bytes(), enc); err != nil {
		return false, errors.Wrap(err, "could not save message")
	}
	idxKey := compositeKey(msg.FeedID.Bytes(), msg.FeedMessageID.Bytes())
	if err := u.tx.Bucket(feedMessagesBucket).Put(idxKey, msg.FeedMessageID.Bytes()); err != nil {
		return false, errors.Wrap(err, "could not index message")
	}
	return true, nil
}

func (u *feedsUnitOfWork) SaveCommitment(c *types.FeedMemberCommitment) error {
	key := compositeKey(c.FeedID.Bytes(), c.UserCommitment)
	return errors.Wrap(u.tx.Bucket(commitmentsBucket).Put(key, []byte{1}), "could not save commitment")
}

func (u *feedsUnitOfWork) RemoveCommitment(feedID types.FeedID, commitment []byte) error {
	key := compositeKey(feedID.Bytes(), commitment)
	return errors.Wrap(u.tx.Bucket(commitmentsBucket).Delete(key), "could not remove commitment")
}

func (u *feedsUnitOfWork) SaveBan(feedID types.FeedID, memberAddress string) error {
	key := participantKey(feedID, memberAddress)
	return errors.Wrap(u.tx.Bucket(bansBucket).Put(key, []byte{1}), "could not save ban")
}

func (u *feedsUnitOfWork) RemoveBan(feedID types.FeedID, memberAddress string) error {
	key := participantKey(feedID, memberAddress)
	return errors.Wrap(u.tx.Bucket(bansBucket).Delete(key), "could not remove ban")
}

func (u *feedsUnitOfWork) SaveMerkleRoot(root *types.MerkleRootHistory) error {
	enc, err := encode(root)
	if err != nil {
		return err
	}
	key := compositeKey(root.FeedID.Bytes(), indexKey(root.BlockHeight))
	return errors.Wrap(u.tx.Bucket(merkleRootsBucket).Put(key, enc), "could not save merkle root")
}

func (u *feedsUnitOfWork) Commit() error {
	if err := u.tx.Commit(); err != nil {
		return errors.Wrap(err, "could not commit feeds transaction")
	}
	u.committed = true
	return nil
}

func (u *feedsUnitOfWork) Rollback() error {
	if u.committed {
		return nil
	}
	return u.tx.Rollback()
}

// Feed reads one feed row; a miss yields ErrNotFound.
func (c *feedsContext) Feed(_ context.Context, id types.FeedID) (*types.Feed, error) {
	var feed *types.Feed
	err := c.store.feedsDB.View(func(tx *bolt.Tx) error {
		enc := tx.Bucket(feedsBucket).Get(id.Bytes())
		if enc == nil {
			return iface.ErrNotFound
		}
		feed = &types.Feed{}
		return decode(enc, feed)
	})
	if err != nil {
		return nil, err
	}
	return feed, nil
}

// PersonalFeedOf returns the personal feed owned by the address, or
// ErrNotFound when the user has none.
func (c *feedsContext) PersonalFeedOf(ctx context.Context, ownerAddress string) (*types.Feed, error) {
	var id types.FeedID
	err := c.store.feedsDB.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(personalBucket).Get([]byte(ownerAddress))
		if raw == nil {
			return iface.ErrNotFound
		}
		copy(id[:], raw)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.Feed(ctx, id)
}

// Participants lists the members of a feed.
func (c *feedsContext) Participants(_ context.Context, feedID types.FeedID) ([]*types.FeedParticipant, error) {
	var out []*types.FeedParticipant
	err := c.store.feedsDB.View(func(tx *bolt.Tx) error {
		cur := tx.Bucket(participantsBucket).Cursor()
		prefix := feedID.Bytes()
		for k, v := cur.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cur.Next() {
			p := &types.FeedParticipant{}
			if err := decode(v, p); err != nil {
				return err
			}
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not list participants")
	}
	return out, nil
}

// FeedsForMember lists every feed the address participates in.
func (c *feedsContext) FeedsForMember(ctx context.Context, memberAddress string) ([]*types.Feed, error) {
	var ids []types.FeedID
	err := c.store.feedsDB.View(func(tx *bolt.Tx) error {
		return tx.Bucket(participantsBucket).ForEach(func(k, v []byte) error {
			p := &types.FeedParticipant{}
			if err := decode(v, p); err != nil {
				return err
			}
			if p.MemberPublicAddress == memberAddress {
				ids = append(ids, p.FeedID)
			}
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not list member feeds")
	}
	feeds := make([]*types.Feed, 0, len(ids))
	for _, id := range ids {
		feed, err := c.Feed(ctx, id)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, feed)
	}
	return feeds, nil
}

// HasFeedMessage reports whether a message id is already persisted. This is
// the storage probe behind the idempotency gate.
func (c *feedsContext) HasFeedMessage(_ context.Context, id types.FeedMessageID) (bool, error) {
	exists := false
	err := c.store.feedsDB.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket(messagesBucket).Get(id.Bytes()) != nil
		return nil
	})
	if err != nil {
		return false, errors.Wrap(err, "could not probe message")
	}
	return exists, nil
}

// Message reads one message row; a miss yields ErrNotFound.
func (c *feedsContext) Message(_ context.Context, id types.FeedMessageID) (*types.FeedMessage, error) {
	var msg *types.FeedMessage
	err := c.store.feedsDB.View(func(tx *bolt.Tx) error {
		enc := tx.Bucket(messagesBucket).Get(id.Bytes())
		if enc == nil {
			return iface.ErrNotFound
		}
		msg = &types.FeedMessage{}
		return decode(enc, msg)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// MessagesForFeed lists up to limit messages of a feed in key order.
func (c *feedsContext) MessagesForFeed(ctx context.Context, feedID types.FeedID, limit int) ([]*types.FeedMessage, error) {
	var out []*types.FeedMessage
	err := c.store.feedsDB.View(func(tx *bolt.Tx) error {
		cur := tx.Bucket(feedMessagesBucket).Cursor()
		prefix := feedID.Bytes()
		for k, v := cur.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cur.Next() {
			if limit > 0 && len(out) >= limit {
				return nil
			}
			enc := tx.Bucket(messagesBucket).Get(v)
			if enc == nil {
				continue
			}
			msg := &types.FeedMessage{}
			if err := decode(enc, msg); err != nil {
				return err
			}
			out = append(out, msg)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not list messages")
	}
	return out, nil
}

// IsBanned reports whether a member is banned from a feed.
func (c *feedsContext) IsBanned(_ context.Context, feedID types.FeedID, memberAddress string) (bool, error) {
	banned := false
	err := c.store.feedsDB.View(func(tx *bolt.Tx) error {
		banned = tx.Bucket(bansBucket).Get(participantKey(feedID, memberAddress)) != nil
		return nil
	})
	return banned, err
}

// Commitments lists the registered member commitments of a feed in key
// order, which is the leaf order of the membership merkle tree.
func (c *feedsContext) Commitments(_ context.Context, feedID types.FeedID) ([][]byte, error) {
	var out [][]byte
	err := c.store.feedsDB.View(func(tx *bolt.Tx) error {
		cur := tx.Bucket(commitmentsBucket).Cursor()
		prefix := feedID.Bytes()
		for k, _ := cur.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = cur.Next() {
			commitment := make([]byte, len(k)-len(prefix))
			copy(commitment, k[len(prefix):])
			out = append(out, commitment)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not list commitments")
	}
	return out, nil
}

// IsCommitmentRegistered reports whether a commitment is registered for a
// feed.
func (c *feedsContext) IsCommitmentRegistered(_ context.Context, feedID types.FeedID, commitment []byte) (bool, error) {
	exists := false
	err := c.store.feedsDB.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket(commitmentsBucket).Get(compositeKey(feedID.Bytes(), commitment)) != nil
		return nil
	})
	return exists, err
}

// RecentMerkleRoots returns up to n most recent roots of a feed, newest
// first.
func (c *feedsContext) RecentMerkleRoots(_ context.Context, feedID types.FeedID, n int) ([]*types.MerkleRootHistory, error) {
	var out []*types.MerkleRootHistory
	err := c.store.feedsDB.View(func(tx *bolt.Tx) error {
		cur := tx.Bucket(merkleRootsBucket).Cursor()
		prefix := feedID.Bytes()
		// Walk backwards from just past the feed's key range.
		last := compositeKey(prefix, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff})
		k, v := cur.Seek(last)
		if k == nil {
			k, v = cur.Last()
		} else {
			k, v = cur.Prev()
		}
		for ; k != nil && bytes.HasPrefix(k, prefix); k, v = cur.Prev() {
			if len(out) >= n {
				return nil
			}
			root := &types.MerkleRootHistory{}
			if err := decode(v, root); err != nil {
				return err
			}
			out = append(out, root)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not list merkle roots")
	}
	return out, nil
}

func participantKey(feedID types.FeedID, memberAddress string) []byte {
	return compositeKey(feedID.Bytes(), []byte(memberAddress))
}
