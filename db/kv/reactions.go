package kv

import (
	"context"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/Hushnetwork-social/hush-server-node-sub008/core/types"
	"github.com/Hushnetwork-social/hush-server-node-sub008/db/iface"
)

// Reactions returns the reactions bounded context.
func (s *Store) Reactions() iface.ReactionsContext {
	return &reactionsContext{store: s}
}

type reactionsContext struct {
	store *Store
}

type reactionsUnitOfWork struct {
	tx        *bolt.Tx
	committed bool
}

// Writable begins a unit of work on the reactions database. The nullifier
// record and the tally always move together inside it.
func (c *reactionsContext) Writable() (iface.ReactionsUnitOfWork, error) {
	tx, err := c.store.reactionsDB.Begin(true)
	if err != nil {
		return nil, errors.Wrap(err, "could not begin reactions transaction")
	}
	return &reactionsUnitOfWork{tx: tx}, nil
}

// Nullifier reads a nullifier record inside the unit of work, observing
// earlier writes of the same transaction. A miss yields nil.
func (u *reactionsUnitOfWork) Nullifier(nullifier []byte) (*types.ReactionNullifier, error) {
	enc := u.tx.Bucket(nullifiersBucket).Get(nullifier)
	if enc == nil {
		return nil, nil
	}
	record := &types.ReactionNullifier{}
	if err := decode(enc, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Tally reads a message tally inside the unit of work. A missing row reads
// as nil, which callers treat as a zero tally.
func (u *reactionsUnitOfWork) Tally(messageID types.FeedMessageID) (*types.MessageReactionTally, error) {
	enc := u.tx.Bucket(talliesBucket).Get(messageID.Bytes())
	if enc == nil {
		return nil, nil
	}
	tally := &types.MessageReactionTally{}
	if err := decode(enc, tally); err != nil {
		return nil, err
	}
	return tally, nil
}

func (u *reactionsUnitOfWork) SaveNullifier(record *types.ReactionNullifier) error {
	enc, err := encode(record)
	if err != nil {
		return err
	}
	return errors.Wrap(u.tx.Bucket(nullifiersBucket).Put(record.Nullifier, enc), "could not save nullifier")
}

func (u *reactionsUnitOfWork) SaveTally(tally *types.MessageReactionTally) error {
	enc, err := encode(tally)
	if err != nil {
		return err
	}
	return errors.Wrap(u.tx.Bucket(talliesBucket).Put(tally.MessageID.Bytes(), enc), "could not save tally")
}

func (u *reactionsUnitOfWork) Commit() error {
	if err := u.tx.Commit(); err != nil {
		return errors.Wrap(err, "could not commit reactions transaction")
	}
	u.committed = true
	return nil
}

func (u *reactionsUnitOfWork) Rollback() error {
	if u.committed {
		return nil
	}
	return u.tx.Rollback()
}

// Tally reads one message tally; a miss yields ErrNotFound.
func (c *reactionsContext) Tally(_ context.Context, messageID types.FeedMessageID) (*types.MessageReactionTally, error) {
	var tally *types.MessageReactionTally
	err := c.store.reactionsDB.View(func(tx *bolt.Tx) error {
		enc := tx.Bucket(talliesBucket).Get(messageID.Bytes())
		if enc == nil {
			return iface.ErrNotFound
		}
		tally = &types.MessageReactionTally{}
		return decode(enc, tally)
	})
	if err != nil {
		return nil, err
	}
	return tally, nil
}

// Tallies reads the tallies of the requested messages, skipping misses.
func (c *reactionsContext) Tallies(ctx context.Context, feedID types.FeedID, messageIDs []types.FeedMessageID) ([]*types.MessageReactionTally, error) {
	out := make([]*types.MessageReactionTally, 0, len(messageIDs))
	for _, id := range messageIDs {
		tally, err := c.Tally(ctx, id)
		if err != nil {
			if errors.Is(err, iface.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if tally.FeedID == feedID {
			out = append(out, tally)
		}
	}
	return out, nil
}

// Nullifier reads one nullifier record; a miss yields ErrNotFound.
func (c *reactionsContext) Nullifier(_ context.Context, nullifier []byte) (*types.ReactionNullifier, error) {
	var record *types.ReactionNullifier
	err := c.store.reactionsDB.View(func(tx *bolt.Tx) error {
		enc := tx.Bucket(nullifiersBucket).Get(nullifier)
		if enc == nil {
			return iface.ErrNotFound
		}
		record = &types.ReactionNullifier{}
		return decode(enc, record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// NullifierExists reports whether a nullifier has been recorded.
func (c *reactionsContext) NullifierExists(_ context.Context, nullifier []byte) (bool, error) {
	exists := false
	err := c.store.reactionsDB.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket(nullifiersBucket).Get(nullifier) != nil
		return nil
	})
	return exists, err
}
