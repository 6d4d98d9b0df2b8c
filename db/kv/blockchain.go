package kv

import (
	"context"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/Hushnetwork-social/hush-server-node-sub008/core/types"
	"github.com/Hushnetwork-social/hush-server-node-sub008/db/iface"
)

// Blockchain returns the blockchain bounded context.
func (s *Store) Blockchain() iface.BlockchainContext {
	return &blockchainContext{store: s}
}

type blockchainContext struct {
	store *Store
}

// blockchainUnitOfWork owns one writable transaction. The block row and the
// chain-state upsert land in the same commit, which is what keeps the chain
// tip consistent with the block table on every exit path.
type blockchainUnitOfWork struct {
	tx        *bolt.Tx
	store     *Store
	committed bool
	// ids of blocks written in this unit of work, for cache invalidation.
	written []types.BlockID
}

// Writable begins a unit of work on the blockchain database.
func (c *blockchainContext) Writable() (iface.BlockchainUnitOfWork, error) {
	tx, err := c.store.blockchainDB.Begin(true)
	if err != nil {
		return nil, errors.Wrap(err, "could not begin blockchain transaction")
	}
	return &blockchainUnitOfWork{tx: tx, store: c.store}, nil
}

func (u *blockchainUnitOfWork) SaveBlock(block *types.BlockchainBlock) error {
	enc, err := encode(block)
	if err != nil {
		return err
	}
	if err := u.tx.Bucket(blocksBucket).Put(block.ID.Bytes(), enc); err != nil {
		return errors.Wrap(err, "could not save block")
	}
	if err := u.tx.Bucket(blockIndexBucket).Put(indexKey(block.Index), block.ID.Bytes()); err != nil {
		return errors.Wrap(err, "could not save block index")
	}
	u.written = append(u.written, block.ID)
	return nil
}

func (u *blockchainUnitOfWork) SaveChainState(state *types.BlockchainState) error {
	enc, err := encode(state)
	if err != nil {
		return err
	}
	return errors.Wrap(u.tx.Bucket(chainStateBucket).Put(chainStateKey, enc), "could not save chain state")
}

func (u *blockchainUnitOfWork) Commit() error {
	if err := u.tx.Commit(); err != nil {
		return errors.Wrap(err, "could not commit blockchain transaction")
	}
	u.committed = true
	for _, id := range u.written {
		u.store.blockCache.Remove(id)
	}
	return nil
}

func (u *blockchainUnitOfWork) Rollback() error {
	if u.committed {
		return nil
	}
	return u.tx.Rollback()
}

// ChainState reads the single chain-tip row. A missing row yields nil
// without error; the chain foundation treats that as the genesis condition.
func (c *blockchainContext) ChainState(_ context.Context) (*types.BlockchainState, error) {
	var state *types.BlockchainState
	err := c.store.blockchainDB.View(func(tx *bolt.Tx) error {
		enc := tx.Bucket(chainStateBucket).Get(chainStateKey)
		if enc == nil {
			return nil
		}
		state = &types.BlockchainState{}
		return decode(enc, state)
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not read chain state")
	}
	return state, nil
}

// Block reads one block row by id.
func (c *blockchainContext) Block(_ context.Context, id types.BlockID) (*types.BlockchainBlock, error) {
	if cached, ok := c.store.blockCache.Get(id); ok {
		return cached.(*types.BlockchainBlock), nil
	}
	var block *types.BlockchainBlock
	err := c.store.blockchainDB.View(func(tx *bolt.Tx) error {
		enc := tx.Bucket(blocksBucket).Get(id.Bytes())
		if enc == nil {
			return iface.ErrNotFound
		}
		block = &types.BlockchainBlock{}
		return decode(enc, block)
	})
	if err != nil {
		return nil, err
	}
	c.store.blockCache.Add(id, block)
	return block, nil
}

// BlockByIndex reads one block row by height.
func (c *blockchainContext) BlockByIndex(ctx context.Context, index types.BlockIndex) (*types.BlockchainBlock, error) {
	var id types.BlockID
	err := c.store.blockchainDB.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(blockIndexBucket).Get(indexKey(index))
		if raw == nil {
			return iface.ErrNotFound
		}
		copy(id[:], raw)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.Block(ctx, id)
}

// HighestIndex returns the index of the tip block, or EmptyBlockIndex when
// no block has been committed yet.
func (c *blockchainContext) HighestIndex(_ context.Context) (types.BlockIndex, error) {
	highest := types.EmptyBlockIndex
	err := c.store.blockchainDB.View(func(tx *bolt.Tx) error {
		key, _ := tx.Bucket(blockIndexBucket).Cursor().Last()
		if key == nil {
			return nil
		}
		highest = types.BlockIndex(bigEndianUint64(key))
		return nil
	})
	if err != nil {
		return types.EmptyBlockIndex, errors.Wrap(err, "could not read highest index")
	}
	return highest, nil
}
