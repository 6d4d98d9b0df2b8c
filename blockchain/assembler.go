package blockchain

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Hushnetwork-social/hush-server-node-sub008/config/params"
	"github.com/Hushnetwork-social/hush-server-node-sub008/core/feed"
	"github.com/Hushnetwork-social/hush-server-node-sub008/core/types"
	"github.com/Hushnetwork-social/hush-server-node-sub008/db/iface"
)

var log = logrus.WithField("prefix", "blockchain")

// Assembler turns mempool batches into committed blocks. All of its work —
// cache advance, block build, sign, finalize, persist, publish — happens
// under a single commit lock, so concurrent invocations serialize.
type Assembler struct {
	mu          sync.Mutex
	cache       *Cache
	db          iface.Database
	bus         *feed.Bus
	creds       *params.Credentials
	rewardToken string
	reward      string
}

// NewAssembler wires the assembler.
func NewAssembler(cache *Cache, db iface.Database, bus *feed.Bus, creds *params.Credentials, rewardToken, rewardAmount string) *Assembler {
	return &Assembler{
		cache:       cache,
		db:          db,
		bus:         bus,
		creds:       creds,
		rewardToken: rewardToken,
		reward:      rewardAmount,
	}
}

// AssembleGenesis creates and commits block #1 from the well-known genesis
// state. The genesis block carries only the producer reward.
func (a *Assembler) AssembleGenesis(ctx context.Context, genesis *types.BlockchainState) (*types.FinalizedBlock, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	update := CacheUpdate{
		Index:    genesis.Index,
		Previous: types.EmptyBlockID,
		Current:  genesis.CurrentID,
		Next:     types.NewBlockID(),
		Present:  true,
	}
	block, err := a.commitBlock(ctx, update, nil)
	if err != nil {
		return nil, err
	}
	log.WithField("blockId", block.ID).Info("Committed genesis block")
	return block, nil
}

// Assemble builds, signs, finalizes and commits the next block containing
// the given transactions plus a prepended producer reward.
func (a *Assembler) Assemble(ctx context.Context, txs []*types.ValidatedTransaction) (*types.FinalizedBlock, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := a.cache.Snapshot()
	if !snap.Present {
		return nil, errors.New("chain state not initialized")
	}
	update := CacheUpdate{
		Index:    snap.Index + 1,
		Previous: snap.Current,
		Current:  snap.Next,
		Next:     types.NewBlockID(),
		Present:  true,
	}
	block, err := a.commitBlock(ctx, update, txs)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"index":        block.Index,
		"blockId":      block.ID,
		"transactions": len(block.Transactions),
	}).Info("Committed block")
	return block, nil
}

// commitBlock runs under the commit lock. The cache is advanced first and
// rolled back if the database commit fails; the BlockCreated publication
// happens after the commit and its failures never unwind the block.
func (a *Assembler) commitBlock(ctx context.Context, update CacheUpdate, txs []*types.ValidatedTransaction) (*types.FinalizedBlock, error) {
	prior := a.cache.Snapshot()
	a.cache.Apply(update)

	block, err := a.buildAndPersist(update, txs)
	if err != nil {
		a.cache.Apply(prior)
		assemblyFailures.Inc()
		return nil, err
	}

	blocksProduced.Inc()
	transactionsIncluded.Add(float64(len(block.Transactions)))
	chainHeight.Set(float64(block.Index))

	// The block is durable from here on. Subscriber failures are logged by
	// the bus; index strategies catch up via replay if they missed it.
	a.bus.Publish(ctx, &feed.Event{
		Type: feed.BlockCreated,
		Data: &feed.BlockCreatedData{Block: block},
	})
	return block, nil
}

func (a *Assembler) buildAndPersist(update CacheUpdate, txs []*types.ValidatedTransaction) (*types.FinalizedBlock, error) {
	reward, err := a.rewardTransaction()
	if err != nil {
		return nil, err
	}
	unsigned := &types.UnsignedBlock{
		ID:           update.Current,
		Timestamp:    types.Now(),
		Index:        update.Index,
		PreviousID:   update.Previous,
		NextID:       update.Next,
		Transactions: append([]*types.ValidatedTransaction{reward}, txs...),
	}
	signed, err := types.SignBlock(a.creds.PrivateKey, unsigned)
	if err != nil {
		return nil, err
	}
	block, err := types.FinalizeBlock(signed)
	if err != nil {
		return nil, err
	}
	row, err := block.Row()
	if err != nil {
		return nil, err
	}

	uow, err := a.db.Blockchain().Writable()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := uow.Rollback(); err != nil {
			log.WithError(err).Error("Could not roll back block commit")
		}
	}()
	if err := uow.SaveBlock(row); err != nil {
		return nil, err
	}
	state := &types.BlockchainState{
		ID:         types.ChainStateID,
		Index:      update.Index,
		CurrentID:  update.Current,
		PreviousID: update.Previous,
		NextID:     update.Next,
	}
	if err := uow.SaveChainState(state); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return block, nil
}

// rewardTransaction builds the producer reward, signed by the producer as
// both user and validator.
func (a *Assembler) rewardTransaction() (*types.ValidatedTransaction, error) {
	unsigned, err := types.NewUnsignedTransaction(&types.RewardPayload{
		IssuerPublicAddress: a.creds.Address,
		Token:               a.rewardToken,
		Amount:              a.reward,
	})
	if err != nil {
		return nil, err
	}
	signed, err := types.SignTransaction(a.creds.PrivateKey, unsigned)
	if err != nil {
		return nil, err
	}
	return types.CountersignTransaction(a.creds.PrivateKey, signed)
}
