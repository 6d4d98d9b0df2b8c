// Package indexer projects committed blocks onto derived state. The
// dispatcher fans each transaction out to every strategy that can handle
// it; strategies are idempotent per (block index, transaction id), so a
// crashed node can replay a block without double-applying effects.
package indexer

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Hushnetwork-social/hush-server-node-sub008/core/feed"
	"github.com/Hushnetwork-social/hush-server-node-sub008/core/registry"
	"github.com/Hushnetwork-social/hush-server-node-sub008/core/types"
)

var log = logrus.WithField("prefix", "indexer")

// Dispatcher subscribes to BlockCreated and runs the index strategies.
// Transactions of a block are processed in block order, one at a time;
// the strategies of one transaction run concurrently. BlockIndexCompleted
// fires only after every strategy of every transaction has returned.
type Dispatcher struct {
	ctx      context.Context
	cancel   context.CancelFunc
	registry *registry.Registry
	bus      *feed.Bus
	lastErr  error
}

// NewDispatcher wires the dispatcher and subscribes it to BlockCreated.
// Subscription happens at construction time so no block can slip past
// between service starts.
func NewDispatcher(ctx context.Context, reg *registry.Registry, bus *feed.Bus) *Dispatcher {
	ctx, cancel := context.WithCancel(ctx)
	d := &Dispatcher{
		ctx:      ctx,
		cancel:   cancel,
		registry: reg,
		bus:      bus,
	}
	bus.Subscribe(feed.BlockCreated, d.onBlockCreated)
	return d
}

// Start is a no-op; the dispatcher is driven entirely by bus events.
func (d *Dispatcher) Start() {}

// Stop cancels in-flight indexing.
func (d *Dispatcher) Stop() error {
	d.cancel()
	return nil
}

// Status reports the most recent strategy failure.
func (d *Dispatcher) Status() error {
	return d.lastErr
}

func (d *Dispatcher) onBlockCreated(ctx context.Context, ev *feed.Event) error {
	data, ok := ev.Data.(*feed.BlockCreatedData)
	if !ok {
		return errors.New("unexpected event data for BlockCreated")
	}
	if err := d.IndexBlock(ctx, data.Block); err != nil {
		d.lastErr = err
		return err
	}
	d.lastErr = nil
	return nil
}

// IndexBlock runs every applicable strategy over the block's transactions
// and publishes BlockIndexCompleted once all of them have returned. A
// failing strategy is logged and skipped; it never stalls the block.
func (d *Dispatcher) IndexBlock(ctx context.Context, block *types.FinalizedBlock) error {
	var firstErr error
	for _, tx := range block.Transactions {
		if err := d.indexTransaction(ctx, block.Index, tx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	transactionsIndexed.Add(float64(len(block.Transactions)))
	blocksIndexed.Inc()

	d.bus.Publish(ctx, &feed.Event{
		Type: feed.BlockIndexCompleted,
		Data: &feed.BlockIndexCompletedData{Index: block.Index},
	})
	log.WithFields(logrus.Fields{
		"index":        block.Index,
		"transactions": len(block.Transactions),
	}).Debug("Block indexed")
	return firstErr
}

// indexTransaction runs the strategies of one transaction concurrently and
// waits for all of them. A transaction whose countersignature does not
// verify is never handed to a strategy.
func (d *Dispatcher) indexTransaction(ctx context.Context, blockIndex types.BlockIndex, tx *types.ValidatedTransaction) error {
	if !tx.VerifyValidatorSignature() {
		strategyFailures.Inc()
		log.WithFields(logrus.Fields{
			"tx":   tx.ID,
			"kind": tx.PayloadKind,
		}).Error("Validator signature does not verify, skipping transaction")
		return errors.Errorf("invalid validator signature on transaction %s", tx.ID)
	}
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, s := range d.registry.Strategies() {
		if !s.CanHandle(tx) {
			continue
		}
		wg.Add(1)
		go func(s registry.IndexStrategy) {
			defer wg.Done()
			if err := s.Handle(ctx, blockIndex, tx); err != nil {
				strategyFailures.Inc()
				log.WithError(err).WithFields(logrus.Fields{
					"tx":   tx.ID,
					"kind": tx.PayloadKind,
				}).Error("Index strategy failed")
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(s)
	}
	wg.Wait()
	return firstErr
}
