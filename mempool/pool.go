// Package mempool holds validated transactions until the block producer
// drains them into a block.
package mempool

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/Hushnetwork-social/hush-server-node-sub008/core/types"
)

var log = logrus.WithField("prefix", "mempool")

var poolSize = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "hushnode_mempool_size",
	Help: "Validated transactions awaiting block inclusion.",
})

// ReleaseFunc frees the in-flight tracking of message ids whose transactions
// have left the pool. The idempotency gate plugs in here.
type ReleaseFunc func(ids []types.FeedMessageID)

// Pool is a concurrent bag of validated transactions.
type Pool interface {
	Add(tx *types.ValidatedTransaction)
	Drain(max int) []*types.ValidatedTransaction
	Size() int
	Initialize(ctx context.Context) error
}

// TxPool implements Pool with a mutex-guarded map; Drain is the sole
// remover and returns batches in arbitrary order.
type TxPool struct {
	mu      sync.Mutex
	txs     map[types.TransactionID]*types.ValidatedTransaction
	release ReleaseFunc
}

// NewTxPool returns an empty pool. The release callback may be nil.
func NewTxPool(release ReleaseFunc) *TxPool {
	return &TxPool{
		txs:     make(map[types.TransactionID]*types.ValidatedTransaction),
		release: release,
	}
}

// Initialize warms the pool. Today the pool always starts empty; a future
// node may warm from peers here.
func (p *TxPool) Initialize(_ context.Context) error {
	return nil
}

// Add inserts a validated transaction. It never blocks on anything but the
// pool mutex.
func (p *TxPool) Add(tx *types.ValidatedTransaction) {
	p.mu.Lock()
	p.txs[tx.ID] = tx
	size := len(p.txs)
	p.mu.Unlock()
	poolSize.Set(float64(size))
}

// Size returns the current number of pooled transactions.
func (p *TxPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.txs)
}

// Drain removes and returns up to max transactions. Message ids of drained
// feed-message transactions are released from in-flight tracking at the
// same instant the transactions leave the pool.
func (p *TxPool) Drain(max int) []*types.ValidatedTransaction {
	p.mu.Lock()
	batch := make([]*types.ValidatedTransaction, 0, max)
	var released []types.FeedMessageID
	for id, tx := range p.txs {
		if len(batch) >= max {
			break
		}
		delete(p.txs, id)
		batch = append(batch, tx)
		if tx.PayloadKind == types.KindNewFeedMessage {
			if msgID, ok := messageID(tx); ok {
				released = append(released, msgID)
			}
		}
	}
	size := len(p.txs)
	p.mu.Unlock()

	poolSize.Set(float64(size))
	if len(released) > 0 && p.release != nil {
		p.release(released)
	}
	if len(batch) > 0 {
		log.WithFields(logrus.Fields{
			"drained":   len(batch),
			"remaining": size,
		}).Debug("Drained mempool batch")
	}
	return batch
}

func messageID(tx *types.ValidatedTransaction) (types.FeedMessageID, bool) {
	payload, err := tx.DecodedPayload()
	if err != nil {
		log.WithError(err).WithField("tx", tx.ID).Warn("Could not decode pooled payload")
		return types.EmptyFeedMessageID, false
	}
	msg, ok := payload.(*types.NewFeedMessagePayload)
	if !ok {
		return types.EmptyFeedMessageID, false
	}
	return msg.FeedMessageID, true
}
