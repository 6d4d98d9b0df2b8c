// Package dedup guards feed-message submissions against duplicates across
// the in-flight window and committed storage.
package dedup

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/Hushnetwork-social/hush-server-node-sub008/core/types"
	"github.com/Hushnetwork-social/hush-server-node-sub008/db/iface"
)

var log = logrus.WithField("prefix", "dedup")

var duplicatesRejected = promauto.NewCounter(prometheus.CounterOpts{
	Name: "hushnode_duplicate_messages_total",
	Help: "Feed message submissions rejected as pending or already existing.",
})

// Status is the outcome of a duplicate check.
type Status int

const (
	// Accepted means the id is unknown and may proceed.
	Accepted Status = iota
	// Pending means the id is in flight: validated but not yet in a block.
	Pending
	// AlreadyExists means the id is committed storage.
	AlreadyExists
	// Rejected means storage could not be consulted; the gate fails closed.
	Rejected
)

func (s Status) String() string {
	switch s {
	case Accepted:
		return "Accepted"
	case Pending:
		return "Pending"
	case AlreadyExists:
		return "AlreadyExists"
	default:
		return "Rejected"
	}
}

// Gate tracks in-flight feed message ids. TryTrack is the linearization
// point of the Check → TryTrack → mempool.Add critical section: of two
// racing submitters of the same id, exactly one installs it.
type Gate struct {
	mu       sync.Mutex
	inFlight map[types.FeedMessageID]struct{}
	feeds    iface.FeedsContext
}

// NewGate returns a gate backed by the feeds context for committed-state
// probes.
func NewGate(feeds iface.FeedsContext) *Gate {
	return &Gate{
		inFlight: make(map[types.FeedMessageID]struct{}),
		feeds:    feeds,
	}
}

// Check classifies a message id. The in-flight set is consulted first so a
// pending id never touches storage.
func (g *Gate) Check(ctx context.Context, id types.FeedMessageID) Status {
	g.mu.Lock()
	_, pending := g.inFlight[id]
	g.mu.Unlock()
	if pending {
		duplicatesRejected.Inc()
		return Pending
	}
	exists, err := g.feeds.HasFeedMessage(ctx, id)
	if err != nil {
		log.WithError(err).WithField("messageId", id).Error("Storage probe failed, failing closed")
		return Rejected
	}
	if exists {
		duplicatesRejected.Inc()
		return AlreadyExists
	}
	return Accepted
}

// TryTrack atomically installs an id into the in-flight set. It reports
// true iff this caller installed it; the loser of a race gets false.
func (g *Gate) TryTrack(id types.FeedMessageID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.inFlight[id]; ok {
		return false
	}
	g.inFlight[id] = struct{}{}
	return true
}

// RemoveFromTracking frees ids whose transactions have left the mempool.
func (g *Gate) RemoveFromTracking(ids []types.FeedMessageID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range ids {
		delete(g.inFlight, id)
	}
}

// InFlightCount returns the current in-flight set size.
func (g *Gate) InFlightCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inFlight)
}
