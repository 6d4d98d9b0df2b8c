package merkle

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/Hushnetwork-social/hush-server-node-sub008/core/feed"
	"github.com/Hushnetwork-social/hush-server-node-sub008/core/types"
	"github.com/Hushnetwork-social/hush-server-node-sub008/db/iface"
)

var log = logrus.WithField("prefix", "merkle")

const rootCacheTTL = 10 * time.Minute

// Maintainer rebuilds and persists a feed's membership root whenever the
// indexer reports a membership change, and serves the current root from an
// in-memory cache.
type Maintainer struct {
	ctx     context.Context
	cancel  context.CancelFunc
	feeds   iface.FeedsContext
	roots   *gocache.Cache
	lastErr error
}

// NewMaintainer wires the maintainer and subscribes it to membership
// changes.
func NewMaintainer(ctx context.Context, feeds iface.FeedsContext, bus *feed.Bus) *Maintainer {
	ctx, cancel := context.WithCancel(ctx)
	m := &Maintainer{
		ctx:    ctx,
		cancel: cancel,
		feeds:  feeds,
		roots:  gocache.New(rootCacheTTL, 2*rootCacheTTL),
	}
	bus.Subscribe(feed.FeedMembershipChanged, m.onMembershipChanged)
	return m
}

// Start is a no-op; the maintainer is driven by bus events.
func (m *Maintainer) Start() {}

// Stop cancels in-flight rebuilds.
func (m *Maintainer) Stop() error {
	m.cancel()
	return nil
}

// Status reports the most recent rebuild failure.
func (m *Maintainer) Status() error {
	return m.lastErr
}

func (m *Maintainer) onMembershipChanged(ctx context.Context, ev *feed.Event) error {
	data, ok := ev.Data.(*feed.FeedMembershipChangedData)
	if !ok {
		return nil
	}
	if err := m.Rebuild(ctx, data.FeedID, data.BlockIndex); err != nil {
		m.lastErr = err
		log.WithError(err).WithField("feedId", data.FeedID).Error("Could not rebuild merkle root")
		return err
	}
	m.lastErr = nil
	return nil
}

// Rebuild recomputes the root from the current commitment set, appends it
// to the feed's root history and refreshes the cache.
func (m *Maintainer) Rebuild(ctx context.Context, feedID types.FeedID, blockIndex types.BlockIndex) error {
	commitments, err := m.feeds.Commitments(ctx, feedID)
	if err != nil {
		return err
	}
	root := BuildRoot(commitments)

	uow, err := m.feeds.Writable()
	if err != nil {
		return err
	}
	defer func() {
		if err := uow.Rollback(); err != nil {
			log.WithError(err).Error("Could not roll back merkle root write")
		}
	}()
	if err := uow.SaveMerkleRoot(&types.MerkleRootHistory{
		FeedID:      feedID,
		MerkleRoot:  root,
		BlockHeight: blockIndex,
		CreatedAt:   types.Now(),
	}); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	m.roots.Set(feedID.String(), root, gocache.DefaultExpiration)
	log.WithFields(logrus.Fields{
		"feedId":      feedID,
		"blockHeight": blockIndex,
		"members":     len(commitments),
	}).Debug("Merkle root rebuilt")
	return nil
}

// Root returns the current membership root of a feed, consulting the cache
// before the root history.
func (m *Maintainer) Root(ctx context.Context, feedID types.FeedID) ([]byte, error) {
	if cached, ok := m.roots.Get(feedID.String()); ok {
		return cached.([]byte), nil
	}
	history, err := m.feeds.RecentMerkleRoots(ctx, feedID, 1)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return EmptyRoot(), nil
	}
	root := history[0].MerkleRoot
	m.roots.Set(feedID.String(), root, gocache.DefaultExpiration)
	return root, nil
}

// ProveMembership builds a membership proof for one commitment against the
// current commitment set.
func (m *Maintainer) ProveMembership(ctx context.Context, feedID types.FeedID, commitment []byte) ([]byte, []ProofStep, error) {
	commitments, err := m.feeds.Commitments(ctx, feedID)
	if err != nil {
		return nil, nil, err
	}
	path, err := Prove(commitments, commitment)
	if err != nil {
		return nil, nil, err
	}
	return BuildRoot(commitments), path, nil
}
