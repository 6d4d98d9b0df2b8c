package dedup

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hushnetwork-social/hush-server-node-sub008/core/types"
	"github.com/Hushnetwork-social/hush-server-node-sub008/db/iface"
)

// feedsStub fakes the committed-state probe of the feeds context.
type feedsStub struct {
	iface.FeedsContext
	existing map[types.FeedMessageID]bool
	probeErr error
}

func (s *feedsStub) HasFeedMessage(_ context.Context, id types.FeedMessageID) (bool, error) {
	if s.probeErr != nil {
		return false, s.probeErr
	}
	return s.existing[id], nil
}

func TestCheck_UnknownIDAccepted(t *testing.T) {
	gate := NewGate(&feedsStub{existing: map[types.FeedMessageID]bool{}})
	assert.Equal(t, Accepted, gate.Check(context.Background(), types.NewFeedMessageID()))
}

func TestCheck_CommittedIDAlreadyExists(t *testing.T) {
	id := types.NewFeedMessageID()
	gate := NewGate(&feedsStub{existing: map[types.FeedMessageID]bool{id: true}})
	assert.Equal(t, AlreadyExists, gate.Check(context.Background(), id))
}

func TestCheck_InFlightIDPendingWithoutStorageProbe(t *testing.T) {
	id := types.NewFeedMessageID()
	// The probe would error, but an in-flight id never reaches storage.
	gate := NewGate(&feedsStub{probeErr: errors.New("storage down")})
	require.True(t, gate.TryTrack(id))
	assert.Equal(t, Pending, gate.Check(context.Background(), id))
}

func TestCheck_StorageFailureFailsClosed(t *testing.T) {
	gate := NewGate(&feedsStub{probeErr: errors.New("storage down")})
	assert.Equal(t, Rejected, gate.Check(context.Background(), types.NewFeedMessageID()))
}

func TestTryTrack_ExactlyOneWinnerUnderRace(t *testing.T) {
	gate := NewGate(&feedsStub{existing: map[types.FeedMessageID]bool{}})
	id := types.NewFeedMessageID()

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if gate.TryTrack(id) {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&wins))
	assert.Equal(t, 1, gate.InFlightCount())
}

func TestRemoveFromTracking_FreesTheID(t *testing.T) {
	gate := NewGate(&feedsStub{existing: map[types.FeedMessageID]bool{}})
	id := types.NewFeedMessageID()
	require.True(t, gate.TryTrack(id))
	assert.Equal(t, Pending, gate.Check(context.Background(), id))

	gate.RemoveFromTracking([]types.FeedMessageID{id})
	assert.Equal(t, 0, gate.InFlightCount())
	assert.Equal(t, Accepted, gate.Check(context.Background(), id))
	assert.True(t, gate.TryTrack(id))
}
