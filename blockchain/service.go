package blockchain

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/Hushnetwork-social/hush-server-node-sub008/core/feed"
	"github.com/Hushnetwork-social/hush-server-node-sub008/core/types"
	"github.com/Hushnetwork-social/hush-server-node-sub008/db/iface"
)

// Service is the chain foundation. On start it loads the persisted chain
// state, creating genesis when none exists, primes the tip cache and
// publishes BlockchainInitialized. Block production stays paused until that
// event fires.
type Service struct {
	ctx       context.Context
	cancel    context.CancelFunc
	db        iface.Database
	cache     *Cache
	assembler *Assembler
	bus       *feed.Bus
	startErr  error
}

// Config holds the foundation dependencies.
type Config struct {
	Database  iface.Database
	Cache     *Cache
	Assembler *Assembler
	Bus       *feed.Bus
}

// NewService wires the chain foundation.
func NewService(ctx context.Context, cfg *Config) *Service {
	ctx, cancel := context.WithCancel(ctx)
	return &Service{
		ctx:       ctx,
		cancel:    cancel,
		db:        cfg.Database,
		cache:     cfg.Cache,
		assembler: cfg.Assembler,
		bus:       cfg.Bus,
	}
}

// Start bootstraps the chain. It runs inline rather than spawning a
// goroutine: everything downstream waits on BlockchainInitialized anyway.
func (s *Service) Start() {
	if err := s.initialize(s.ctx); err != nil {
		s.startErr = err
		log.WithError(err).Error("Could not initialize blockchain")
		return
	}
	snap := s.cache.Snapshot()
	s.bus.Publish(s.ctx, &feed.Event{
		Type: feed.BlockchainInitialized,
		Data: &feed.BlockchainInitializedData{
			StartTime: time.Now(),
			Index:     snap.Index,
		},
	})
	log.WithField("index", snap.Index).Info("Blockchain initialized")
}

func (s *Service) initialize(ctx context.Context) error {
	state, err := s.db.Blockchain().ChainState(ctx)
	if err != nil {
		return errors.Wrap(err, "could not read chain state")
	}
	if state == nil {
		log.Info("No chain state found, creating genesis")
		state = types.GenesisState()
	}
	// A persisted state still equal to the uncommitted genesis value means
	// the genesis block never landed; assemble it now.
	if state.IsGenesis() {
		if _, err := s.assembler.AssembleGenesis(ctx, state); err != nil {
			return errors.Wrap(err, "could not commit genesis block")
		}
		return nil
	}
	s.cache.Apply(CacheUpdate{
		Index:    state.Index,
		Previous: state.PreviousID,
		Current:  state.CurrentID,
		Next:     state.NextID,
		Present:  true,
	})
	chainHeight.Set(float64(state.Index))
	return nil
}

// Stop cancels the service context.
func (s *Service) Stop() error {
	s.cancel()
	return nil
}

// Status reports the bootstrap error, if any.
func (s *Service) Status() error {
	if s.startErr != nil {
		return s.startErr
	}
	if !s.cache.StatePresent() {
		return errors.New("chain state not loaded")
	}
	return nil
}
