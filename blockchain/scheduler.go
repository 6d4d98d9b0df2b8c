package blockchain

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Hushnetwork-social/hush-server-node-sub008/core/feed"
	"github.com/Hushnetwork-social/hush-server-node-sub008/mempool"
)

// assemblyTimeout bounds one production cycle. A cycle that overruns is
// logged and reported through Status but never interrupted mid-commit.
const assemblyTimeout = 10 * time.Second

// Scheduler drives periodic block production. It stays paused until the
// chain foundation publishes BlockchainInitialized, then drains the mempool
// and hands each batch to the assembler, one cycle at a time.
type Scheduler struct {
	ctx       context.Context
	cancel    context.CancelFunc
	assembler *Assembler
	pool      mempool.Pool
	interval  time.Duration
	maxDrain  int

	// trigger overrides the interval ticker when set. Tests fire cycles
	// through it deterministically.
	trigger <-chan time.Time

	ready chan struct{}
	done  chan struct{}
}

// SchedulerConfig holds the scheduler dependencies.
type SchedulerConfig struct {
	Assembler *Assembler
	Pool      mempool.Pool
	Bus       *feed.Bus
	Interval  time.Duration
	MaxDrain  int
	// Trigger, when non-nil, replaces the interval ticker.
	Trigger <-chan time.Time
}

// NewScheduler wires the scheduler and subscribes it to the initialization
// event. Subscribing at construction time means the event cannot be missed
// no matter which service starts first.
func NewScheduler(ctx context.Context, cfg *SchedulerConfig) *Scheduler {
	ctx, cancel := context.WithCancel(ctx)
	s := &Scheduler{
		ctx:       ctx,
		cancel:    cancel,
		assembler: cfg.Assembler,
		pool:      cfg.Pool,
		interval:  cfg.Interval,
		maxDrain:  cfg.MaxDrain,
		trigger:   cfg.Trigger,
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
	}
	cfg.Bus.Subscribe(feed.BlockchainInitialized, func(_ context.Context, _ *feed.Event) error {
		select {
		case <-s.ready:
		default:
			close(s.ready)
		}
		return nil
	})
	return s
}

// Start runs the production loop until Stop.
func (s *Scheduler) Start() {
	defer close(s.done)

	select {
	case <-s.ready:
	case <-s.ctx.Done():
		return
	}

	ticks := s.trigger
	if ticks == nil {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		ticks = ticker.C
	}
	log.WithField("interval", s.interval).Info("Block production started")

	for {
		select {
		case <-ticks:
			s.produce()
		case <-s.ctx.Done():
			log.Debug("Block production stopped")
			return
		}
	}
}

// produce runs one cycle: drain, assemble, commit. The timeout observer
// only reports; the cycle itself always runs to completion so a slow commit
// is never abandoned halfway.
func (s *Scheduler) produce() {
	start := time.Now()
	watch := time.AfterFunc(assemblyTimeout, func() {
		log.WithField("timeout", assemblyTimeout).Warn("Block production cycle overran")
	})
	defer watch.Stop()

	batch := s.pool.Drain(s.maxDrain)
	if len(batch) == 0 {
		log.Debug("Mempool empty, skipping cycle")
		return
	}
	if _, err := s.assembler.Assemble(s.ctx, batch); err != nil {
		log.WithError(err).Error("Could not produce block")
		return
	}
	log.WithFields(logrus.Fields{
		"transactions": len(batch),
		"elapsed":      time.Since(start),
	}).Debug("Production cycle finished")
}

// Stop halts the loop and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() error {
	s.cancel()
	select {
	case <-s.done:
	case <-time.After(assemblyTimeout):
		return errors.New("timed out waiting for production loop to stop")
	}
	return nil
}

// Status reports overrun cycles.
func (s *Scheduler) Status() error {
	select {
	case <-s.ctx.Done():
		return errors.New("scheduler stopped")
	default:
	}
	return nil
}
