// Package node launches the Hush node and manages the lifecycle of all its
// services: storage, validation, mempool, block production, indexing and
// the HTTP API, gracefully closing them if the process ends.
package node

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/Hushnetwork-social/hush-server-node-sub008/async"
	"github.com/Hushnetwork-social/hush-server-node-sub008/blockchain"
	"github.com/Hushnetwork-social/hush-server-node-sub008/cmd/flags"
	"github.com/Hushnetwork-social/hush-server-node-sub008/config/params"
	"github.com/Hushnetwork-social/hush-server-node-sub008/core/feed"
	"github.com/Hushnetwork-social/hush-server-node-sub008/core/registry"
	"github.com/Hushnetwork-social/hush-server-node-sub008/core/types"
	"github.com/Hushnetwork-social/hush-server-node-sub008/crypto/zk"
	"github.com/Hushnetwork-social/hush-server-node-sub008/db"
	"github.com/Hushnetwork-social/hush-server-node-sub008/dedup"
	"github.com/Hushnetwork-social/hush-server-node-sub008/indexer"
	"github.com/Hushnetwork-social/hush-server-node-sub008/mempool"
	"github.com/Hushnetwork-social/hush-server-node-sub008/merkle"
	"github.com/Hushnetwork-social/hush-server-node-sub008/monitoring/prometheus"
	"github.com/Hushnetwork-social/hush-server-node-sub008/rpc"
	noderuntime "github.com/Hushnetwork-social/hush-server-node-sub008/runtime"
	"github.com/Hushnetwork-social/hush-server-node-sub008/validation"
)

var log = logrus.WithField("prefix", "node")

// HushNode handles the lifecycle of the entire system and registers
// services to a service registry.
type HushNode struct {
	cliCtx   *cli.Context
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      *params.NodeConfig
	creds    *params.Credentials
	services *noderuntime.ServiceRegistry
	lock     sync.RWMutex
	stop     chan struct{} // Channel to wait for termination notifications.
	db       db.Database
	bus      *feed.Bus
	cache    *blockchain.Cache
	registry *registry.Registry
	pool     mempool.Pool
	gate     *dedup.Gate
	merkle   *merkle.Maintainer
}

// New creates a new node instance, sets up configuration options, and
// registers every required service to the node.
func New(cliCtx *cli.Context) (*HushNode, error) {
	cfg, err := buildConfig(cliCtx)
	if err != nil {
		return nil, err
	}
	creds, err := cfg.Stacker.Credentials()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(cliCtx.Context)
	n := &HushNode{
		cliCtx:   cliCtx,
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		creds:    creds,
		services: noderuntime.NewServiceRegistry(),
		stop:     make(chan struct{}),
		bus:      feed.NewBus(),
		cache:    blockchain.NewCache(),
	}

	if err := n.startDB(cliCtx); err != nil {
		cancel()
		return nil, err
	}

	n.gate = dedup.NewGate(n.db.Feeds())
	n.pool = mempool.NewTxPool(n.gate.RemoveFromTracking)
	n.merkle = merkle.NewMaintainer(ctx, n.db.Feeds(), n.bus)

	if err := n.buildRegistry(); err != nil {
		cancel()
		return nil, err
	}
	if err := n.registerServices(); err != nil {
		cancel()
		return nil, err
	}
	return n, nil
}

func buildConfig(cliCtx *cli.Context) (*params.NodeConfig, error) {
	cfg := params.DefaultConfig()
	if cliCtx.IsSet(flags.ConfigFileFlag.Name) {
		if err := cfg.LoadFile(cliCtx.String(flags.ConfigFileFlag.Name)); err != nil {
			return nil, err
		}
	}
	if cliCtx.IsSet(flags.DataDirFlag.Name) || cfg.DataDir == "" {
		cfg.DataDir = cliCtx.String(flags.DataDirFlag.Name)
	}
	if cliCtx.IsSet(flags.HTTPAddrFlag.Name) {
		cfg.HTTPAddr = cliCtx.String(flags.HTTPAddrFlag.Name)
	}
	if cliCtx.IsSet(flags.MetricsAddrFlag.Name) {
		cfg.MetricsAddr = cliCtx.String(flags.MetricsAddrFlag.Name)
	}
	if cliCtx.IsSet(flags.BlockIntervalFlag.Name) {
		cfg.BlockIntervalMs = cliCtx.Int64(flags.BlockIntervalFlag.Name)
	}
	if cliCtx.IsSet(flags.MaxDrainBatchFlag.Name) {
		cfg.MaxDrainBatch = cliCtx.Int(flags.MaxDrainBatchFlag.Name)
	}
	if cliCtx.IsSet(flags.StackerKeyFlag.Name) {
		cfg.Stacker.PrivateSigningKey = cliCtx.String(flags.StackerKeyFlag.Name)
	}
	if cliCtx.IsSet(flags.DevProofVerificationFlag.Name) {
		cfg.DevProofVerification = cliCtx.Bool(flags.DevProofVerificationFlag.Name)
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (n *HushNode) startDB(cliCtx *cli.Context) error {
	d, err := db.NewDB(n.cfg.DataDir)
	if err != nil {
		return errors.Wrap(err, "could not open database")
	}
	if cliCtx.Bool(flags.ClearDBFlag.Name) {
		log.Warn("Clearing databases")
		if err := d.Close(); err != nil {
			return errors.Wrap(err, "could not close database")
		}
		if err := d.ClearDB(); err != nil {
			return errors.Wrap(err, "could not clear database")
		}
		d, err = db.NewDB(n.cfg.DataDir)
		if err != nil {
			return errors.Wrap(err, "could not reopen database")
		}
	}
	log.WithField("path", d.DatabasePath()).Info("Opened databases")
	n.db = d
	return nil
}

// proofVerifier selects the reaction proof verifier. Only the dev-mode
// rubber stamp ships today; turning it off requires an external circuit
// verifier.
// TODO: plug in the groth16 circuit verifier service and make it the
// default once it is deployable.
func (n *HushNode) proofVerifier() (zk.Verifier, error) {
	if !n.cfg.DevProofVerification {
		return nil, errors.New("no circuit verifier is available, enable dev proof verification")
	}
	log.Warn("Dev proof verification enabled, reaction proofs are not cryptographically checked")
	return zk.DevVerifier{}, nil
}

// buildRegistry binds every payload kind to its validator and strategy.
// Strategies that own several kinds register once as extra strategies and
// route through CanHandle, so no transaction is ever double-applied.
func (n *HushNode) buildRegistry() error {
	verifier, err := n.proofVerifier()
	if err != nil {
		return err
	}
	reg := registry.New()

	entries := []*registry.Entry{
		{Kind: types.KindReward, Strategy: indexer.NewRewardStrategy(n.db.Bank())},
		{
			Kind:      types.KindFullIdentity,
			Validator: validation.NewSigningValidator(types.KindFullIdentity, n.creds),
		},
		{
			Kind:      types.KindUpdateIdentity,
			Validator: validation.NewSigningValidator(types.KindUpdateIdentity, n.creds),
		},
		{
			Kind:      types.KindNewPersonalFeed,
			Validator: validation.NewSigningValidator(types.KindNewPersonalFeed, n.creds),
			Strategy:  indexer.NewPersonalFeedStrategy(n.db.Feeds()),
		},
		{
			Kind:      types.KindNewChatFeed,
			Validator: validation.NewSigningValidator(types.KindNewChatFeed, n.creds),
			Strategy:  indexer.NewChatFeedStrategy(n.db.Feeds()),
		},
		{
			Kind:      types.KindJoinGroupFeed,
			Validator: validation.NewSigningValidator(types.KindJoinGroupFeed, n.creds),
		},
		{
			Kind:      types.KindLeaveGroupFeed,
			Validator: validation.NewSigningValidator(types.KindLeaveGroupFeed, n.creds),
		},
		{
			Kind:      types.KindNewFeedMessage,
			Validator: validation.NewSigningValidator(types.KindNewFeedMessage, n.creds),
			Strategy:  indexer.NewMessageStrategy(n.db.Feeds()),
		},
		{
			Kind:      types.KindSendFunds,
			Validator: validation.NewSigningValidator(types.KindSendFunds, n.creds),
			Strategy:  indexer.NewFundsStrategy(n.db.Bank()),
		},
		{
			Kind:      types.KindNewReaction,
			Validator: validation.NewReactionValidator(n.creds, n.db.Feeds(), verifier, n.cfg.MerkleRootGrace),
			Strategy:  indexer.NewReactionStrategy(n.db.Reactions()),
		},
	}
	for _, e := range entries {
		if err := reg.Register(e); err != nil {
			return err
		}
	}
	reg.RegisterExtraStrategy(indexer.NewIdentityStrategy(n.db.Identity(), n.bus))
	reg.RegisterExtraStrategy(indexer.NewMembershipStrategy(n.db.Feeds(), n.bus))
	n.registry = reg
	return nil
}

func (n *HushNode) registerServices() error {
	assembler := blockchain.NewAssembler(n.cache, n.db, n.bus, n.creds, n.cfg.RewardToken, n.cfg.BlockReward)

	// The dispatcher and the merkle maintainer subscribe at construction
	// time, before any service starts, so the genesis block cannot outrun
	// its subscribers.
	dispatcher := indexer.NewDispatcher(n.ctx, n.registry, n.bus)
	if err := n.services.RegisterService(dispatcher); err != nil {
		return err
	}
	if err := n.services.RegisterService(n.merkle); err != nil {
		return err
	}

	scheduler := blockchain.NewScheduler(n.ctx, &blockchain.SchedulerConfig{
		Assembler: assembler,
		Pool:      n.pool,
		Bus:       n.bus,
		Interval:  n.cfg.BlockInterval,
		MaxDrain:  n.cfg.MaxDrainBatch,
	})
	if err := n.services.RegisterService(scheduler); err != nil {
		return err
	}

	foundation := blockchain.NewService(n.ctx, &blockchain.Config{
		Database:  n.db,
		Cache:     n.cache,
		Assembler: assembler,
		Bus:       n.bus,
	})
	if err := n.services.RegisterService(foundation); err != nil {
		return err
	}

	api := rpc.NewService(n.ctx, &rpc.Config{
		Addr:     n.cfg.HTTPAddr,
		Registry: n.registry,
		Pool:     n.pool,
		Gate:     n.gate,
		Database: n.db,
		Cache:    n.cache,
		Merkle:   n.merkle,
		Bus:      n.bus,
	})
	if err := n.services.RegisterService(api); err != nil {
		return err
	}

	return n.services.RegisterService(prometheus.NewService(n.cfg.MetricsAddr, n.services))
}

// Start the HushNode and kick off every registered service.
func (n *HushNode) Start() {
	n.lock.Lock()
	log.WithField("address", n.creds.Address).Info("Starting node")
	n.services.StartAll()
	async.RunEvery(n.ctx, time.Minute, func() {
		log.WithFields(logrus.Fields{
			"chainHeight": n.cache.LastBlockIndex(),
			"mempool":     n.pool.Size(),
			"inFlight":    n.gate.InFlightCount(),
		}).Info("Node status")
	})
	stop := n.stop
	n.lock.Unlock()

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigc)
		<-sigc
		log.Info("Got interrupt, shutting down...")
		go n.Close()
		for i := 10; i > 0; i-- {
			<-sigc
			if i > 1 {
				log.WithField("times", i-1).Info("Already shutting down, interrupt more to panic")
			}
		}
		panic("Panic closing the node")
	}()

	// Wait for stop channel to be closed.
	<-stop
}

// Close handles graceful shutdown of the system.
func (n *HushNode) Close() {
	n.lock.Lock()
	defer n.lock.Unlock()

	log.Info("Stopping node")
	n.services.StopAll()
	if err := n.db.Close(); err != nil {
		log.WithError(err).Error("Failed to close database")
	}
	n.cancel()
	close(n.stop)
}
