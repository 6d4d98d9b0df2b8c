package blockchain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	blocksProduced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hushnode_blocks_produced_total",
		Help: "Blocks assembled and committed by this node.",
	})
	transactionsIncluded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hushnode_transactions_included_total",
		Help: "Transactions included in committed blocks, rewards included.",
	})
	assemblyFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hushnode_block_assembly_failures_total",
		Help: "Block assembly attempts that failed to commit.",
	})
	chainHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hushnode_chain_height",
		Help: "Index of the chain tip.",
	})
)
