package indexer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	blocksIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hushnode_blocks_indexed_total",
		Help: "Blocks fully processed by the index strategies.",
	})
	transactionsIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hushnode_transactions_indexed_total",
		Help: "Transactions handed to the index strategies.",
	})
	strategyFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hushnode_index_strategy_failures_total",
		Help: "Index strategy invocations that returned an error.",
	})
)
