// Package flags defines the command-line surface of the node.
package flags

import (
	"github.com/urfave/cli/v2"
)

var (
	// DataDirFlag sets the directory holding the database files.
	DataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the databases",
		Value: "hushnode-data",
	}
	// ConfigFileFlag points at a yaml configuration file.
	ConfigFileFlag = &cli.StringFlag{
		Name:  "config-file",
		Usage: "Path to a yaml configuration file",
	}
	// HTTPAddrFlag sets the HTTP API listen address.
	HTTPAddrFlag = &cli.StringFlag{
		Name:  "http-addr",
		Usage: "Listen address of the HTTP API",
	}
	// MetricsAddrFlag sets the monitoring listen address.
	MetricsAddrFlag = &cli.StringFlag{
		Name:  "metrics-addr",
		Usage: "Listen address of the metrics and health endpoints",
	}
	// BlockIntervalFlag sets the block production interval in milliseconds.
	BlockIntervalFlag = &cli.Int64Flag{
		Name:  "block-interval-ms",
		Usage: "Milliseconds between block production cycles",
	}
	// MaxDrainBatchFlag bounds the transactions drained per block.
	MaxDrainBatchFlag = &cli.IntFlag{
		Name:  "max-drain-batch",
		Usage: "Maximum transactions drained from the mempool per block",
	}
	// StackerKeyFlag supplies the block producer's hex-encoded private key.
	StackerKeyFlag = &cli.StringFlag{
		Name:  "stacker-key",
		Usage: "Hex-encoded secp256k1 private signing key of the block producer",
	}
	// VerbosityFlag sets the log level.
	VerbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity (trace, debug, info, warn, error)",
		Value: "info",
	}
	// DevProofVerificationFlag accepts any well-formed reaction proof
	// instead of running a circuit verifier.
	DevProofVerificationFlag = &cli.BoolFlag{
		Name:  "dev-proof-verification",
		Usage: "Accept any well-formed reaction proof without a circuit verifier",
		Value: true,
	}
	// ClearDBFlag wipes the databases before starting.
	ClearDBFlag = &cli.BoolFlag{
		Name:  "clear-db",
		Usage: "Delete the databases and start from genesis",
	}
)

// All is every flag of the node command.
var All = []cli.Flag{
	DataDirFlag,
	ConfigFileFlag,
	HTTPAddrFlag,
	MetricsAddrFlag,
	BlockIntervalFlag,
	MaxDrainBatchFlag,
	StackerKeyFlag,
	DevProofVerificationFlag,
	VerbosityFlag,
	ClearDBFlag,
}
