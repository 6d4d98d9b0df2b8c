// Package main defines the hushnode command which runs a full Hush
// network node: block production, indexing and the HTTP API.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/Hushnetwork-social/hush-server-node-sub008/cmd/flags"
	"github.com/Hushnetwork-social/hush-server-node-sub008/node"
)

var log = logrus.WithField("prefix", "main")

func main() {
	app := &cli.App{
		Name:   "hushnode",
		Usage:  "runs a Hush network block producer and indexer node",
		Flags:  flags.All,
		Action: startNode,
		Before: func(cliCtx *cli.Context) error {
			level, err := logrus.ParseLevel(cliCtx.String(flags.VerbosityFlag.Name))
			if err != nil {
				return err
			}
			logrus.SetLevel(level)
			return nil
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func startNode(cliCtx *cli.Context) error {
	n, err := node.New(cliCtx)
	if err != nil {
		return err
	}
	n.Start()
	return nil
}
