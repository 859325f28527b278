// Command bento computes leaderboards and summaries from exported order data
// and reads remote resources through the cache-first sync layer.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
	"go.uber.org/zap"
)

func newApp(logger *zap.Logger) *cli.App {
	app := cli.NewApp()
	app.Name = "bento"
	app.Usage = "group-ordering leaderboards and cache-first remote reads"
	app.Commands = []cli.Command{
		leaderboardCommand(logger),
		summaryCommand(),
		restaurantStatsCommand(),
		getCommand(logger),
	}
	return app
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := newApp(logger).Run(os.Args); err != nil {
		logger.Error("Command failed", zap.Error(err))
		os.Exit(1)
	}
}
