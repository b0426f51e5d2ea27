package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"allowance/internal/cli"
	"allowance/internal/config"
	"allowance/internal/ctl"
)

func main() {
	cli.LoadEnvFile()

	env := &ctl.Env{Out: os.Stdout, Open: open}
	flag.BoolVar(&env.Plain, "plain", false, "Print markdown without terminal styling.")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	for _, c := range ctl.Commands(env) {
		commander.Register(c, "")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

// open wires the same store and publisher the server uses. Logs go to
// stderr so exported CSV on stdout stays clean.
func open(ctx context.Context) (ctl.Ledger, func(), error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger := cli.SetupLogger(cfg, os.Stderr)

	store, err := cli.OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	publisher, closePublisher := cli.NewPublisher(cfg, logger)
	return cli.NewLedgerService(store, publisher, cfg, logger), closePublisher, nil
}
