// Command setup fetches teams and the configured seasons of games from the
// statistics API and writes the canonical datasets.
//
//	setup [flags] <api-key>
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"hoopstats/config"
	"hoopstats/scrape"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "setup:", err)
		fmt.Fprintln(os.Stderr, "usage: setup [flags] <api-key>")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	cfg, rest, err := config.Load(config.SetupCommand, args)
	if err != nil {
		return err
	}
	if err := cfg.RequireAPIKey(rest); err != nil {
		return err
	}
	logger := cfg.Logger()

	res, err := scrape.Scrape(ctx, cfg, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %s\n", res)
	return nil
}
