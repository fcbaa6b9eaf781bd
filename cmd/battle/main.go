// Package main runs, verifies and lists battles.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	battlecmd "github.com/louisbranch/arena/internal/cmd/battle"
	"github.com/louisbranch/arena/internal/platform/config"
)

func main() {
	cfg, err := battlecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		if errors.Is(err, battlecmd.ErrUsage) {
			flag.Usage()
		}
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := battlecmd.Run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(config.ExitCode(err))
	}
}
