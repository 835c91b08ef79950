// Package main starts the custody service process lifecycle.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	custodycmd "github.com/louisbranch/custody/internal/cmd/custody"
	"github.com/louisbranch/custody/internal/platform/config"
)

func main() {
	cfg, err := custodycmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := custodycmd.Run(ctx, cfg); err != nil {
		config.Exitf("custody: %v", err)
	}
}
