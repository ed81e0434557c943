package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gator/internal/config"
)

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	cmd, err := ParseCommand(os.Args[1])
	if err != nil {
		log.Error().Str("command", os.Args[1]).Msg("Unknown command")
		printUsage(os.Stderr)
		os.Exit(1)
	}

	cfg, err := config.Load(config.GetEnvString("GATOR_CONFIG", ""))
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, &app{cfg: cfg, out: os.Stdout}, cmd, os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		if errors.Is(err, context.Canceled) {
			log.Info().Msg("Interrupted")
			return
		}
		fmt.Fprintf(os.Stderr, "gator %s: %v\n", cmd, err)
		stop()
		os.Exit(1)
	}
}
