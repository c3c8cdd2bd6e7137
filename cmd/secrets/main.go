package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/andrebq/secrets/cmd/secrets/serve"
	"github.com/andrebq/secrets/cmd/secrets/users"
	"github.com/andrebq/secrets/internal/config"
	"github.com/andrebq/secrets/internal/logutil"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	logutil.Setup(os.Stderr, cfg.LogLevel, cfg.LogConsole)
	app := &cli.App{
		Name:  "secrets",
		Usage: "Share your secrets anonymously",
		Commands: []*cli.Command{
			serve.Cmd(&cfg),
			users.Cmd(&cfg),
		},
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	err = app.RunContext(ctx, os.Args)
	if err != nil {
		log.Error().Err(err).Msg("Application failed")
		os.Exit(1)
	}
}
