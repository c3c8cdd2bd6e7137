package serve

import (
	"os"

	"github.com/andrebq/secrets/auth"
	"github.com/andrebq/secrets/auth/api"
	"github.com/andrebq/secrets/internal/cmdflags"
	"github.com/andrebq/secrets/internal/config"
	"github.com/andrebq/secrets/internal/httpserver"
	"github.com/andrebq/secrets/internal/logutil"
	"github.com/andrebq/secrets/userstore"
	"github.com/andrebq/secrets/webapp"
	"github.com/urfave/cli/v2"
)

func Cmd(cfg *config.Config) *cli.Command {
	var stateKeyEnvVar string
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the secrets web application",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "bind",
				Usage:       "Address to bind the web application",
				Value:       cfg.Bind,
				Destination: &cfg.Bind,
			},
			cmdflags.Database(&cfg.Database),
			cmdflags.HashAlgorithm(&cfg.HashAlgorithm),
			cmdflags.StateKeyEnvVar(&stateKeyEnvVar),
			&cli.BoolFlag{
				Name:        "insecure-cookie",
				Usage:       "Allow session cookies over plain HTTP (local development only)",
				Value:       cfg.InsecureCookie,
				Destination: &cfg.InsecureCookie,
			},
			&cli.DurationFlag{
				Name:        "session-ttl",
				Usage:       "How long a session remains valid",
				Value:       cfg.SessionTTL,
				Destination: &cfg.SessionTTL,
			},
		},
		Action: func(ctx *cli.Context) error {
			log := logutil.GetOrDefault(ctx.Context)
			store, err := userstore.Open(ctx.Context, cfg.Database)
			if err != nil {
				return err
			}
			defer store.Close()

			hasher, err := auth.NewPasswordHasher(cfg.HashAlgorithm)
			if err != nil {
				return err
			}
			creds, err := auth.NewCredentials(store, hasher)
			if err != nil {
				return err
			}
			tokens, err := auth.InMemorySessionStore(ctx.Context, cfg.SessionTTL)
			if err != nil {
				return err
			}
			sessions := auth.NewSessions(tokens, store, auth.SessionOptions{
				TTL:            cfg.SessionTTL,
				InsecureCookie: cfg.InsecureCookie,
			})

			var broker *auth.Broker
			if cfg.Google.Enabled() {
				keyfn, err := auth.KeyFnFromEnv(stateKeyEnvVar, os.Getenv, os.Setenv)
				if err != nil {
					return err
				}
				broker, err = auth.NewBroker(cfg.Google.Provider(), store, keyfn, cfg.InsecureCookie)
				if err != nil {
					return err
				}
			} else {
				log.Warn().Msg("Google client id not configured, federated login disabled")
			}

			realm := api.NewRealm(store, creds, sessions, broker)
			handler, err := webapp.AsHandler(ctx.Context, realm)
			if err != nil {
				return err
			}
			return httpserver.Serve(ctx.Context, cfg.Bind, handler, httpserver.DefaultOptions())
		},
	}
}
