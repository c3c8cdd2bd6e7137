package users

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/andrebq/secrets/auth"
	"github.com/andrebq/secrets/internal/cmdflags"
	"github.com/andrebq/secrets/internal/config"
	"github.com/andrebq/secrets/internal/logutil"
	"github.com/andrebq/secrets/userstore"
	"github.com/urfave/cli/v2"
)

func Cmd(cfg *config.Config) *cli.Command {
	var store *userstore.Store
	return &cli.Command{
		Name:  "users",
		Usage: "Manage local accounts directly on the database",
		Flags: []cli.Flag{
			cmdflags.Database(&cfg.Database),
		},
		Before: func(ctx *cli.Context) error {
			var err error
			store, err = userstore.Open(ctx.Context, cfg.Database)
			return err
		},
		After: func(ctx *cli.Context) error {
			if store == nil {
				return nil
			}
			return store.Close()
		},
		Subcommands: []*cli.Command{
			registerCmd(cfg, &store),
		},
	}
}

func registerCmd(cfg *config.Config, store **userstore.Store) *cli.Command {
	var username string
	var email string
	return &cli.Command{
		Name:  "register",
		Usage: "Register a new local account (password is read from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "username",
				Aliases:     []string{"u", "user"},
				Usage:       "Name of the user to register",
				Destination: &username,
				Required:    true,
			},
			&cli.StringFlag{
				Name:        "email",
				Usage:       "Email of the user, defaults to the username",
				Destination: &email,
			},
			cmdflags.HashAlgorithm(&cfg.HashAlgorithm),
		},
		Action: func(ctx *cli.Context) error {
			password, err := readPassword(os.Stdin)
			if err != nil {
				return err
			}
			hasher, err := auth.NewPasswordHasher(cfg.HashAlgorithm)
			if err != nil {
				return err
			}
			creds, err := auth.NewCredentials(*store, hasher)
			if err != nil {
				return err
			}
			u, err := creds.Register(ctx.Context, email, username, password)
			if err != nil {
				return err
			}
			log := logutil.GetOrDefault(ctx.Context)
			log.Info().Str("user_id", u.ID).Str("username", u.Username).Msg("User registered")
			return nil
		},
	}
}

// readPassword returns the first line of in. Only the line terminator is
// removed, surrounding spaces are part of the password.
func readPassword(in io.Reader) (auth.PlainText, error) {
	sc := bufio.NewScanner(in)
	if !sc.Scan() {
		if sc.Err() != nil {
			return nil, sc.Err()
		}
		return nil, errors.New("missing password from stdin")
	}
	password := strings.TrimSuffix(sc.Text(), "\r")
	if len(password) == 0 {
		return nil, errors.New("missing password from stdin")
	}
	return auth.PlainText(password), nil
}
