package cmdflags

import (
	"github.com/andrebq/secrets/auth"
	"github.com/urfave/cli/v2"
)

func Database(out *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "database",
		Aliases:     []string{"db", "d"},
		Usage:       "Directory holding the user database",
		Destination: out,
		Value:       *out,
	}
}

func StateKeyEnvVar(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = auth.StateKeyEnvVar
	}
	return &cli.StringFlag{
		Name:        "state-key-envvar-name",
		Usage:       "Name of the environment variable that holds the key used to sign login state. The key itself should not be passed as an argument",
		Value:       *out,
		Destination: out,
		Hidden:      true,
	}
}

func HashAlgorithm(out *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "hash-algorithm",
		Usage:       "Algorithm used to hash new passwords (argon2id or bcrypt)",
		Value:       *out,
		Destination: out,
	}
}
