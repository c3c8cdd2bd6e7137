package config

import (
	"fmt"
	"time"

	"github.com/andrebq/secrets/auth"
	"github.com/caarlos0/env/v11"
)

type (
	// Config holds every setting read from the environment. Command line
	// flags override these values.
	Config struct {
		Bind           string        `env:"SECRETS_BIND" envDefault:"localhost:7000"`
		Database       string        `env:"SECRETS_DATABASE" envDefault:"./data"`
		SessionTTL     time.Duration `env:"SECRETS_SESSION_TTL" envDefault:"24h"`
		InsecureCookie bool          `env:"SECRETS_INSECURE_COOKIE"`
		HashAlgorithm  string        `env:"SECRETS_HASH_ALGORITHM" envDefault:"argon2id"`
		LogLevel       string        `env:"SECRETS_LOG_LEVEL" envDefault:"info"`
		LogConsole     bool          `env:"SECRETS_LOG_CONSOLE"`
		Google         Google        `envPrefix:"SECRETS_GOOGLE_"`
	}

	// Google configures the federated login. Leaving ClientID empty
	// disables it.
	Google struct {
		ClientID     string   `env:"CLIENT_ID"`
		ClientSecret string   `env:"CLIENT_SECRET"`
		CallbackURL  string   `env:"CALLBACK_URL" envDefault:"http://localhost:7000/auth/google/secrets"`
		AuthURL      string   `env:"AUTH_URL"`
		TokenURL     string   `env:"TOKEN_URL"`
		UserInfoURL  string   `env:"USERINFO_URL"`
		Scopes       []string `env:"SCOPES" envSeparator:","`
	}
)

// Load parses the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("unable to parse environment, cause %w", err)
	}
	if cfg.SessionTTL <= 0 {
		return cfg, fmt.Errorf("session ttl must be positive, got %v", cfg.SessionTTL)
	}
	return cfg, nil
}

// Enabled reports whether a client id was configured.
func (g Google) Enabled() bool {
	return g.ClientID != ""
}

// Provider builds the provider configuration, applying any endpoint
// override on top of the Google defaults.
func (g Google) Provider() auth.ProviderConfig {
	p := auth.GoogleProvider(g.ClientID, g.ClientSecret, g.CallbackURL)
	if g.AuthURL != "" {
		p.AuthURL = g.AuthURL
	}
	if g.TokenURL != "" {
		p.TokenURL = g.TokenURL
	}
	if g.UserInfoURL != "" {
		p.UserInfoURL = g.UserInfoURL
	}
	if len(g.Scopes) > 0 {
		p.Scopes = g.Scopes
	}
	return p
}
