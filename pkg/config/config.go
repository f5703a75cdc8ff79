// Package config loads quill's configuration from a TOML file, an optional
// .env file and QUILL_* environment variables, in that order of precedence
// (later wins).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/papercomputeco/quill/pkg/auth"
	"github.com/papercomputeco/quill/pkg/generate"
	"github.com/papercomputeco/quill/pkg/logger"
	"github.com/papercomputeco/quill/pkg/oauth"
	"github.com/papercomputeco/quill/pkg/payments"
	"github.com/papercomputeco/quill/pkg/trends"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the complete quill configuration. Every external collaborator
// is built from its own section.
type Config struct {
	Server   Server          `toml:"server"`
	Log      logger.Config   `toml:"log"`
	Storage  Storage         `toml:"storage"`
	Generate generate.Config `toml:"generate"`
	Auth     auth.Config     `toml:"auth"`
	Payments payments.Config `toml:"payments"`
	Trends   trends.Config   `toml:"trends"`
	OAuth    oauth.Config    `toml:"oauth"`
}

// Server is the HTTP listener configuration.
type Server struct {
	ListenAddr string `toml:"listen"`
}

// Storage selects the story storage driver.
type Storage struct {
	// Driver is one of "memory", "sqlite" or "postgres".
	Driver string `toml:"driver"`

	// DSN is the sqlite file path or postgres connection string.
	DSN string `toml:"dsn"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server:  Server{ListenAddr: ":8080"},
		Storage: Storage{Driver: DriverMemory},
		Generate: generate.Config{
			URL:   generate.DefaultURL,
			Model: generate.DefaultModel,
		},
		Payments: payments.Config{URL: payments.DefaultURL},
		Trends:   trends.Config{URL: trends.DefaultURL, Engine: trends.DefaultEngine},
	}
}

// Load builds the configuration. path may be empty to skip the TOML file.
// A .env file in the working directory is loaded if present.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("could not decode config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("could not load .env: %w", err)
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	envString("QUILL_LISTEN", &cfg.Server.ListenAddr)
	envBool("QUILL_DEBUG", &cfg.Log.Debug)
	envString("QUILL_LOG_FILE", &cfg.Log.File)

	envString("QUILL_STORAGE_DRIVER", &cfg.Storage.Driver)
	envString("QUILL_STORAGE_DSN", &cfg.Storage.DSN)

	envString("QUILL_GENERATE_URL", &cfg.Generate.URL)
	envString("QUILL_GENERATE_MODEL", &cfg.Generate.Model)
	envBool("QUILL_GENERATE_PER_CHUNK", &cfg.Generate.PerChunk)

	envString("QUILL_AUTH_URL", &cfg.Auth.URL)
	envString("QUILL_AUTH_API_KEY", &cfg.Auth.APIKey)

	envString("QUILL_PAYMENTS_URL", &cfg.Payments.URL)
	envString("QUILL_PAYMENTS_SECRET_KEY", &cfg.Payments.SecretKey)

	envString("QUILL_TRENDS_URL", &cfg.Trends.URL)
	envString("QUILL_TRENDS_API_KEY", &cfg.Trends.APIKey)

	envString("QUILL_OAUTH_REDIRECT_BASE_URL", &cfg.OAuth.RedirectBaseURL)
	for _, name := range oauth.Platforms() {
		prefix := "QUILL_OAUTH_" + strings.ToUpper(name) + "_"
		creds := cfg.OAuth.Platforms[name]
		envString(prefix+"CLIENT_ID", &creds.ClientID)
		envString(prefix+"CLIENT_SECRET", &creds.ClientSecret)
		if creds.ClientID == "" && creds.ClientSecret == "" {
			continue
		}
		if cfg.OAuth.Platforms == nil {
			cfg.OAuth.Platforms = map[string]oauth.Credentials{}
		}
		cfg.OAuth.Platforms[name] = creds
	}
}

// Validate checks that every enabled collaborator has the credentials it needs.
func (c Config) Validate() error {
	var errs []error

	if c.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen is required"))
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.Storage.DSN == "" {
			errs = append(errs, fmt.Errorf("storage.dsn is required for the %s driver", c.Storage.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}

	if _, err := url.ParseRequestURI(c.Generate.URL); err != nil {
		errs = append(errs, fmt.Errorf("generate.url is invalid: %w", err))
	}
	if c.Generate.Model == "" {
		errs = append(errs, errors.New("generate.model is required"))
	}

	if c.Auth.Enabled() && (c.Auth.URL == "" || c.Auth.APIKey == "") {
		errs = append(errs, errors.New("auth.url and auth.api_key must be set together"))
	}

	for name, creds := range c.OAuth.Platforms {
		if _, ok := oauth.Lookup(name); !ok {
			errs = append(errs, fmt.Errorf("oauth.platforms: %w: %s", oauth.ErrUnknownPlatform, name))
			continue
		}
		if creds.ClientID == "" {
			errs = append(errs, fmt.Errorf("oauth.platforms.%s.client_id is required", name))
		}
	}
	if len(c.OAuth.Platforms) > 0 && c.OAuth.RedirectBaseURL == "" {
		errs = append(errs, errors.New("oauth.redirect_base_url is required when a platform is configured"))
	}

	return errors.Join(errs...)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
