// Package config holds the settings of the surrealism command: a YAML file
// overlaid with SURREAL_* environment variables and finally command flags.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Chooks22/surrealism"
	"github.com/Chooks22/surrealism/pkg/connection"
	"github.com/Chooks22/surrealism/pkg/logger"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	FormatJSON = "json"
	FormatCBOR = "cbor"

	DefaultEndpoint = "http://localhost:8000"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	// Endpoint is resolved with scheme inference. Ignored when Endpoints
	// names at least one transport.
	Endpoint  string               `yaml:"endpoint"`
	Endpoints connection.Endpoints `yaml:"endpoints"`

	User      string `yaml:"user"`
	Pass      string `yaml:"pass"`
	Namespace string `yaml:"namespace"`
	Database  string `yaml:"database"`
	Scope     string `yaml:"scope"`

	// Format is the RPC wire format, json or cbor.
	Format   string `yaml:"format"`
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

func Default() *Config {
	return &Config{
		Endpoint: DefaultEndpoint,
		Format:   FormatJSON,
		LogLevel: zerolog.InfoLevel.String(),
	}
}

// Load reads path over the defaults and then applies the environment. An
// empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

func GetEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value
}

// ApplyEnv overrides every field whose SURREAL_* variable is set.
func (c *Config) ApplyEnv() {
	c.Endpoint = GetEnvOrDefault("SURREAL_URL", c.Endpoint)
	c.Endpoints.HTTP = GetEnvOrDefault("SURREAL_HTTP", c.Endpoints.HTTP)
	c.Endpoints.WS = GetEnvOrDefault("SURREAL_WS", c.Endpoints.WS)
	c.User = GetEnvOrDefault("SURREAL_USER", c.User)
	c.Pass = GetEnvOrDefault("SURREAL_PASS", c.Pass)
	c.Namespace = GetEnvOrDefault("SURREAL_NS", c.Namespace)
	c.Database = GetEnvOrDefault("SURREAL_DB", c.Database)
	c.Scope = GetEnvOrDefault("SURREAL_SC", c.Scope)
	c.Format = GetEnvOrDefault("SURREAL_FORMAT", c.Format)
	c.LogLevel = GetEnvOrDefault("SURREAL_LOG_LEVEL", c.LogLevel)
	c.LogFile = GetEnvOrDefault("SURREAL_LOG_FILE", c.LogFile)
}

func (c *Config) Validate() error {
	if c.Format != FormatJSON && c.Format != FormatCBOR {
		return fmt.Errorf("%w: format %q must be %s or %s", ErrInvalidConfig, c.Format, FormatJSON, FormatCBOR)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %w", ErrInvalidConfig, err)
	}
	if c.Endpoint == "" && c.Endpoints.HTTP == "" && c.Endpoints.WS == "" {
		return fmt.Errorf("%w: no endpoint", ErrInvalidConfig)
	}
	return nil
}

// Auth signs in as a root user unless a scope is set, in which case the
// namespace and database select the scope.
func (c *Config) Auth() surrealism.Auth {
	auth := surrealism.Auth{User: c.User, Pass: c.Pass}
	if c.Scope != "" {
		auth.NS, auth.DB, auth.SC = c.Namespace, c.Database, c.Scope
	}
	return auth
}

// Logger builds the zerolog logger writing to w, or to LogFile when set.
// The caller closes it.
func (c *Config) Logger(w io.Writer) (*logger.LogData, error) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}

	build := logger.New().FromBuffer(w).Level(level)
	if c.LogFile != "" {
		build = build.FromPath(c.LogFile)
	}
	return build.Make()
}

func (c *Config) Options(log logger.Logger) []surrealism.Option {
	opts := []surrealism.Option{surrealism.WithLogger(log)}
	if c.Format == FormatCBOR {
		opts = append(opts, surrealism.WithCBOR())
	}
	return opts
}

// Connect opens a DB and selects the namespace and database when both are set.
func (c *Config) Connect(ctx context.Context, log logger.Logger) (*surrealism.DB, error) {
	var (
		db  *surrealism.DB
		err error
	)
	if c.Endpoints.HTTP != "" || c.Endpoints.WS != "" {
		db, err = surrealism.ConnectEndpoints(ctx, c.Endpoints, c.Auth(), c.Options(log)...)
	} else {
		db, err = surrealism.Connect(ctx, c.Endpoint, c.Auth(), c.Options(log)...)
	}
	if err != nil {
		return nil, err
	}

	if c.Namespace != "" && c.Database != "" {
		if err := db.Use(ctx, c.Namespace, c.Database); err != nil {
			if closeErr := db.Close(ctx); closeErr != nil {
				log.Debug("failed to close connection after use", "error", closeErr)
			}
			return nil, err
		}
	}
	return db, nil
}
