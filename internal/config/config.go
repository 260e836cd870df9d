package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"

	"linkrewards/internal/util"
)

// Supported backend drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the runtime configuration of the service.
type Config struct {
	Addr        string
	Driver      string
	BackendURL  string
	APIKey      string
	StaticDir   string
	ImageDir    string
	StepDelay   time.Duration
	TokenTTL    time.Duration
	IdleTimeout time.Duration
	MaxClients  int
	RedeemGuard bool
	LogLevel    string
}

// Load reads envFile when it exists, then the process environment. Variables
// already set in the environment win over the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := Config{
		Addr:       util.EnvOrDefault("LINK_ADDR", ":8080"),
		Driver:     util.EnvOrDefault("LINK_DB_DRIVER", DriverSQLite),
		BackendURL: util.EnvOrDefault("LINK_BACKEND_URL", "data/link.db"),
		APIKey:     util.EnvOrDefault("LINK_API_KEY", ""),
		StaticDir:  util.EnvOrDefault("LINK_STATIC_DIR", "web/dist"),
		ImageDir:   util.EnvOrDefault("LINK_IMAGE_DIR", ""),
		LogLevel:   util.EnvOrDefault("LINK_LOG_LEVEL", "info"),
	}

	var err error
	if cfg.StepDelay, err = util.EnvDuration("LINK_STEP_DELAY", time.Second); err != nil {
		return Config{}, fmt.Errorf("LINK_STEP_DELAY: %w", err)
	}
	if cfg.TokenTTL, err = util.EnvDuration("LINK_TOKEN_TTL", 24*time.Hour); err != nil {
		return Config{}, fmt.Errorf("LINK_TOKEN_TTL: %w", err)
	}
	if cfg.IdleTimeout, err = util.EnvDuration("LINK_IDLE_TIMEOUT", 30*time.Minute); err != nil {
		return Config{}, fmt.Errorf("LINK_IDLE_TIMEOUT: %w", err)
	}
	if cfg.MaxClients, err = util.EnvInt("LINK_MAX_CLIENTS", 10000); err != nil {
		return Config{}, fmt.Errorf("LINK_MAX_CLIENTS: %w", err)
	}
	if cfg.RedeemGuard, err = util.EnvBool("LINK_REDEEM_GUARD", true); err != nil {
		return Config{}, fmt.Errorf("LINK_REDEEM_GUARD: %w", err)
	}
	return cfg, nil
}

// Validate reports settings the service cannot start with.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}
	if c.BackendURL == "" {
		return fmt.Errorf("backend url is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("LINK_API_KEY is required")
	}
	if c.StepDelay <= 0 {
		return fmt.Errorf("step delay must be positive")
	}
	if c.MaxClients <= 0 {
		return fmt.Errorf("max clients must be positive")
	}
	return nil
}
