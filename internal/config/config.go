// Package config reads the gateway's settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DotenvFile is read by Load when it exists in the working directory.
const DotenvFile = ".env"

// Config is everything cmd/server needs to wire the gateway.
type Config struct {
	Port     int        `env:"PORT"      envDefault:"50005"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"info"`

	JWTSecret    string        `env:"JWT_SECRET,required"`
	TokenTTL     time.Duration `env:"TOKEN_TTL"     envDefault:"1h"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"false"`

	CometChat CometChat

	DirectoryPageSize int     `env:"DIRECTORY_PAGE_SIZE" envDefault:"1000"`
	SearchThreshold   float64 `env:"SEARCH_THRESHOLD"    envDefault:"0.3"`
	// StrictCreate serialises directory creates so two concurrent signups
	// with one email cannot both reach the chat platform.
	StrictCreate bool `env:"DIRECTORY_STRICT_CREATE" envDefault:"false"`

	AllowedOriginPrefixes []string `env:"ALLOWED_ORIGIN_PREFIXES" envDefault:"http://localhost:,http://127.0.0.1:" envSeparator:","`

	AuthRatePerSecond float64 `env:"AUTH_RATE_PER_SECOND" envDefault:"5"`
	AuthRateBurst     int     `env:"AUTH_RATE_BURST"      envDefault:"10"`
}

// CometChat holds the upstream chat platform credentials.
type CometChat struct {
	AppID   string        `env:"COMETCHAT_APP_ID,required"`
	Region  string        `env:"COMETCHAT_REGION"`
	APIKey  string        `env:"COMETCHAT_API_KEY,required"`
	BaseURL string        `env:"COMETCHAT_BASE_URL"`
	Timeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"10s"`
}

// Load reads DotenvFile if present, then Config from the process
// environment, and validates it. Variables already set win over the file.
func Load() (Config, error) {
	return LoadFiles(DotenvFile)
}

// LoadFiles is Load with explicit dotenv files. Missing files are skipped.
func LoadFiles(paths ...string) (Config, error) {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", p, err)
		}
	}
	return parse(env.Options{})
}

// LoadFrom reads Config from environ instead of the process environment.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values env tags cannot express.
func (c Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.CometChat.Region == "" && c.CometChat.BaseURL == "" {
		errs = append(errs, errors.New("COMETCHAT_REGION or COMETCHAT_BASE_URL is required"))
	}
	if c.CometChat.Timeout <= 0 {
		errs = append(errs, errors.New("UPSTREAM_TIMEOUT must be positive"))
	}
	if c.DirectoryPageSize <= 0 {
		errs = append(errs, errors.New("DIRECTORY_PAGE_SIZE must be positive"))
	}
	if c.SearchThreshold < 0 || c.SearchThreshold > 1 {
		errs = append(errs, errors.New("SEARCH_THRESHOLD must be between 0 and 1"))
	}
	if c.AuthRatePerSecond <= 0 || c.AuthRateBurst <= 0 {
		errs = append(errs, errors.New("AUTH_RATE_PER_SECOND and AUTH_RATE_BURST must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Addr is the listen address for Port.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
