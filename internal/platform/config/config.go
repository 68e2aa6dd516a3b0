// Package config loads service settings from the environment, optionally
// seeded from a .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	applog "github.com/janisto/wa-photo-proxy/internal/platform/logging"
	"github.com/janisto/wa-photo-proxy/internal/service/photo"
)

const (
	defaultPort            = "8080"
	defaultUpstreamTimeout = 10 * time.Second
	defaultLogLevel        = "info"
)

// Config holds runtime settings for the server and the CLI.
type Config struct {
	// Port the HTTP server listens on.
	Port string
	// UpstreamBaseURL is the contact lookup service root; requests go to
	// <UpstreamBaseURL>/contacts/{phone}.
	UpstreamBaseURL string
	// UpstreamTimeout bounds a single upstream call.
	UpstreamTimeout time.Duration
	// FallbackImageURL is rendered whenever no real photo can be determined.
	FallbackImageURL string
	LogLevel         string
	// ContactsMock serves lookups from the in-memory demo contacts instead of
	// the upstream service.
	ContactsMock bool
}

// Load reads .env (when present) and the environment. Variables already set in
// the environment win over .env entries.
func Load() (Config, error) {
	return LoadFiles(".env")
}

// LoadFiles is Load with explicit dotenv paths. Missing files are ignored.
func LoadFiles(paths ...string) (Config, error) {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", p, err)
		}
	}

	cfg := Config{
		Port:             getEnv("PORT", defaultPort),
		UpstreamBaseURL:  getEnv("UPSTREAM_BASE_URL", ""),
		UpstreamTimeout:  defaultUpstreamTimeout,
		FallbackImageURL: getEnv("FALLBACK_IMAGE_URL", photo.DefaultFallbackImageURL),
		LogLevel:         getEnv("LOG_LEVEL", defaultLogLevel),
	}

	if raw := getEnv("UPSTREAM_TIMEOUT", ""); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parsing UPSTREAM_TIMEOUT: %w", err)
		}
		cfg.UpstreamTimeout = d
	}
	if raw := getEnv("CONTACTS_MOCK", ""); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parsing CONTACTS_MOCK: %w", err)
		}
		cfg.ContactsMock = b
	}
	return cfg, nil
}

// Validate reports the first setting that prevents the service from running.
func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT must not be empty")
	}
	if !c.ContactsMock {
		if err := requireHTTPURL("UPSTREAM_BASE_URL", c.UpstreamBaseURL); err != nil {
			return err
		}
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive, got %s", c.UpstreamTimeout)
	}
	if err := requireHTTPURL("FALLBACK_IMAGE_URL", c.FallbackImageURL); err != nil {
		return err
	}
	if _, err := applog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return nil
}

func requireHTTPURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s must be set", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", name, raw)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return defaultValue
}
