// Command photolookup resolves a WhatsApp profile photo from the terminal
// using the same policy as the HTTP service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/janisto/wa-photo-proxy/internal/api"
	"github.com/janisto/wa-photo-proxy/internal/http/v1/lookup"
	"github.com/janisto/wa-photo-proxy/internal/platform/config"
	applog "github.com/janisto/wa-photo-proxy/internal/platform/logging"
	"github.com/janisto/wa-photo-proxy/internal/service/contacts"
	"github.com/janisto/wa-photo-proxy/internal/service/photo"
)

// Version can be overridden at build time: -ldflags "-X main.Version=1.2.3"
var Version = "dev"

// errRejected marks input the lookup refused; the error payload has already
// been printed.
var errRejected = errors.New("lookup rejected")

type options struct {
	baseURL     string
	timeout     time.Duration
	fallbackURL string
	mock        bool
	logLevel    string
}

func main() {
	os.Exit(run())
}

func run() int {
	// stdout carries the lookup payload only
	applog.WriteToStderr()
	defer func() { _ = applog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errRejected) {
			fmt.Fprintln(os.Stderr, "photolookup:", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "photolookup <phone>",
		Short: "Look up the WhatsApp profile photo for a phone number",
		Long: `Normalizes the phone number, queries the contact lookup service and prints
the same JSON payload POST /lookup answers with. Upstream failures print the
placeholder image; invalid phone numbers print the error payload and exit 1.

Settings are read from .env and the environment (UPSTREAM_BASE_URL,
UPSTREAM_TIMEOUT, FALLBACK_IMAGE_URL, LOG_LEVEL, CONTACTS_MOCK); flags win.`,
		Args:          cobra.ExactArgs(1),
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return runLookup(cmd.Context(), cmd.OutOrStdout(), cfg, args[0])
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.baseURL, "base-url", "", "contact lookup service root (overrides UPSTREAM_BASE_URL)")
	f.DurationVar(&opts.timeout, "timeout", contacts.DefaultTimeout, "upstream request timeout (overrides UPSTREAM_TIMEOUT)")
	f.StringVar(&opts.fallbackURL, "fallback-url", photo.DefaultFallbackImageURL, "placeholder image URL (overrides FALLBACK_IMAGE_URL)")
	f.BoolVar(&opts.mock, "mock", false, "resolve against the built-in demo contacts")
	f.StringVar(&opts.logLevel, "log-level", "", "diagnostic log level on stderr (overrides LOG_LEVEL)")
	return cmd
}

func loadConfig(cmd *cobra.Command, opts options) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}

	f := cmd.Flags()
	if f.Changed("base-url") {
		cfg.UpstreamBaseURL = opts.baseURL
	}
	if f.Changed("timeout") {
		cfg.UpstreamTimeout = opts.timeout
	}
	if f.Changed("fallback-url") {
		cfg.FallbackImageURL = opts.fallbackURL
	}
	if f.Changed("mock") {
		cfg.ContactsMock = opts.mock
	}
	if f.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := applog.Configure(cfg.LogLevel); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func runLookup(ctx context.Context, out io.Writer, cfg config.Config, phone string) error {
	var svc contacts.Service
	if cfg.ContactsMock {
		svc = contacts.NewMockContactsService()
	} else {
		svc = contacts.NewClient(&http.Client{},
			contacts.WithBaseURL(cfg.UpstreamBaseURL),
			contacts.WithTimeout(cfg.UpstreamTimeout),
		)
	}
	resolver := photo.NewResolver(svc, photo.WithFallbackImageURL(cfg.FallbackImageURL))

	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	res, err := resolver.Resolve(ctx, phone)
	if err != nil {
		if !photo.IsValidationError(err) {
			return err
		}
		if encErr := enc.Encode(api.NewError(http.StatusBadRequest, err.Error())); encErr != nil {
			return encErr
		}
		return fmt.Errorf("%w: %w", errRejected, err)
	}

	return enc.Encode(lookup.LookupResult{
		Success:        true,
		Result:         res.ImageURL,
		IsPhotoPrivate: res.Private,
	})
}
