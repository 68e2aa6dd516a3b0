package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/janisto/wa-photo-proxy/internal/http/health"
	"github.com/janisto/wa-photo-proxy/internal/http/v1/routes"
	"github.com/janisto/wa-photo-proxy/internal/platform/config"
	applog "github.com/janisto/wa-photo-proxy/internal/platform/logging"
	appmiddleware "github.com/janisto/wa-photo-proxy/internal/platform/middleware"
	"github.com/janisto/wa-photo-proxy/internal/platform/respond"
	"github.com/janisto/wa-photo-proxy/internal/service/contacts"
	"github.com/janisto/wa-photo-proxy/internal/service/photo"
)

// Version can be overridden at build time: -ldflags "-X main.Version=1.2.3"
var Version = "dev"

const apiTitle = "WhatsApp Photo Proxy"

func main() {
	defer func() {
		if err := applog.Sync(); err != nil {
			applog.LogError(context.Background(), "logger sync error", err)
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		applog.LogFatal(context.Background(), "config load failed", err)
	}
	if err := applog.Configure(cfg.LogLevel); err != nil {
		applog.LogFatal(context.Background(), "invalid log level", err)
	}
	if err := applog.Err(); err != nil {
		applog.LogError(context.Background(), "logger init error", err)
	}
	if err := cfg.Validate(); err != nil {
		applog.LogFatal(context.Background(), "invalid configuration", err)
	}

	respond.Install()
	resolver := photo.NewResolver(newContactsService(cfg), photo.WithFallbackImageURL(cfg.FallbackImageURL))
	router := newRouter(resolver, Version)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		// Must outlive the upstream timeout so fallbacks still reach the client.
		WriteTimeout:   cfg.UpstreamTimeout + 5*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 64 << 10, // 64 KB
	}

	listenErr := make(chan error, 1)
	go func() {
		applog.LogInfo(context.Background(), "server listening",
			zap.String("addr", srv.Addr),
			zap.Bool("contactsMock", cfg.ContactsMock),
			zap.Duration("upstreamTimeout", cfg.UpstreamTimeout),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-listenErr:
		applog.LogFatal(context.Background(), "listen failed", err, zap.String("addr", srv.Addr))
	case <-stop:
		applog.LogInfo(context.Background(), "shutdown signal received")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		applog.LogError(ctx, "server shutdown error", err)
	}
	applog.LogInfo(context.Background(), "server exited")
}

// newContactsService picks the upstream client or the in-memory demo contacts.
func newContactsService(cfg config.Config) contacts.Service {
	if cfg.ContactsMock {
		return contacts.NewMockContactsService()
	}
	return contacts.NewClient(&http.Client{},
		contacts.WithBaseURL(cfg.UpstreamBaseURL),
		contacts.WithTimeout(cfg.UpstreamTimeout),
	)
}

func newRouter(resolver *photo.Resolver, version string) chi.Router {
	router := chi.NewRouter()
	router.NotFound(respond.NotFoundHandler())
	router.MethodNotAllowed(respond.MethodNotAllowedHandler())

	// Base middleware stack
	router.Use(
		appmiddleware.Security(routes.DocsPath),
		appmiddleware.Vary(),
		appmiddleware.CORS(),
		appmiddleware.RequestID(),
		// RealIP trusts X-Real-IP and X-Forwarded-For; only deploy behind a
		// trusted reverse proxy.
		chimiddleware.RealIP,
		chimiddleware.RequestSize(1<<20), // 1 MB limit
		applog.RequestLogger(),
		applog.AccessLogger(),
		respond.Recoverer(),
	)

	router.Get(health.Path, health.Handler)

	api := humachi.New(router, routes.NewConfig(apiTitle, version))
	routes.AdvertiseCBOR(api)
	routes.Register(api, resolver)
	return router
}
