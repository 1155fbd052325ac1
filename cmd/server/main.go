// Package main starts the permission decision service: the policy agent
// endpoints Trino calls on every access check, plus the administrative
// API for grants and policies.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/cors"

	"github.com/thaihung110/permission-api/internal/api"
	"github.com/thaihung110/permission-api/internal/config"
	"github.com/thaihung110/permission-api/internal/domain"
	"github.com/thaihung110/permission-api/internal/fga"
	"github.com/thaihung110/permission-api/internal/lakekeeper"
	"github.com/thaihung110/permission-api/internal/middleware"
	"github.com/thaihung110/permission-api/internal/service/catalog"
	"github.com/thaihung110/permission-api/internal/service/security"
)

func main() {
	// Load .env file (if present)
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	store, err := fga.New(cfg.OpenFGA.APIURL, cfg.OpenFGA.StoreID, cfg.OpenFGA.ModelID, logger)
	if err != nil {
		logger.Error("relationship store init failed", "error", err)
		os.Exit(1)
	}

	grants := security.NewGrantService(store, logger)
	rowFilters := security.NewRowFilterService(store, logger)
	masks := security.NewColumnMaskService(store, cfg.BatchConcurrency, logger)
	permissions := security.NewPermissionService(store, logger)

	var resources *catalog.ResourceService
	if cfg.Lakekeeper.Enabled() {
		meta := lakekeeper.New(lakekeeper.Config{
			CatalogURL:   cfg.Lakekeeper.CatalogURL,
			TokenURL:     cfg.Lakekeeper.TokenURL,
			ClientID:     cfg.Lakekeeper.ClientID,
			ClientSecret: cfg.Lakekeeper.ClientSecret,
			Scopes:       cfg.Lakekeeper.Scopes,
			Timeout:      cfg.Lakekeeper.Timeout,
		}, logger)
		resources = catalog.NewResourceService(meta, grants, rowFilters, masks, cfg.BatchConcurrency, logger)
	} else {
		logger.Warn("lakekeeper not configured, resource enumeration disabled")
		resources = catalog.NewResourceService(unavailableMetadata{}, grants, rowFilters, masks, cfg.BatchConcurrency, logger)
	}

	handler := api.NewHandler(permissions, grants, rowFilters, masks, resources, store, cfg.BatchConcurrency, logger)

	var adminGuard func(http.Handler) http.Handler
	switch {
	case cfg.AdminAuth.OIDCEnabled():
		validator, err := middleware.NewOIDCValidator(context.Background(),
			cfg.AdminAuth.IssuerURL, cfg.AdminAuth.Audience, cfg.AdminAuth.AllowedIssuers)
		if err != nil {
			logger.Error("admin OIDC validator init failed", "error", err)
			os.Exit(1)
		}
		adminGuard = middleware.AdminAuth(validator)
		logger.Info("admin API guarded by OIDC", "issuer", cfg.AdminAuth.IssuerURL)
	case cfg.AdminJWTSecret != "":
		validator, err := middleware.NewHS256Validator(cfg.AdminJWTSecret)
		if err != nil {
			logger.Error("admin JWT validator init failed", "error", err)
			os.Exit(1)
		}
		adminGuard = middleware.AdminAuth(validator)
	default:
		logger.Warn("no admin token validation configured, administrative endpoints are open")
	}

	router := handler.Routes(adminGuard)

	var h http.Handler = router
	h = middleware.RateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	})(h)
	h = cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	})(h)
	h = middleware.RequestLogger(logger)(h)
	h = middleware.Recoverer(logger)(h)
	h = middleware.RequestID(h)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}

// unavailableMetadata stands in for Lakekeeper when it is not
// configured; resource enumeration fails with a service error instead
// of a nil dereference.
type unavailableMetadata struct{}

func (unavailableMetadata) WarehouseID(context.Context, string) (string, error) {
	return "", domain.ErrUnavailable("catalog metadata service not configured")
}

func (unavailableMetadata) Namespaces(context.Context, string) ([]string, error) {
	return nil, domain.ErrUnavailable("catalog metadata service not configured")
}

func (unavailableMetadata) Tables(context.Context, string, string) ([]string, error) {
	return nil, domain.ErrUnavailable("catalog metadata service not configured")
}

func (unavailableMetadata) TableColumns(context.Context, string, string, string) ([]string, error) {
	return nil, domain.ErrUnavailable("catalog metadata service not configured")
}
