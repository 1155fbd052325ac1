// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// OpenFGAConfig holds relationship store connection settings.
type OpenFGAConfig struct {
	APIURL  string // OpenFGA server URL (e.g., http://openfga:8080)
	StoreID string // store id the authorization model lives in
	ModelID string // pin a model version (optional; latest when empty)
}

// Validate checks that the store configuration is usable.
func (o *OpenFGAConfig) Validate() error {
	if o.APIURL == "" {
		return fmt.Errorf("OPENFGA_API_URL must be set")
	}
	if o.StoreID == "" {
		return fmt.Errorf("OPENFGA_STORE_ID must be set")
	}
	return nil
}

// LakekeeperConfig holds catalog metadata service settings.
type LakekeeperConfig struct {
	CatalogURL   string        // Lakekeeper catalog API base URL
	TokenURL     string        // Keycloak token endpoint (optional; anonymous when empty)
	ClientID     string        // OAuth2 client id
	ClientSecret string        // OAuth2 client secret
	Scopes       []string      // OAuth2 scopes
	Timeout      time.Duration // per-request timeout (default 10s)
}

// Enabled returns true when a catalog endpoint is configured. Resource
// enumeration is unavailable without one; decision endpoints still work.
func (l *LakekeeperConfig) Enabled() bool {
	return l.CatalogURL != ""
}

// AdminAuthConfig holds identity provider settings for the admin API
// guard. When an issuer is configured, bearer tokens are verified
// against its JWKS; otherwise the shared HS256 secret is used.
type AdminAuthConfig struct {
	IssuerURL      string   // OIDC issuer URL (e.g., https://keycloak/realms/iceberg)
	Audience       string   // required JWT audience claim
	AllowedIssuers []string // accepted issuers (defaults to [IssuerURL])
}

// OIDCEnabled returns true when issuer-based validation is configured.
func (a *AdminAuthConfig) OIDCEnabled() bool {
	return a.IssuerURL != ""
}

// Validate checks the admin auth configuration for consistency.
func (a *AdminAuthConfig) Validate() error {
	if a.IssuerURL != "" && a.Audience == "" {
		return fmt.Errorf("AUTH_AUDIENCE is required when AUTH_ISSUER_URL is set")
	}
	return nil
}

// Config holds the configuration for the permission API.
type Config struct {
	ListenAddr string // HTTP listen address (default ":8000")
	LogLevel   string // log level: debug, info, warn, error (default "info")
	Env        string // environment: "development" (default) or "production"

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// AdminJWTSecret guards the administrative grant/revoke endpoints
	// with HS256 bearer tokens when no OIDC issuer is configured.
	// Empty (with no issuer) disables the guard.
	AdminJWTSecret string

	// AdminAuth configures OIDC validation for the admin guard.
	AdminAuth AdminAuthConfig

	// BatchConcurrency bounds the fan-out of batch decision endpoints.
	BatchConcurrency int

	OpenFGA    OpenFGAConfig
	Lakekeeper LakekeeperConfig

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		ListenAddr:     os.Getenv("LISTEN_ADDR"),
		LogLevel:       os.Getenv("LOG_LEVEL"),
		Env:            os.Getenv("ENV"),
		AdminJWTSecret: os.Getenv("ADMIN_JWT_SECRET"),
		AdminAuth: AdminAuthConfig{
			IssuerURL: os.Getenv("AUTH_ISSUER_URL"),
			Audience:  os.Getenv("AUTH_AUDIENCE"),
		},
		OpenFGA: OpenFGAConfig{
			APIURL:  os.Getenv("OPENFGA_API_URL"),
			StoreID: os.Getenv("OPENFGA_STORE_ID"),
			ModelID: os.Getenv("OPENFGA_MODEL_ID"),
		},
		Lakekeeper: LakekeeperConfig{
			CatalogURL:   os.Getenv("LAKEKEEPER_CATALOG_URL"),
			TokenURL:     os.Getenv("KEYCLOAK_TOKEN_URL"),
			ClientID:     os.Getenv("KEYCLOAK_CLIENT_ID"),
			ClientSecret: os.Getenv("KEYCLOAK_CLIENT_SECRET"),
		},
	}

	// Rate limiting
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}
	if v := os.Getenv("BATCH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BatchConcurrency = n
		}
	}

	// CORS
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = origins
	}

	if v := os.Getenv("AUTH_ALLOWED_ISSUERS"); v != "" {
		issuers := strings.Split(v, ",")
		for i := range issuers {
			issuers[i] = strings.TrimSpace(issuers[i])
		}
		cfg.AdminAuth.AllowedIssuers = compactNonEmpty(issuers)
	}

	if v := os.Getenv("KEYCLOAK_SCOPES"); v != "" {
		scopes := strings.Split(v, ",")
		for i := range scopes {
			scopes[i] = strings.TrimSpace(scopes[i])
		}
		cfg.Lakekeeper.Scopes = compactNonEmpty(scopes)
	}
	if v := os.Getenv("LAKEKEEPER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Lakekeeper.Timeout = d
		}
	}

	// Defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8000"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 200
	}
	if cfg.BatchConcurrency == 0 {
		cfg.BatchConcurrency = 8
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.Lakekeeper.Timeout == 0 {
		cfg.Lakekeeper.Timeout = 10 * time.Second
	}

	if err := cfg.OpenFGA.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.AdminAuth.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Lakekeeper.Enabled() {
		cfg.Warnings = append(cfg.Warnings, "LAKEKEEPER_CATALOG_URL not set — resource enumeration endpoints are disabled")
	}
	if cfg.Lakekeeper.Enabled() && cfg.Lakekeeper.TokenURL == "" {
		cfg.Warnings = append(cfg.Warnings, "KEYCLOAK_TOKEN_URL not set — calling Lakekeeper without authentication")
	}
	if !cfg.AdminAuth.OIDCEnabled() && cfg.AdminJWTSecret == "" {
		cfg.Warnings = append(cfg.Warnings, "neither AUTH_ISSUER_URL nor ADMIN_JWT_SECRET set — administrative endpoints are unauthenticated")
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if !cfg.AdminAuth.OIDCEnabled() && cfg.AdminJWTSecret == "" {
			return nil, fmt.Errorf("AUTH_ISSUER_URL or ADMIN_JWT_SECRET must be set in production (ENV=production)")
		}
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
	}

	return cfg, nil
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = stripQuotes(value)
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
