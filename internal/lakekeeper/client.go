// Package lakekeeper implements the catalog metadata port against a
// Lakekeeper REST catalog, authenticating with OAuth2 client
// credentials.
package lakekeeper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/thaihung110/permission-api/internal/domain"
)

// Config holds the catalog endpoints and token-endpoint credentials.
type Config struct {
	CatalogURL   string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Timeout      time.Duration
}

// Client talks to the Lakekeeper catalog API.
type Client struct {
	catalogURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// New builds a client. When a token URL is configured the underlying
// HTTP client refreshes and attaches bearer tokens transparently.
func New(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	httpClient := &http.Client{Timeout: timeout}
	if cfg.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		httpClient = cc.Client(context.Background())
		httpClient.Timeout = timeout
	}

	return &Client{
		catalogURL: strings.TrimRight(cfg.CatalogURL, "/"),
		httpClient: httpClient,
		logger:     logger.With("component", "lakekeeper"),
	}
}

// WarehouseID implements domain.CatalogMetadata. The warehouse id is
// the URL prefix the catalog reports in its per-warehouse defaults.
func (c *Client) WarehouseID(ctx context.Context, warehouse string) (string, error) {
	u := c.catalogURL + "/v1/config?warehouse=" + url.QueryEscape(warehouse)

	var body struct {
		Defaults struct {
			Prefix string `json:"prefix"`
		} `json:"defaults"`
	}
	if err := c.getJSON(ctx, u, &body); err != nil {
		return "", err
	}
	if body.Defaults.Prefix == "" {
		return "", domain.ErrNotFound("warehouse %q has no configured prefix", warehouse)
	}
	return body.Defaults.Prefix, nil
}

// Namespaces implements domain.CatalogMetadata. Multi-part namespaces
// are joined with dots.
func (c *Client) Namespaces(ctx context.Context, warehouseID string) ([]string, error) {
	u := fmt.Sprintf("%s/v1/%s/namespaces", c.catalogURL, url.PathEscape(warehouseID))

	var body struct {
		Namespaces [][]string `json:"namespaces"`
	}
	if err := c.getJSON(ctx, u, &body); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(body.Namespaces))
	for _, parts := range body.Namespaces {
		if len(parts) == 0 {
			continue
		}
		names = append(names, strings.Join(parts, "."))
	}
	return names, nil
}

// Tables implements domain.CatalogMetadata.
func (c *Client) Tables(ctx context.Context, warehouseID, namespace string) ([]string, error) {
	u := fmt.Sprintf("%s/v1/%s/namespaces/%s/tables",
		c.catalogURL, url.PathEscape(warehouseID), url.PathEscape(namespace))

	var body struct {
		Identifiers []struct {
			Name string `json:"name"`
		} `json:"identifiers"`
	}
	if err := c.getJSON(ctx, u, &body); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(body.Identifiers))
	for _, id := range body.Identifiers {
		if id.Name != "" {
			names = append(names, id.Name)
		}
	}
	return names, nil
}

// TableColumns implements domain.CatalogMetadata. Columns come from the
// first schema in the table metadata, which Lakekeeper reports as the
// current one.
func (c *Client) TableColumns(ctx context.Context, warehouseID, namespace, table string) ([]string, error) {
	u := fmt.Sprintf("%s/v1/%s/namespaces/%s/tables/%s",
		c.catalogURL, url.PathEscape(warehouseID), url.PathEscape(namespace), url.PathEscape(table))

	var body struct {
		Metadata struct {
			Schemas []struct {
				Fields []struct {
					Name string `json:"name"`
				} `json:"fields"`
			} `json:"schemas"`
		} `json:"metadata"`
	}
	if err := c.getJSON(ctx, u, &body); err != nil {
		return nil, err
	}
	if len(body.Metadata.Schemas) == 0 {
		return nil, nil
	}

	fields := body.Metadata.Schemas[0].Fields
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Name != "" {
			names = append(names, f.Name)
		}
	}
	return names, nil
}

func (c *Client) getJSON(ctx context.Context, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.ErrUnavailable("lakekeeper request: %v", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ErrUnavailable("lakekeeper GET %s: %v", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound("lakekeeper GET %s: not found", u)
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.ErrUnavailable("lakekeeper GET %s: status %d: %s", u, resp.StatusCode, string(snippet))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.ErrUnavailable("lakekeeper GET %s: decode: %v", u, err)
	}
	c.logger.Debug("catalog fetch", "url", u, "status", resp.StatusCode)
	return nil
}
