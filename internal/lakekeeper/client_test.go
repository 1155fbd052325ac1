package lakekeeper

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thaihung110/permission-api/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{CatalogURL: srv.URL}, slog.Default())
}

func TestWarehouseID(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/config", r.URL.Path)
		assert.Equal(t, "demo", r.URL.Query().Get("warehouse"))
		w.Write([]byte(`{"defaults":{"prefix":"019234ab-warehouse-id"}}`))
	}))

	id, err := c.WarehouseID(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, "019234ab-warehouse-id", id)
}

func TestWarehouseIDMissingPrefix(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"defaults":{}}`))
	}))

	_, err := c.WarehouseID(context.Background(), "demo")
	require.Error(t, err)
	assert.ErrorAs(t, err, new(*domain.NotFoundError))
}

func TestNamespaces(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/wid-1/namespaces", r.URL.Path)
		w.Write([]byte(`{"namespaces":[["finance"],["sales","emea"],[]]}`))
	}))

	got, err := c.Namespaces(context.Background(), "wid-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"finance", "sales.emea"}, got)
}

func TestTables(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/wid-1/namespaces/finance/tables", r.URL.Path)
		w.Write([]byte(`{"identifiers":[{"namespace":["finance"],"name":"user"},{"name":"orders"}]}`))
	}))

	got, err := c.Tables(context.Background(), "wid-1", "finance")
	require.NoError(t, err)
	assert.Equal(t, []string{"user", "orders"}, got)
}

func TestTableColumns(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/wid-1/namespaces/finance/tables/user", r.URL.Path)
		w.Write([]byte(`{"metadata":{"schemas":[{"fields":[{"name":"id"},{"name":"email"}]}]}}`))
	}))

	got, err := c.TableColumns(context.Background(), "wid-1", "finance", "user")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "email"}, got)
}

func TestErrorMapping(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/missing/namespaces" {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := c.Namespaces(context.Background(), "missing")
	assert.ErrorAs(t, err, new(*domain.NotFoundError))

	_, err = c.Namespaces(context.Background(), "broken")
	assert.ErrorAs(t, err, new(*domain.UnavailableError))
}
