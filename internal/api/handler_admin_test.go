package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thaihung110/permission-api/internal/domain"
	"github.com/thaihung110/permission-api/internal/middleware"
	"github.com/thaihung110/permission-api/internal/service/security"
)

func TestPermissionCheck(t *testing.T) {
	store := newMockStore()
	store.allow(domain.UserSubject("alice"), domain.RelationSelect,
		domain.TableObject("lakekeeper_demo", "finance", "user"))
	h := newTestHandler(store, &mockMeta{})

	rec := postJSON(t, h, "/api/v1/permissions/check", `{
		"user_id": "alice",
		"operation": "SelectFromColumns",
		"resource": {"catalog_name": "lakekeeper_demo", "schema_name": "finance", "table_name": "user"}
	}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"allowed": true}`, rec.Body.String())
}

func TestPermissionCheck_Validation(t *testing.T) {
	h := newTestHandler(newMockStore(), &mockMeta{})

	rec := postJSON(t, h, "/api/v1/permissions/check", `{"user_id": "", "operation": "SelectFromColumns"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, h, "/api/v1/permissions/check", `{"user_id": "alice"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPermissionGrantAndRevoke(t *testing.T) {
	h := newTestHandler(newMockStore(), &mockMeta{})

	rec := postJSON(t, h, "/api/v1/permissions/grant", `{
		"user_id": "alice",
		"relation": "select",
		"resource": {"catalog_name": "prod", "schema_name": "public", "table_name": "orders"}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"object": "table:prod.public.orders",
		"resource_type": "table",
		"resource": "prod.public.orders"
	}`, rec.Body.String())

	// The grant is now effective.
	rec = postJSON(t, h, "/api/v1/permissions/check", `{
		"user_id": "alice",
		"operation": "SelectFromColumns",
		"resource": {"catalog_name": "prod", "schema_name": "public", "table_name": "orders"}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"allowed": true}`, rec.Body.String())

	rec = postJSON(t, h, "/api/v1/permissions/revoke", `{
		"user_id": "alice",
		"relation": "select",
		"resource": {"catalog_name": "prod", "schema_name": "public", "table_name": "orders"}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// Revoking again is a 404.
	rec = postJSON(t, h, "/api/v1/permissions/revoke", `{
		"user_id": "alice",
		"relation": "select",
		"resource": {"catalog_name": "prod", "schema_name": "public", "table_name": "orders"}
	}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPermissionGrant_UsersetSubject(t *testing.T) {
	store := newMockStore()
	h := newTestHandler(store, &mockMeta{})

	rec := postJSON(t, h, "/api/v1/permissions/grant", `{
		"user_id": "role:analyst#assignee",
		"user_type": "userset",
		"relation": "describe",
		"resource": {"catalog_name": "prod"}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, store.tuples, 1)
	assert.Equal(t, "role:analyst#assignee", store.tuples[0].Subject.Ref())
}

func TestPermissionGrant_Validation(t *testing.T) {
	h := newTestHandler(newMockStore(), &mockMeta{})

	// Not a grantable relation.
	rec := postJSON(t, h, "/api/v1/permissions/grant", `{
		"user_id": "alice",
		"relation": "viewer",
		"resource": {"catalog_name": "prod"}
	}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Plain user id is not a userset.
	rec = postJSON(t, h, "/api/v1/permissions/grant", `{
		"user_id": "alice",
		"user_type": "userset",
		"relation": "select",
		"resource": {"catalog_name": "prod"}
	}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRowFilterGrantListRevoke(t *testing.T) {
	h := newTestHandler(newMockStore(), &mockMeta{})

	rec := postJSON(t, h, "/api/v1/row-filter/grant", `{
		"user_id": "alice",
		"resource": {"catalog_name": "lakekeeper_demo", "schema_name": "finance", "table_name": "user"},
		"attribute_name": "region",
		"allowed_values": ["north", "south"]
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"policy_id": "lakekeeper_demo.finance.user.region",
		"attribute_name": "region",
		"subject": "user:alice",
		"allowed_values": ["north", "south"]
	}`, rec.Body.String())

	rec = postJSON(t, h, "/api/v1/row-filter/list", `{
		"user_id": "alice",
		"resource": {"catalog_name": "lakekeeper_demo", "schema_name": "finance", "table_name": "user"}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Policies []policyGrantResponse `json:"policies"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listed))
	require.Len(t, listed.Policies, 1)
	assert.Equal(t, "region", listed.Policies[0].AttributeName)
	assert.Equal(t, []string{"north", "south"}, listed.Policies[0].AllowedValues)

	rec = postJSON(t, h, "/api/v1/row-filter/revoke", `{
		"user_id": "alice",
		"resource": {"catalog_name": "lakekeeper_demo", "schema_name": "finance", "table_name": "user"},
		"attribute_name": "region"
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, h, "/api/v1/row-filter/revoke", `{
		"user_id": "alice",
		"resource": {"catalog_name": "lakekeeper_demo", "schema_name": "finance", "table_name": "user"},
		"attribute_name": "region"
	}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRowFilterGrant_Validation(t *testing.T) {
	h := newTestHandler(newMockStore(), &mockMeta{})

	rec := postJSON(t, h, "/api/v1/row-filter/grant", `{
		"user_id": "alice",
		"resource": {"catalog_name": "lakekeeper_demo"},
		"attribute_name": "region",
		"allowed_values": ["north"]
	}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestColumnMaskGrantListRevoke(t *testing.T) {
	h := newTestHandler(newMockStore(), &mockMeta{})

	rec := postJSON(t, h, "/api/v1/column-mask/grant", `{
		"user_id": "alice",
		"resource": {
			"catalog_name": "lakekeeper_demo",
			"schema_name": "finance",
			"table_name": "user",
			"column_name": "email"
		}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"object": "column:lakekeeper_demo.finance.user.email",
		"resource_type": "column",
		"resource": "lakekeeper_demo.finance.user.email"
	}`, rec.Body.String())

	rec = postJSON(t, h, "/api/v1/column-mask/list", `{
		"user_id": "alice",
		"resource": {"catalog_name": "lakekeeper_demo", "schema_name": "finance", "table_name": "user"}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"masked_columns": ["email"]}`, rec.Body.String())

	rec = postJSON(t, h, "/api/v1/column-mask/revoke", `{
		"user_id": "alice",
		"resource": {
			"catalog_name": "lakekeeper_demo",
			"schema_name": "finance",
			"table_name": "user",
			"column_name": "email"
		}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, h, "/api/v1/column-mask/list", `{
		"user_id": "alice",
		"resource": {"catalog_name": "lakekeeper_demo", "schema_name": "finance", "table_name": "user"}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"masked_columns": []}`, rec.Body.String())
}

func TestCatalogResources(t *testing.T) {
	store := newMockStore()
	store.allow(domain.UserSubject("alice"), domain.RelationSelect,
		domain.CatalogObject("lakekeeper_demo"))
	meta := &mockMeta{
		warehouseID: "wid-1",
		namespaces:  []string{"finance"},
		tables:      map[string][]string{"finance": {"user"}},
		columns:     map[string][]string{"finance.user": {"id", "email"}},
	}
	h := newTestHandler(store, meta)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalogs/lakekeeper_demo/resources?user=alice", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var tree domain.ResourceTree
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tree))
	assert.Equal(t, "lakekeeper_demo", tree.Catalog)
	assert.Equal(t, []domain.Relation{domain.RelationSelect}, tree.Permissions)
	require.Len(t, tree.Schemas, 1)
	require.Len(t, tree.Schemas[0].Tables, 1)
	assert.Equal(t, []string{"id", "email"}, tree.Schemas[0].Tables[0].Columns)
}

func TestCatalogResources_Errors(t *testing.T) {
	h := newTestHandler(newMockStore(), &mockMeta{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalogs/lakekeeper_demo/resources", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/catalogs/lakekeeper_demo/resources?user=alice", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthProbes(t *testing.T) {
	store := newMockStore()
	h := newTestHandler(store, &mockMeta{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	store.pingErr = domain.ErrUnavailable("store down")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAdminGuard(t *testing.T) {
	store := newMockStore()
	validator, err := middleware.NewHS256Validator("guard-secret")
	require.NoError(t, err)

	logger := slog.Default()
	h := NewHandler(
		security.NewPermissionService(store, logger),
		security.NewGrantService(store, logger),
		nil, nil, nil,
		store,
		4,
		logger,
	).Routes(middleware.AdminAuth(validator))

	body := `{
		"user_id": "alice",
		"relation": "select",
		"resource": {"catalog_name": "prod"}
	}`

	// No token: rejected before the handler runs.
	rec := postJSON(t, h, "/api/v1/permissions/grant", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Decision endpoints stay open.
	rec = postJSON(t, h, "/api/v1/allow", `{"input": {"context": {"identity": {"user": ""}}}}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	// A valid token reaches the handler.
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "platform-admin",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte("guard-secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/permissions/grant", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+signed)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
