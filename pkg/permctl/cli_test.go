package permctl

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand runs the CLI with args and returns captured stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// captureServer records the last request and responds with a fixed body.
type captureServer struct {
	*httptest.Server
	lastPath string
	lastAuth string
	lastBody map[string]interface{}
}

func newCaptureServer(t *testing.T, status int, response string) *captureServer {
	t.Helper()
	cs := &captureServer{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.lastPath = r.URL.RequestURI()
		cs.lastAuth = r.Header.Get("Authorization")
		cs.lastBody = nil
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&cs.lastBody)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(cs.Server.Close)
	return cs
}

func TestCheckCmd(t *testing.T) {
	srv := newCaptureServer(t, http.StatusOK, `{"allowed": true}`)

	out, err := executeCommand(t,
		"check", "--host", srv.URL,
		"--user", "alice", "--operation", "SelectFromColumns",
		"--catalog", "lakekeeper_demo", "--schema", "finance", "--table", "user")
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/permissions/check", srv.lastPath)
	assert.Equal(t, "alice", srv.lastBody["user_id"])
	assert.Equal(t, "SelectFromColumns", srv.lastBody["operation"])
	resource := srv.lastBody["resource"].(map[string]interface{})
	assert.Equal(t, "finance", resource["schema_name"])
	assert.Contains(t, out, `"allowed": true`)
}

func TestCheckCmd_RequiresFlags(t *testing.T) {
	_, err := executeCommand(t, "check", "--operation", "SelectFromColumns")
	assert.ErrorContains(t, err, "--user is required")

	_, err = executeCommand(t, "check", "--user", "alice")
	assert.ErrorContains(t, err, "--operation is required")
}

func TestGrantCmd(t *testing.T) {
	srv := newCaptureServer(t, http.StatusOK, `{"object": "catalog:prod"}`)

	_, err := executeCommand(t,
		"grant", "select", "--host", srv.URL, "--token", "s3cret",
		"--user", "role:analyst#assignee", "--user-type", "userset",
		"--catalog", "prod")
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/permissions/grant", srv.lastPath)
	assert.Equal(t, "Bearer s3cret", srv.lastAuth)
	assert.Equal(t, "select", srv.lastBody["relation"])
	assert.Equal(t, "userset", srv.lastBody["user_type"])
}

func TestGrantCmd_ConditionFlagsGoTogether(t *testing.T) {
	_, err := executeCommand(t,
		"grant", "viewer", "--user", "alice", "--catalog", "prod",
		"--condition-attribute", "region")
	assert.ErrorContains(t, err, "go together")
}

func TestRowFilterGrantCmd(t *testing.T) {
	srv := newCaptureServer(t, http.StatusOK,
		`{"policy_id": "lakekeeper_demo.finance.user.region"}`)

	out, err := executeCommand(t,
		"row-filter", "grant", "--host", srv.URL,
		"--user", "alice",
		"--catalog", "lakekeeper_demo", "--schema", "finance", "--table", "user",
		"--attribute", "region", "--values", "north,south")
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/row-filter/grant", srv.lastPath)
	assert.Equal(t, "region", srv.lastBody["attribute_name"])
	assert.Equal(t, []interface{}{"north", "south"}, srv.lastBody["allowed_values"])
	assert.Contains(t, out, "lakekeeper_demo.finance.user.region")
}

func TestRowFilterGrantCmd_RequiresTable(t *testing.T) {
	_, err := executeCommand(t,
		"row-filter", "grant", "--user", "alice",
		"--catalog", "lakekeeper_demo", "--attribute", "region", "--values", "north")
	assert.ErrorContains(t, err, "--table")
}

func TestColumnMaskGrantCmd_RequiresColumn(t *testing.T) {
	_, err := executeCommand(t,
		"column-mask", "grant", "--user", "alice",
		"--catalog", "lakekeeper_demo", "--schema", "finance", "--table", "user")
	assert.ErrorContains(t, err, "--column is required")
}

func TestResourcesCmd(t *testing.T) {
	srv := newCaptureServer(t, http.StatusOK, `{"catalog": "lakekeeper_demo", "schemas": []}`)

	out, err := executeCommand(t,
		"resources", "lakekeeper_demo", "--host", srv.URL, "--user", "alice")
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/catalogs/lakekeeper_demo/resources?user=alice", srv.lastPath)
	assert.Contains(t, out, `"catalog": "lakekeeper_demo"`)
}

func TestClient_ErrorEnvelopes(t *testing.T) {
	srv := newCaptureServer(t, http.StatusNotFound,
		`{"error": {"code": 404, "message": "no select grant"}}`)

	_, err := executeCommand(t,
		"revoke", "select", "--host", srv.URL, "--user", "alice", "--catalog", "prod")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.HTTPStatus)
	assert.Equal(t, "no select grant", apiErr.Message)

	// The middleware envelope is flat.
	flat := newCaptureServer(t, http.StatusUnauthorized,
		`{"code": 401, "message": "unauthorized: provide a Bearer token"}`)
	_, err = executeCommand(t,
		"revoke", "select", "--host", flat.URL, "--user", "alice", "--catalog", "prod")
	require.Error(t, err)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "unauthorized: provide a Bearer token", apiErr.Message)
}
