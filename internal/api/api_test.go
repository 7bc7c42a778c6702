package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolworks/cycletimed/internal/auth"
	"github.com/toolworks/cycletimed/internal/batch"
	"github.com/toolworks/cycletimed/internal/config"
	"github.com/toolworks/cycletimed/internal/db"
	"github.com/toolworks/cycletimed/internal/engine"
	"github.com/toolworks/cycletimed/internal/refdata"
	"github.com/toolworks/cycletimed/internal/ws"
)

func testServer(t *testing.T) (*http.ServeMux, *db.DB) {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())
	require.NoError(t, database.SeedReferenceData())

	ref := refdata.NewProvider(database, "")
	eng := engine.New(ref)
	store := batch.NewStore(database)
	runner := batch.NewRunner(store, eng, database, nil, nil, nil, 1)

	mux := http.NewServeMux()
	SetupRoutes(mux, &Deps{
		DB:     database,
		Config: &config.Config{},
		Store:  store,
		Runner: runner,
		Engine: eng,
		Ref:    ref,
		Hub:    ws.NewHub(),
	})
	return mux, database
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string, hdr map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	var out map[string]any
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

var csrf = map[string]string{"X-CSRF-Token": "test"}

func TestEstimateEndpoint(t *testing.T) {
	mux, _ := testServer(t)

	rec, out := doJSON(t, mux, "POST", "/api/v1/estimate",
		`{"Description":"4FL SQ EM","Diameter":"1/4","LOC":"3/4","ShankDiameter":"1/4","OAL":"2-1/2"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(900), out["statusCode"])
	assert.Equal(t, "Success!", out["errorMessage"])
	assert.Greater(t, out["CycleTime"].(float64), 0.0)

	// Engine failures still return HTTP 200; the taxonomy code carries the error.
	rec, out = doJSON(t, mux, "POST", "/api/v1/estimate", `{"Description":""}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(204), out["statusCode"])

	rec, _ = doJSON(t, mux, "POST", "/api/v1/estimate", `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCSRFGuard(t *testing.T) {
	mux, _ := testServer(t)

	rec, out := doJSON(t, mux, "POST", "/api/v1/rates",
		`{"family":"SQ EM","min_diameter":1.0,"max_diameter":2.0}`, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, false, out["success"])

	rec, out = doJSON(t, mux, "POST", "/api/v1/rates",
		`{"family":"SQ EM","min_diameter":1.0,"max_diameter":2.0,"fluting_fr":1.0,"od_fr":2.0}`, csrf)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["success"])
}

func TestRatesVisibleToEngineAfterCreate(t *testing.T) {
	mux, _ := testServer(t)

	// Out-of-band diameter fails first.
	_, out := doJSON(t, mux, "POST", "/api/v1/estimate",
		`{"Description":"4FL SQ EM","Diameter":"2.5","LOC":"3","ShankDiameter":"2.5","OAL":"6"}`, nil)
	assert.Equal(t, float64(305), out["statusCode"])

	// Adding a covering rate band invalidates the cache and the same
	// request now succeeds.
	rec, _ := doJSON(t, mux, "POST", "/api/v1/rates",
		`{"family":"SQ EM","min_diameter":2.0,"max_diameter":3.0,"fluting_fr":1.0,"od_fr":2.0,"end_ct":0.1,"end_gash_ct":0.1,"end_split_ct":0.1}`, csrf)
	require.Equal(t, http.StatusOK, rec.Code)

	_, out = doJSON(t, mux, "POST", "/api/v1/estimate",
		`{"Description":"4FL SQ EM","Diameter":"2.5","LOC":"3","ShankDiameter":"2.5","OAL":"6"}`, nil)
	assert.Equal(t, float64(900), out["statusCode"])
}

func TestBatchLifecycle(t *testing.T) {
	mux, _ := testServer(t)

	rec, out := doJSON(t, mux, "POST", "/api/v1/batches",
		`{"name":"api-test","requests":[{"Description":"4FL SQ EM","Diameter":"1/4","LOC":"3/4","ShankDiameter":"1/4","OAL":"2-1/2"}]}`, csrf)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, out["success"])
	data := out["data"].(map[string]any)
	id := int(data["id"].(float64))
	assert.Greater(t, id, 0)

	rec, out = doJSON(t, mux, "GET", "/api/v1/batches", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	meta := out["meta"].(map[string]any)
	assert.Equal(t, float64(1), meta["total"])

	rec, _ = doJSON(t, mux, "POST", "/api/v1/batches", `{"name":"empty","requests":[]}`, csrf)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthGuardsRoutes(t *testing.T) {
	mux, database := testServer(t)
	require.NoError(t, auth.SetAPIKey(database, "sekret"))

	rec, _ := doJSON(t, mux, "GET", "/api/v1/batches", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, out := doJSON(t, mux, "GET", "/api/v1/batches", "",
		map[string]string{"Authorization": "Bearer sekret"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["success"])
}

func TestSettingsEndpoint(t *testing.T) {
	mux, database := testServer(t)

	rec, _ := doJSON(t, mux, "PUT", "/api/v1/settings/batch_workers", `{"value":"4"}`, csrf)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "4", database.GetSetting("batch_workers", ""))

	// schema_version is internal and must not be editable.
	rec, _ = doJSON(t, mux, "PUT", "/api/v1/settings/schema_version", `{"value":"99"}`, csrf)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusEndpoint(t *testing.T) {
	mux, _ := testServer(t)
	rec, out := doJSON(t, mux, "GET", "/api/v1/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := out["data"].(map[string]any)
	assert.Contains(t, data, "uptime_seconds")
	assert.Equal(t, float64(0), data["ws_clients"])
}
