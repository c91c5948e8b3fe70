package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rpupo63/metadata-catalog/connectors"
	"github.com/rpupo63/metadata-catalog/connectors/example"
	"github.com/rpupo63/metadata-catalog/database"
	"github.com/rpupo63/metadata-catalog/models"
	"github.com/rpupo63/metadata-catalog/services"
)

const testSecret = "test-secret"

func newTestDatabase(t *testing.T) *database.Database {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	registry, err := models.NewRegistry()
	require.NoError(t, err)
	d, err := database.New(db, registry, database.Config{MaxPageLimit: 100})
	require.NoError(t, err)
	require.NoError(t, d.Migrate(context.Background()))
	return d
}

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()
	d := newTestDatabase(t)

	files := fstest.MapFS{
		"dataset/5.json": {Data: []byte(`{"name": "pulled", "description": "d", "same_as": "https://example.com/d/5"}`)},
	}
	discovered, err := example.Discover(files, []string{models.DatasetName})
	require.NoError(t, err)
	registry := connectors.NewRegistry()
	for _, c := range discovered {
		registry.Add(c)
	}
	reg := prometheus.NewRegistry()
	ingestor := services.NewIngestor(d, registry, services.NewMetrics(reg), 1)

	c := map[string]string{
		"JWT_SECRET":         testSecret,
		"WRITE_ROLE":         "editor",
		"DEFAULT_PAGE_LIMIT": "2",
	}
	return newRouter(d, withConfig(c), WithIngestor(ingestor), WithGatherer(reg))
}

func token(t *testing.T, secret string, roles []string, expires time.Time) string {
	t.Helper()
	claims := Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "curator",
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func editorToken(t *testing.T) string {
	return token(t, testSecret, []string{"editor"}, time.Now().Add(time.Hour))
}

func do(t *testing.T, router http.Handler, method, path, bearer, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func datasetBody(name, platformIdentifier string) string {
	return fmt.Sprintf(
		`{"name": %q, "description": "a dataset", "same_as": "https://example.com/%s", "platform": "example", "platform_identifier": %q, "keyword": ["vision"]}`,
		name, platformIdentifier, platformIdentifier,
	)
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestWritesRequireAuthorization(t *testing.T) {
	router := newTestRouter(t)
	body := datasetBody("x", "1")

	tests := []struct {
		name   string
		bearer string
		status int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"garbage", "not-a-jwt", http.StatusUnauthorized},
		{"wrong secret", token(t, "other-secret", []string{"editor"}, time.Now().Add(time.Hour)), http.StatusUnauthorized},
		{"expired", token(t, testSecret, []string{"editor"}, time.Now().Add(-time.Hour)), http.StatusUnauthorized},
		{"missing role", token(t, testSecret, []string{"reader"}, time.Now().Add(time.Hour)), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/datasets/v0", tt.bearer, body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	rec := do(t, router, http.MethodGet, "/datasets/v0", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get(TotalCountHeader), "rejected writes never reach the store")
}

func TestResourceLifecycle(t *testing.T) {
	router := newTestRouter(t)
	bearer := editorToken(t)

	rec := do(t, router, http.MethodPost, "/datasets/v0", bearer, datasetBody("Ünïcode ✓", "1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	identifier := decode(t, rec)["identifier"]
	require.NotNil(t, identifier)
	path := fmt.Sprintf("/datasets/v0/%v", identifier)

	rec = do(t, router, http.MethodGet, path, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode(t, rec)
	assert.Equal(t, "Ünïcode ✓", got["name"])
	assert.Equal(t, identifier, got["identifier"])
	assert.Equal(t, []any{"vision"}, got["keyword"])
	assert.Contains(t, got, "ai_asset_identifier")

	updated := `{"name": "renamed", "description": "new", "same_as": "https://example.com/1", "platform": "example", "platform_identifier": "1"}`
	rec = do(t, router, http.MethodPut, path, bearer, updated)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got = decode(t, rec)
	assert.Equal(t, "renamed", got["name"])
	assert.Equal(t, []any{}, got["keyword"], "an update replaces relationships")

	rec = do(t, router, http.MethodDelete, path, bearer, "")
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodGet, path, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateConflict(t *testing.T) {
	router := newTestRouter(t)
	bearer := editorToken(t)

	rec := do(t, router, http.MethodPost, "/datasets/v0", bearer, datasetBody("first", "7"))
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode(t, rec)["identifier"]

	rec = do(t, router, http.MethodPost, "/datasets/v0", bearer, datasetBody("second", "7"))
	require.Equal(t, http.StatusConflict, rec.Code)
	got := decode(t, rec)
	assert.Equal(t, first, got["identifier"])
	assert.Contains(t, got["details"], "There already exists a dataset with the same platform and platform_identifier (example, 7)")
}

func TestCreateValidation(t *testing.T) {
	router := newTestRouter(t)
	bearer := editorToken(t)

	rec := do(t, router, http.MethodPost, "/datasets/v0", bearer, `{"description": "no name", "same_as": "https://example.com"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "name", decode(t, rec)["field"])

	rec = do(t, router, http.MethodPost, "/datasets/v0", bearer, `[1, 2]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/datasets/v0", bearer, `{"name": "n", "description": "d", "same_as": "https://example.com", "license": "made-up"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "license", decode(t, rec)["field"])
}

func TestListPagination(t *testing.T) {
	router := newTestRouter(t)
	bearer := editorToken(t)
	for i := 1; i <= 5; i++ {
		rec := do(t, router, http.MethodPost, "/datasets/v0", bearer, datasetBody(fmt.Sprintf("d%d", i), fmt.Sprint(i)))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := do(t, router, http.MethodGet, "/datasets/v0", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5", rec.Header().Get(TotalCountHeader))
	var page []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page, 2, "DEFAULT_PAGE_LIMIT applies without a limit")

	seen := map[any]bool{}
	for offset := 0; offset < 5; offset += 2 {
		rec := do(t, router, http.MethodGet, fmt.Sprintf("/datasets/v0?offset=%d&limit=2", offset), "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var page []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
		for _, item := range page {
			assert.False(t, seen[item["identifier"]])
			seen[item["identifier"]] = true
		}
	}
	assert.Len(t, seen, 5)

	rec = do(t, router, http.MethodGet, "/datasets/v0?offset=abc", "", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "offset", decode(t, rec)["field"])

	rec = do(t, router, http.MethodGet, "/datasets/v0/abc", "", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSchema(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/datasets/v0/schema", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var schema SchemaResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &schema))
	assert.Equal(t, "dataset", schema.Resource)
	assert.Equal(t, "datasets", schema.Plural)

	var createNames, readNames []string
	for _, f := range schema.Create {
		createNames = append(createNames, f.Name)
	}
	for _, f := range schema.Read {
		readNames = append(readNames, f.Name)
	}
	assert.NotContains(t, createNames, "identifier")
	assert.Contains(t, createNames, "name")
	assert.Contains(t, readNames, "identifier")
	assert.Contains(t, readNames, "ai_asset_identifier")
}

func TestPlatformsAndConnectors(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/platforms", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var platforms []models.Platform
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &platforms))
	assert.Len(t, platforms, len(models.Platforms))

	rec = do(t, router, http.MethodGet, "/connectors", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"platform": "example", "resource": "dataset"}]`, rec.Body.String())

	rec = do(t, router, http.MethodPost, "/connectors/example/dataset/5", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, router, http.MethodPost, "/connectors/example/dataset/5", editorToken(t), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, services.OutcomeCreated, decode(t, rec)["outcome"])

	rec = do(t, router, http.MethodPost, "/connectors/example/dataset/6", editorToken(t), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodPost, "/connectors/zenodo/dataset/5", editorToken(t), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `catalog_ingested_records_total{outcome="created",platform="example",resource="dataset"} 1`)
}

func TestUnknownRoute(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/spaceships/v0", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
