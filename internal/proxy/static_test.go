package proxy

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maitred/internal/config"
)

// testConfig builds a router config over temp directories laid out the way
// the shared volumes are in the reference deployment.
func testConfig(t *testing.T, backendURL string) *config.Config {
	t.Helper()

	staticVolume := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(staticVolume, "static"), 0755))

	return &config.Config{
		Server: config.ServerConfig{
			Listen:          ":0",
			AdminListen:     ":0",
			MaxBodyBytes:    10 * 1024 * 1024,
			UpstreamTimeout: 2 * time.Second,
		},
		Upstream: config.UpstreamConfig{Backend: backendURL},
		Paths: config.PathsConfig{
			StaticVolume: staticVolume,
			MediaRoot:    t.TempDir(),
			DocsRoot:     t.TempDir(),
			SPARoot:      t.TempDir(),
		},
		Routes: map[string]string{
			"/api/docs/": "docs",
			"/api/":      "backend",
			"/admin/":    "backend",
			"/static/":   "static",
			"/media/":    "media",
			"/":          "spa",
		},
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServeStatic_ExistingFile(t *testing.T) {
	cfg := testConfig(t, "http://backend:8000")
	writeFile(t, filepath.Join(cfg.StaticRoot(), "css", "app.css"), "body{}")

	s, err := NewServer(cfg)
	require.NoError(t, err)

	rec := get(t, s, "/static/css/app.css")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body{}", rec.Body.String())
}

func TestServeStatic_MissingFileIsNotFound(t *testing.T) {
	cfg := testConfig(t, "http://backend:8000")
	// An SPA index exists, but static misses must never fall back to it.
	writeFile(t, filepath.Join(cfg.Paths.SPARoot, "index.html"), "<html>spa</html>")

	s, err := NewServer(cfg)
	require.NoError(t, err)

	rec := get(t, s, "/static/missing.css")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotContains(t, rec.Body.String(), "spa")
}

func TestServeStatic_DirectoryIsNotFound(t *testing.T) {
	cfg := testConfig(t, "http://backend:8000")
	writeFile(t, filepath.Join(cfg.StaticRoot(), "css", "app.css"), "body{}")

	s, err := NewServer(cfg)
	require.NoError(t, err)

	rec := get(t, s, "/static/css/")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeStatic_TraversalStaysInRoot(t *testing.T) {
	cfg := testConfig(t, "http://backend:8000")
	writeFile(t, filepath.Join(cfg.Paths.StaticVolume, "secret.txt"), "secret")

	s, err := NewServer(cfg)
	require.NoError(t, err)

	// /static/ aliases <volume>/static; ../ must not escape it.
	rec := get(t, s, "/static/../secret.txt")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestServeMedia_File(t *testing.T) {
	cfg := testConfig(t, "http://backend:8000")
	writeFile(t, filepath.Join(cfg.Paths.MediaRoot, "avatars", "1.png"), "png-bytes")

	s, err := NewServer(cfg)
	require.NoError(t, err)

	rec := get(t, s, "/media/avatars/1.png")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png-bytes", rec.Body.String())
}

func TestServeMedia_DirectoryListing(t *testing.T) {
	cfg := testConfig(t, "http://backend:8000")
	writeFile(t, filepath.Join(cfg.Paths.MediaRoot, "avatars", "1.png"), "png-bytes")
	writeFile(t, filepath.Join(cfg.Paths.MediaRoot, "recipes.csv"), "a,b")

	s, err := NewServer(cfg)
	require.NoError(t, err)

	rec := get(t, s, "/media/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "avatars/")
	assert.Contains(t, rec.Body.String(), "recipes.csv")
}

func TestServeMedia_EmptyDirectoryListsSuccessfully(t *testing.T) {
	cfg := testConfig(t, "http://backend:8000")

	s, err := NewServer(cfg)
	require.NoError(t, err)

	rec := get(t, s, "/media/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Index of /media/")
}

func TestServeMedia_DirectoryRedirectsToSlash(t *testing.T) {
	cfg := testConfig(t, "http://backend:8000")
	writeFile(t, filepath.Join(cfg.Paths.MediaRoot, "avatars", "1.png"), "png-bytes")

	s, err := NewServer(cfg)
	require.NoError(t, err)

	rec := get(t, s, "/media/avatars")
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/media/avatars/", rec.Header().Get("Location"))
}

func TestServeMedia_MissingFileIsNotFound(t *testing.T) {
	cfg := testConfig(t, "http://backend:8000")

	s, err := NewServer(cfg)
	require.NoError(t, err)

	rec := get(t, s, "/media/nope.png")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeDocs_ExactFile(t *testing.T) {
	cfg := testConfig(t, "http://backend:8000")
	writeFile(t, filepath.Join(cfg.Paths.DocsRoot, "openapi.json"), "{}")
	writeFile(t, filepath.Join(cfg.Paths.DocsRoot, "redoc.html"), "<html>redoc</html>")

	s, err := NewServer(cfg)
	require.NoError(t, err)

	rec := get(t, s, "/api/docs/openapi.json")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "{}", rec.Body.String())
}

func TestServeDocs_FallsBackToRedoc(t *testing.T) {
	cfg := testConfig(t, "http://backend:8000")
	writeFile(t, filepath.Join(cfg.Paths.DocsRoot, "redoc.html"), "<html>redoc</html>")

	s, err := NewServer(cfg)
	require.NoError(t, err)

	for _, path := range []string{"/api/docs/", "/api/docs/anything"} {
		rec := get(t, s, path)
		assert.Equal(t, http.StatusOK, rec.Code, "path %s", path)
		assert.Contains(t, rec.Body.String(), "redoc", "path %s", path)
	}
}

func TestServeDocs_NoFallbackDocument(t *testing.T) {
	cfg := testConfig(t, "http://backend:8000")

	s, err := NewServer(cfg)
	require.NoError(t, err)

	rec := get(t, s, "/api/docs/")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeSPA_ExactFile(t *testing.T) {
	cfg := testConfig(t, "http://backend:8000")
	writeFile(t, filepath.Join(cfg.Paths.SPARoot, "favicon.ico"), "icon")
	writeFile(t, filepath.Join(cfg.Paths.SPARoot, "index.html"), "<html>spa</html>")

	s, err := NewServer(cfg)
	require.NoError(t, err)

	rec := get(t, s, "/favicon.ico")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "icon", rec.Body.String())
}

func TestServeSPA_FallbackServesIndexWithSuccess(t *testing.T) {
	cfg := testConfig(t, "http://backend:8000")
	writeFile(t, filepath.Join(cfg.Paths.SPARoot, "index.html"), "<html>spa</html>")

	s, err := NewServer(cfg)
	require.NoError(t, err)

	for _, path := range []string{"/", "/recipes/42", "/unknown/deep/path"} {
		rec := get(t, s, path)
		assert.Equal(t, http.StatusOK, rec.Code, "path %s", path)
		assert.Contains(t, rec.Body.String(), "spa", "path %s", path)
	}
}

func TestServeSPA_MissingIndexIsNotFound(t *testing.T) {
	cfg := testConfig(t, "http://backend:8000")

	s, err := NewServer(cfg)
	require.NoError(t, err)

	rec := get(t, s, "/recipes/42")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
