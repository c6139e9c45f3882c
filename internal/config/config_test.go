package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFromTOML(t *testing.T, content string) (*Config, error) {
	t.Helper()

	configFile := filepath.Join(t.TempDir(), "maitred.toml")
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	viper.Reset()
	viper.SetConfigFile(configFile)
	require.NoError(t, viper.ReadInConfig())

	return Load()
}

func TestConfig_Load_Defaults(t *testing.T) {
	cfg, err := loadFromTOML(t, "")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, ":80", cfg.Server.Listen)
	assert.Equal(t, ":8081", cfg.Server.AdminListen)
	assert.Equal(t, int64(10*1024*1024), cfg.Server.MaxBodyBytes)
	assert.Equal(t, "http://backend:8000", cfg.Upstream.Backend)

	// The reference routing policy is the default rule set.
	assert.Equal(t, "docs", cfg.Routes["/api/docs/"])
	assert.Equal(t, "backend", cfg.Routes["/api/"])
	assert.Equal(t, "backend", cfg.Routes["/admin/"])
	assert.Equal(t, "static", cfg.Routes["/static/"])
	assert.Equal(t, "media", cfg.Routes["/media/"])
	assert.Equal(t, "spa", cfg.Routes["/"])
}

func TestConfig_Load_Overrides(t *testing.T) {
	cfg, err := loadFromTOML(t, `
[server]
listen = ":8080"
max_body_bytes = 1024
upstream_timeout = "5s"

[upstream]
backend = "http://127.0.0.1:9000"

[paths]
static_volume = "/srv/static"
`)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, int64(1024), cfg.Server.MaxBodyBytes)
	assert.Equal(t, "http://127.0.0.1:9000", cfg.Upstream.Backend)
	assert.Equal(t, "/srv/static/static", cfg.StaticRoot())
}

func TestConfig_Load_UnknownDestinationClass(t *testing.T) {
	_, err := loadFromTOML(t, `
[routes]
"/api/" = "bakcend"
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown destination class")
}

func TestConfig_Load_InvalidUpstreamURL(t *testing.T) {
	_, err := loadFromTOML(t, `
[upstream]
backend = "not a url"
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid URL")
}

func TestConfig_Load_MissingUpstream(t *testing.T) {
	_, err := loadFromTOML(t, `
[upstream]
backend = ""
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream.backend is required")
}

func TestConfig_Load_NonPositiveBodyLimit(t *testing.T) {
	_, err := loadFromTOML(t, `
[server]
max_body_bytes = 0
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_body_bytes")
}

func TestConfig_Validate_BadPrefix(t *testing.T) {
	cfg, err := loadFromTOML(t, "")
	require.NoError(t, err)

	cfg.Routes = map[string]string{"api/": "backend"}
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must start with /")
}

func TestConfig_Validate_NoRoutes(t *testing.T) {
	cfg, err := loadFromTOML(t, "")
	require.NoError(t, err)

	cfg.Routes = nil
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no route rules")
}

func TestLoadEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "stack.env")
	require.NoError(t, os.WriteFile(envFile, []byte("MAITRED_TEST_SENTINEL=42\n"), 0644))

	require.NoError(t, LoadEnvFile(envFile))
	assert.Equal(t, "42", os.Getenv("MAITRED_TEST_SENTINEL"))
	os.Unsetenv("MAITRED_TEST_SENTINEL")

	// Missing files are tolerated: the environment may already be set.
	require.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
	require.NoError(t, LoadEnvFile(""))
}
