package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maitred/internal/config"
	"maitred/internal/publish"
)

type fakeMigrator struct {
	calls int
	err   error
}

func (f *fakeMigrator) Up(ctx context.Context) error {
	f.calls++
	return f.err
}

func sequencerConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Paths: config.PathsConfig{
			StaticVolume: t.TempDir(),
		},
		Bootstrap: config.BootstrapConfig{
			StagingDir: filepath.Join(t.TempDir(), "staging"),
		},
		Database: config.DatabaseConfig{
			WaitTimeout: time.Second,
		},
	}
}

func TestSequencer_RunReachesReady(t *testing.T) {
	cfg := sequencerConfig(t)
	assets := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(assets, "style.css"), []byte("body{}"), 0644))
	cfg.Bootstrap.AssetDirs = []string{assets}

	migrator := &fakeMigrator{}
	seq := NewSequencer(cfg, migrator)

	require.NoError(t, seq.Run(context.Background()))
	assert.Equal(t, StateReady, seq.State())
	assert.Equal(t, 1, migrator.calls)

	// Assets landed in the shared volume's static subdirectory.
	published, err := os.ReadFile(filepath.Join(cfg.StaticRoot(), "style.css"))
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(published))

	// The marker was stamped for the router's readiness probe.
	_, err = os.Stat(filepath.Join(cfg.Paths.StaticVolume, publish.MarkerFile))
	require.NoError(t, err)
}

func TestSequencer_RerunIsIdempotent(t *testing.T) {
	cfg := sequencerConfig(t)
	assets := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(assets, "style.css"), []byte("body{}"), 0644))
	cfg.Bootstrap.AssetDirs = []string{assets}

	first := NewSequencer(cfg, &fakeMigrator{})
	require.NoError(t, first.Run(context.Background()))

	// Second cold start with nothing changed: same Ready outcome, no error.
	second := NewSequencer(cfg, &fakeMigrator{})
	require.NoError(t, second.Run(context.Background()))
	assert.Equal(t, StateReady, second.State())

	published, err := os.ReadFile(filepath.Join(cfg.StaticRoot(), "style.css"))
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(published))
}

func TestSequencer_MigrationFailureStopsSequence(t *testing.T) {
	cfg := sequencerConfig(t)
	cfg.Bootstrap.AssetDirs = []string{t.TempDir()}

	seq := NewSequencer(cfg, &fakeMigrator{err: errors.New("relation already exists")})

	err := seq.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrating")
	assert.Equal(t, StateMigrating, seq.State())

	// Nothing was promoted: no marker in the shared volume.
	_, statErr := os.Stat(filepath.Join(cfg.Paths.StaticVolume, publish.MarkerFile))
	assert.True(t, os.IsNotExist(statErr))
}

func TestSequencer_PublishingIsAdditive(t *testing.T) {
	cfg := sequencerConfig(t)
	assets := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(assets, "app.js"), []byte("js"), 0644))
	cfg.Bootstrap.AssetDirs = []string{assets}

	// Unrelated content already in the shared volume (e.g. the SPA bundle).
	unrelated := filepath.Join(cfg.Paths.StaticVolume, "www", "index.html")
	require.NoError(t, os.MkdirAll(filepath.Dir(unrelated), 0755))
	require.NoError(t, os.WriteFile(unrelated, []byte("<html>spa</html>"), 0644))

	seq := NewSequencer(cfg, &fakeMigrator{})
	require.NoError(t, seq.Run(context.Background()))

	// The publish step copied, it did not sync-destructively.
	survived, err := os.ReadFile(unrelated)
	require.NoError(t, err)
	assert.Equal(t, "<html>spa</html>", string(survived))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "pending", StatePending.String())
	assert.Equal(t, "migrating", StateMigrating.String())
	assert.Equal(t, "collecting", StateCollecting.String())
	assert.Equal(t, "publishing", StatePublishing.String())
	assert.Equal(t, "ready", StateReady.String())
}
