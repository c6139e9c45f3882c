package proxy

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"maitred/internal/config"
	"maitred/internal/publish"
)

// Checker answers the router's liveness and readiness probes. Liveness is
// just "the process responds". Readiness additionally verifies the shared
// static volume carries the publish marker and the SPA index exists, so the
// router never advertises itself healthy on orchestration timing alone.
type Checker struct {
	marker   string
	spaIndex string
	ready    atomic.Bool
}

func NewChecker(cfg *config.Config) *Checker {
	return &Checker{
		marker:   filepath.Join(cfg.Paths.StaticVolume, publish.MarkerFile),
		spaIndex: filepath.Join(cfg.Paths.SPARoot, "index.html"),
	}
}

// Watch flips the readiness flag as soon as the publish marker appears,
// without waiting for the next probe. Readiness never depends on the watcher
// working: the probe itself stats the filesystem as a fallback.
func (c *Checker) Watch(ctx context.Context) {
	c.ready.Store(c.check())

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn().Err(err).Msg("Readiness watcher unavailable, probes will stat directly")
		return
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(c.marker)); err != nil {
		log.Warn().Err(err).Str("dir", filepath.Dir(c.marker)).Msg("Cannot watch static volume")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Name != c.marker {
				continue
			}
			was := c.ready.Load()
			now := c.check()
			c.ready.Store(now)
			if was != now {
				log.Info().Bool("ready", now).Str("marker", c.marker).Msg("Readiness changed")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Readiness watcher error")
		}
	}
}

func (c *Checker) check() bool {
	if _, err := os.Stat(c.marker); err != nil {
		return false
	}
	if _, err := os.Stat(c.spaIndex); err != nil {
		return false
	}
	return true
}

// Ready reports readiness, preferring the watcher's cached state but
// re-checking the filesystem when the flag is down.
func (c *Checker) Ready() bool {
	if c.ready.Load() {
		return true
	}
	now := c.check()
	if now {
		c.ready.Store(true)
	}
	return now
}

func (c *Checker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeProbe(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (c *Checker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if !c.Ready() {
		writeProbe(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"checks": map[string]string{
				"static_marker": c.marker,
				"spa_index":     c.spaIndex,
			},
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	writeProbe(w, http.StatusOK, map[string]any{
		"status":    "ready",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func writeProbe(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
