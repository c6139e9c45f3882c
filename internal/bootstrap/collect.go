package bootstrap

import (
	"fmt"
	"os"

	"maitred/internal/publish"
)

// Collect rebuilds the staging directory from the configured asset source
// directories. The staging dir is recreated from scratch each run and
// sources are applied in configuration order with lexical walk order inside
// each, so the same inputs always produce the same output set. Later sources
// override files of the same relative path from earlier ones.
func Collect(stagingDir string, sources []string) (int, error) {
	if stagingDir == "" {
		return 0, fmt.Errorf("staging directory not configured")
	}

	if err := os.RemoveAll(stagingDir); err != nil {
		return 0, fmt.Errorf("clear staging dir: %w", err)
	}
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return 0, fmt.Errorf("create staging dir: %w", err)
	}

	total := 0
	for _, src := range sources {
		if _, err := os.Stat(src); os.IsNotExist(err) {
			// An asset dir may legitimately not exist yet (e.g. no app
			// plugins installed); it contributes nothing.
			continue
		}
		copied, err := publish.CopyTree(src, stagingDir)
		if err != nil {
			return total, err
		}
		total += copied
	}

	return total, nil
}
