// Package publish moves built assets into the shared volumes the router
// serves from. Copies are additive: files are overwritten in place and
// unrelated content already present in the target volume is left alone.
package publish

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// MarkerFile is written into a volume after a successful publish. The
// router's readiness probe keys on it, which makes the publisher-to-router
// handoff explicit instead of relying on orchestration timing.
const MarkerFile = ".maitred-ready"

// CopyTree copies every regular file under src into dst, preserving the
// relative layout. Existing files are overwritten; files in dst that have no
// counterpart in src are never touched.
func CopyTree(src, dst string) (int, error) {
	info, err := os.Stat(src)
	if err != nil {
		return 0, fmt.Errorf("source %s: %w", src, err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("source %s is not a directory", src)
	}

	copied := 0
	err = filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if !d.Type().IsRegular() {
			log.Debug().Str("path", p).Msg("Skipping irregular file")
			return nil
		}

		if err := copyFile(p, target); err != nil {
			return err
		}
		copied++
		return nil
	})
	if err != nil {
		return copied, fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}

	return copied, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}

// WriteMarker stamps a volume as published. It is written last so a reader
// that sees the marker also sees the files.
func WriteMarker(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, MarkerFile), []byte("ready\n"), 0644)
}

// Run publishes a build directory into a shared volume: additive copy, then
// the marker. Re-running is safe and simply overwrites the previous output.
func Run(buildDir, volumeDir string) error {
	copied, err := CopyTree(buildDir, volumeDir)
	if err != nil {
		return err
	}

	if err := WriteMarker(volumeDir); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}

	log.Info().
		Int("files", copied).
		Str("from", buildDir).
		Str("to", volumeDir).
		Msg("Assets published")

	return nil
}
