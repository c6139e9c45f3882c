//go:build unix

package bootstrap

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/rs/zerolog/log"
)

// Handoff replaces the current process image with the application server.
// On success it never returns: the container's main process is now the app
// server and a crash of it is visible to the orchestrator directly, with no
// supervisory wrapper in between.
func Handoff(argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("no application command given")
	}

	bin, err := exec.LookPath(argv[0])
	if err != nil {
		return fmt.Errorf("application command %q: %w", argv[0], err)
	}

	log.Info().Str("command", bin).Strs("argv", argv).Msg("Handing off to application server")

	if err := syscall.Exec(bin, argv, os.Environ()); err != nil {
		return fmt.Errorf("exec %s: %w", bin, err)
	}
	return nil
}
