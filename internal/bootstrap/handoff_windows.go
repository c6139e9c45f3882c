//go:build !unix

package bootstrap

import "fmt"

// Handoff requires exec semantics the platform does not provide.
func Handoff(argv []string) error {
	return fmt.Errorf("process handoff is only supported on unix platforms")
}
