// Package bootstrap brings the backend service from a cold container start
// to a traffic-ready application process. The steps run in a strict order
// and every step is idempotent, so the orchestrator can restart the whole
// sequence from scratch after any failure.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"maitred/internal/config"
	"maitred/internal/publish"
)

// State is the sequencer's position in the bootstrap order.
type State int

const (
	StatePending State = iota
	StateMigrating
	StateCollecting
	StatePublishing
	StateReady
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateMigrating:
		return "migrating"
	case StateCollecting:
		return "collecting"
	case StatePublishing:
		return "publishing"
	case StateReady:
		return "ready"
	}
	return "unknown"
}

// Migrator applies pending schema changes. Invoking it with zero pending
// changes must succeed as a no-op.
type Migrator interface {
	Up(ctx context.Context) error
}

// Sequencer drives Pending -> Migrating -> Collecting -> Publishing ->
// Ready. It performs no retries of its own: a failed step surfaces as an
// error and the container restart policy is the only recovery path.
type Sequencer struct {
	cfg      *config.Config
	migrator Migrator
	state    State
}

func NewSequencer(cfg *config.Config, migrator Migrator) *Sequencer {
	return &Sequencer{
		cfg:      cfg,
		migrator: migrator,
		state:    StatePending,
	}
}

// State returns the last state the sequencer reached.
func (s *Sequencer) State() State {
	return s.state
}

func (s *Sequencer) transition(next State) {
	log.Info().
		Str("from", s.state.String()).
		Str("to", next.String()).
		Msg("Bootstrap state transition")
	s.state = next
}

// Run executes the sequence up to Ready. The process handoff itself is the
// caller's move; once Run returns nil nothing of the sequencer needs to
// survive.
func (s *Sequencer) Run(ctx context.Context) error {
	s.transition(StateMigrating)
	if err := s.migrator.Up(ctx); err != nil {
		return fmt.Errorf("migrating: %w", err)
	}

	s.transition(StateCollecting)
	collected, err := Collect(s.cfg.Bootstrap.StagingDir, s.cfg.Bootstrap.AssetDirs)
	if err != nil {
		return fmt.Errorf("collecting: %w", err)
	}
	log.Info().Int("files", collected).Str("staging", s.cfg.Bootstrap.StagingDir).Msg("Static assets collected")

	s.transition(StatePublishing)
	staticDir := s.cfg.StaticRoot()
	if _, err := publish.CopyTree(s.cfg.Bootstrap.StagingDir, staticDir); err != nil {
		return fmt.Errorf("publishing: %w", err)
	}
	if err := publish.WriteMarker(s.cfg.Paths.StaticVolume); err != nil {
		return fmt.Errorf("publishing: %w", err)
	}

	s.transition(StateReady)
	return nil
}
