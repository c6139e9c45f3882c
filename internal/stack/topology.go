// Package stack runs the reference four-container topology on a local
// docker engine: database, backend (bootstrapped through maitred), one-shot
// frontend publisher, and the maitred proxy in front. It is the compose file
// of the deployment expressed as code.
package stack

import (
	"fmt"
	"sort"

	"github.com/docker/docker/api/types/mount"
	"github.com/docker/go-connections/nat"
	"github.com/joho/godotenv"

	"maitred/internal/config"
)

const (
	// StackLabel marks every container the manager owns.
	StackLabel = "maitred.stack"

	staticMountPath = "/var/lib/maitred/static"
	mediaMountPath  = "/var/lib/maitred/media"
)

// Service describes one container of the topology. Services are started in
// slice order; that order is the start-order dependency of the deployment.
type Service struct {
	Name    string
	Image   string
	Cmd     []string
	Env     []string
	Mounts  []mount.Mount
	Ports   nat.PortMap
	Expose  nat.PortSet
	Restart string
	// OneShot services run to completion; the manager waits for them and
	// fails on a nonzero exit instead of restarting.
	OneShot bool
}

// Topology builds the service list from configuration. The database comes
// first, the backend second (its entrypoint is the bootstrap sequencer,
// which additionally waits for the database with backoff), the frontend
// publisher third, and the proxy last.
func Topology(cfg *config.Config) ([]Service, error) {
	if cfg.Stack.BackendImage == "" {
		return nil, fmt.Errorf("stack.backend_image is required")
	}
	if cfg.Stack.FrontendImage == "" {
		return nil, fmt.Errorf("stack.frontend_image is required")
	}
	if cfg.Stack.ProxyImage == "" {
		return nil, fmt.Errorf("stack.proxy_image is required")
	}
	if len(cfg.Stack.AppCommand) == 0 {
		return nil, fmt.Errorf("stack.app_command is required")
	}

	env, err := readEnvFile(cfg.Stack.EnvFile)
	if err != nil {
		return nil, err
	}

	staticMount := mount.Mount{Type: mount.TypeVolume, Source: cfg.Stack.StaticVolume, Target: staticMountPath}
	mediaMount := mount.Mount{Type: mount.TypeVolume, Source: cfg.Stack.MediaVolume, Target: mediaMountPath}

	// The SPA bundle lives in a subdirectory of the shared static volume, so
	// the deployment needs exactly two app volumes. Both the publisher and the
	// proxy must agree on that path.
	spaRoot := staticMountPath + "/www"

	proxyPort := nat.Port("80/tcp")
	hostPort := fmt.Sprintf("%d", cfg.Stack.ProxyPort)

	services := []Service{
		{
			Name:    "maitred-db",
			Image:   cfg.Stack.DBImage,
			Env:     env,
			Restart: "unless-stopped",
			Mounts: []mount.Mount{
				{Type: mount.TypeVolume, Source: "maitred-db-data", Target: "/var/lib/postgresql/data"},
			},
		},
		{
			Name:    "maitred-backend",
			Image:   cfg.Stack.BackendImage,
			Cmd:     append([]string{"maitred", "bootstrap", "--"}, cfg.Stack.AppCommand...),
			Env:     env,
			Restart: "unless-stopped",
			Mounts:  []mount.Mount{staticMount, mediaMount},
		},
		{
			Name:  "maitred-frontend",
			Image: cfg.Stack.FrontendImage,
			// The publisher drops the SPA bundle into the shared static
			// volume; pointing its SPA root inside the mount is what makes
			// the output survive the one-shot container.
			Env:     append(append([]string{}, env...), "MAITRED_PATHS_SPA_ROOT="+spaRoot),
			OneShot: true,
			Mounts: []mount.Mount{
				{Type: mount.TypeVolume, Source: cfg.Stack.StaticVolume, Target: staticMountPath},
			},
		},
		{
			Name:    "maitred-proxy",
			Image:   cfg.Stack.ProxyImage,
			Cmd:     []string{"maitred", "serve"},
			Restart: "unless-stopped",
			// Docker resolves duplicate env vars last-wins; the volume
			// wiring goes last so an env file cannot silently detach the
			// proxy from its mounts.
			Env: append(append([]string{}, env...),
				"MAITRED_PATHS_STATIC_VOLUME="+staticMountPath,
				"MAITRED_PATHS_MEDIA_ROOT="+mediaMountPath,
				"MAITRED_PATHS_SPA_ROOT="+spaRoot,
			),
			Mounts: []mount.Mount{
				withReadOnly(staticMount),
				withReadOnly(mediaMount),
			},
			Expose: nat.PortSet{proxyPort: struct{}{}},
			Ports: nat.PortMap{
				proxyPort: []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: hostPort}},
			},
		},
	}

	return services, nil
}

// Volumes returns the named volumes the topology needs, in creation order.
func Volumes(cfg *config.Config) []string {
	return []string{"maitred-db-data", cfg.Stack.StaticVolume, cfg.Stack.MediaVolume}
}

func withReadOnly(m mount.Mount) mount.Mount {
	m.ReadOnly = true
	return m
}

// readEnvFile turns the orchestrator env file into docker KEY=VALUE form,
// sorted for deterministic container specs.
func readEnvFile(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}

	env := make([]string, 0, len(values))
	for k, v := range values {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env, nil
}
