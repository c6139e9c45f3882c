package stack

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog/log"

	"maitred/internal/config"
)

// Manager drives the topology on a docker engine.
type Manager struct {
	cli *client.Client
	cfg *config.Config
}

func NewManager(cfg *config.Config) (*Manager, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	if _, err := cli.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("docker engine not available: %w", err)
	}

	return &Manager{cli: cli, cfg: cfg}, nil
}

// Up creates the network and shared volumes, then starts the services in
// topology order. One-shot services are awaited; a nonzero exit aborts the
// deployment.
func (m *Manager) Up(ctx context.Context) error {
	services, err := Topology(m.cfg)
	if err != nil {
		return err
	}

	if err := m.ensureNetwork(ctx); err != nil {
		return err
	}
	for _, vol := range Volumes(m.cfg) {
		if err := m.ensureVolume(ctx, vol); err != nil {
			return err
		}
	}

	for _, svc := range services {
		id, err := m.runService(ctx, svc)
		if err != nil {
			return fmt.Errorf("service %s: %w", svc.Name, err)
		}

		if svc.OneShot {
			if err := m.waitOneShot(ctx, svc.Name, id); err != nil {
				return fmt.Errorf("service %s: %w", svc.Name, err)
			}
		}
	}

	log.Info().Int("services", len(services)).Msg("Stack is up")
	return nil
}

// Down stops and removes every container the manager owns. The shared
// volumes are deliberately preserved: their lifetime is the deployment's,
// not any single container's.
func (m *Manager) Down(ctx context.Context) error {
	owned, err := m.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", StackLabel)),
	})
	if err != nil {
		return fmt.Errorf("failed to list stack containers: %w", err)
	}

	for _, c := range owned {
		name := containerName(c.Names)
		timeout := 30
		if err := m.cli.ContainerStop(ctx, c.ID, container.StopOptions{Timeout: &timeout}); err != nil {
			log.Warn().Err(err).Str("container", name).Msg("Failed to stop container")
		}
		if err := m.cli.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true}); err != nil {
			log.Warn().Err(err).Str("container", name).Msg("Failed to remove container")
		} else {
			log.Info().Str("container", name).Msg("Container removed")
		}
	}

	log.Info().Int("containers", len(owned)).Msg("Stack is down")
	return nil
}

func (m *Manager) runService(ctx context.Context, svc Service) (string, error) {
	if err := m.removeExisting(ctx, svc.Name); err != nil {
		return "", err
	}
	if err := m.pullIfMissing(ctx, svc.Image); err != nil {
		return "", err
	}

	containerConfig := &container.Config{
		Image:        svc.Image,
		Cmd:          svc.Cmd,
		Env:          svc.Env,
		ExposedPorts: svc.Expose,
		Labels:       map[string]string{StackLabel: svc.Name},
	}

	hostConfig := &container.HostConfig{
		Mounts:       svc.Mounts,
		PortBindings: svc.Ports,
	}
	if svc.Restart != "" {
		hostConfig.RestartPolicy = container.RestartPolicy{Name: container.RestartPolicyMode(svc.Restart)}
	}

	networkConfig := &network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{
			m.cfg.Stack.Network: {Aliases: []string{serviceAlias(svc.Name)}},
		},
	}

	resp, err := m.cli.ContainerCreate(ctx, containerConfig, hostConfig, networkConfig, nil, svc.Name)
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}

	if err := m.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("failed to start container: %w", err)
	}

	log.Info().Str("container", svc.Name).Str("image", svc.Image).Msg("Container started")
	return resp.ID, nil
}

func (m *Manager) waitOneShot(ctx context.Context, name, id string) error {
	statusCh, errCh := m.cli.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return fmt.Errorf("waiting for completion: %w", err)
	case status := <-statusCh:
		if status.StatusCode != 0 {
			return fmt.Errorf("exited with status %d", status.StatusCode)
		}
		log.Info().Str("container", name).Msg("One-shot service completed")
		return nil
	}
}

func (m *Manager) removeExisting(ctx context.Context, name string) error {
	existing, err := m.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("name", "^/"+name+"$")),
	})
	if err != nil {
		return fmt.Errorf("failed to list containers: %w", err)
	}

	for _, c := range existing {
		log.Info().Str("container", name).Str("status", c.Status).Msg("Removing previous container")
		if err := m.cli.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true}); err != nil {
			return fmt.Errorf("failed to remove previous container: %w", err)
		}
	}
	return nil
}

func (m *Manager) pullIfMissing(ctx context.Context, ref string) error {
	if _, err := m.cli.ImageInspect(ctx, ref); err == nil {
		return nil
	}

	log.Info().Str("image", ref).Msg("Pulling image")
	reader, err := m.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	defer reader.Close()

	// Drain the progress stream; the pull completes when it ends.
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("image pull interrupted: %w", err)
	}
	return nil
}

func (m *Manager) ensureNetwork(ctx context.Context) error {
	name := m.cfg.Stack.Network
	if _, err := m.cli.NetworkInspect(ctx, name, network.InspectOptions{}); err == nil {
		return nil
	}

	if _, err := m.cli.NetworkCreate(ctx, name, network.CreateOptions{
		Driver: "bridge",
		Labels: map[string]string{StackLabel: "network"},
	}); err != nil {
		return fmt.Errorf("failed to create network %s: %w", name, err)
	}

	log.Info().Str("network", name).Msg("Network created")
	return nil
}

func (m *Manager) ensureVolume(ctx context.Context, name string) error {
	if _, err := m.cli.VolumeInspect(ctx, name); err == nil {
		return nil
	}

	if _, err := m.cli.VolumeCreate(ctx, volume.CreateOptions{
		Name:   name,
		Labels: map[string]string{StackLabel: "volume"},
	}); err != nil {
		return fmt.Errorf("failed to create volume %s: %w", name, err)
	}

	log.Info().Str("volume", name).Msg("Volume created")
	return nil
}

// serviceAlias is the network alias other services address a container by:
// "maitred-db" resolves as "db", matching the service names the app's
// configuration expects (e.g. a postgres host of "db", an upstream of
// "backend").
func serviceAlias(containerName string) string {
	return strings.TrimPrefix(containerName, "maitred-")
}

func containerName(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return strings.TrimPrefix(names[0], "/")
}
