package container

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
)

// Docker implements Container over the Docker Engine API.
type Docker struct {
	client *client.Client
}

// NewDocker builds a Docker-backed Container adapter. An empty socket uses
// the client library's default (DOCKER_HOST env var, or the local socket).
func NewDocker(socket string) (*Docker, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if socket != "" {
		opts = append(opts, client.WithHost(socket))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return &Docker{client: cli}, nil
}

func (d *Docker) PullImage(ctx context.Context, imageName string) error {
	reader, err := d.client.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %q: %w", imageName, err)
	}
	defer reader.Close()

	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("pull image %q: %w", imageName, err)
	}
	return nil
}

func (d *Docker) Create(ctx context.Context, opts CreateOptions) (string, error) {
	hostConfig := &container.HostConfig{}
	if opts.MemoryReservation > 0 {
		hostConfig.Resources = container.Resources{
			MemoryReservation: opts.MemoryReservation,
		}
	}

	resp, err := d.client.ContainerCreate(ctx, &container.Config{
		Image:  opts.Image,
		Cmd:    opts.Command,
		Labels: opts.Labels,
	}, hostConfig, nil, nil, opts.Name)
	if err != nil {
		return "", fmt.Errorf("create container from image %q: %w", opts.Image, err)
	}

	return resp.ID, nil
}

func (d *Docker) PutArchive(ctx context.Context, id, path string, files []File) error {
	tarBytes, err := buildTar(files)
	if err != nil {
		return fmt.Errorf("build archive for container %q: %w", id, err)
	}

	if err := d.client.CopyToContainer(ctx, id, path, bytes.NewReader(tarBytes), container.CopyToContainerOptions{}); err != nil {
		return fmt.Errorf("copy archive to container %q at %q: %w", id, path, err)
	}
	return nil
}

func (d *Docker) Start(ctx context.Context, id string) error {
	if err := d.client.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return fmt.Errorf("start container %q: %w", id, err)
	}
	return nil
}

func (d *Docker) List(ctx context.Context, labelFilter map[string]string, all bool) ([]Info, error) {
	args := filters.NewArgs()
	for k, v := range labelFilter {
		args.Add("label", fmt.Sprintf("%s=%s", k, v))
	}

	containers, err := d.client.ContainerList(ctx, container.ListOptions{All: all, Filters: args})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	out := make([]Info, 0, len(containers))
	for _, c := range containers {
		name := ""
		if len(c.Names) > 0 {
			name = c.Names[0]
		}
		out = append(out, Info{ID: c.ID, Name: name, State: c.State, Labels: c.Labels})
	}
	return out, nil
}

func (d *Docker) Logs(ctx context.Context, id string) (string, error) {
	reader, err := d.client.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		if client.IsErrNotFound(err) {
			return "", fmt.Errorf("get logs for container %q: %w", id, ErrNotFound)
		}
		return "", fmt.Errorf("get logs for container %q: %w", id, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read logs for container %q: %w", id, err)
	}
	return string(data), nil
}

func (d *Docker) Remove(ctx context.Context, id string, force bool) error {
	if err := d.client.ContainerRemove(ctx, id, container.RemoveOptions{Force: force}); err != nil {
		if client.IsErrNotFound(err) {
			return fmt.Errorf("remove container %q: %w", id, ErrNotFound)
		}
		return fmt.Errorf("remove container %q: %w", id, err)
	}
	return nil
}

var _ Container = (*Docker)(nil)
