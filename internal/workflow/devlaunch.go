package workflow

import (
	"context"
	"log/slog"

	"github.com/hayloftlabs/gcr-docker-node-template/internal/config"
	"github.com/hayloftlabs/gcr-docker-node-template/internal/docker"
)

// Container is the local container tool surface.
type Container interface {
	Build(ctx context.Context, image, dir string) error
	Run(ctx context.Context, opts docker.RunOptions) error
}

var _ Container = (*docker.Client)(nil)

// DevLauncher builds the image locally and runs it with the local env file.
type DevLauncher struct {
	Docker    Container
	SourceDir string
	Logger    *slog.Logger
}

// Run builds and starts the local container. It blocks until the container exits.
func (d *DevLauncher) Run(ctx context.Context, local config.Local) error {
	log := loggerOr(d.Logger)
	image := local.Image()

	log.Info("building image", "image", image)
	if err := d.Docker.Build(ctx, image, d.SourceDir); err != nil {
		return err
	}

	log.Info("starting container", "image", image, "url", "http://localhost:"+local.Port())
	return d.Docker.Run(ctx, docker.RunOptions{
		Image:    image,
		HostPort: local.Port(),
		EnvFile:  local.Path,
	})
}
