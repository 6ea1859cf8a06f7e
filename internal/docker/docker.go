// Package docker builds and runs the application image locally.
package docker

import (
	"context"
	"fmt"

	"github.com/hayloftlabs/gcr-docker-node-template/internal/execx"
)

// Binary is the container build tool.
const Binary = "docker"

// ContainerPort is the port the server listens on inside the image. Run pins
// the container's PORT to it so the env file cannot move the listener.
const ContainerPort = "8080"

// Client issues docker commands through a Runner.
type Client struct {
	runner execx.Runner
}

// New returns a Client using runner.
func New(runner execx.Runner) *Client {
	return &Client{runner: runner}
}

// Build builds the Dockerfile in dir and tags the image.
func (c *Client) Build(ctx context.Context, image, dir string) error {
	cmd := execx.Cmd(Binary, "build", "-t", image, ".")
	cmd.Dir = dir
	if err := c.runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("docker build failed: %w", err)
	}
	return nil
}

// RunOptions configures a foreground container run.
type RunOptions struct {
	Image    string
	HostPort string
	EnvFile  string
}

// Run starts the image in the foreground, removing the container on exit.
// HostPort is published to ContainerPort; PORT inside the container is always
// ContainerPort, overriding any PORT in the env file.
func (c *Client) Run(ctx context.Context, opts RunOptions) error {
	args := []string{"run", "--rm", "-p", opts.HostPort + ":" + ContainerPort}
	if opts.EnvFile != "" {
		args = append(args, "--env-file", opts.EnvFile)
	}
	args = append(args, "-e", "PORT="+ContainerPort, opts.Image)
	if err := c.runner.Run(ctx, execx.Cmd(Binary, args...)); err != nil {
		return fmt.Errorf("docker run failed: %w", err)
	}
	return nil
}
