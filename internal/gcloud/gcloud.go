// Package gcloud drives the Google Cloud CLI. Each method maps to exactly one
// gcloud invocation; sequencing and idempotence live in the workflow package.
package gcloud

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hayloftlabs/gcr-docker-node-template/internal/execx"
)

// Binary is the cloud CLI executable.
const Binary = "gcloud"

// Roles granted to the deployment service account.
const (
	RoleStorageAdmin           = "roles/storage.admin"
	RoleArtifactRegistryWriter = "roles/artifactregistry.writer"
)

// RepositoryFormat is the Artifact Registry format used for images.
const RepositoryFormat = "docker"

// Client issues gcloud commands through a Runner.
type Client struct {
	runner execx.Runner
}

// New returns a Client using runner.
func New(runner execx.Runner) *Client {
	return &Client{runner: runner}
}

func cmd(args ...string) execx.Command {
	return execx.Cmd(Binary, args...)
}

// SetProject makes project the active project of the CLI configuration.
func (c *Client) SetProject(ctx context.Context, project string) error {
	if err := c.runner.Run(ctx, cmd("config", "set", "project", project)); err != nil {
		return fmt.Errorf("set active project %s: %w", project, err)
	}
	return nil
}

// ServiceAccountExists reports whether a service account with email exists in project.
func (c *Client) ServiceAccountExists(ctx context.Context, project, email string) (bool, error) {
	out, err := c.runner.Output(ctx, cmd(
		"iam", "service-accounts", "list",
		"--project="+project,
		"--filter=email:"+email,
		"--format=value(email)",
	))
	if err != nil {
		return false, fmt.Errorf("look up service account %s: %w", email, err)
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.EqualFold(strings.TrimSpace(line), email) {
			return true, nil
		}
	}
	return false, nil
}

// CreateServiceAccount requests creation of service account name. The account
// becomes visible asynchronously.
func (c *Client) CreateServiceAccount(ctx context.Context, project, name, displayName string) error {
	err := c.runner.Run(ctx, cmd(
		"iam", "service-accounts", "create", name,
		"--project="+project,
		"--display-name="+displayName,
	))
	if err != nil {
		return fmt.Errorf("create service account %s: %w", name, err)
	}
	return nil
}

// AddProjectRole grants role on project to member. Granting a role the member
// already holds is a no-op on the provider side.
func (c *Client) AddProjectRole(ctx context.Context, project, member, role string) error {
	err := c.runner.Run(ctx, cmd(
		"projects", "add-iam-policy-binding", project,
		"--member="+member,
		"--role="+role,
		"--condition=None",
		"--quiet",
	))
	if err != nil {
		return fmt.Errorf("grant %s to %s: %w", role, member, err)
	}
	return nil
}

// RepositoryExists reports whether the Artifact Registry repository exists. A
// failed describe means not found; only a failure to run gcloud is an error.
func (c *Client) RepositoryExists(ctx context.Context, project, location, repo string) (bool, error) {
	_, err := c.runner.Output(ctx, cmd(
		"artifacts", "repositories", "describe", repo,
		"--project="+project,
		"--location="+location,
	))
	if err != nil {
		if execx.IsExitError(err) {
			return false, nil
		}
		return false, fmt.Errorf("look up repository %s: %w", repo, err)
	}
	return true, nil
}

// CreateRepository creates a docker-format Artifact Registry repository.
func (c *Client) CreateRepository(ctx context.Context, project, location, repo, description string) error {
	err := c.runner.Run(ctx, cmd(
		"artifacts", "repositories", "create", repo,
		"--project="+project,
		"--location="+location,
		"--repository-format="+RepositoryFormat,
		"--description="+description,
	))
	if err != nil {
		return fmt.Errorf("create repository %s: %w", repo, err)
	}
	return nil
}

// ActivateServiceAccount authenticates the CLI with a service account key file.
func (c *Client) ActivateServiceAccount(ctx context.Context, email, keyFile string) error {
	args := []string{"auth", "activate-service-account"}
	if email != "" {
		args = append(args, email)
	}
	args = append(args, "--key-file="+keyFile)
	if err := c.runner.Run(ctx, cmd(args...)); err != nil {
		return fmt.Errorf("activate service account: %w", err)
	}
	return nil
}

// SubmitBuild builds the source in dir remotely and tags the result with image.
func (c *Client) SubmitBuild(ctx context.Context, project, image, dir string) error {
	build := cmd("builds", "submit", "--project="+project, "--tag="+image, ".")
	build.Dir = dir
	if err := c.runner.Run(ctx, build); err != nil {
		return fmt.Errorf("submit build for %s: %w", image, err)
	}
	return nil
}

// Shape is the per-instance resource shape of a Cloud Run revision.
type Shape struct {
	CPU                  string
	Memory               string
	Concurrency          int
	ExecutionEnvironment string
}

// Service describes a Cloud Run revision to deploy.
type Service struct {
	Name        string
	Project     string
	Region      string
	Image       string
	EnvVarsFile string
	Shape       Shape
}

// Deploy deploys svc as a new managed revision.
func (c *Client) Deploy(ctx context.Context, svc Service) error {
	args := []string{
		"run", "deploy", svc.Name,
		"--project=" + svc.Project,
		"--region=" + svc.Region,
		"--image=" + svc.Image,
		"--platform=managed",
		"--cpu=" + svc.Shape.CPU,
		"--memory=" + svc.Shape.Memory,
		"--concurrency=" + strconv.Itoa(svc.Shape.Concurrency),
		"--execution-environment=" + svc.Shape.ExecutionEnvironment,
	}
	if svc.EnvVarsFile != "" {
		args = append(args, "--env-vars-file="+svc.EnvVarsFile)
	}
	args = append(args, "--quiet")
	if err := c.runner.Run(ctx, cmd(args...)); err != nil {
		return fmt.Errorf("deploy %s: %w", svc.Name, err)
	}
	return nil
}

// ServiceURL returns the public URL of a deployed service.
func (c *Client) ServiceURL(ctx context.Context, project, region, service string) (string, error) {
	out, err := c.runner.Output(ctx, cmd(
		"run", "services", "describe", service,
		"--project="+project,
		"--region="+region,
		"--format=value(status.url)",
	))
	if err != nil {
		return "", fmt.Errorf("describe service %s: %w", service, err)
	}
	return strings.TrimSpace(string(out)), nil
}
