// Package workflow sequences the deployment steps: one-time resource
// initialization, the build-push-deploy pipeline, and the local dev launch.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hayloftlabs/gcr-docker-node-template/internal/config"
	"github.com/hayloftlabs/gcr-docker-node-template/internal/gcloud"
	"github.com/hayloftlabs/gcr-docker-node-template/internal/retry"
)

// Service account visibility polling after creation.
const (
	ServiceAccountPollAttempts = 9
	ServiceAccountPollInterval = 10 * time.Second
)

// DeployerRoles are granted to the service account on every initializer run.
var DeployerRoles = []string{
	gcloud.RoleStorageAdmin,
	gcloud.RoleArtifactRegistryWriter,
}

// Provider is the cloud surface the Initializer needs.
type Provider interface {
	SetProject(ctx context.Context, project string) error
	ServiceAccountExists(ctx context.Context, project, email string) (bool, error)
	CreateServiceAccount(ctx context.Context, project, name, displayName string) error
	AddProjectRole(ctx context.Context, project, member, role string) error
	RepositoryExists(ctx context.Context, project, location, repo string) (bool, error)
	CreateRepository(ctx context.Context, project, location, repo, description string) error
}

// Initializer provisions the service account and artifact repository. Every
// step checks for existing state first, so a rerun against an initialized
// project creates nothing.
type Initializer struct {
	Cloud  Provider
	Poller retry.Poller
	Logger *slog.Logger
}

// NewInitializer returns an Initializer with the standard polling bound.
func NewInitializer(cloud Provider, logger *slog.Logger) *Initializer {
	return &Initializer{
		Cloud: cloud,
		Poller: retry.Poller{
			Attempts: ServiceAccountPollAttempts,
			Interval: ServiceAccountPollInterval,
		},
		Logger: logger,
	}
}

// InitReport summarizes an initializer run.
type InitReport struct {
	ServiceAccount        string
	CreatedServiceAccount bool
	GrantedRoles          []string
	Repository            string
	CreatedRepository     bool
}

// Run initializes the project described by cfg. The first failing step aborts
// the run.
func (i *Initializer) Run(ctx context.Context, cfg config.Deploy) (*InitReport, error) {
	log := loggerOr(i.Logger)
	email := cfg.ServiceAccountEmail()
	report := &InitReport{ServiceAccount: email, Repository: cfg.Repo}

	if err := i.Cloud.SetProject(ctx, cfg.Project); err != nil {
		return nil, err
	}

	created, err := i.ensureServiceAccount(ctx, log, cfg, email)
	if err != nil {
		return nil, err
	}
	report.CreatedServiceAccount = created

	member := "serviceAccount:" + email
	for _, role := range DeployerRoles {
		log.Info("granting role", "role", role, "member", member)
		if err := i.Cloud.AddProjectRole(ctx, cfg.Project, member, role); err != nil {
			return nil, err
		}
		report.GrantedRoles = append(report.GrantedRoles, role)
	}

	created, err = i.ensureRepository(ctx, log, cfg)
	if err != nil {
		return nil, err
	}
	report.CreatedRepository = created

	return report, nil
}

func (i *Initializer) ensureServiceAccount(ctx context.Context, log *slog.Logger, cfg config.Deploy, email string) (bool, error) {
	exists, err := i.Cloud.ServiceAccountExists(ctx, cfg.Project, email)
	if err != nil {
		return false, err
	}
	if exists {
		log.Info("service account exists", "email", email)
		return false, nil
	}

	log.Info("creating service account", "email", email)
	if err := i.Cloud.CreateServiceAccount(ctx, cfg.Project, cfg.ServiceAccountName, cfg.ServiceAccountName); err != nil {
		return false, err
	}

	attempt := 0
	err = i.Poller.Until(ctx, func(ctx context.Context) (bool, error) {
		attempt++
		log.Info("waiting for service account", "email", email, "attempt", attempt, "of", i.Poller.Attempts)
		return i.Cloud.ServiceAccountExists(ctx, cfg.Project, email)
	})
	if err != nil {
		return false, fmt.Errorf("service account %s not available: %w", email, err)
	}
	log.Info("service account ready", "email", email)
	return true, nil
}

func (i *Initializer) ensureRepository(ctx context.Context, log *slog.Logger, cfg config.Deploy) (bool, error) {
	exists, err := i.Cloud.RepositoryExists(ctx, cfg.Project, cfg.Region, cfg.Repo)
	if err != nil {
		return false, err
	}
	if exists {
		log.Info("artifact repository exists", "repo", cfg.Repo, "region", cfg.Region)
		return false, nil
	}

	log.Info("creating artifact repository", "repo", cfg.Repo, "region", cfg.Region)
	if err := i.Cloud.CreateRepository(ctx, cfg.Project, cfg.Region, cfg.Repo, RepositoryDescription(cfg.AppName)); err != nil {
		return false, err
	}
	return true, nil
}

// RepositoryDescription is the description given to a new artifact repository.
func RepositoryDescription(appName string) string {
	return "Docker repository for " + appName
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l
}
