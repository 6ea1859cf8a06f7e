package workflow

import (
	"context"
	"log/slog"

	"github.com/hayloftlabs/gcr-docker-node-template/internal/config"
	"github.com/hayloftlabs/gcr-docker-node-template/internal/credentials"
	"github.com/hayloftlabs/gcr-docker-node-template/internal/gcloud"
)

// ServiceShape is the fixed revision shape: a quarter core, 128Mi, one
// request per instance, first generation execution environment.
var ServiceShape = gcloud.Shape{
	CPU:                  "0.25",
	Memory:               "128Mi",
	Concurrency:          1,
	ExecutionEnvironment: "gen1",
}

// Releaser is the cloud surface the Pipeline needs.
type Releaser interface {
	ActivateServiceAccount(ctx context.Context, email, keyFile string) error
	SubmitBuild(ctx context.Context, project, image, dir string) error
	Deploy(ctx context.Context, svc gcloud.Service) error
	ServiceURL(ctx context.Context, project, region, service string) (string, error)
}

// Compile-time interface checks.
var (
	_ Provider = (*gcloud.Client)(nil)
	_ Releaser = (*gcloud.Client)(nil)
)

// KeyLoader validates a service account key file.
type KeyLoader func(ctx context.Context, path string) (*credentials.ServiceAccountKey, error)

// Pipeline builds the image remotely and deploys it as a new revision. It
// assumes the Initializer has already run for the project.
type Pipeline struct {
	Cloud Releaser
	// LoadKey defaults to credentials.LoadServiceAccountKey.
	LoadKey KeyLoader
	// SourceDir is the build context.
	SourceDir string
	// EnvVarsFile is passed to the revision as its environment.
	EnvVarsFile string
	Shape       gcloud.Shape
	Logger      *slog.Logger
}

// NewPipeline returns a Pipeline with the fixed service shape.
func NewPipeline(cloud Releaser, sourceDir, envVarsFile string, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		Cloud:       cloud,
		LoadKey:     credentials.LoadServiceAccountKey,
		SourceDir:   sourceDir,
		EnvVarsFile: envVarsFile,
		Shape:       ServiceShape,
		Logger:      logger,
	}
}

// Release describes a completed deployment. URL is empty when the deploy
// succeeded but the service could not be described afterwards.
type Release struct {
	Image string
	URL   string
}

// Run authenticates when a key is configured, submits the build, deploys the
// revision, and resolves the service URL. A failed URL lookup is logged and
// does not fail the run.
func (p *Pipeline) Run(ctx context.Context, cfg config.Deploy) (*Release, error) {
	log := loggerOr(p.Logger)

	if cfg.ServiceAccountKey != "" {
		load := p.LoadKey
		if load == nil {
			load = credentials.LoadServiceAccountKey
		}
		key, err := load(ctx, cfg.ServiceAccountKey)
		if err != nil {
			return nil, err
		}
		log.Info("activating service account", "email", key.Email, "key", key.Path)
		if err := p.Cloud.ActivateServiceAccount(ctx, key.Email, cfg.ServiceAccountKey); err != nil {
			return nil, err
		}
	} else {
		log.Debug("no service account key configured, using active credentials")
	}

	image := cfg.ImageRef()
	log.Info("submitting build", "image", image)
	if err := p.Cloud.SubmitBuild(ctx, cfg.Project, image, p.SourceDir); err != nil {
		return nil, err
	}

	log.Info("deploying revision", "service", cfg.AppName, "region", cfg.Region, "image", image)
	err := p.Cloud.Deploy(ctx, gcloud.Service{
		Name:        cfg.AppName,
		Project:     cfg.Project,
		Region:      cfg.Region,
		Image:       image,
		EnvVarsFile: p.EnvVarsFile,
		Shape:       p.Shape,
	})
	if err != nil {
		return nil, err
	}

	rel := &Release{Image: image}
	url, err := p.Cloud.ServiceURL(ctx, cfg.Project, cfg.Region, cfg.AppName)
	if err != nil {
		log.Warn("deployed, but the service URL could not be resolved", "service", cfg.AppName, "error", err)
		return rel, nil
	}
	rel.URL = url
	log.Info("deployed", "service", cfg.AppName, "url", url)
	return rel, nil
}
