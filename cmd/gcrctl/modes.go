package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hayloftlabs/gcr-docker-node-template/internal/config"
	"github.com/hayloftlabs/gcr-docker-node-template/internal/docker"
	"github.com/hayloftlabs/gcr-docker-node-template/internal/execx"
	"github.com/hayloftlabs/gcr-docker-node-template/internal/gcloud"
	"github.com/hayloftlabs/gcr-docker-node-template/internal/precheck"
	"github.com/hayloftlabs/gcr-docker-node-template/internal/retry"
	"github.com/hayloftlabs/gcr-docker-node-template/internal/workflow"
)

// env carries everything a mode touches outside the process.
type env struct {
	// dir is the project root used as the build context.
	dir     string
	paths   config.Paths
	checker *precheck.Checker
	runner  execx.Runner
	logger  *slog.Logger
	// sleep, when set, replaces the real wait between service account polls.
	sleep   retry.SleepFunc
	loadKey workflow.KeyLoader
	stdout  io.Writer
}

func runDevCheck(_ context.Context, e *env) error {
	if err := e.checker.Local(e.paths); err != nil {
		return err
	}
	e.logger.Info("local environment ready", "env_file", e.paths.LocalEnv)
	return nil
}

func runDevLaunch(ctx context.Context, e *env) error {
	if err := e.checker.Local(e.paths); err != nil {
		return err
	}
	local, err := config.LoadLocal(e.paths.LocalEnv)
	if err != nil {
		return err
	}
	d := &workflow.DevLauncher{
		Docker:    docker.New(e.runner),
		SourceDir: e.dir,
		Logger:    e.logger,
	}
	return d.Run(ctx, local)
}

// loadProduction runs the production precheck and parses both production
// files, so a malformed file fails before any cloud call.
func loadProduction(e *env) (config.Deploy, config.RuntimeEnv, error) {
	if err := e.checker.Production(e.paths); err != nil {
		return config.Deploy{}, nil, err
	}
	cfg, err := config.LoadDeploy(e.paths.Deploy)
	if err != nil {
		return config.Deploy{}, nil, err
	}
	runtimeEnv, err := config.LoadRuntimeEnv(e.paths.RuntimeEnv)
	if err != nil {
		return config.Deploy{}, nil, err
	}
	return cfg, runtimeEnv, nil
}

func runProdCheck(ctx context.Context, e *env) error {
	cfg, runtimeEnv, err := loadProduction(e)
	if err != nil {
		return err
	}
	if cfg.ServiceAccountKey != "" {
		key, err := e.loadKey(ctx, cfg.ServiceAccountKey)
		if err != nil {
			return err
		}
		if !strings.EqualFold(key.Email, cfg.ServiceAccountEmail()) {
			e.logger.Warn("service account key belongs to a different account",
				"key_email", key.Email, "expected", cfg.ServiceAccountEmail())
		}
		if key.ProjectID != "" && key.ProjectID != cfg.Project {
			e.logger.Warn("service account key belongs to a different project",
				"key_project", key.ProjectID, "expected", cfg.Project)
		}
	}
	e.logger.Info("production environment ready",
		"project", cfg.Project, "region", cfg.Region, "image", cfg.ImageRef(),
		"runtime_env", strings.Join(runtimeEnv.Keys(), ","))
	return nil
}

func runProdInit(ctx context.Context, e *env) error {
	cfg, _, err := loadProduction(e)
	if err != nil {
		return err
	}
	initer := workflow.NewInitializer(gcloud.New(e.runner), e.logger)
	if e.sleep != nil {
		initer.Poller.Sleep = e.sleep
	}
	report, err := initer.Run(ctx, cfg)
	if err != nil {
		return err
	}
	e.logger.Info("project initialized",
		"service_account", report.ServiceAccount,
		"created_service_account", report.CreatedServiceAccount,
		"roles", strings.Join(report.GrantedRoles, ","),
		"repository", report.Repository,
		"created_repository", report.CreatedRepository,
	)
	return nil
}

func runProdLaunch(ctx context.Context, e *env) error {
	cfg, _, err := loadProduction(e)
	if err != nil {
		return err
	}
	p := workflow.NewPipeline(gcloud.New(e.runner), e.dir, e.paths.RuntimeEnv, e.logger)
	if e.loadKey != nil {
		p.LoadKey = e.loadKey
	}
	rel, err := p.Run(ctx, cfg)
	if err != nil {
		return err
	}
	if rel.URL != "" {
		fmt.Fprintln(e.stdout, rel.URL)
	}
	return nil
}
