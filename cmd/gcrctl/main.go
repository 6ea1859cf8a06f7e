package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/hayloftlabs/gcr-docker-node-template/internal/config"
	"github.com/hayloftlabs/gcr-docker-node-template/internal/credentials"
	"github.com/hayloftlabs/gcr-docker-node-template/internal/execx"
	"github.com/hayloftlabs/gcr-docker-node-template/internal/precheck"
)

var version = "dev"

var commands = map[string]func(context.Context, *env) error{
	"dev-check":   runDevCheck,
	"dev-launch":  runDevLaunch,
	"prod-check":  runProdCheck,
	"prod-init":   runProdInit,
	"prod-launch": runProdLaunch,
}

func usage(w io.Writer) {
	fmt.Fprintf(w, `gcrctl - local container testing and Cloud Run promotion (version %s)

Usage:
  gcrctl <mode>

Modes:
  dev-check    Verify docker, go, and %s are present
  dev-launch   Build the image locally and run it with %s
  prod-check   Verify gcloud, docker, %s, and %s
  prod-init    Create the service account and artifact repository (idempotent)
  prod-launch  Build remotely and deploy a new Cloud Run revision

Run prod-init once per project before the first prod-launch.
`, version, config.DefaultLocalEnvFile, config.DefaultLocalEnvFile, config.DefaultDeployFile, config.DefaultRuntimeEnvFile)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})).
		With("run", uuid.NewString())

	dir, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: get working directory: %v\n", err)
		os.Exit(1)
	}

	e := &env{
		dir:     dir,
		paths:   config.DefaultPaths(dir),
		checker: precheck.New(),
		runner:  execx.NewExecRunner(logger),
		logger:  logger,
		loadKey: credentials.LoadServiceAccountKey,
		stdout:  os.Stdout,
	}
	code := run(ctx, os.Args[1:], e, os.Stderr)
	stop()
	os.Exit(code)
}

// run dispatches args to a mode and maps the outcome to an exit code.
func run(ctx context.Context, args []string, e *env, stderr io.Writer) int {
	if len(args) != 1 {
		usage(stderr)
		return 1
	}
	fn, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown mode: %q\n\n", args[0]) //nolint:gosec // G705: CLI error output
		usage(stderr)
		return 1
	}
	if err := fn(ctx, e); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err) //nolint:gosec // G705: CLI error output
		return exitCode(err)
	}
	return 0
}

// exitCode passes through the exit status of a failed external tool and
// returns 1 for every other failure.
func exitCode(err error) int {
	var ee *execx.ExitError
	if errors.As(err, &ee) && ee.ExitCode() > 0 {
		return ee.ExitCode()
	}
	return 1
}
