// Package precheck verifies that the tools and files a workflow depends on are
// present before anything destructive or billable runs.
package precheck

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"

	"github.com/hayloftlabs/gcr-docker-node-template/internal/config"
)

// Tool is an external executable a workflow needs.
type Tool struct {
	Name string
	Hint string
}

// Tools checked by the local and production variants.
var (
	Docker = Tool{Name: "docker", Hint: "install Docker from https://docs.docker.com/get-docker/"}
	Go     = Tool{Name: "go", Hint: "install Go from https://go.dev/dl/"}
	GCloud = Tool{Name: "gcloud", Hint: "install the Google Cloud CLI from https://cloud.google.com/sdk/docs/install"}
)

// MissingError names the first missing dependency.
type MissingError struct {
	// Kind is "tool" or "file".
	Kind string
	Name string
	Hint string
	Err  error
}

func (e *MissingError) Error() string {
	msg := fmt.Sprintf("missing %s %q", e.Kind, e.Name)
	if e.Hint != "" {
		msg += ": " + e.Hint
	}
	return msg
}

func (e *MissingError) Unwrap() error { return e.Err }

// Checker runs the checks. The zero value is not usable; use New.
type Checker struct {
	LookPath func(file string) (string, error)
	Stat     func(name string) (fs.FileInfo, error)
}

// New returns a Checker backed by the real PATH and filesystem.
func New() *Checker {
	return &Checker{LookPath: exec.LookPath, Stat: os.Stat}
}

// Local verifies the local development dependencies: the container build tool,
// the package manager, and the local env file.
func (c *Checker) Local(paths config.Paths) error {
	if err := c.tools(Docker, Go); err != nil {
		return err
	}
	return c.files(fileCheck{paths.LocalEnv, "copy .env.example to " + config.DefaultLocalEnvFile})
}

// Production verifies the production dependencies: the cloud CLI, the
// container build tool, the deployment config, and the runtime env-vars file.
func (c *Checker) Production(paths config.Paths) error {
	if err := c.tools(GCloud, Docker); err != nil {
		return err
	}
	return c.files(
		fileCheck{paths.Deploy, "copy .env.deploy.example to " + config.DefaultDeployFile},
		fileCheck{paths.RuntimeEnv, "copy .env.yaml.example to " + config.DefaultRuntimeEnvFile},
	)
}

func (c *Checker) tools(tools ...Tool) error {
	for _, t := range tools {
		if _, err := c.LookPath(t.Name); err != nil {
			return &MissingError{Kind: "tool", Name: t.Name, Hint: t.Hint, Err: err}
		}
	}
	return nil
}

type fileCheck struct {
	path string
	hint string
}

func (c *Checker) files(checks ...fileCheck) error {
	for _, f := range checks {
		info, err := c.Stat(f.path)
		if err != nil {
			return &MissingError{Kind: "file", Name: f.path, Hint: f.hint, Err: err}
		}
		if info.IsDir() {
			return &MissingError{Kind: "file", Name: f.path, Hint: "is a directory", Err: errors.New("not a regular file")}
		}
	}
	return nil
}
