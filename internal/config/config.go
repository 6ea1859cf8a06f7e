// Package config loads the three configuration files the deployment CLI reads:
// the local env file, the deployment config, and the runtime env-vars file.
// Each is read once per invocation into an immutable value.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Default file names, relative to the project root.
const (
	DefaultLocalEnvFile   = ".env"
	DefaultDeployFile     = ".env.deploy"
	DefaultRuntimeEnvFile = ".env.yaml"
)

// Deployment config keys.
const (
	KeyProject            = "GCR_PROJECT"
	KeyServiceAccountName = "GCR_SERVICE_ACCOUNT_NAME"
	KeyRegion             = "GCR_REGION"
	KeyRepo               = "GCR_REPO"
	KeyAppName            = "APP_NAME"
	KeyImageTag           = "GCR_IMAGE_TAG"
	KeyServiceAccountKey  = "GCR_SERVICE_ACCOUNT_KEY"
)

var requiredDeployKeys = []string{
	KeyProject,
	KeyServiceAccountName,
	KeyRegion,
	KeyRepo,
	KeyAppName,
	KeyImageTag,
}

// Paths locates the configuration files.
type Paths struct {
	LocalEnv   string
	Deploy     string
	RuntimeEnv string
}

// DefaultPaths returns the default file locations under dir.
func DefaultPaths(dir string) Paths {
	return Paths{
		LocalEnv:   filepath.Join(dir, DefaultLocalEnvFile),
		Deploy:     filepath.Join(dir, DefaultDeployFile),
		RuntimeEnv: filepath.Join(dir, DefaultRuntimeEnvFile),
	}
}

// MissingKeysError lists required keys absent from a config file.
type MissingKeysError struct {
	File string
	Keys []string
}

func (e *MissingKeysError) Error() string {
	return fmt.Sprintf("%s: missing required keys: %s", e.File, strings.Join(e.Keys, ", "))
}

// Deploy is the deployment configuration.
type Deploy struct {
	Project            string
	ServiceAccountName string
	Region             string
	Repo               string
	AppName            string
	ImageTag           string
	// ServiceAccountKey is the optional path to a service account key file.
	ServiceAccountKey string
}

// LoadDeploy reads the deployment config file at path.
func LoadDeploy(path string) (Deploy, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		return Deploy{}, fmt.Errorf("read deployment config: %w", err)
	}
	d, err := DeployFromMap(vars)
	if err != nil {
		var mk *MissingKeysError
		if errors.As(err, &mk) {
			mk.File = path
		}
		return Deploy{}, err
	}
	return d, nil
}

// DeployFromMap builds a Deploy from key/value pairs. All required keys
// missing or blank are reported together.
func DeployFromMap(vars map[string]string) (Deploy, error) {
	get := func(k string) string { return strings.TrimSpace(vars[k]) }

	var missing []string
	for _, k := range requiredDeployKeys {
		if get(k) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return Deploy{}, &MissingKeysError{File: "deployment config", Keys: missing}
	}

	return Deploy{
		Project:            get(KeyProject),
		ServiceAccountName: get(KeyServiceAccountName),
		Region:             get(KeyRegion),
		Repo:               get(KeyRepo),
		AppName:            get(KeyAppName),
		ImageTag:           get(KeyImageTag),
		ServiceAccountKey:  get(KeyServiceAccountKey),
	}, nil
}

// ServiceAccountEmail is the email of the deployment service account.
func (d Deploy) ServiceAccountEmail() string {
	return fmt.Sprintf("%s@%s.iam.gserviceaccount.com", d.ServiceAccountName, d.Project)
}

// RegistryHost is the Artifact Registry docker host for the region.
func (d Deploy) RegistryHost() string {
	return d.Region + "-docker.pkg.dev"
}

// ImageRef is the fully qualified image reference the pipeline builds and deploys.
func (d Deploy) ImageRef() string {
	return fmt.Sprintf("%s/%s/%s/%s:%s", d.RegistryHost(), d.Project, d.Repo, d.AppName, d.ImageTag)
}
