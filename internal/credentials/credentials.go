// Package credentials validates the optional service account key file handed
// to the cloud CLI.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
)

// CloudPlatformScope is the OAuth2 scope the deployment needs.
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// ServiceAccountKey describes a parsed service account key file.
type ServiceAccountKey struct {
	Path      string
	Email     string
	ProjectID string
}

// LoadServiceAccountKey reads the key file at path and checks that it is a
// Google service account key with a client email.
func LoadServiceAccountKey(ctx context.Context, path string) (*ServiceAccountKey, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path from deployment config
	if err != nil {
		return nil, fmt.Errorf("read service account key: %w", err)
	}
	key, err := ParseServiceAccountKey(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	key.Path = path
	return key, nil
}

// ParseServiceAccountKey validates key JSON without contacting Google.
func ParseServiceAccountKey(ctx context.Context, data []byte) (*ServiceAccountKey, error) {
	params := google.CredentialsParams{Scopes: []string{CloudPlatformScope}}
	if _, err := google.CredentialsFromJSONWithTypeAndParams(ctx, data, google.ServiceAccount, params); err != nil {
		return nil, fmt.Errorf("invalid service account key: %w", err)
	}

	var raw struct {
		ProjectID string `json:"project_id"`
		Email     string `json:"client_email"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid service account key: %w", err)
	}
	if strings.TrimSpace(raw.Email) == "" {
		return nil, errors.New("invalid service account key: no client_email")
	}
	return &ServiceAccountKey{Email: raw.Email, ProjectID: raw.ProjectID}, nil
}
