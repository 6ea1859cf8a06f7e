package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Local defaults.
const (
	DefaultPort    = "8080"
	DefaultAppName = "gcr-app"
)

// Local is the local development env file. Its variables are injected into
// the locally running container.
type Local struct {
	Path string
	Vars map[string]string
}

// LoadLocal reads the local env file at path.
func LoadLocal(path string) (Local, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		return Local{}, fmt.Errorf("read local env file: %w", err)
	}
	return Local{Path: path, Vars: vars}, nil
}

func (l Local) lookup(key, fallback string) string {
	if v := strings.TrimSpace(l.Vars[key]); v != "" {
		return v
	}
	return fallback
}

// Port is the host port the local container is published on.
func (l Local) Port() string { return l.lookup("PORT", DefaultPort) }

// AppName names the local image.
func (l Local) AppName() string { return l.lookup(KeyAppName, DefaultAppName) }

// Image is the tag of the locally built image.
func (l Local) Image() string { return l.AppName() + ":local" }

// RuntimeEnv holds the environment variables passed to the deployed revision.
type RuntimeEnv map[string]string

// Keys returns the variable names in sorted order.
func (e RuntimeEnv) Keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LoadRuntimeEnv reads and validates the runtime env-vars file. It must be a
// flat YAML mapping of names to string values; numbers and booleans must be
// quoted.
func LoadRuntimeEnv(path string) (RuntimeEnv, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from CLI configuration
	if err != nil {
		return nil, fmt.Errorf("read runtime env-vars file: %w", err)
	}
	env, err := ParseRuntimeEnv(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return env, nil
}

// ParseRuntimeEnv parses runtime env-vars YAML.
func ParseRuntimeEnv(data []byte) (RuntimeEnv, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse env-vars yaml: %w", err)
	}
	env := RuntimeEnv{}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return env, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.New("env-vars yaml must be a mapping of NAME: value")
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i], root.Content[i+1]
		if k.Kind != yaml.ScalarNode || k.Value == "" {
			return nil, fmt.Errorf("line %d: invalid variable name", k.Line)
		}
		if v.Kind != yaml.ScalarNode || v.Tag == "!!null" {
			return nil, fmt.Errorf("line %d: %s must have a scalar value", v.Line, k.Value)
		}
		if v.Tag != "!!str" {
			return nil, fmt.Errorf("line %d: %s must be a string, quote the value (%s: %q)", v.Line, k.Value, k.Value, v.Value)
		}
		if _, dup := env[k.Value]; dup {
			return nil, fmt.Errorf("line %d: duplicate variable %s", k.Line, k.Value)
		}
		env[k.Value] = v.Value
	}
	return env, nil
}
