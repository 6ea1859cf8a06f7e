package config

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseRuntimeEnv(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    RuntimeEnv
		wantErr string
	}{
		{
			name:  "flat mapping",
			input: "NODE_ENV: production\nLOG_LEVEL: info\nWORKERS: \"2\"\n",
			want:  RuntimeEnv{"NODE_ENV": "production", "LOG_LEVEL": "info", "WORKERS": "2"},
		},
		{
			name:  "empty file",
			input: "",
			want:  RuntimeEnv{},
		},
		{
			name:  "quoted empty value",
			input: `FEATURE: ""`,
			want:  RuntimeEnv{"FEATURE": ""},
		},
		{
			name:    "unquoted number",
			input:   "PORT: 3000\n",
			wantErr: `PORT must be a string, quote the value (PORT: "3000")`,
		},
		{
			name:    "unquoted boolean",
			input:   "DEBUG: true\n",
			wantErr: "DEBUG must be a string",
		},
		{
			name:  "explicit string tag",
			input: "PORT: !!str 3000\n",
			want:  RuntimeEnv{"PORT": "3000"},
		},
		{
			name:    "sequence root",
			input:   "- a\n- b\n",
			wantErr: "must be a mapping",
		},
		{
			name:    "nested value",
			input:   "DB:\n  host: x\n",
			wantErr: "DB must have a scalar value",
		},
		{
			name:    "null value",
			input:   "TOKEN:\n",
			wantErr: "TOKEN must have a scalar value",
		},
		{
			name:    "invalid yaml",
			input:   "A: [unterminated\n",
			wantErr: "parse env-vars yaml",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRuntimeEnv([]byte(tt.input))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRuntimeEnv: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadRuntimeEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, DefaultRuntimeEnvFile, "B: two\nA: one\n")

	env, err := LoadRuntimeEnv(path)
	if err != nil {
		t.Fatalf("LoadRuntimeEnv: %v", err)
	}
	if diff := cmp.Diff([]string{"A", "B"}, env.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRuntimeEnvMissing(t *testing.T) {
	if _, err := LoadRuntimeEnv(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
