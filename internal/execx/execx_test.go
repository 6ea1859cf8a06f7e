package execx

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestCommandString(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{Cmd("docker", "build", "-t", "app:local", "."), "docker build -t app:local ."},
		{Cmd("gcloud", "--description", "Docker repository for svc"), `gcloud --description "Docker repository for svc"`},
		{Cmd("gcloud", ""), `gcloud ""`},
	}
	for _, tt := range tests {
		if got := tt.cmd.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestExecRunnerRunStreamsOutput(t *testing.T) {
	var stdout bytes.Buffer
	r := &ExecRunner{Stdout: &stdout, Stderr: &bytes.Buffer{}}
	if err := r.Run(context.Background(), Cmd("sh", "-c", "echo streamed")); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.TrimSpace(stdout.String()) != "streamed" {
		t.Errorf("stdout = %q, want %q", stdout.String(), "streamed")
	}
}

func TestExecRunnerExitError(t *testing.T) {
	r := &ExecRunner{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}
	err := r.Run(context.Background(), Cmd("sh", "-c", "exit 3"))
	var ee *ExitError
	if !errors.As(err, &ee) {
		t.Fatalf("expected *ExitError, got %v", err)
	}
	if ee.ExitCode() != 3 {
		t.Errorf("ExitCode() = %d, want 3", ee.ExitCode())
	}
	if !IsExitError(err) {
		t.Error("IsExitError = false, want true")
	}
}

func TestExecRunnerOutputCapturesStderr(t *testing.T) {
	r := &ExecRunner{}
	out, err := r.Output(context.Background(), Cmd("sh", "-c", "echo out; echo boom >&2; exit 1"))
	if strings.TrimSpace(string(out)) != "out" {
		t.Errorf("stdout = %q, want %q", out, "out")
	}
	var ee *ExitError
	if !errors.As(err, &ee) {
		t.Fatalf("expected *ExitError, got %v", err)
	}
	if !strings.Contains(ee.Error(), "boom") {
		t.Errorf("error %q does not include stderr", ee.Error())
	}
}

func TestExecRunnerMissingBinary(t *testing.T) {
	r := &ExecRunner{}
	err := r.Run(context.Background(), Cmd("definitely-not-a-real-tool-xyz"))
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if IsExitError(err) {
		t.Errorf("missing binary reported as exit error: %v", err)
	}
}
