package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hayloftlabs/gcr-docker-node-template/internal/config"
	"github.com/hayloftlabs/gcr-docker-node-template/internal/execx"
	"github.com/hayloftlabs/gcr-docker-node-template/internal/execx/execxtest"
	"github.com/hayloftlabs/gcr-docker-node-template/internal/gcloud"
	"github.com/hayloftlabs/gcr-docker-node-template/internal/retry"
)

var testDeploy = config.Deploy{
	Project:            "p",
	ServiceAccountName: "deployer",
	Region:             "r",
	Repo:               "repo1",
	AppName:            "svc",
	ImageTag:           "v1",
}

const testEmail = "deployer@p.iam.gserviceaccount.com"

// fakeProject scripts a Recorder to behave like a project whose service
// account appears visibleAfter lookups after creation (never when negative)
// and whose repository exists once created.
type fakeProject struct {
	accountExists bool
	repoExists    bool
	visibleAfter  int
	lookups       int
}

func (f *fakeProject) install(rec *execxtest.Recorder) {
	created := false
	rec.On("gcloud iam service-accounts list", func(execx.Command) ([]byte, error) {
		if f.accountExists {
			return []byte(testEmail + "\n"), nil
		}
		if created {
			f.lookups++
			if f.visibleAfter >= 0 && f.lookups >= f.visibleAfter {
				f.accountExists = true
				return []byte(testEmail + "\n"), nil
			}
		}
		return nil, nil
	})
	rec.On("gcloud iam service-accounts create", func(execx.Command) ([]byte, error) {
		created = true
		return nil, nil
	})
	rec.On("gcloud artifacts repositories describe", func(cmd execx.Command) ([]byte, error) {
		if f.repoExists {
			return []byte("name: repo1\n"), nil
		}
		return nil, &execx.ExitError{Command: cmd, Code: 1, Stderr: "NOT_FOUND"}
	})
	rec.On("gcloud artifacts repositories create", func(execx.Command) ([]byte, error) {
		f.repoExists = true
		return nil, nil
	})
}

type sleepLog struct {
	total time.Duration
	naps  int
}

func (s *sleepLog) sleep(_ context.Context, d time.Duration) error {
	s.total += d
	s.naps++
	return nil
}

func newTestInitializer(rec *execxtest.Recorder, sl *sleepLog) *Initializer {
	initer := NewInitializer(gcloud.New(rec), nil)
	initer.Poller.Sleep = sl.sleep
	return initer
}

func verbs(rec *execxtest.Recorder) []string {
	var out []string
	for _, c := range rec.Commands() {
		// "gcloud iam service-accounts list --project=p ..." -> "iam service-accounts list"
		n := 3
		if len(c.Args) < n {
			n = len(c.Args)
		}
		out = append(out, strings.Join(c.Args[:n], " "))
	}
	return out
}

func TestInitializerFreshProject(t *testing.T) {
	rec := execxtest.New()
	(&fakeProject{visibleAfter: 2}).install(rec)
	sl := &sleepLog{}

	report, err := newTestInitializer(rec, sl).Run(context.Background(), testDeploy)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{
		"config set project",
		"iam service-accounts list",
		"iam service-accounts create",
		"iam service-accounts list",
		"iam service-accounts list",
		"projects add-iam-policy-binding p",
		"projects add-iam-policy-binding p",
		"artifacts repositories describe",
		"artifacts repositories create",
	}
	if diff := cmp.Diff(want, verbs(rec)); diff != "" {
		t.Errorf("command sequence (-want +got):\n%s", diff)
	}
	if sl.naps != 2 || sl.total != 20*time.Second {
		t.Errorf("slept %s in %d naps, want 20s in 2", sl.total, sl.naps)
	}

	wantReport := &InitReport{
		ServiceAccount:        testEmail,
		CreatedServiceAccount: true,
		GrantedRoles:          []string{"roles/storage.admin", "roles/artifactregistry.writer"},
		Repository:            "repo1",
		CreatedRepository:     true,
	}
	if diff := cmp.Diff(wantReport, report); diff != "" {
		t.Errorf("report (-want +got):\n%s", diff)
	}
	if rec.Count("gcloud artifacts repositories create repo1 --project=p --location=r --repository-format=docker") != 1 {
		t.Errorf("repository not created with docker format: %v", rec.Lines())
	}
}

func TestInitializerIsIdempotent(t *testing.T) {
	rec := execxtest.New()
	(&fakeProject{visibleAfter: 1}).install(rec)
	initer := newTestInitializer(rec, &sleepLog{})

	if _, err := initer.Run(context.Background(), testDeploy); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	firstRunCommands := len(rec.Commands())

	report, err := initer.Run(context.Background(), testDeploy)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	second := rec.Commands()[firstRunCommands:]
	for _, c := range second {
		for _, a := range c.Args {
			if a == "create" {
				t.Errorf("second run issued creation call: %s", c)
			}
		}
	}
	if report.CreatedServiceAccount || report.CreatedRepository {
		t.Errorf("second run reported creation: %+v", report)
	}
	if len(report.GrantedRoles) != 2 {
		t.Errorf("roles not re-granted on second run: %v", report.GrantedRoles)
	}
}

func TestInitializerExistingResources(t *testing.T) {
	rec := execxtest.New()
	(&fakeProject{accountExists: true, repoExists: true}).install(rec)
	sl := &sleepLog{}

	if _, err := newTestInitializer(rec, sl).Run(context.Background(), testDeploy); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := rec.Count("gcloud iam service-accounts create"); n != 0 {
		t.Errorf("service account created %d times", n)
	}
	if n := rec.Count("gcloud artifacts repositories create"); n != 0 {
		t.Errorf("repository created %d times", n)
	}
	if sl.naps != 0 {
		t.Errorf("polled %d times for an existing account", sl.naps)
	}
}

func TestInitializerPollTimeout(t *testing.T) {
	rec := execxtest.New()
	(&fakeProject{visibleAfter: -1}).install(rec)
	sl := &sleepLog{}

	_, err := newTestInitializer(rec, sl).Run(context.Background(), testDeploy)
	if !errors.Is(err, retry.ErrTimeout) {
		t.Fatalf("expected retry.ErrTimeout, got %v", err)
	}

	// One lookup before creation, then exactly nine polls.
	if n := rec.Count("gcloud iam service-accounts list"); n != 1+ServiceAccountPollAttempts {
		t.Errorf("lookups = %d, want %d", n, 1+ServiceAccountPollAttempts)
	}
	if sl.total != 90*time.Second {
		t.Errorf("slept %s, want 90s", sl.total)
	}
	if n := rec.Count("gcloud projects add-iam-policy-binding"); n != 0 {
		t.Errorf("granted %d roles after timeout", n)
	}
	if n := rec.Count("gcloud artifacts"); n != 0 {
		t.Errorf("ran %d repository commands after timeout", n)
	}
}

func TestInitializerAbortsOnFailure(t *testing.T) {
	rec := execxtest.New()
	(&fakeProject{accountExists: true}).install(rec)
	rec.OnExit("gcloud projects add-iam-policy-binding p --member=serviceAccount:"+testEmail+" --role=roles/storage.admin", 1)

	_, err := newTestInitializer(rec, &sleepLog{}).Run(context.Background(), testDeploy)
	if !execx.IsExitError(err) {
		t.Fatalf("expected exit error, got %v", err)
	}
	if n := rec.Count("gcloud projects add-iam-policy-binding"); n != 1 {
		t.Errorf("grants attempted = %d, want 1", n)
	}
	if n := rec.Count("gcloud artifacts"); n != 0 {
		t.Errorf("repository steps ran after failure")
	}
}

func TestInitializerSetProjectFailure(t *testing.T) {
	rec := execxtest.New()
	rec.OnExit("gcloud config set project", 1)

	if _, err := newTestInitializer(rec, &sleepLog{}).Run(context.Background(), testDeploy); err == nil {
		t.Fatal("expected error")
	}
	if len(rec.Commands()) != 1 {
		t.Errorf("commands after failed set project: %v", rec.Lines())
	}
}
