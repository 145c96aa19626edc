package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/router-for-me/SnippetRelay/internal/security"
)

func executeCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	for _, key := range []string{"JWT_SECRET", "DATABASE_DSN", "SUPABASE_URL", "STORE_DRIVER"} {
		t.Setenv(key, "")
	}

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeConfigFixture(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	fixture := `
auth:
  jwt_secret: cli-secret
store:
  driver: gorm
  dsn: ` + filepath.Join(dir, "relay.db") + `
provider:
  api_key: sk-test
`
	if errWrite := os.WriteFile(path, []byte(fixture), 0o600); errWrite != nil {
		t.Fatalf("write config fixture: %v", errWrite)
	}
	return path
}

func TestConfigInitWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	stdout, _, err := executeCLI(t, "config", "init", "--path", path)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(stdout, "wrote "+path) {
		t.Fatalf("unexpected output %q", stdout)
	}

	data, errRead := os.ReadFile(path)
	if errRead != nil {
		t.Fatalf("read written config: %v", errRead)
	}
	if !strings.Contains(string(data), "default_model: gpt-3.5-turbo") {
		t.Fatalf("written config missing defaults: %s", data)
	}

	if _, _, err = executeCLI(t, "config", "init", "--path", path); err == nil {
		t.Fatalf("expected refusal to overwrite existing config")
	}
}

func TestTokenSignsWithConfiguredSecret(t *testing.T) {
	path := writeConfigFixture(t, t.TempDir())

	stdout, _, err := executeCLI(t, "--config", path, "token", "--sub", "user-42", "--email", "u@example.com")
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	principal, errParse := security.ParseToken("cli-secret", strings.TrimSpace(stdout))
	if errParse != nil {
		t.Fatalf("parse issued token: %v", errParse)
	}
	if principal.SubjectID != "user-42" || principal.Email != "u@example.com" {
		t.Fatalf("unexpected principal %+v", principal)
	}
}

func TestTokenRequiresSubject(t *testing.T) {
	path := writeConfigFixture(t, t.TempDir())

	_, _, err := executeCLI(t, "--config", path, "token")
	if err == nil || !strings.Contains(err.Error(), `required flag(s) "sub" not set`) {
		t.Fatalf("expected missing --sub error, got %v", err)
	}
}

func TestTokenRequiresSecret(t *testing.T) {
	if _, _, err := executeCLI(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "token", "--sub", "u"); err == nil {
		t.Fatalf("expected error without a signing secret")
	}
}

func TestMigrateCreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFixture(t, dir)

	stdout, _, err := executeCLI(t, "--config", path, "migrate")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(stdout, "migrations applied") {
		t.Fatalf("unexpected output %q", stdout)
	}

	if _, errStat := os.Stat(filepath.Join(dir, "relay.db")); errStat != nil {
		t.Fatalf("expected database file: %v", errStat)
	}
}
