package pyenv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pyrill/rilldev/internal/config"
	"github.com/pyrill/rilldev/internal/runner"
)

func managerConfig(t *testing.T, versions ...string) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Package.Name = "di-testing"
	cfg.Pythons = versions
	cfg.EnvsDir = filepath.Join(t.TempDir(), ".venvs")
	return cfg
}

func TestEnvPath(t *testing.T) {
	cfg := managerConfig(t, "3.12")
	m := NewManager(cfg)

	want := filepath.Join(cfg.EnvsDir, "py3.12")
	if got := m.EnvPath("3.12"); got != want {
		t.Errorf("EnvPath() = %q, want %q", got, want)
	}
}

func TestCreateUnconfiguredVersion(t *testing.T) {
	m := NewManager(managerConfig(t, "3.12"))

	if err := m.Create(context.Background(), "3.9"); err == nil {
		t.Error("expected error for unconfigured version")
	}
}

func TestCreateMissingInterpreter(t *testing.T) {
	// No host will have a python9.9 binary on PATH.
	m := NewManager(managerConfig(t, "9.9"))

	err := m.Create(context.Background(), "9.9")
	var missing *runner.MissingCollaboratorError
	if !errors.As(err, &missing) {
		t.Fatalf("error = %v, want *MissingCollaboratorError", err)
	}
	if missing.Kind != "interpreter" {
		t.Errorf("Kind = %q", missing.Kind)
	}
}

func TestCreateAllNoVersions(t *testing.T) {
	m := NewManager(managerConfig(t))

	if err := m.CreateAll(context.Background()); err == nil {
		t.Error("expected error when no versions are configured")
	}
}

func TestRemove(t *testing.T) {
	cfg := managerConfig(t, "3.12")
	m := NewManager(cfg)

	envPath := m.EnvPath("3.12")
	if err := os.MkdirAll(envPath, 0755); err != nil {
		t.Fatal(err)
	}

	if err := m.Remove("3.12"); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if _, err := os.Stat(envPath); !os.IsNotExist(err) {
		t.Error("environment directory still present after Remove")
	}

	// Removing an absent environment is not an error.
	if err := m.Remove("3.12"); err != nil {
		t.Errorf("Remove() on absent env: %v", err)
	}

	if err := m.Remove("3.9"); err == nil {
		t.Error("expected error for unconfigured version")
	}
}

func TestStatusAll(t *testing.T) {
	cfg := managerConfig(t, "3.11", "3.12")
	m := NewManager(cfg)

	if err := os.MkdirAll(m.EnvPath("3.12"), 0755); err != nil {
		t.Fatal(err)
	}

	statuses := m.StatusAll()
	if len(statuses) != 2 {
		t.Fatalf("StatusAll() returned %d entries, want 2", len(statuses))
	}

	byVersion := make(map[string]Status, len(statuses))
	for _, s := range statuses {
		byVersion[s.Version] = s
	}
	if byVersion["3.11"].Exists {
		t.Error("3.11 reported as existing")
	}
	if !byVersion["3.12"].Exists {
		t.Error("3.12 not reported as existing")
	}
	if byVersion["3.12"].Path != m.EnvPath("3.12") {
		t.Errorf("3.12 Path = %q", byVersion["3.12"].Path)
	}
}
