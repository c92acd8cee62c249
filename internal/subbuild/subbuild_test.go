package subbuild

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pyrill/rilldev/internal/config"
	"github.com/pyrill/rilldev/internal/runner"
)

const docsFragment = `
recipes:
  build:
    help: Build the HTML documentation
    steps:
      - "echo building into _build"
  clean:
    steps:
      - "echo removing _build"
`

func parentConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Package.Name = "di-testing"
	cfg.Env = map[string]string{"PYRILL_MODE": "ci"}
	cfg.DocsDir = "docs"
	return cfg
}

func writeDocsTree(t *testing.T, fragment string) string {
	t.Helper()
	base := t.TempDir()
	docs := filepath.Join(base, "docs")
	if err := os.MkdirAll(docs, 0755); err != nil {
		t.Fatal(err)
	}
	if fragment != "" {
		if err := os.WriteFile(filepath.Join(docs, config.RecipesFilename), []byte(fragment), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return base
}

func TestResolve(t *testing.T) {
	base := writeDocsTree(t, docsFragment)

	sb, err := Resolve(parentConfig(), base, "docs.")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if sb.Prefix != "docs." {
		t.Errorf("Prefix = %q", sb.Prefix)
	}
	if sb.Dir != filepath.Join(base, "docs") {
		t.Errorf("Dir = %q", sb.Dir)
	}

	names := sb.Registry().Names()
	if len(names) != 2 || names[0] != "build" || names[1] != "clean" {
		t.Errorf("Registry().Names() = %v", names)
	}
}

func TestResolveMissingDirectory(t *testing.T) {
	_, err := Resolve(parentConfig(), t.TempDir(), "docs.")
	if err == nil {
		t.Fatal("expected error for missing docs directory")
	}
	var missing *runner.MissingCollaboratorError
	if !errors.As(err, &missing) {
		t.Fatalf("error type = %T, want *MissingCollaboratorError", err)
	}
	if missing.Kind != "docs directory" {
		t.Errorf("Kind = %q", missing.Kind)
	}
}

func TestResolveMissingFragment(t *testing.T) {
	base := writeDocsTree(t, "")

	_, err := Resolve(parentConfig(), base, "docs.")
	var missing *runner.MissingCollaboratorError
	if !errors.As(err, &missing) {
		t.Fatalf("error = %v, want *MissingCollaboratorError", err)
	}
	if missing.Kind != "recipes fragment" {
		t.Errorf("Kind = %q", missing.Kind)
	}
}

func TestRunUnknownRecipe(t *testing.T) {
	base := writeDocsTree(t, docsFragment)
	sb, err := Resolve(parentConfig(), base, "docs.")
	if err != nil {
		t.Fatal(err)
	}

	_, err = sb.Run(context.Background(), "frobnicate")
	var unknown *runner.UnknownCommandError
	if !errors.As(err, &unknown) {
		t.Fatalf("error = %v, want *UnknownCommandError", err)
	}
	if unknown.Command != "docs.frobnicate" {
		t.Errorf("Command = %q, want prefixed name", unknown.Command)
	}
}

func TestRunInheritsParentEnvironment(t *testing.T) {
	base := writeDocsTree(t, `
recipes:
  show:
    steps:
      - "printf '%s|%s\n' \"$PACKAGE_NAME\" \"$PYRILL_MODE\""
`)
	sb, err := Resolve(parentConfig(), base, "docs.")
	if err != nil {
		t.Fatal(err)
	}

	var stdout bytes.Buffer
	result, err := sb.Run(context.Background(), "show",
		runner.WithOutput(&stdout, &bytes.Buffer{}))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.ExitCode != 0 {
		t.Fatalf("ExitCode = %d", result.ExitCode)
	}
	if got := strings.TrimSpace(stdout.String()); got != "di-testing|ci" {
		t.Errorf("delegated environment = %q, want parent set inherited", got)
	}
}

func TestRunPropagatesExitCode(t *testing.T) {
	base := writeDocsTree(t, `
recipes:
  broken:
    steps: ["exit 5"]
`)
	sb, err := Resolve(parentConfig(), base, "docs.")
	if err != nil {
		t.Fatal(err)
	}

	result, err := sb.Run(context.Background(), "broken",
		runner.WithOutput(&bytes.Buffer{}, &bytes.Buffer{}))
	if err == nil {
		t.Fatal("expected step error")
	}
	if result.ExitCode != 5 {
		t.Errorf("Result.ExitCode = %d, want 5", result.ExitCode)
	}
	if runner.ExitCode(err) != 5 {
		t.Errorf("ExitCode(err) = %d, want 5", runner.ExitCode(err))
	}
}

func TestWriteHelp(t *testing.T) {
	base := writeDocsTree(t, docsFragment)
	sb, err := Resolve(parentConfig(), base, "docs.")
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := sb.WriteHelp(&buf); err != nil {
		t.Fatalf("WriteHelp() error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Documentation recipes:") {
		t.Errorf("missing section header: %q", out)
	}
	if !strings.Contains(out, "docs.build: Build the HTML documentation") {
		t.Errorf("missing prefixed entry: %q", out)
	}
	if !strings.Contains(out, "docs.clean: (no description)") {
		t.Errorf("missing placeholder description: %q", out)
	}
}
