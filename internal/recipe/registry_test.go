package recipe

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/pyrill/rilldev/internal/config"
)

func TestRegistryAdd(t *testing.T) {
	r := NewRegistry()

	if err := r.Add(&Recipe{Name: "lint", Steps: []string{"ruff check ."}}); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if err := r.Add(&Recipe{Name: "lint", Steps: []string{"other"}}); err == nil {
		t.Error("expected duplicate registration error")
	}

	rec, ok := r.Get("lint")
	if !ok || rec.Steps[0] != "ruff check ." {
		t.Errorf("Get() = %v, %v", rec, ok)
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get() found unregistered recipe")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestBuildPlainRecipe(t *testing.T) {
	cfg := config.Defaults()
	cfg.Package.Name = "di-testing"
	cfg.Recipes = map[string]config.RecipeConf{
		"lint": {
			Help:  "Run the linter",
			Steps: []string{"ruff check ."},
			Env:   map[string]string{"RUFF_CACHE_DIR": ".cache"},
		},
	}

	registry, err := Build(cfg)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	rec, ok := registry.Get("lint")
	if !ok {
		t.Fatal("lint recipe not built")
	}
	if rec.Python != "" {
		t.Errorf("plain recipe has python version: %q", rec.Python)
	}
	if rec.Timeout != cfg.Service.DefaultTimeout {
		t.Errorf("Timeout = %v, want default %v", rec.Timeout, cfg.Service.DefaultTimeout)
	}
	if rec.Env["RUFF_CACHE_DIR"] != ".cache" {
		t.Errorf("recipe env not carried: %v", rec.Env)
	}
}

func TestBuildPerPythonExpansion(t *testing.T) {
	cfg := config.Defaults()
	cfg.Package.Name = "di-testing"
	cfg.Pythons = []string{"3.11", "3.12"}
	cfg.EnvsDir = ".venvs"
	cfg.Recipes = map[string]config.RecipeConf{
		"test": {
			Help:      "Test under python {python}",
			PerPython: true,
			Steps:     []string{"{venv}/bin/python -m pytest", "echo done {python}"},
		},
	}

	registry, err := Build(cfg)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if registry.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", registry.Len())
	}

	for _, ver := range cfg.Pythons {
		name := "test." + ver
		rec, ok := registry.Get(name)
		if !ok {
			t.Fatalf("%s not built", name)
		}
		if rec.Python != ver {
			t.Errorf("%s Python = %q, want %q", name, rec.Python, ver)
		}
		wantVenv := filepath.Join(".venvs", "py"+ver)
		if rec.Steps[0] != wantVenv+"/bin/python -m pytest" {
			t.Errorf("%s step[0] = %q", name, rec.Steps[0])
		}
		if rec.Steps[1] != "echo done "+ver {
			t.Errorf("%s step[1] = %q", name, rec.Steps[1])
		}
		if rec.Env["PYTHON_VERSION"] != ver {
			t.Errorf("%s PYTHON_VERSION = %q", name, rec.Env["PYTHON_VERSION"])
		}
		if rec.Help != "Test under python "+ver {
			t.Errorf("%s Help = %q", name, rec.Help)
		}
	}
}

func TestBuildStableOrder(t *testing.T) {
	cfg := config.Defaults()
	cfg.Package.Name = "di-testing"
	cfg.Pythons = []string{"3.11", "3.12"}
	cfg.Recipes = map[string]config.RecipeConf{
		"zz-last":  {Steps: []string{"true"}},
		"aa-first": {Steps: []string{"true"}},
		"test":     {PerPython: true, Steps: []string{"pytest"}},
	}

	registry, err := Build(cfg)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	want := []string{"aa-first", "test.3.11", "test.3.12", "zz-last"}
	got := registry.Names()
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBuildRecipeTimeout(t *testing.T) {
	cfg := config.Defaults()
	cfg.Package.Name = "di-testing"
	cfg.Recipes = map[string]config.RecipeConf{
		"quick": {Steps: []string{"true"}, Timeout: 90 * time.Second},
	}

	registry, err := Build(cfg)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	rec, _ := registry.Get("quick")
	if rec.Timeout != 90*time.Second {
		t.Errorf("Timeout = %v, want 90s", rec.Timeout)
	}
}
