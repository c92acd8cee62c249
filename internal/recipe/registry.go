package recipe

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pyrill/rilldev/internal/config"
)

// Recipe is a resolved, runnable recipe. Per-python definitions expand into
// one Recipe per configured interpreter version.
type Recipe struct {
	Name    string
	Help    string
	Steps   []string
	Env     map[string]string
	Timeout time.Duration
	Python  string // interpreter version for expanded instances, empty otherwise
}

// Registry holds resolved recipes indexed by name, preserving a
// deterministic order for help output.
type Registry struct {
	recipes map[string]*Recipe
	order   []string
}

// NewRegistry creates an empty recipe registry.
func NewRegistry() *Registry {
	return &Registry{
		recipes: make(map[string]*Recipe),
	}
}

// Get retrieves a recipe by name.
func (r *Registry) Get(name string) (*Recipe, bool) {
	rec, ok := r.recipes[name]
	return rec, ok
}

// Names returns recipe names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// All returns recipes in registration order.
func (r *Registry) All() []*Recipe {
	out := make([]*Recipe, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.recipes[name])
	}
	return out
}

// Len returns the number of registered recipes.
func (r *Registry) Len() int { return len(r.order) }

// Add registers a recipe in the registry.
func (r *Registry) Add(rec *Recipe) error {
	if _, exists := r.recipes[rec.Name]; exists {
		return fmt.Errorf("recipe %q already registered", rec.Name)
	}
	r.recipes[rec.Name] = rec
	r.order = append(r.order, rec.Name)
	return nil
}

// Build resolves the configured recipe definitions into a registry.
// Definitions are processed in name order so the result is stable across
// runs. A per_python definition becomes "<name>.<version>" for every
// configured interpreter, with {python} and {venv} placeholders substituted
// in its steps.
func Build(cfg *config.Config) (*Registry, error) {
	registry := NewRegistry()

	names := make([]string, 0, len(cfg.Recipes))
	for name := range cfg.Recipes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rc := cfg.Recipes[name]

		if !rc.PerPython {
			if err := registry.Add(&Recipe{
				Name:    name,
				Help:    rc.Help,
				Steps:   append([]string(nil), rc.Steps...),
				Env:     copyEnv(rc.Env),
				Timeout: cfg.ParseTimeout(rc),
			}); err != nil {
				return nil, err
			}
			continue
		}

		for _, ver := range cfg.Pythons {
			venv := filepath.Join(cfg.EnvsDir, "py"+ver)
			steps := make([]string, len(rc.Steps))
			for i, step := range rc.Steps {
				step = strings.ReplaceAll(step, "{python}", ver)
				step = strings.ReplaceAll(step, "{venv}", venv)
				steps[i] = step
			}

			env := copyEnv(rc.Env)
			if env == nil {
				env = make(map[string]string)
			}
			env["PYTHON_VERSION"] = ver

			help := rc.Help
			if help != "" {
				help = strings.ReplaceAll(help, "{python}", ver)
			}

			if err := registry.Add(&Recipe{
				Name:    name + "." + ver,
				Help:    help,
				Steps:   steps,
				Env:     env,
				Timeout: cfg.ParseTimeout(rc),
				Python:  ver,
			}); err != nil {
				return nil, err
			}
		}
	}

	return registry, nil
}

func copyEnv(env map[string]string) map[string]string {
	if env == nil {
		return nil
	}
	out := make(map[string]string, len(env))
	for k, v := range env {
		out[k] = v
	}
	return out
}
