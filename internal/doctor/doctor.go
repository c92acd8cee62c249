// Package doctor validates rilldev configuration, recipes, and collaborators.
package doctor

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pyrill/rilldev/internal/config"
	"github.com/pyrill/rilldev/internal/recipe"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates configuration against the resolved recipe registry.
type Doctor struct {
	cfg      *config.Config
	registry *recipe.Registry
	baseDir  string
}

// New creates a Doctor from a loaded config and recipe registry. baseDir is
// the directory collaborator paths resolve against.
func New(cfg *config.Config, registry *recipe.Registry, baseDir string) *Doctor {
	return &Doctor{cfg: cfg, registry: registry, baseDir: baseDir}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validatePackage(r)
	d.validateRecipes(r)
	d.validateDocsCollaborator(r)
	d.warnMissingInterpreters(r)
	d.warnMissingEnvironments(r)
	d.warnUnresolvedEnvVars(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validatePackage checks required package fields.
func (d *Doctor) validatePackage(r *Result) {
	if d.cfg.Package.Name == "" {
		d.addError(r, "package", "package.name", "package.name is required")
	}
	if d.cfg.EnvsDir == "" {
		d.addError(r, "package", "envs_dir", "envs_dir is required")
	}
}

// validateRecipes checks the resolved registry is usable.
func (d *Doctor) validateRecipes(r *Result) {
	if d.registry.Len() == 0 {
		d.addWarning(r, "recipes", "", "no recipes defined; only built-in commands are available")
		return
	}

	for _, rec := range d.registry.All() {
		for i, step := range rec.Steps {
			if strings.Contains(step, "{python}") || strings.Contains(step, "{venv}") {
				d.addError(r, "recipes", fmt.Sprintf("recipes.%s.steps[%d]", rec.Name, i),
					fmt.Sprintf("recipe %q: unexpanded placeholder in step (is per_python set?)", rec.Name))
			}
		}
	}
}

// validateDocsCollaborator checks the docs sub-build can be delegated to.
func (d *Doctor) validateDocsCollaborator(r *Result) {
	dir := filepath.Join(d.baseDir, d.cfg.DocsDir)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		d.addWarning(r, "docs", "docs_dir",
			fmt.Sprintf("docs directory %q not found; docs.* commands will fail", dir))
		return
	}

	fragment := filepath.Join(dir, config.RecipesFilename)
	if _, err := os.Stat(fragment); err != nil {
		d.addError(r, "docs", "docs_dir",
			fmt.Sprintf("docs directory exists but %s is missing: %s", config.RecipesFilename, fragment))
	}
}

// warnMissingInterpreters warns about configured versions with no python binary.
func (d *Doctor) warnMissingInterpreters(r *Result) {
	for i, ver := range d.cfg.Pythons {
		if _, err := exec.LookPath("python" + ver); err != nil {
			d.addWarning(r, "interpreters", fmt.Sprintf("pythons[%d]", i),
				fmt.Sprintf("python%s not found on PATH", ver))
		}
	}
}

// warnMissingEnvironments warns about configured versions with no built env.
func (d *Doctor) warnMissingEnvironments(r *Result) {
	for i, ver := range d.cfg.Pythons {
		envPath := filepath.Join(d.cfg.EnvsDir, "py"+ver)
		if _, err := os.Stat(envPath); os.IsNotExist(err) {
			d.addWarning(r, "environments", fmt.Sprintf("pythons[%d]", i),
				fmt.Sprintf("environment for python%s not built (run 'rilldev env create %s')", ver, ver))
		}
	}
}

// warnUnresolvedEnvVars warns about ${VAR} references where VAR is not set.
func (d *Doctor) warnUnresolvedEnvVars(r *Result) {
	for _, rec := range d.registry.All() {
		for key, value := range rec.Env {
			if strings.Contains(value, "${") {
				d.addWarning(r, "env_vars", fmt.Sprintf("recipes.%s.env.%s", rec.Name, key),
					"value contains an unresolved environment variable")
			}
		}
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid && len(r.Warnings) > 0 {
		b.WriteString("Configuration valid")
		fmt.Fprintf(&b, " (%d warning(s))\n", len(r.Warnings))
	}

	if !r.Valid {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
