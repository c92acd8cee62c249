// Package subbuild delegates commands to a nested recipe dispatcher rooted
// in a subdirectory, namespacing its commands under a caller-supplied prefix.
package subbuild

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pyrill/rilldev/internal/config"
	"github.com/pyrill/rilldev/internal/log"
	"github.com/pyrill/rilldev/internal/recipe"
	"github.com/pyrill/rilldev/internal/runner"
)

// SubBuild is a resolved nested dispatcher. The parent's configuration set
// is inherited: package identity and env exports remain visible to every
// delegated subprocess.
type SubBuild struct {
	Dir    string
	Prefix string

	cfg      *config.Config
	registry *recipe.Registry
	logger   *slog.Logger
}

// Resolve locates the sub-build under baseDir and loads its recipes
// fragment. Absence of the directory or the fragment is fatal for the
// caller: there is nothing to retry.
func Resolve(parent *config.Config, baseDir, prefix string) (*SubBuild, error) {
	dir := filepath.Join(baseDir, parent.DocsDir)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, &runner.MissingCollaboratorError{Kind: "docs directory", Path: dir}
	}

	fragmentPath := filepath.Join(dir, config.RecipesFilename)
	if _, err := os.Stat(fragmentPath); err != nil {
		return nil, &runner.MissingCollaboratorError{Kind: "recipes fragment", Path: fragmentPath}
	}

	cfg, err := config.LoadRecipesFragment(fragmentPath)
	if err != nil {
		return nil, err
	}

	// The nested fragment defines recipes only; identity and env exports
	// come from the parent so the environment invariant holds downstream.
	cfg.Package = parent.Package
	for k, v := range parent.Env {
		if _, overridden := cfg.Env[k]; !overridden {
			cfg.Env[k] = v
		}
	}
	cfg.Pythons = parent.Pythons
	cfg.EnvsDir = parent.EnvsDir

	registry, err := recipe.Build(cfg)
	if err != nil {
		return nil, err
	}

	return &SubBuild{
		Dir:      dir,
		Prefix:   prefix,
		cfg:      cfg,
		registry: registry,
		logger:   log.WithComponent("subbuild"),
	}, nil
}

// Run executes the named recipe inside the sub-build directory. The result
// carries the child's exit code verbatim.
func (s *SubBuild) Run(ctx context.Context, name string, opts ...runner.Option) (*runner.Result, error) {
	rec, ok := s.registry.Get(name)
	if !ok {
		return nil, &runner.UnknownCommandError{Command: s.Prefix + name}
	}

	s.logger.Info("delegating to sub-build", "dir", s.Dir, "recipe", rec.Name)
	return runner.New(s.cfg, s.Dir, opts...).Run(ctx, rec)
}

// Registry exposes the nested recipes (used by doctor and the status API).
func (s *SubBuild) Registry() *recipe.Registry {
	return s.registry
}

// WriteHelp prints the nested dispatcher's commands under the prefix.
func (s *SubBuild) WriteHelp(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "Documentation recipes:"); err != nil {
		return err
	}
	for _, rec := range s.registry.All() {
		help := rec.Help
		if help == "" {
			help = "(no description)"
		}
		if _, err := fmt.Fprintf(w, "  %s%s: %s\n", s.Prefix, rec.Name, help); err != nil {
			return err
		}
	}
	return nil
}
