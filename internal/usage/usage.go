// Package usage renders the dispatcher's help output.
package usage

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pyrill/rilldev/internal/config"
	"github.com/pyrill/rilldev/internal/recipe"
)

// DocsHelper renders a collaborator's own help section. Implemented by the
// docs sub-build; tests substitute fakes.
type DocsHelper interface {
	WriteHelp(w io.Writer) error
}

// WriteHelp composes the full help output: header, general options, the
// interpreter recipe listing, then the docs collaborator's section. The
// whole render is buffered so a collaborator failure yields no partial
// output.
func WriteHelp(w io.Writer, cfg *config.Config, registry *recipe.Registry, docs DocsHelper) error {
	var b bytes.Buffer

	fmt.Fprintf(&b, "Recipes for %s package\n", cfg.Package.Name)
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "General options:")
	fmt.Fprintln(&b, "  help: Show this help")
	fmt.Fprintln(&b, "  list: List resolved recipes")
	fmt.Fprintln(&b, "  run <recipe>: Execute a recipe")
	fmt.Fprintln(&b)

	writePythonHelp(&b, cfg, registry)
	fmt.Fprintln(&b)

	if err := docs.WriteHelp(&b); err != nil {
		return err
	}

	_, err := w.Write(b.Bytes())
	return err
}

// writePythonHelp lists the resolved package recipes, per interpreter
// version where expanded.
func writePythonHelp(w io.Writer, cfg *config.Config, registry *recipe.Registry) {
	fmt.Fprintln(w, "Python recipes:")
	if registry.Len() == 0 {
		fmt.Fprintln(w, "  (none defined)")
		return
	}
	for _, rec := range registry.All() {
		help := rec.Help
		if help == "" {
			help = "(no description)"
		}
		fmt.Fprintf(w, "  %s: %s\n", rec.Name, help)
	}
}
