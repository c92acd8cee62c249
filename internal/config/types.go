package config

import (
	"sort"
	"time"
)

// Config is the fully resolved configuration assembled from the settings
// fragment (rilldev.yaml) and the recipes fragment (recipes.yaml).
type Config struct {
	Package PackageConfig         `yaml:"package"`
	Service ServiceConfig         `yaml:"service,omitempty"`
	Pythons []string              `yaml:"pythons,omitempty"`
	Env     map[string]string     `yaml:"env,omitempty"`
	EnvsDir string                `yaml:"envs_dir,omitempty"`
	DocsDir string                `yaml:"docs_dir,omitempty"`
	State   StateConfig           `yaml:"state,omitempty"`
	API     APIConfig             `yaml:"api,omitempty"`
	Recipes map[string]RecipeConf `yaml:"recipes,omitempty"`
}

// PackageConfig identifies the package the recipes operate on.
type PackageConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version,omitempty"`
}

// ServiceConfig defines tool-wide settings.
type ServiceConfig struct {
	LogLevel       string        `yaml:"log_level"`
	DefaultTimeout time.Duration `yaml:"default_timeout"`
}

// StateConfig defines where the run journal lives.
type StateConfig struct {
	Path string `yaml:"path"`
}

// APIConfig defines the status API server settings.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// RecipeConf defines a single recipe as written in a fragment.
type RecipeConf struct {
	Help      string            `yaml:"help,omitempty"`
	Steps     []string          `yaml:"steps"`
	Env       map[string]string `yaml:"env,omitempty"`
	PerPython bool              `yaml:"per_python,omitempty"`
	Timeout   time.Duration     `yaml:"timeout,omitempty"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			LogLevel:       "info",
			DefaultTimeout: 30 * time.Minute,
		},
		Env:     make(map[string]string),
		EnvsDir: ".venvs",
		DocsDir: "docs",
		State: StateConfig{
			Path: "./data/runs.db",
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8080",
		},
		Recipes: make(map[string]RecipeConf),
	}
}

// Environ appends every variable of the resolved configuration set to base,
// keyed exactly as defined in the fragments. Package identity rides along as
// PACKAGE_NAME and PACKAGE_VERSION unless the fragments override them.
func (c *Config) Environ(base []string) []string {
	merged := make(map[string]string, len(c.Env)+2)
	merged["PACKAGE_NAME"] = c.Package.Name
	if c.Package.Version != "" {
		merged["PACKAGE_VERSION"] = c.Package.Version
	}
	for k, v := range c.Env {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := append([]string(nil), base...)
	for _, k := range keys {
		out = append(out, k+"="+merged[k])
	}
	return out
}
