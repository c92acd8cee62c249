package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// SettingsFilename is the primary fragment (package identity, env exports, paths).
	SettingsFilename = "rilldev.yaml"
	// RecipesFilename is the secondary fragment (recipe definitions).
	RecipesFilename = "recipes.yaml"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

var pythonVersionPattern = regexp.MustCompile(`^[0-9]+\.[0-9]+$`)

// Load assembles the configuration set from a directory holding the two
// fragments. The settings fragment is loaded first, the recipes fragment
// second; later-loaded entries override earlier ones with the same name.
func Load(dir string) (*Config, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config dir %q: %w", dir, err)
	}

	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("config directory not found: %s\n"+
			"Hint: Check the path or run with --config-dir", absDir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("config path is not a directory: %s", absDir)
	}

	settingsPath := filepath.Join(absDir, SettingsFilename)
	if _, err := os.Stat(settingsPath); err != nil {
		return nil, fmt.Errorf("settings fragment not found: %s", settingsPath)
	}

	cfg, err := loadFragment(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", SettingsFilename, err)
	}

	loaded := []string{settingsPath}

	// The recipes fragment is optional at load time; doctor flags its absence.
	recipesPath := filepath.Join(absDir, RecipesFilename)
	if _, err := os.Stat(recipesPath); err == nil {
		overlay, err := loadFragment(recipesPath)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", RecipesFilename, err)
		}
		mergeConfig(cfg, overlay)
		loaded = append(loaded, recipesPath)
	}

	cfg = applyDefaults(cfg)

	if err := verifyFragmentHashes(absDir, loaded); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadRecipesFragment loads a standalone recipes fragment, as found in a
// sub-build directory. Only recipe definitions and env exports are honored.
func LoadRecipesFragment(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve fragment path %q: %w", path, err)
	}
	if _, err := os.Stat(absPath); err != nil {
		return nil, fmt.Errorf("recipes fragment not found: %s", absPath)
	}

	cfg, err := loadFragment(absPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(absPath), err)
	}

	cfg = applyDefaults(cfg)
	if err := validateRecipes(cfg); err != nil {
		return nil, fmt.Errorf("invalid recipes fragment: %w", err)
	}
	return cfg, nil
}

// DiscoverConfigDir finds the config directory by checking standard locations.
// Priority order: $RILLDEV_CONFIG_DIR, then the current directory if it holds
// the settings fragment.
func DiscoverConfigDir() (string, error) {
	if dir := os.Getenv("RILLDEV_CONFIG_DIR"); dir != "" {
		if _, err := os.Stat(dir); err == nil {
			return dir, nil
		}
	}

	if _, err := os.Stat(SettingsFilename); err == nil {
		return ".", nil
	}

	return "", fmt.Errorf("no config found (checked: $RILLDEV_CONFIG_DIR, ./%s)", SettingsFilename)
}

// loadFragment loads and parses a single fragment file.
func loadFragment(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	interpolated := interpolateEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &cfg, nil
}

// mergeConfig merges src into dst, with src taking precedence for non-zero values.
func mergeConfig(dst, src *Config) {
	if src.Package.Name != "" {
		dst.Package.Name = src.Package.Name
	}
	if src.Package.Version != "" {
		dst.Package.Version = src.Package.Version
	}
	if src.Service.LogLevel != "" {
		dst.Service.LogLevel = src.Service.LogLevel
	}
	if src.Service.DefaultTimeout != 0 {
		dst.Service.DefaultTimeout = src.Service.DefaultTimeout
	}
	if len(src.Pythons) > 0 {
		dst.Pythons = src.Pythons
	}
	if src.EnvsDir != "" {
		dst.EnvsDir = src.EnvsDir
	}
	if src.DocsDir != "" {
		dst.DocsDir = src.DocsDir
	}
	if src.State.Path != "" {
		dst.State.Path = src.State.Path
	}
	if src.API.Enabled {
		dst.API.Enabled = src.API.Enabled
	}
	if src.API.Listen != "" {
		dst.API.Listen = src.API.Listen
	}

	if src.Env != nil {
		if dst.Env == nil {
			dst.Env = make(map[string]string)
		}
		for k, v := range src.Env {
			dst.Env[k] = v
		}
	}

	if src.Recipes != nil {
		if dst.Recipes == nil {
			dst.Recipes = make(map[string]RecipeConf)
		}
		for name, r := range src.Recipes {
			dst.Recipes[name] = r
		}
	}
}

// applyDefaults merges default values into cfg where not explicitly set.
func applyDefaults(cfg *Config) *Config {
	defaults := Defaults()

	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.Service.DefaultTimeout == 0 {
		cfg.Service.DefaultTimeout = defaults.Service.DefaultTimeout
	}
	if cfg.Env == nil {
		cfg.Env = make(map[string]string)
	}
	if cfg.EnvsDir == "" {
		cfg.EnvsDir = defaults.EnvsDir
	}
	if cfg.DocsDir == "" {
		cfg.DocsDir = defaults.DocsDir
	}
	if cfg.State.Path == "" {
		cfg.State.Path = defaults.State.Path
	}
	if !cfg.API.Enabled && cfg.API.Listen == "" {
		cfg.API = defaults.API
	}
	if cfg.Recipes == nil {
		cfg.Recipes = make(map[string]RecipeConf)
	}

	return cfg
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (caught by validation).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// validate performs basic validation on the assembled configuration.
func validate(cfg *Config) error {
	if cfg.Package.Name == "" {
		return fmt.Errorf("package.name is required")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}

	for i, ver := range cfg.Pythons {
		if !pythonVersionPattern.MatchString(ver) {
			return fmt.Errorf("pythons[%d]: invalid version %q (expected major.minor, e.g. 3.12)", i, ver)
		}
	}

	for key, value := range cfg.Env {
		if envVarPattern.MatchString(value) {
			matches := envVarPattern.FindStringSubmatch(value)
			if len(matches) > 1 {
				return fmt.Errorf("env.%s: environment variable ${%s} is not set", key, matches[1])
			}
			return fmt.Errorf("env.%s: unresolved environment variable", key)
		}
	}

	return validateRecipes(cfg)
}

// validateRecipes checks recipe definitions only. Shared with sub-build
// fragments, which carry no package identity of their own.
func validateRecipes(cfg *Config) error {
	for name, r := range cfg.Recipes {
		if name == "" {
			return fmt.Errorf("recipe with empty name")
		}
		if name == "help" {
			return fmt.Errorf("recipe %q: name is reserved", name)
		}
		if len(r.Steps) == 0 {
			return fmt.Errorf("recipe %q: at least one step is required", name)
		}
		for i, step := range r.Steps {
			if step == "" {
				return fmt.Errorf("recipe %q: steps[%d] is empty", name, i)
			}
		}
		if r.Timeout < 0 {
			return fmt.Errorf("recipe %q: timeout must not be negative", name)
		}
		if r.PerPython && len(cfg.Pythons) == 0 {
			return fmt.Errorf("recipe %q: per_python set but no pythons configured", name)
		}
	}
	return nil
}

// ParseTimeout converts a recipe timeout to the effective duration,
// falling back to the service default.
func (c *Config) ParseTimeout(r RecipeConf) time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return c.Service.DefaultTimeout
}
