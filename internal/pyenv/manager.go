// Package pyenv manages per-interpreter virtual environments used by the
// package test recipes.
package pyenv

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pyrill/rilldev/internal/config"
	"github.com/pyrill/rilldev/internal/log"
	"github.com/pyrill/rilldev/internal/runner"
)

// Status describes one configured interpreter version and its environment.
type Status struct {
	Version     string `json:"version"`
	Path        string `json:"path"`
	Exists      bool   `json:"exists"`
	Interpreter string `json:"interpreter,omitempty"`
}

// Manager creates, removes, and reports virtual environments under the
// configured envs directory.
type Manager struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewManager creates a Manager for the given configuration.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		cfg:    cfg,
		logger: log.WithComponent("pyenv"),
	}
}

// EnvPath returns the environment directory for an interpreter version.
func (m *Manager) EnvPath(version string) string {
	return filepath.Join(m.cfg.EnvsDir, "py"+version)
}

// Create builds the virtual environment for one configured version.
func (m *Manager) Create(ctx context.Context, version string) error {
	if !m.configured(version) {
		return fmt.Errorf("python %s is not in the configured versions %v", version, m.cfg.Pythons)
	}

	interpreter, err := exec.LookPath("python" + version)
	if err != nil {
		return &runner.MissingCollaboratorError{Kind: "interpreter", Path: "python" + version}
	}

	envPath := m.EnvPath(version)
	if _, err := os.Stat(envPath); err == nil {
		m.logger.Info("environment already exists", "version", version, "path", envPath)
		return nil
	}

	if err := os.MkdirAll(m.cfg.EnvsDir, 0o755); err != nil {
		return fmt.Errorf("create envs directory: %w", err)
	}

	m.logger.Info("creating environment", "version", version, "path", envPath)
	cmd := exec.CommandContext(ctx, interpreter, "-m", "venv", envPath)
	cmd.Env = m.cfg.Environ(os.Environ())
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("create environment for python %s: %w", version, err)
	}
	return nil
}

// CreateAll builds environments for every configured version, stopping at
// the first failure.
func (m *Manager) CreateAll(ctx context.Context) error {
	if len(m.cfg.Pythons) == 0 {
		return fmt.Errorf("no python versions configured")
	}
	for _, ver := range m.cfg.Pythons {
		if err := m.Create(ctx, ver); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes the environment for one version. Removing an absent
// environment is not an error.
func (m *Manager) Remove(version string) error {
	if !m.configured(version) {
		return fmt.Errorf("python %s is not in the configured versions %v", version, m.cfg.Pythons)
	}
	envPath := m.EnvPath(version)
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		return nil
	}
	m.logger.Info("removing environment", "version", version, "path", envPath)
	return os.RemoveAll(envPath)
}

// StatusAll reports every configured version, whether its environment
// exists, and which interpreter binary would build it.
func (m *Manager) StatusAll() []Status {
	out := make([]Status, 0, len(m.cfg.Pythons))
	for _, ver := range m.cfg.Pythons {
		s := Status{
			Version: ver,
			Path:    m.EnvPath(ver),
		}
		if _, err := os.Stat(s.Path); err == nil {
			s.Exists = true
		}
		if interpreter, err := exec.LookPath("python" + ver); err == nil {
			s.Interpreter = interpreter
		}
		out = append(out, s)
	}
	return out
}

func (m *Manager) configured(version string) bool {
	for _, v := range m.cfg.Pythons {
		if v == version {
			return true
		}
	}
	return false
}
