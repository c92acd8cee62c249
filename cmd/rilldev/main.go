package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"gopkg.in/yaml.v3"

	"github.com/pyrill/rilldev/internal/api"
	"github.com/pyrill/rilldev/internal/config"
	"github.com/pyrill/rilldev/internal/doctor"
	"github.com/pyrill/rilldev/internal/lock"
	"github.com/pyrill/rilldev/internal/log"
	"github.com/pyrill/rilldev/internal/pyenv"
	"github.com/pyrill/rilldev/internal/recipe"
	"github.com/pyrill/rilldev/internal/runner"
	"github.com/pyrill/rilldev/internal/storage"
	"github.com/pyrill/rilldev/internal/subbuild"
	"github.com/pyrill/rilldev/internal/tui"
	"github.com/pyrill/rilldev/internal/usage"
)

const docsPrefix = "docs."

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage(os.Stderr)
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "help", "--help", "-h":
		return runHelp(args)
	case "list":
		return runList(args)
	case "run":
		return runRun(args)
	case "env":
		return runEnvNoun(args)
	case "config":
		return runConfigNoun(args)
	case "doctor": // Alias for config check
		return runConfigCheck(args)
	case "history":
		return runHistory(args)
	case "serve":
		return runServe(args)
	case "pick":
		return runPick(args)
	case "version", "--version":
		return runVersion(args)
	}

	if strings.HasPrefix(cmd, docsPrefix) {
		return runDocs(strings.TrimPrefix(cmd, docsPrefix), args)
	}

	// Bare recipe names run directly, make-style.
	if cfg, baseDir, err := loadConfig(""); err == nil {
		if registry, err := recipe.Build(cfg); err == nil {
			if rec, ok := registry.Get(cmd); ok {
				return executeRecipe(cfg, baseDir, rec)
			}
		}
	}

	fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
	printUsage(os.Stderr)
	return 1
}

// --- CONFIG LOADING ---

func loadConfig(configDir string) (*config.Config, string, error) {
	if configDir == "" {
		discovered, err := config.DiscoverConfigDir()
		if err != nil {
			return nil, "", err
		}
		configDir = discovered
	}
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, "", err
	}
	baseDir, err := filepath.Abs(configDir)
	if err != nil {
		return nil, "", err
	}
	return cfg, baseDir, nil
}

func loadConfigAndRegistry(configDir string) (*config.Config, *recipe.Registry, string, error) {
	cfg, baseDir, err := loadConfig(configDir)
	if err != nil {
		return nil, nil, "", err
	}
	registry, err := recipe.Build(cfg)
	if err != nil {
		return nil, nil, "", err
	}
	return cfg, registry, baseDir, nil
}

// --- HELP ---

func runHelp(args []string) int {
	fs := flag.NewFlagSet("help", flag.ContinueOnError)
	configDir := fs.String("config-dir", "", "Path to configuration directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, registry, baseDir, err := loadConfigAndRegistry(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	docs, err := subbuild.Resolve(cfg, baseDir, docsPrefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if err := usage.WriteHelp(os.Stdout, cfg, registry, docs); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func printUsage(w *os.File) {
	fmt.Fprint(w, `rilldev - Recipe dispatcher for Python package development

Usage:
  rilldev <command> [flags]

Commands:
  help              Show package recipes and delegated docs recipes
  list              List resolved recipes
  run <recipe>      Execute a recipe
  docs.<name>       Forward <name> to the docs sub-build
  env <action>      Manage per-interpreter environments (create, remove, status)
  config <action>   Configuration tooling (check, show, get, lock)
  doctor            Alias for config check
  history           Show recent recipe runs
  serve             Start the read-only status API
  pick              Interactive recipe picker
  version           Show version information

Use 'rilldev help' for the resolved recipe listing.
`)
}

// --- RECIPE EXECUTION ---

func runRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configDir := fs.String("config-dir", "", "Path to configuration directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: rilldev run <recipe> [--config-dir PATH]")
		return 1
	}

	cfg, registry, baseDir, err := loadConfigAndRegistry(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	name := fs.Arg(0)
	rec, ok := registry.Get(name)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown recipe: %s (see 'rilldev list')\n", name)
		return 1
	}

	return executeRecipe(cfg, baseDir, rec)
}

// executeRecipe runs one recipe under the shared lock and journals the
// outcome. The child's exit code is propagated verbatim.
func executeRecipe(cfg *config.Config, baseDir string, rec *recipe.Recipe) int {
	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")

	lockPath := filepath.Join(filepath.Dir(cfg.State.Path), "rilldev.lock")
	runLock, err := lock.Acquire(lockPath)
	if err != nil {
		logger.Error("failed to acquire lock", "path", lockPath, "error", err)
		return 1
	}
	defer runLock.Release()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	start := time.Now()
	result, runErr := runner.New(cfg, baseDir).Run(ctx, rec)

	recordRun(ctx, cfg, logger, rec.Name, result, runErr, start)

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		return runner.ExitCode(runErr)
	}
	return 0
}

// recordRun journals the outcome. Journal failures are logged, not fatal:
// the recipe already ran.
func recordRun(ctx context.Context, cfg *config.Config, logger *slog.Logger, name string, result *runner.Result, runErr error, start time.Time) {
	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		logger.Warn("run journal unavailable", "path", cfg.State.Path, "error", err)
		return
	}
	defer db.Close()

	status := storage.StatusSucceeded
	exitCode := 0
	stderrTail := ""
	if result != nil {
		exitCode = result.ExitCode
		stderrTail = result.StderrTail
	}
	if runErr != nil {
		status = storage.StatusFailed
		var timeoutErr *runner.TimeoutError
		if errors.As(runErr, &timeoutErr) {
			status = storage.StatusTimedOut
		}
		if exitCode == 0 {
			exitCode = runner.ExitCode(runErr)
		}
	}

	journal := storage.NewJournal(db)
	if _, err := journal.Record(ctx, storage.RunRecord{
		Recipe:     name,
		Status:     status,
		ExitCode:   exitCode,
		DurationMS: time.Since(start).Milliseconds(),
		StderrTail: stderrTail,
		StartedAt:  start.UTC(),
		FinishedAt: time.Now().UTC(),
	}); err != nil {
		logger.Warn("failed to journal run", "recipe", name, "error", err)
	}
}

func runList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	configDir := fs.String("config-dir", "", "Path to configuration directory")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	_, registry, _, err := loadConfigAndRegistry(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	if *jsonOut {
		type entry struct {
			Name   string `json:"name"`
			Help   string `json:"help,omitempty"`
			Python string `json:"python,omitempty"`
		}
		out := make([]entry, 0, registry.Len())
		for _, rec := range registry.All() {
			out = append(out, entry{Name: rec.Name, Help: rec.Help, Python: rec.Python})
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	for _, rec := range registry.All() {
		if rec.Help != "" {
			fmt.Printf("%s: %s\n", rec.Name, rec.Help)
		} else {
			fmt.Println(rec.Name)
		}
	}
	return 0
}

// --- DOCS DELEGATION ---

func runDocs(name string, args []string) int {
	fs := flag.NewFlagSet("docs", flag.ContinueOnError)
	configDir := fs.String("config-dir", "", "Path to configuration directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, baseDir, err := loadConfig(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	log.Setup(cfg.Service.LogLevel)

	docs, err := subbuild.Resolve(cfg, baseDir, docsPrefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if name == "help" {
		if err := docs.WriteHelp(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if _, err := docs.Run(ctx, name); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return runner.ExitCode(err)
	}
	return 0
}

// --- ENV NOUN ---

func runEnvNoun(args []string) int {
	if len(args) < 1 {
		printEnvNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printEnvNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "create":
		return runEnvCreate(actionArgs)
	case "remove":
		return runEnvRemove(actionArgs)
	case "status":
		return runEnvStatus(actionArgs)
	case "help":
		printEnvNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown env action: %s\n", action)
		return 1
	}
}

func runEnvCreate(args []string) int {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	configDir := fs.String("config-dir", "", "Path to configuration directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, _, err := loadConfig(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	log.Setup(cfg.Service.LogLevel)

	lockPath := filepath.Join(filepath.Dir(cfg.State.Path), "rilldev.lock")
	envLock, err := lock.Acquire(lockPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to acquire lock: %v\n", err)
		return 1
	}
	defer envLock.Release()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mgr := pyenv.NewManager(cfg)
	if fs.NArg() == 0 || fs.Arg(0) == "all" {
		if err := mgr.CreateAll(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}
	if err := mgr.Create(ctx, fs.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func runEnvRemove(args []string) int {
	fs := flag.NewFlagSet("remove", flag.ContinueOnError)
	configDir := fs.String("config-dir", "", "Path to configuration directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: rilldev env remove <version> [--config-dir PATH]")
		return 1
	}

	cfg, _, err := loadConfig(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	log.Setup(cfg.Service.LogLevel)

	if err := pyenv.NewManager(cfg).Remove(fs.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func runEnvStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	configDir := fs.String("config-dir", "", "Path to configuration directory")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, _, err := loadConfig(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	statuses := pyenv.NewManager(cfg).StatusAll()
	if *jsonOut {
		data, _ := json.MarshalIndent(statuses, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	for _, s := range statuses {
		state := "missing"
		if s.Exists {
			state = "ready"
		}
		interpreter := s.Interpreter
		if interpreter == "" {
			interpreter = "(no interpreter on PATH)"
		}
		fmt.Printf("python %s  %-7s  %s  %s\n", s.Version, state, s.Path, interpreter)
	}
	return 0
}

func printEnvNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: rilldev env <action> [flags]")
	fmt.Fprintln(w, "Actions: create [version|all], remove <version>, status")
}

// --- CONFIG NOUN ---

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "check":
		return runConfigCheck(actionArgs)
	case "show":
		return runConfigShow(actionArgs)
	case "get":
		return runConfigGet(actionArgs)
	case "lock":
		return runConfigLock(actionArgs)
	case "help":
		printConfigNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: rilldev config <action> [flags]")
	fmt.Fprintln(w, "Actions: check, show, get, lock")
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configDir := fs.String("config-dir", "", "Path to configuration directory")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, registry, baseDir, err := loadConfigAndRegistry(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	result := doctor.New(cfg, registry, baseDir).Validate()

	if *jsonOut {
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
			return 1
		}
		fmt.Println(out)
	} else {
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid {
		return 1
	}
	return 0
}

func runConfigShow(args []string) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	configDir := fs.String("config-dir", "", "Path to configuration directory")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, _, err := loadConfig(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(cfg, "", "  ")
		fmt.Println(string(data))
	} else {
		data, _ := yaml.Marshal(cfg)
		fmt.Print(string(data))
	}
	return 0
}

func runConfigGet(args []string) int {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	configDir := fs.String("config-dir", "", "Path to configuration directory")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: rilldev config get <path> [--json]")
		return 1
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	val, err := lookupPath(cfg, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(val, "", "  ")
		fmt.Println(string(data))
	} else {
		fmt.Printf("%v\n", val)
	}
	return 0
}

// lookupPath walks the yaml representation of cfg along a dotted path.
func lookupPath(cfg *config.Config, path string) (any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	var current any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("path %q: %q is not a mapping", path, part)
		}
		current, ok = m[part]
		if !ok {
			return nil, fmt.Errorf("path %q: key %q not found", path, part)
		}
	}
	return current, nil
}

func runConfigLock(args []string) int {
	fs := flag.NewFlagSet("lock", flag.ContinueOnError)
	configDir := fs.String("config-dir", "", "Path to configuration directory")
	dryRun := fs.Bool("dry-run", false, "Compute hashes without writing .checksums")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	dir := *configDir
	if dir == "" {
		discovered, err := config.DiscoverConfigDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
			return 1
		}
		dir = discovered
	}

	fragments := []string{config.SettingsFilename, config.RecipesFilename}
	report, err := config.GenerateChecksumsWithReport(dir, fragments, *dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	for _, f := range report.Files {
		if !f.Exists {
			fmt.Printf("skipped %s (not present)\n", f.Filename)
			continue
		}
		fmt.Printf("hashed  %s  %s\n", f.Filename, f.Hash)
	}
	if report.Written {
		fmt.Printf("Wrote %s\n", report.ChecksumPath)
	} else {
		fmt.Println("Dry-run: no files written")
	}
	return 0
}

// --- HISTORY ---

func runHistory(args []string) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	configDir := fs.String("config-dir", "", "Path to configuration directory")
	recipeName := fs.String("recipe", "", "Filter by recipe name")
	limit := fs.Int("limit", 20, "Maximum rows to show")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, _, err := loadConfig(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open run journal: %v\n", err)
		return 1
	}
	defer db.Close()

	journal := storage.NewJournal(db)
	var records []storage.RunRecord
	if *recipeName != "" {
		records, err = journal.RecentByRecipe(ctx, *recipeName, *limit)
	} else {
		records, err = journal.Recent(ctx, *limit)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read run journal: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(records, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	if len(records) == 0 {
		fmt.Println("No runs recorded yet.")
		return 0
	}
	for _, rec := range records {
		fmt.Printf("%s  %-10s  exit=%d  %6dms  %s\n",
			rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
			rec.Status, rec.ExitCode, rec.DurationMS, rec.Recipe)
	}
	return 0
}

// --- SERVE ---

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configDir := fs.String("config-dir", "", "Path to configuration directory")
	listen := fs.String("listen", "", "Listen address (overrides api.listen)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, registry, _, err := loadConfigAndRegistry(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("rilldev serve starting", "version", version, "package", cfg.Package.Name)

	addr := cfg.API.Listen
	if *listen != "" {
		addr = *listen
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		logger.Error("failed to open run journal", "path", cfg.State.Path, "error", err)
		return 1
	}
	defer db.Close()

	server := api.New(api.Config{
		Listen:      addr,
		PackageName: cfg.Package.Name,
	}, registry, storage.NewJournal(db), log.WithComponent("api"))

	if err := server.Start(ctx); err != nil && err != context.Canceled {
		logger.Error("status API failed", "error", err)
		return 1
	}

	logger.Info("rilldev serve stopped")
	return 0
}

// --- PICK ---

func runPick(args []string) int {
	fs := flag.NewFlagSet("pick", flag.ContinueOnError)
	configDir := fs.String("config-dir", "", "Path to configuration directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, registry, baseDir, err := loadConfigAndRegistry(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if registry.Len() == 0 {
		fmt.Fprintln(os.Stderr, "No recipes defined.")
		return 1
	}

	picker := tui.NewPicker(cfg.Package.Name, registry)
	p := tea.NewProgram(picker, tea.WithAltScreen())
	model, err := p.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}

	final, ok := model.(*tui.Picker)
	if !ok || final.Choice() == nil {
		return 0
	}
	return executeRecipe(cfg, baseDir, final.Choice())
}

// --- VERSION ---

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("rilldev %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}

	resolvedCommit := strings.TrimSpace(gitCommit)
	if resolvedCommit == "" || resolvedCommit == "unknown" {
		resolvedCommit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if resolvedCommit != "" {
		if len(resolvedCommit) > 12 {
			resolvedCommit = resolvedCommit[:12]
		}
		info.Commit = resolvedCommit
	}

	resolvedBuildTime := strings.TrimSpace(buildDate)
	if resolvedBuildTime == "" || resolvedBuildTime == "unknown" {
		resolvedBuildTime = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if t, err := time.Parse(time.RFC3339Nano, resolvedBuildTime); err == nil {
		info.BuildTime = t.UTC().Format(time.RFC3339)
	}

	return info
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

// --- HELPERS ---

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}
