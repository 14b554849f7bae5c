package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/blockpatch/blockpatch/internal/collect"
	"github.com/blockpatch/blockpatch/internal/config"
	"github.com/blockpatch/blockpatch/internal/history"
	"github.com/blockpatch/blockpatch/internal/llm"
	"github.com/blockpatch/blockpatch/internal/logging"
	"github.com/blockpatch/blockpatch/internal/runner"
	"github.com/blockpatch/blockpatch/internal/source"
	"github.com/blockpatch/blockpatch/internal/ui"
	"github.com/blockpatch/blockpatch/internal/workspace"
)

// Version info set by ldflags at build time
var (
	version    = "dev"
	commitHash = "dev"
	commitDate = "unknown"
)

type cliOptions struct {
	configPath  string
	workspace   string
	input       string
	model       string
	baseURL     string
	logPath     string
	parallel    int
	yes         bool
	preview     bool
	interactive bool
	useLLM      bool
	revert      bool
	listRuns    bool
	quiet       bool
	jsonOutput  bool
	showVersion bool
}

func parseFlags() (*cliOptions, []string, error) {
	opts := &cliOptions{}

	pflag.StringVarP(&opts.configPath, "config", "c", "", "Path to the config file (default: blockpatch.yaml, then the user config dir).")
	pflag.StringVarP(&opts.workspace, "workspace", "w", "", "Workspace root the patches apply in (default: current directory).")
	pflag.StringVarP(&opts.input, "input", "i", "", "Read the suggestion from this file instead of stdin or the clipboard.")
	pflag.BoolVarP(&opts.yes, "yes", "y", false, "Apply every matching patch without asking.")
	pflag.BoolVarP(&opts.preview, "preview", "n", false, "Show the diffs and change nothing.")
	pflag.BoolVar(&opts.interactive, "interactive", false, "Review each diff in a full-screen viewer.")
	pflag.BoolVar(&opts.useLLM, "llm", false, "Ask the configured model to regenerate patches that did not match.")
	pflag.BoolVar(&opts.revert, "revert", false, "Undo the most recent run and exit.")
	pflag.BoolVar(&opts.listRuns, "runs", false, "List the undo history and exit.")
	pflag.BoolVarP(&opts.quiet, "quiet", "q", false, "Only print the final summary.")
	pflag.BoolVar(&opts.jsonOutput, "json", false, "Print a JSON report instead of formatted text.")
	pflag.StringVar(&opts.logPath, "log", "", "Log file path (overrides the config).")
	pflag.IntVar(&opts.parallel, "parallel", 0, "Number of files patched at once (overrides the config).")
	pflag.StringVar(&opts.model, "model", "", "Model name (overrides the config).")
	pflag.StringVar(&opts.baseURL, "base-url", "", "LLM endpoint URL (overrides the config).")
	pflag.BoolVar(&opts.showVersion, "version", false, "Show version information and exit.")

	pflag.Usage = func() {
		fmt.Println("Usage: blockpatch [flags] [file ...]")
		fmt.Println("\nApply AI-suggested SEARCH/REPLACE blocks to files in the workspace.")
		fmt.Println("Input comes from --input, a pipe, or the clipboard, in that order.")
		fmt.Println("Positional files bind patches whose blocks name no target.")
		fmt.Println("\nExamples:")
		fmt.Println("  pbpaste | blockpatch")
		fmt.Println("  blockpatch -i suggestion.md -y")
		fmt.Println("  blockpatch -n src/app.py")
		fmt.Println("  blockpatch --revert")
		fmt.Println("\nFlags:")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	// Validate mutually exclusive flags
	if opts.yes && opts.preview {
		return nil, nil, fmt.Errorf("--yes and --preview are mutually exclusive")
	}
	if opts.interactive && (opts.yes || opts.preview) {
		return nil, nil, fmt.Errorf("--interactive cannot be combined with --yes or --preview")
	}
	if opts.revert && opts.listRuns {
		return nil, nil, fmt.Errorf("--revert and --runs are mutually exclusive")
	}
	if opts.jsonOutput && !opts.yes && !opts.preview {
		return nil, nil, fmt.Errorf("--json needs --yes or --preview; there is no prompt in JSON mode")
	}

	return opts, pflag.Args(), nil
}

func main() {
	os.Exit(run())
}

func run() int {
	opts, files, err := parseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	if opts.showVersion {
		fmt.Printf("%s-%s-%s\n", version, commitDate, commitHash)
		return 0
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 2
	}

	writer := ui.NewWriter()
	writer.SetQuiet(opts.quiet)
	writer.SetJSONMode(opts.jsonOutput)

	logger, err := logging.New(cfg.Log.Path, cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 2
	}
	defer logger.Close()

	// Prevent concurrent instances from writing the same workspace
	lock, err := workspace.AcquireLock(cfg.Workspace.Root)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	defer lock.Release()

	hist := history.NewManager(cfg.Workspace.Root, cfg.Workspace.HistoryKeep)

	if opts.listRuns {
		return listRuns(hist)
	}
	if opts.revert {
		return revertLast(hist)
	}

	text, origin, err := source.Read(opts.input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read input: %v\n", err)
		return 2
	}
	if strings.TrimSpace(text) == "" {
		fmt.Fprintln(os.Stderr, "Input is empty; pipe or paste a suggestion containing SEARCH/REPLACE blocks.")
		return 2
	}
	writer.StartupInfo(fmt.Sprintf("blockpatch %s, %s from %s", version, ui.FormatChars(len(text)), origin))

	patches, err := collect.Extract(text)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to scan input: %v\n", err)
		return 2
	}
	if len(patches) == 0 {
		fmt.Fprintln(os.Stderr, "No SEARCH/REPLACE blocks found in the input.")
		return 2
	}

	var assist *llm.Assist
	if cfg.LLMEnabled() {
		client := llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, time.Duration(cfg.LLM.TimeoutSeconds)*time.Second)
		assist = llm.NewAssist(client, logger, cfg.LLM.Model, cfg.LLM.Temperature, cfg.LLM.MaxTokens)
	}
	if opts.useLLM && assist == nil {
		fmt.Fprintln(os.Stderr, "--llm needs llm.base_url set in the config.")
		return 2
	}

	r := runner.New(cfg, writer, logger, hist, assist)
	report, err := r.Run(context.Background(), patches, runner.Options{
		Files:       files,
		AutoApply:   opts.yes,
		PreviewOnly: opts.preview,
		Interactive: opts.interactive || cfg.Apply.Confirm == config.ConfirmInteractive,
		UseLLM:      opts.useLLM,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	return report.ExitCode()
}

// loadConfig resolves the config file, falling back to built-in defaults when
// none exists, and applies command line overrides.
func loadConfig(opts *cliOptions) (*config.Config, error) {
	cfg, err := resolveConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	if opts.workspace != "" {
		root, err := filepath.Abs(opts.workspace)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve workspace: %w", err)
		}
		cfg.Workspace.Root = root
	}
	if opts.logPath != "" {
		cfg.Log.Path = opts.logPath
	}
	if opts.parallel > 0 {
		cfg.Apply.Parallel = opts.parallel
	}
	if opts.model != "" {
		cfg.LLM.Model = opts.model
	}
	if opts.baseURL != "" {
		cfg.LLM.BaseURL = opts.baseURL
	}
	return cfg, nil
}

// resolveConfig loads an explicitly named config, else the conventional
// location if a file is there, else built-in defaults.
func resolveConfig(explicit string) (*config.Config, error) {
	if explicit != "" {
		return config.Load(explicit)
	}
	if path := config.DefaultPath(); path != "" {
		if _, err := os.Stat(path); err == nil {
			return config.Load(path)
		}
	}
	return config.Default()
}

func listRuns(hist *history.Manager) int {
	runs, err := hist.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list runs: %v\n", err)
		return 2
	}
	if len(runs) == 0 {
		fmt.Println("No undo history.")
		return 0
	}

	fmt.Printf("%-36s  %-20s  %s\n", "RUN", "CREATED", "FILES")
	fmt.Println(strings.Repeat("-", 70))
	for _, run := range runs {
		fmt.Printf("%-36s  %-20s  %d\n", run.ID, run.CreatedAt.Local().Format("2006-01-02 15:04:05"), len(run.Files))
	}
	return 0
}

func revertLast(hist *history.Manager) int {
	run, err := hist.Revert()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to revert: %v\n", err)
		return 2
	}
	for _, f := range run.Files {
		fmt.Printf("restored  %s\n", f.Path)
	}
	fmt.Printf("Reverted run %s (%s)\n", run.ID, ui.Pluralize(len(run.Files), "file"))
	return 0
}
