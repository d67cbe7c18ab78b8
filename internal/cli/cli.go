package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pfrederiksen/pydocs/internal/config"
	"github.com/pfrederiksen/pydocs/internal/fetcher"
	"github.com/pfrederiksen/pydocs/internal/httpcache"
	"github.com/pfrederiksen/pydocs/internal/logger"
	"github.com/pfrederiksen/pydocs/internal/output"
	"github.com/pfrederiksen/pydocs/internal/parser"
	"github.com/pfrederiksen/pydocs/internal/storage"
	"github.com/spf13/cobra"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

type flags struct {
	clearCache bool
	output     string
	baseDir    string
	cacheDir   string
	configPath string
	logFormat  string
	verbose    bool
	noProgress bool
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	return newRootCmd(&flags{})
}

func newRootCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pydocs <mode>",
		Short: "Scrape the Python documentation and PEP index",
		Long: `A CLI tool that scrapes docs.python.org and peps.python.org.

Modes:
  whats-new        list every "What's New" article with its editors
  latest-versions  list documentation versions and their status
  download         save the A4 PDF documentation archive under downloads/
  pep              count PEPs per status and report index/page disagreements`,
		Args:          cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs:     parser.Modes(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0], f)
		},
	}

	// Define flags
	cmd.Flags().BoolVarP(&f.clearCache, "clear-cache", "c", false, "Clear the response cache before fetching")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output mode: pretty, file, markdown, json or pager (default: plain)")
	cmd.Flags().StringVar(&f.baseDir, "base-dir", ".", "Base directory for downloads/ and results/")
	cmd.Flags().StringVar(&f.cacheDir, "cache-dir", config.XDGCacheDir(), "Directory holding the response cache")
	cmd.Flags().StringVar(&f.configPath, "config", "", "YAML config file")
	cmd.Flags().StringVar(&f.logFormat, "log-format", "text", "Log format: text or json")
	cmd.Flags().BoolVar(&f.verbose, "verbose", false, "Enable verbose logging")
	cmd.Flags().BoolVar(&f.noProgress, "no-progress", false, "Disable progress bars")

	return cmd
}

// buildConfig layers defaults, the config file and explicitly set flags.
func buildConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		if err := config.Load(cfg, f.configPath); err != nil {
			return nil, err
		}
	}

	changed := cmd.Flags().Changed
	if changed("output") {
		cfg.Output = strings.ToLower(strings.TrimSpace(f.output))
	}
	if changed("base-dir") {
		cfg.BaseDir = f.baseDir
	}
	if changed("cache-dir") {
		cfg.CacheDir = f.cacheDir
	}
	if changed("log-format") {
		cfg.LogFormat = strings.ToLower(f.logFormat)
	}
	if f.verbose {
		cfg.Verbose = true
	}
	cfg.ClearCache = f.clearCache
	cfg.Progress = !f.noProgress

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) *logger.Logger {
	level := logger.LevelInfo
	if cfg.Verbose {
		level = logger.LevelDebug
	}
	if cfg.LogFormat == "json" {
		return logger.New(level, w)
	}
	color := w == io.Writer(os.Stderr) && os.Getenv("NO_COLOR") == ""
	return logger.NewConsole(level, w, color)
}

// run is the main command logic
func run(cmd *cobra.Command, mode string, f *flags) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	stderr := cmd.ErrOrStderr()

	cfg, err := buildConfig(cmd, f)
	if err != nil {
		return err
	}

	log := newLogger(cfg, stderr)
	prevLogger := logger.Default()
	logger.SetDefault(log)
	defer logger.SetDefault(prevLogger)

	metrics := logger.NewMetrics()
	start := time.Now()

	log.Info("parser started", nil)
	log.Info("command line arguments", logger.Fields{
		"mode":        mode,
		"output":      cfg.Output,
		"clear_cache": cfg.ClearCache,
		"base_dir":    cfg.BaseDir,
		"cache_dir":   cfg.CacheDir,
	})

	cache, err := httpcache.OpenSQLite(cfg.CachePath())
	if err != nil {
		log.Error("opening response cache failed", logger.Fields{"path": cfg.CachePath()}, err)
		return err
	}
	defer cache.Close()

	fetch := fetcher.New(cache,
		fetcher.WithLogger(log),
		fetcher.WithMetrics(metrics),
		fetcher.WithTimeout(cfg.Timeout),
		fetcher.WithUserAgent(cfg.UserAgent),
	)
	if cfg.ClearCache {
		if err := fetch.ClearCache(ctx); err != nil {
			log.Error("clearing response cache failed", nil, err)
			return err
		}
	}

	store, err := storage.New(cfg.BaseDir)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	opts := []parser.Option{parser.WithLogger(log), parser.WithMetrics(metrics)}
	if cfg.Progress {
		opts = append(opts, parser.WithProgress(stderr))
	}
	p := parser.New(fetch, cfg, store, opts...)

	results, err := p.Run(ctx, mode)
	if err != nil {
		log.Error("parser aborted", logger.Fields{"mode": mode}, err)
		return err
	}

	out := output.New(cfg, store, output.WithStdout(cmd.OutOrStdout()), output.WithLogger(log))
	if err := out.Write(mode, results); err != nil {
		log.Error("writing results failed", logger.Fields{"output": cfg.Output}, err)
		return err
	}

	metrics.RecordTiming("run", time.Since(start))
	if cfg.Verbose {
		log.Debug("run metrics", metrics.Fields())
	}
	log.Info("parser finished", nil)
	return nil
}

// Execute runs the CLI and returns the process exit code
func Execute(ctx context.Context) int {
	return execute(ctx, NewRootCmd(), os.Args[1:])
}

func execute(ctx context.Context, cmd *cobra.Command, args []string) int {
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return ExitError
	}
	return ExitSuccess
}
