package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/pfrederiksen/pydocs/internal/httpcache"
	"gopkg.in/yaml.v3"
)

const (
	AppName = "pydocs"

	// MainDocURL is the root of the Python documentation.
	MainDocURL = "https://docs.python.org/3/"

	// MainPEPURL is the root of the PEP index.
	MainPEPURL = "https://peps.python.org/"

	UserAgent = "pydocs/1.0 (github.com/pfrederiksen/pydocs)"

	DefaultTimeout = 30 * time.Second

	DownloadsDir = "downloads"
	ResultsDir   = "results"
)

// Output modes understood by the output package. The empty mode prints rows to stdout.
const (
	OutputConsole  = ""
	OutputPretty   = "pretty"
	OutputFile     = "file"
	OutputMarkdown = "markdown"
	OutputJSON     = "json"
	OutputPager    = "pager"
)

var (
	ErrInvalidOutput  = errors.New("invalid output mode")
	ErrInvalidTimeout = errors.New("timeout must be positive")
	ErrRelativeRoot   = errors.New("root URL must be absolute")
	ErrInvalidFormat  = errors.New("log format must be text or json")
)

// DefaultExpectedStatus maps the one-letter preview code of the PEP index to
// the full statuses a PEP page may declare for it.
func DefaultExpectedStatus() map[string][]string {
	return map[string][]string{
		"A": {"Active", "Accepted"},
		"D": {"Deferred"},
		"F": {"Final"},
		"P": {"Provisional"},
		"R": {"Rejected"},
		"S": {"Superseded"},
		"W": {"Withdrawn"},
		"":  {"Draft", "Active"},
	}
}

// Config holds everything a run needs. It is filled from defaults, then an
// optional YAML file, then CLI flags.
type Config struct {
	DocURL    string        `yaml:"doc_url"`
	PEPURL    string        `yaml:"pep_url"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`

	// BaseDir holds the downloads/ and results/ directories.
	BaseDir  string `yaml:"base_dir"`
	CacheDir string `yaml:"cache_dir"`

	ClearCache bool   `yaml:"-"`
	Output     string `yaml:"output"`
	Pager      string `yaml:"pager"`

	LogFormat string `yaml:"log_format"`
	Verbose   bool   `yaml:"verbose"`
	Progress  bool   `yaml:"-"`

	ExpectedStatus map[string][]string `yaml:"expected_status"`
}

// Default returns the configuration used when no file or flag overrides it.
func Default() *Config {
	return &Config{
		DocURL:         MainDocURL,
		PEPURL:         MainPEPURL,
		UserAgent:      UserAgent,
		Timeout:        DefaultTimeout,
		BaseDir:        ".",
		CacheDir:       XDGCacheDir(),
		LogFormat:      "text",
		Progress:       true,
		ExpectedStatus: DefaultExpectedStatus(),
	}
}

// XDGCacheDir returns the cache directory, e.g. ~/.cache/pydocs on Linux.
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// CachePath is the SQLite file backing the response cache.
func (c *Config) CachePath() string {
	return filepath.Join(c.CacheDir, httpcache.CacheFile)
}

// Load overlays the YAML file at path onto cfg. A missing file is an error;
// callers only pass a path the user asked for.
func Load(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	merge(cfg, &file)
	return nil
}

func merge(dst, src *Config) {
	if src.DocURL != "" {
		dst.DocURL = src.DocURL
	}
	if src.PEPURL != "" {
		dst.PEPURL = src.PEPURL
	}
	if src.UserAgent != "" {
		dst.UserAgent = src.UserAgent
	}
	if src.Timeout != 0 {
		dst.Timeout = src.Timeout
	}
	if src.BaseDir != "" {
		dst.BaseDir = src.BaseDir
	}
	if src.CacheDir != "" {
		dst.CacheDir = src.CacheDir
	}
	if src.Output != "" {
		dst.Output = src.Output
	}
	if src.Pager != "" {
		dst.Pager = src.Pager
	}
	if src.LogFormat != "" {
		dst.LogFormat = src.LogFormat
	}
	if src.Verbose {
		dst.Verbose = true
	}
	if len(src.ExpectedStatus) > 0 {
		dst.ExpectedStatus = src.ExpectedStatus
	}
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	switch c.Output {
	case OutputConsole, OutputPretty, OutputFile, OutputMarkdown, OutputJSON, OutputPager:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOutput, c.Output)
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	for _, root := range []string{c.DocURL, c.PEPURL} {
		u, err := url.Parse(root)
		if err != nil || !u.IsAbs() {
			return fmt.Errorf("%w: %q", ErrRelativeRoot, root)
		}
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, c.LogFormat)
	}

	return nil
}
