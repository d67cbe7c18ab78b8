package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pfrederiksen/pydocs/internal/config"
)

// TimestampLayout formats the time component of result file names.
const TimestampLayout = "2006-01-02_15-04-05"

var ErrInvalidName = errors.New("invalid file name")

// Storage handles the downloads/ and results/ directories under a base directory
type Storage struct {
	baseDir string
}

// New creates a new Storage rooted at baseDir. The directory itself is not
// created until something is written.
func New(baseDir string) (*Storage, error) {
	// Expand ~ to home directory
	if strings.HasPrefix(baseDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		baseDir = filepath.Join(home, baseDir[2:])
	}
	if baseDir == "" {
		baseDir = "."
	}

	return &Storage{
		baseDir: baseDir,
	}, nil
}

// BaseDir returns the root directory.
func (s *Storage) BaseDir() string {
	return s.baseDir
}

// DownloadsDir returns <base>/downloads.
func (s *Storage) DownloadsDir() string {
	return filepath.Join(s.baseDir, config.DownloadsDir)
}

// ResultsDir returns <base>/results.
func (s *Storage) ResultsDir() string {
	return filepath.Join(s.baseDir, config.ResultsDir)
}

// SaveDownload writes data to downloads/name and returns the full path.
// An existing file with the same name is overwritten.
func (s *Storage) SaveDownload(name string, data []byte) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}

	dir := s.DownloadsDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating downloads directory: %w", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing archive: %w", err)
	}
	return path, nil
}

// ResultsPath returns results/<mode>_<timestamp>.csv for a run at t, creating
// the results directory.
func (s *Storage) ResultsPath(mode string, t time.Time) (string, error) {
	if err := checkName(mode); err != nil {
		return "", err
	}

	dir := s.ResultsDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating results directory: %w", err)
	}

	return filepath.Join(dir, fmt.Sprintf("%s_%s.csv", mode, t.Format(TimestampLayout))), nil
}

// CreateResult opens a fresh results file for writing. The caller closes it.
func (s *Storage) CreateResult(mode string, t time.Time) (*os.File, error) {
	path, err := s.ResultsPath(mode, t)
	if err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating results file: %w", err)
	}
	return f, nil
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
