package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// HiveDirName is the data hive folder created under the user's home directory
const HiveDirName = "DataHive"

// Paths contains the resolved directories used by pipelines
type Paths struct {
	HiveRoot    string
	ProjectRoot string
	CacheDir    string
	LogsDir     string
}

// DefaultHiveRoot returns $HOME/DataHive
func DefaultHiveRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, HiveDirName), nil
}

// GetPaths resolves the storage settings of cfg into absolute paths
func GetPaths(cfg *Config) (*Paths, error) {
	hive := cfg.Storage.HiveRoot
	if hive == "" {
		var err error
		if hive, err = DefaultHiveRoot(); err != nil {
			return nil, err
		}
	}
	hive, err := filepath.Abs(hive)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve hive root: %w", err)
	}

	project := cfg.Storage.ProjectRoot
	if project == "" {
		if project, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
	}
	if project, err = filepath.Abs(project); err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	cache := cfg.Storage.CacheDir
	if cache == "" {
		cache = "cache"
	}
	if !filepath.IsAbs(cache) {
		cache = filepath.Join(hive, cache)
	}

	logs := filepath.Dir(cfg.Logging.FilePath)
	if !filepath.IsAbs(logs) {
		logs = filepath.Join(project, logs)
	}

	return &Paths{
		HiveRoot:    hive,
		ProjectRoot: project,
		CacheDir:    cache,
		LogsDir:     logs,
	}, nil
}

// EnsureDirectories creates the hive root and cache directory
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.HiveRoot, p.CacheDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// GetCachePath returns a path inside the cache directory
func (p *Paths) GetCachePath(filename string) string {
	return filepath.Join(p.CacheDir, filename)
}

// LogPathResolution logs the resolved paths at debug level
func (p *Paths) LogPathResolution() {
	slog.Debug("Resolved paths",
		slog.String("hive_root", p.HiveRoot),
		slog.String("project_root", p.ProjectRoot),
		slog.String("cache_dir", p.CacheDir),
		slog.String("logs_dir", p.LogsDir))
}
