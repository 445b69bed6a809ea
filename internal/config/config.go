package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Backend describes the annotation job backend the viewer reads from.
type Backend struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	// TrackingJobs lists job names whose feature queries also request tracked boxes.
	TrackingJobs []string `toml:"tracking_jobs"`
	// FeatureTypes maps job names to a feature type when the backend omits one.
	FeatureTypes map[string]string `toml:"feature_types"`
}

// Viewer contains frame fetching and drawing settings.
type Viewer struct {
	RequestRadius       int      `toml:"request_radius"`
	Stride              int      `toml:"stride"`
	Category            int      `toml:"category"`
	Threshold           float64  `toml:"threshold"`
	DebounceMillis      int      `toml:"debounce_ms"`
	TickWidth           int      `toml:"tick_width"`
	PlotHeight          int      `toml:"plot_height"`
	JumpFrame           int      `toml:"jump_frame"`
	FetchAllGaps        bool     `toml:"fetch_all_gaps"`
	PrefetchPlots       bool     `toml:"prefetch_plots"`
	PrefetchConcurrency int      `toml:"prefetch_concurrency"`
	BaseOnlyJobs        []string `toml:"base_only_jobs"`
	LabelsPath          string   `toml:"labels_path"`
	ViewWidth           int      `toml:"view_width"`
	ViewHeight          int      `toml:"view_height"`
}

// Server contains viewer host settings.
type Server struct {
	Bind     string `toml:"bind"`
	StateDir string `toml:"state_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for scanviewer.
//
// Configuration sections:
//   - Backend: annotation backend location and job naming rules
//   - Viewer: range fetch, timeline and overlay settings
//   - Server: viewer host bind address and state directory
//   - Logging: log format and level
type Config struct {
	Backend Backend `toml:"backend"`
	Viewer  Viewer  `toml:"viewer"`
	Server  Server  `toml:"server"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/scanviewer/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scanviewer.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the server state directory.
func (c *Config) EnsureDirectories() error {
	if strings.TrimSpace(c.Server.StateDir) == "" {
		return nil
	}
	if err := os.MkdirAll(c.Server.StateDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Server.StateDir, err)
	}
	return nil
}

// BackendTimeout returns the per-request backend timeout.
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// Debounce returns the pointer debounce window.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Viewer.DebounceMillis) * time.Millisecond
}

// IsTrackingJob reports whether the named job also produces tracked boxes.
func (c *Config) IsTrackingJob(name string) bool {
	return containsName(c.Backend.TrackingJobs, name)
}

// IsBaseOnlyJob reports whether the named job draws only its base channel.
func (c *Config) IsBaseOnlyJob(name string) bool {
	return containsName(c.Viewer.BaseOnlyJobs, name)
}

// FeatureTypeFor returns the configured feature type for a job name, or "".
func (c *Config) FeatureTypeFor(name string) string {
	if c.Backend.FeatureTypes == nil {
		return ""
	}
	return c.Backend.FeatureTypes[strings.TrimSpace(name)]
}

func containsName(names []string, name string) bool {
	name = strings.TrimSpace(name)
	for _, candidate := range names {
		if candidate == name {
			return true
		}
	}
	return false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
