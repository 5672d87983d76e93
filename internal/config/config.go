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

// Server describes how to reach the generation server.
type Server struct {
	URL              string `toml:"url"`
	SocketPath       string `toml:"socket_path"`
	Namespace        string `toml:"namespace"`
	UploadPath       string `toml:"upload_path"`
	DialTimeout      int    `toml:"dial_timeout"`
	RequestTimeout   int    `toml:"request_timeout"`
	FetchConcurrency int    `toml:"fetch_concurrency"`
}

// Generation holds the slider defaults used when a submit omits a value.
type Generation struct {
	Model       string  `toml:"model"`
	TopK        int     `toml:"top_k"`
	TopP        float64 `toml:"top_p"`
	Temperature float64 `toml:"temperature"`
	CFGCoef     float64 `toml:"cfg_coef"`
	Duration    int     `toml:"duration"`
}

// Advanced holds advanced panel defaults. Enabled opens the panel by default.
type Advanced struct {
	Enabled            bool    `toml:"enabled"`
	TwoStepCFG         bool    `toml:"two_step_cfg"`
	SeedFixed          bool    `toml:"seed_fixed"`
	Seed               int     `toml:"seed"`
	LoudnessHeadroomDB float64 `toml:"loudness_headroom_db"`
	FadeMS             int     `toml:"fade_ms"`
	Resample44k        bool    `toml:"resample_44k"`
}

// Display controls status bar timing and terminal colour.
type Display struct {
	FinishedRevertMS int     `toml:"finished_revert_ms"`
	StartedPercent   float64 `toml:"started_percent"`
	Color            string  `toml:"color"`
}

// Paths contains local directories.
type Paths struct {
	StateDir    string `toml:"state_dir"`
	DownloadDir string `toml:"download_dir"`
}

// Notifications configures ntfy delivery of finished and failed generations.
// An empty topic disables notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for audiogen.
//
// Configuration sections:
//   - Server: base URL, Socket.IO path and namespace, upload route, timeouts
//   - Generation: default model and slider values
//   - Advanced: advanced panel defaults
//   - Display: finished-to-idle delay, started percent, colour mode
//   - Paths: state directory (logs, last run) and download directory
//   - Notifications: ntfy topic URL and request timeout
//   - Logging: log format and level
type Config struct {
	Server        Server        `toml:"server"`
	Generation    Generation    `toml:"generation"`
	Advanced      Advanced      `toml:"advanced"`
	Display       Display       `toml:"display"`
	Paths         Paths         `toml:"paths"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
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

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("audiogen.toml")
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

// EnsureDirectories creates the state directory. The download directory is
// created on demand by the commands that write into it.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.StateDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.StateDir, err)
	}
	return nil
}

// DialTimeout returns the socket handshake timeout.
func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.Server.DialTimeout) * time.Second
}

// RequestTimeout returns the timeout for upload and metadata requests.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeout) * time.Second
}

// FinishedRevertDelay returns how long "done" stays visible before idle.
func (c *Config) FinishedRevertDelay() time.Duration {
	return time.Duration(c.Display.FinishedRevertMS) * time.Millisecond
}

// NotificationTimeout returns the timeout for a single ntfy request.
func (c *Config) NotificationTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeout) * time.Second
}

// LogPath returns the client log file inside the state directory.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.StateDir, "audiogen.log")
}

// LastRunPath returns the file that remembers the last submitted settings.
func (c *Config) LastRunPath() string {
	return filepath.Join(c.Paths.StateDir, "last_run.json")
}

// LibraryPath returns the SQLite index of completed generations.
func (c *Config) LibraryPath() string {
	return filepath.Join(c.Paths.StateDir, "library.db")
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

// defaultSampleURL is the [server] url line shipped in the sample file.
const defaultSampleURL = `url = "http://127.0.0.1:5000"`

// Sample returns the sample configuration with [server] url set to
// serverURL, or the stock sample when serverURL is empty.
func Sample(serverURL string) (string, error) {
	serverURL = strings.TrimRight(strings.TrimSpace(serverURL), "/")
	if serverURL == "" {
		return sampleConfig, nil
	}
	check := Default()
	check.Server.URL = serverURL
	if err := check.validateServer(); err != nil {
		return "", err
	}
	return strings.Replace(sampleConfig, defaultSampleURL, fmt.Sprintf("url = %q", serverURL), 1), nil
}

// CreateSample writes the sample configuration to path. See Sample for
// serverURL.
func CreateSample(path, serverURL string) error {
	content, err := Sample(serverURL)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
