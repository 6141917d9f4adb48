package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"

	"github.com/TypeTerrors/gonfig"
	"gopkg.in/yaml.v3"
)

const (
	AppName           = "splendid"
	DefaultBackendURL = "http://localhost:8001"
	DefaultWebAddr    = ":8080"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Backend   BackendConfig   `yaml:"backend"`
	Output    OutputConfig    `yaml:"output"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Web       WebConfig       `yaml:"web"`
	Journal   JournalConfig   `yaml:"journal"`
	Batch     BatchConfig     `yaml:"batch"`
}

type BackendConfig struct {
	URL        string `yaml:"url"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

type OutputConfig struct {
	Dir         string `yaml:"dir"`
	StrictURLs  bool   `yaml:"strict_urls"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
	Preview     bool   `yaml:"preview"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type TelemetryConfig struct {
	Enabled    bool   `yaml:"enabled"`
	TraceFile  string `yaml:"trace_file"`
	MetricFile string `yaml:"metric_file"`
}

type WebConfig struct {
	Addr              string `yaml:"addr"`
	SessionSecret     string `yaml:"session_secret"`
	SecureCookies     bool   `yaml:"secure_cookies"`
	PaymentScriptURL  string `yaml:"payment_script_url"`
	IdentityScriptURL string `yaml:"identity_script_url"`
}

type JournalConfig struct {
	Path string `yaml:"path"`
}

type BatchConfig struct {
	Parallel int `yaml:"parallel"`
}

func Default() *Config {
	c := &Config{Output: OutputConfig{Preview: true}}
	c.applyDefaults()
	return c
}

// UnmarshalYAML decodes over the boolean defaults so a file that never
// mentions them keeps them on.
func (c *Config) UnmarshalYAML(n *yaml.Node) error {
	type plain Config
	p := plain{Output: OutputConfig{Preview: true}}
	if err := n.Decode(&p); err != nil {
		return err
	}
	*c = Config(p)
	return nil
}

// Load reads the YAML config at path, or the default location when path is
// empty. A missing file yields the defaults. SPLENDID_BACKEND_URL overrides
// the backend URL from the file.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		loaded, err := gonfig.Load[Config](
			gonfig.WithConfigFile(path),
			gonfig.WithDotenv(".env"),
			gonfig.WithStrict(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", path, err)
		}
		cfg = &loaded
		cfg.applyDefaults()
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
	}

	if env := os.Getenv("SPLENDID_BACKEND_URL"); env != "" {
		cfg.Backend.URL = env
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Backend.URL == "" {
		c.Backend.URL = DefaultBackendURL
	}
	if c.Backend.TimeoutSec <= 0 {
		c.Backend.TimeoutSec = 300
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "outputs"
	}
	if c.Output.MaxUploadMB <= 0 {
		c.Output.MaxUploadMB = 50
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Web.Addr == "" {
		c.Web.Addr = DefaultWebAddr
	}
	if c.Batch.Parallel <= 0 {
		c.Batch.Parallel = 1
	}
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.Backend.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: backend.url %q must be an absolute URL", ErrInvalidConfig, c.Backend.URL)
	}
	if filepath.IsAbs(c.Output.Dir) {
		return fmt.Errorf("%w: output.dir must be relative", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Output.MaxUploadMB) << 20
}

// Dir returns the platform config directory. SPLENDID_CONFIG_DIR overrides it.
func Dir() (string, error) {
	if dir := os.Getenv("SPLENDID_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", AppName), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, AppName), nil
	default:
		configHome := os.Getenv("XDG_CONFIG_HOME")
		if configHome == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configHome = filepath.Join(home, ".config")
		}
		return filepath.Join(configHome, AppName), nil
	}
}

func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}
