// Package config resolves jobprep settings from flags, environment, an optional
// .env file, and ~/.config/jobprep/config.yaml, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	appName   = "jobprep"
	envPrefix = "JOBPREP"

	DefaultModel       = "gemini-1.5-flash"
	DefaultGeminiURL   = "https://generativelanguage.googleapis.com"
	DefaultUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	DefaultHTTPTimeout = 60 * time.Second
)

type Config struct {
	Gemini GeminiConfig
	Google GoogleConfig
	Drive  DriveConfig
	HTTP   HTTPConfig
	Debug  bool
}

type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// GoogleConfig holds the OAuth client used for Drive sign-in.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	UserinfoURL  string
}

type DriveConfig struct {
	FolderID string
}

type HTTPConfig struct {
	// Timeout bounds page downloads. Suggestion requests are bounded by the
	// command context instead.
	Timeout time.Duration
}

// Dir returns the config directory.
// Resolution order: $JOBPREP_CONFIG_DIR > $XDG_CONFIG_HOME/jobprep > ~/.config/jobprep
func Dir() string {
	if dir := os.Getenv(envPrefix + "_CONFIG_DIR"); dir != "" {
		return dir
	}
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), appName+"-config")
	}
	return filepath.Join(home, ".config", appName)
}

// New returns a viper instance with defaults, env binding and the config
// file search path applied. Flags are bound separately with BindFlags.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(Dir())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("gemini.model", DefaultModel)
	v.SetDefault("gemini.base_url", DefaultGeminiURL)
	v.SetDefault("google.userinfo_url", DefaultUserinfoURL)
	v.SetDefault("http.timeout", DefaultHTTPTimeout)
	v.SetDefault("debug", false)
	return v
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"api-key": "gemini.api_key",
	"model":   "gemini.model",
	"folder":  "drive.folder_id",
	"debug":   "debug",
}

// BindFlags binds whichever of the known flags exist in fs.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}
	return nil
}

// Load reads .env (if present) and the config file (if present) into v and
// returns the validated result.
func Load(v *viper.Viper) (*Config, error) {
	// A missing .env is normal; only a malformed one is worth reporting.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		Gemini: GeminiConfig{
			APIKey:  strings.TrimSpace(v.GetString("gemini.api_key")),
			Model:   v.GetString("gemini.model"),
			BaseURL: strings.TrimRight(v.GetString("gemini.base_url"), "/"),
		},
		Google: GoogleConfig{
			ClientID:     v.GetString("google.client_id"),
			ClientSecret: v.GetString("google.client_secret"),
			UserinfoURL:  v.GetString("google.userinfo_url"),
		},
		Drive: DriveConfig{
			FolderID: v.GetString("drive.folder_id"),
		},
		HTTP: HTTPConfig{
			Timeout: v.GetDuration("http.timeout"),
		},
		Debug: v.GetBool("debug"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Gemini.Model == "" {
		return fmt.Errorf("gemini.model is required")
	}
	u, err := url.Parse(c.Gemini.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("gemini.base_url is not a valid URL: %q", c.Gemini.BaseURL)
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be positive")
	}
	return nil
}

// OAuthConfigured reports whether a Google OAuth client is available.
func (c *Config) OAuthConfigured() bool {
	return c.Google.ClientID != "" && c.Google.ClientSecret != ""
}
