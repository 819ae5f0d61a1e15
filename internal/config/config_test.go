package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("JOBPREP_CONFIG_DIR", dir)
	for _, k := range []string{
		"JOBPREP_GEMINI_API_KEY", "JOBPREP_GEMINI_MODEL", "JOBPREP_GEMINI_BASE_URL",
		"JOBPREP_GOOGLE_CLIENT_ID", "JOBPREP_GOOGLE_CLIENT_SECRET", "JOBPREP_DRIVE_FOLDER_ID",
		"JOBPREP_HTTP_TIMEOUT", "JOBPREP_DEBUG",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, cfg.Gemini.Model)
	assert.Equal(t, DefaultGeminiURL, cfg.Gemini.BaseURL)
	assert.Equal(t, DefaultUserinfoURL, cfg.Google.UserinfoURL)
	assert.Equal(t, DefaultHTTPTimeout, cfg.HTTP.Timeout)
	assert.Empty(t, cfg.Gemini.APIKey)
	assert.False(t, cfg.Debug)
	assert.False(t, cfg.OAuthConfigured())
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("JOBPREP_GEMINI_API_KEY", "  env-key  ")
	t.Setenv("JOBPREP_GEMINI_BASE_URL", "http://localhost:9999/")
	t.Setenv("JOBPREP_HTTP_TIMEOUT", "5s")
	t.Setenv("JOBPREP_GOOGLE_CLIENT_ID", "id")
	t.Setenv("JOBPREP_GOOGLE_CLIENT_SECRET", "secret")

	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Gemini.APIKey)
	assert.Equal(t, "http://localhost:9999", cfg.Gemini.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.HTTP.Timeout)
	assert.True(t, cfg.OAuthConfigured())
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := isolate(t)
	yaml := "gemini:\n  model: gemini-2.0-flash\ndrive:\n  folder_id: folder-123\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.0-flash", cfg.Gemini.Model)
	assert.Equal(t, "folder-123", cfg.Drive.FolderID)
}

func TestLoad_FlagsWinOverEnv(t *testing.T) {
	isolate(t)
	t.Setenv("JOBPREP_GEMINI_MODEL", "from-env")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("model", "", "")
	fs.String("api-key", "", "")
	require.NoError(t, fs.Parse([]string{"--model", "from-flag", "--api-key", "flag-key"}))

	v := New()
	require.NoError(t, BindFlags(v, fs))

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.Gemini.Model)
	assert.Equal(t, "flag-key", cfg.Gemini.APIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"valid", func(c *Config) {}, ""},
		{"empty model", func(c *Config) { c.Gemini.Model = "" }, "gemini.model is required"},
		{"bad base url", func(c *Config) { c.Gemini.BaseURL = "not a url" }, "gemini.base_url"},
		{"zero timeout", func(c *Config) { c.HTTP.Timeout = 0 }, "http.timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{
				Gemini: GeminiConfig{Model: DefaultModel, BaseURL: DefaultGeminiURL},
				HTTP:   HTTPConfig{Timeout: time.Second},
			}
			tt.mutate(c)
			err := c.Validate()
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestDir_Resolution(t *testing.T) {
	t.Setenv("JOBPREP_CONFIG_DIR", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	assert.Equal(t, filepath.Join("/xdg", "jobprep"), Dir())

	t.Setenv("JOBPREP_CONFIG_DIR", "/explicit")
	assert.Equal(t, "/explicit", Dir())
}
