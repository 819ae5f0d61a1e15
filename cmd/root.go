package cmd

import (
	"context"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/kernel/jobprep/internal/auth"
	"github.com/kernel/jobprep/internal/config"
	"github.com/kernel/jobprep/internal/gemini"
)

var metadata = struct {
	Version string
	Commit  string
	Date    string
}{
	Version: "dev",
	Commit:  "none",
	Date:    "unknown",
}

// SetVersionInfo records build information injected by the linker.
func SetVersionInfo(version, commit, date string) {
	metadata.Version = version
	metadata.Commit = commit
	metadata.Date = date
	rootCmd.Version = version
}

type configKey struct{}

var rootCmd = &cobra.Command{
	Use:   "jobprep",
	Short: "Turn job listings into practice projects",
	Long: `jobprep reads a job listing from a URL, a file or stdin and asks Gemini for
three practice projects that exercise the skills it asks for. Listings can
also be saved to Google Drive.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Root returns the root command for main.
func Root() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "Print debug output")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	v := config.New()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	if cfg.Debug {
		pterm.EnableDebugMessages()
	}
	pterm.Debug.Printf("jobprep %s (%s, %s)\n", metadata.Version, metadata.Commit, metadata.Date)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, configKey{}, cfg))
	return nil
}

// getConfig returns the configuration loaded for cmd.
func getConfig(cmd *cobra.Command) *config.Config {
	if ctx := cmd.Context(); ctx != nil {
		if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok {
			return cfg
		}
	}
	// Commands executed without the root pre-run, as in tests.
	cfg, err := config.Load(config.New())
	if err != nil {
		pterm.Warning.Printf("Using default configuration: %v\n", err)
		return &config.Config{
			Gemini: config.GeminiConfig{Model: config.DefaultModel, BaseURL: config.DefaultGeminiURL},
			Google: config.GoogleConfig{UserinfoURL: config.DefaultUserinfoURL},
			HTTP:   config.HTTPConfig{Timeout: config.DefaultHTTPTimeout},
		}
	}
	return cfg
}

func newGeminiClient(cfg *config.Config) *gemini.Client {
	return gemini.NewClient(
		gemini.WithBaseURL(cfg.Gemini.BaseURL),
		gemini.WithModel(cfg.Gemini.Model),
	)
}

func newAuthenticator(cfg *config.Config) *auth.Authenticator {
	return auth.NewAuthenticator(
		cfg.Google.ClientID,
		cfg.Google.ClientSecret,
		auth.NewKeyringStore(),
		auth.WithUserinfoURL(cfg.Google.UserinfoURL),
	)
}
