package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/kernel/jobprep/internal/auth"
	"github.com/kernel/jobprep/internal/config"
	"github.com/kernel/jobprep/pkg/util"
)

// ConfigCmd manages the stored API key and shows effective settings.
type ConfigCmd struct {
	keys auth.Store
	// prompt reads a secret interactively when no key argument is given.
	prompt func(label string) (string, error)
}

type ConfigSetKeyInput struct {
	Key string
}

type ConfigShowInput struct {
	Config *config.Config
	Output string
}

type configView struct {
	Model          string `json:"model"`
	BaseURL        string `json:"base_url"`
	APIKey         string `json:"api_key"`
	APIKeySource   string `json:"api_key_source"`
	OAuthClient    bool   `json:"oauth_client_configured"`
	DriveFolderID  string `json:"drive_folder_id,omitempty"`
	ConfigDir      string `json:"config_dir"`
	RequestTimeout string `json:"http_timeout"`
}

func (c ConfigCmd) SetKey(in ConfigSetKeyInput) error {
	key := strings.TrimSpace(in.Key)
	if key == "" && c.prompt != nil {
		entered, err := c.prompt("Gemini API key")
		if err != nil {
			return err
		}
		key = strings.TrimSpace(entered)
	}
	if key == "" {
		return fmt.Errorf("API key cannot be empty")
	}

	if err := c.keys.Set(auth.KeyGeminiAPIKey, key); err != nil {
		return err
	}
	pterm.Success.Println("API key saved")
	return nil
}

func (c ConfigCmd) ClearKey() error {
	if err := c.keys.Delete(auth.KeyGeminiAPIKey); err != nil {
		return err
	}
	pterm.Success.Println("API key removed")
	return nil
}

func (c ConfigCmd) Show(in ConfigShowInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}

	view := configView{
		Model:          in.Config.Gemini.Model,
		BaseURL:        in.Config.Gemini.BaseURL,
		OAuthClient:    in.Config.OAuthConfigured(),
		DriveFolderID:  in.Config.Drive.FolderID,
		ConfigDir:      config.Dir(),
		RequestTimeout: in.Config.HTTP.Timeout.String(),
	}

	switch {
	case in.Config.Gemini.APIKey != "":
		view.APIKey = maskSecret(in.Config.Gemini.APIKey)
		view.APIKeySource = "flag/env/config"
	default:
		stored, err := c.keys.Get(auth.KeyGeminiAPIKey)
		switch {
		case err == nil && stored != "":
			view.APIKey = maskSecret(stored)
			view.APIKeySource = "keyring"
		case err != nil && !errors.Is(err, auth.ErrNotFound):
			pterm.Debug.Printf("Could not read keyring: %v\n", err)
			view.APIKeySource = "unavailable"
		default:
			view.APIKeySource = "not set"
		}
	}

	if in.Output == "json" {
		return util.PrintPrettyJSON(view)
	}

	PrintTableNoPad(pterm.TableData{
		{"Setting", "Value"},
		{"Model", view.Model},
		{"Gemini URL", view.BaseURL},
		{"API Key", util.OrDash(view.APIKey)},
		{"API Key Source", view.APIKeySource},
		{"Google OAuth Client", fmt.Sprintf("%t", view.OAuthClient)},
		{"Drive Folder", util.OrDash(view.DriveFolderID)},
		{"Page Timeout", view.RequestTimeout},
		{"Config Dir", view.ConfigDir},
	}, true)
	return nil
}

// maskSecret keeps the last four characters of s.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", 8) + s[len(s)-4:]
}

// --- Cobra wiring ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the Gemini API key and view settings",
}

var configSetKeyCmd = &cobra.Command{
	Use:   "set-key [key]",
	Short: "Store the Gemini API key in the OS keyring",
	Long:  "Store the Gemini API key in the OS keyring. Without an argument the key is read from a masked prompt.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigSetKey,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configClearKeyCmd = &cobra.Command{
	Use:   "clear-key",
	Short: "Remove the stored Gemini API key",
	Args:  cobra.NoArgs,
	RunE:  runConfigClearKey,
}

func init() {
	configShowCmd.Flags().StringP("output", "o", "", "Output format: json")

	configCmd.AddCommand(configSetKeyCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configClearKeyCmd)

	rootCmd.AddCommand(configCmd)
}

func runConfigSetKey(cmd *cobra.Command, args []string) error {
	var key string
	if len(args) > 0 {
		key = args[0]
	}
	c := ConfigCmd{keys: auth.NewKeyringStore(), prompt: promptSecret}
	return c.SetKey(ConfigSetKeyInput{Key: key})
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	c := ConfigCmd{keys: auth.NewKeyringStore()}
	return c.Show(ConfigShowInput{Config: getConfig(cmd), Output: output})
}

func runConfigClearKey(cmd *cobra.Command, args []string) error {
	c := ConfigCmd{keys: auth.NewKeyringStore()}
	return c.ClearKey()
}

func promptSecret(label string) (string, error) {
	return pterm.DefaultInteractiveTextInput.WithMask("*").Show(label)
}
