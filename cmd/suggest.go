package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/kernel/jobprep/internal/auth"
	"github.com/kernel/jobprep/internal/gemini"
	"github.com/kernel/jobprep/internal/page"
	"github.com/kernel/jobprep/pkg/util"
)

// Suggester asks a model for practice projects.
type Suggester interface {
	Suggest(ctx context.Context, credential, sourceText string) (string, error)
}

// PageFetcher downloads a listing and extracts its text.
type PageFetcher interface {
	FromURL(ctx context.Context, rawURL string) (*page.Page, error)
}

// SuggestCmd handles suggestion requests independent of cobra.
type SuggestCmd struct {
	suggester Suggester
	pages     PageFetcher
	keys      auth.Store
	stdin     io.Reader
	model     string
}

type SuggestInput struct {
	URL    string
	File   string
	Text   string
	APIKey string
	Output string
	Raw    bool
}

type suggestResult struct {
	Source      string `json:"source"`
	Title       string `json:"title,omitempty"`
	Model       string `json:"model"`
	Suggestions string `json:"suggestions"`
}

var (
	projectNameHeading = regexp.MustCompile(`(?i)project name:`)
	descriptionHeading = regexp.MustCompile(`(?i)description:`)
)

func (c SuggestCmd) Run(ctx context.Context, in SuggestInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}

	sources := 0
	for _, s := range []string{in.URL, in.File, in.Text} {
		if s != "" {
			sources++
		}
	}
	if sources == 0 {
		return fmt.Errorf("provide a listing URL, --file, --text, or pipe the listing on stdin")
	}
	if sources > 1 {
		return fmt.Errorf("use only one of a URL, --file or --text")
	}

	credential := c.resolveKey(in.APIKey)
	if credential == "" {
		pterm.Error.Println("API key required. Run 'jobprep config set-key' or pass --api-key.")
		return gemini.ErrMissingCredential
	}

	interactive := in.Output == "" && !in.Raw

	var spinner *pterm.SpinnerPrinter
	if interactive {
		spinner, _ = pterm.DefaultSpinner.Start("Reading job listing...")
	}
	listing, err := c.loadListing(ctx, in)
	if err != nil {
		if spinner != nil {
			spinner.Fail(err.Error())
		}
		return err
	}
	pterm.Debug.Printf("Listing text: %d characters from %s\n", len(listing.Text), listing.URL)

	if spinner != nil {
		spinner.UpdateText("Asking Gemini for practice projects...")
	}
	text, err := c.suggester.Suggest(ctx, credential, listing.Text)
	if err != nil {
		if spinner != nil {
			spinner.Fail("Could not get suggestions")
		}
		return util.CleanedUpAPIError{Err: err}
	}
	if spinner != nil {
		_ = spinner.Stop()
	}

	if in.Output == "json" {
		return util.PrintPrettyJSON(suggestResult{
			Source:      listing.URL,
			Title:       listing.Title,
			Model:       c.model,
			Suggestions: text,
		})
	}
	if in.Raw {
		fmt.Println(text)
		return nil
	}

	if text == gemini.NoSuggestions {
		pterm.Warning.Println(text)
		return nil
	}
	if listing.Title != "" {
		pterm.Info.Printf("Practice projects for %s\n", listing.Title)
	}
	fmt.Println(emphasizeHeadings(text))
	return nil
}

// resolveKey prefers the flag, env or config value and falls back to the
// keyring. An empty result is left for the caller to report.
func (c SuggestCmd) resolveKey(explicit string) string {
	if key := strings.TrimSpace(explicit); key != "" {
		return key
	}
	if c.keys == nil {
		return ""
	}
	key, err := c.keys.Get(auth.KeyGeminiAPIKey)
	if err != nil {
		if !errors.Is(err, auth.ErrNotFound) {
			pterm.Debug.Printf("Could not read API key from keyring: %v\n", err)
		}
		return ""
	}
	return strings.TrimSpace(key)
}

func (c SuggestCmd) loadListing(ctx context.Context, in SuggestInput) (*page.Page, error) {
	switch {
	case in.Text != "":
		return &page.Page{URL: "--text", Text: in.Text}, nil
	case in.File == "-":
		return page.FromReader(c.stdin, "stdin")
	case in.File != "":
		f, err := os.Open(in.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open listing: %w", err)
		}
		defer f.Close()
		return page.FromReader(f, in.File)
	default:
		return c.pages.FromURL(ctx, in.URL)
	}
}

// emphasizeHeadings bolds the "Project Name:" and "Description:" labels and
// starts each description on its own line.
func emphasizeHeadings(text string) string {
	text = projectNameHeading.ReplaceAllStringFunc(text, func(m string) string {
		return pterm.Bold.Sprint(m)
	})
	return descriptionHeading.ReplaceAllStringFunc(text, func(m string) string {
		return "\n" + pterm.Bold.Sprint(m)
	})
}

// --- Cobra wiring ---

var suggestCmd = &cobra.Command{
	Use:   "suggest [url]",
	Short: "Suggest practice projects for a job listing",
	Long: `Suggest three practice projects, each completable within a week, based on a
job listing.

Examples:
  # From a job posting URL
  jobprep suggest https://example.com/jobs/123

  # From a saved page or text file
  jobprep suggest --file listing.html

  # From stdin
  pbpaste | jobprep suggest`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSuggest,
}

func init() {
	suggestCmd.Flags().StringP("output", "o", "", "Output format: json for a machine-readable result")
	suggestCmd.Flags().StringP("file", "f", "", "Read the listing from a file (- for stdin)")
	suggestCmd.Flags().String("text", "", "Use this text as the listing")
	suggestCmd.Flags().String("api-key", "", "Gemini API key (overrides the stored key)")
	suggestCmd.Flags().String("model", "", "Gemini model to use")
	suggestCmd.Flags().Bool("raw", false, "Print the model output without formatting")

	rootCmd.AddCommand(suggestCmd)
}

func runSuggest(cmd *cobra.Command, args []string) error {
	cfg := getConfig(cmd)
	output, _ := cmd.Flags().GetString("output")
	file, _ := cmd.Flags().GetString("file")
	text, _ := cmd.Flags().GetString("text")
	raw, _ := cmd.Flags().GetBool("raw")

	var rawURL string
	if len(args) > 0 {
		rawURL = args[0]
	}
	if rawURL == "" && file == "" && text == "" && stdinIsPiped() {
		file = "-"
	}

	c := SuggestCmd{
		suggester: newGeminiClient(cfg),
		pages:     page.NewExtractor(cfg.HTTP.Timeout),
		keys:      auth.NewKeyringStore(),
		stdin:     os.Stdin,
		model:     cfg.Gemini.Model,
	}
	return c.Run(cmd.Context(), SuggestInput{
		URL:    rawURL,
		File:   file,
		Text:   text,
		APIKey: cfg.Gemini.APIKey,
		Output: output,
		Raw:    raw,
	})
}

func stdinIsPiped() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice == 0
}
