package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"github.com/kernel/jobprep/internal/auth"
	"github.com/kernel/jobprep/internal/drive"
	"github.com/kernel/jobprep/pkg/util"
)

var errNotSignedIn = errors.New("please sign in to Google Drive first: run 'jobprep login'")

// DriveSaver stores a URL in Drive.
type DriveSaver interface {
	Save(ctx context.Context, rawURL string, in drive.SaveOptions) (*drive.SavedFile, error)
}

// SaveCmd saves listings to Google Drive independent of cobra.
type SaveCmd struct {
	sessions SessionService
	newSaver func(ctx context.Context, sess *auth.Session) (DriveSaver, error)
}

type SaveInput struct {
	URL      string
	FolderID string
	Markdown bool
	Output   string
}

func (c SaveCmd) Run(ctx context.Context, in SaveInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}

	sess, err := c.sessions.Resume(ctx)
	if errors.Is(err, auth.ErrNotSignedIn) || errors.Is(err, auth.ErrSessionExpired) {
		pterm.Debug.Printf("No usable session: %v\n", err)
		return errNotSignedIn
	}
	if err != nil {
		return err
	}

	saver, err := c.newSaver(ctx, sess)
	if err != nil {
		return err
	}

	var spinner *pterm.SpinnerPrinter
	if in.Output == "" {
		spinner, _ = pterm.DefaultSpinner.Start(fmt.Sprintf("Saving %s to Google Drive...", in.URL))
	}
	f, err := saver.Save(ctx, in.URL, drive.SaveOptions{FolderID: in.FolderID, Markdown: in.Markdown})
	if err != nil {
		var cleaned error = util.CleanedUpAPIError{Err: err}
		if in.FolderID != "" && util.IsNotFound(err) {
			cleaned = fmt.Errorf("drive folder %q not found or not shared with you (%w)", in.FolderID, cleaned)
		}
		if spinner != nil {
			spinner.Fail(fmt.Sprintf("Error saving to Google Drive: %s", cleaned.Error()))
		}
		return cleaned
	}
	if spinner != nil {
		_ = spinner.Stop()
	}

	if in.Output == "json" {
		return util.PrintPrettyJSON(f)
	}

	pterm.Success.Printf("Successfully saved %q to Google Drive!\n", f.Name)
	PrintTableNoPad(pterm.TableData{
		{"Property", "Value"},
		{"ID", f.ID},
		{"Name", f.Name},
		{"MIME Type", f.MimeType},
		{"Size", util.FormatBytes(f.Size)},
		{"Link", util.OrDash(f.WebViewLink)},
	}, true)
	return nil
}

// --- Cobra wiring ---

var saveCmd = &cobra.Command{
	Use:   "save <url>",
	Short: "Save a job listing or linked file to Google Drive",
	Long: `Save a job listing to Google Drive.

URLs that point at a document (pdf, docx, png, ...) are uploaded as-is. Any
other URL is saved as an HTML page named after its title, or as markdown with
--markdown.`,
	Args: cobra.ExactArgs(1),
	RunE: runSave,
}

func init() {
	saveCmd.Flags().StringP("output", "o", "", "Output format: json")
	saveCmd.Flags().String("folder", "", "Drive folder ID to save into")
	saveCmd.Flags().Bool("markdown", false, "Save pages as markdown instead of HTML")

	rootCmd.AddCommand(saveCmd)
}

func runSave(cmd *cobra.Command, args []string) error {
	cfg := getConfig(cmd)
	output, _ := cmd.Flags().GetString("output")
	markdown, _ := cmd.Flags().GetBool("markdown")

	authenticator := newAuthenticator(cfg)
	c := SaveCmd{
		sessions: authenticator,
		newSaver: func(ctx context.Context, sess *auth.Session) (DriveSaver, error) {
			return drive.NewSaver(ctx,
				&http.Client{Timeout: cfg.HTTP.Timeout},
				option.WithTokenSource(authenticator.TokenSource(ctx, sess)),
			)
		},
	}
	return c.Run(cmd.Context(), SaveInput{
		URL:      args[0],
		FolderID: cfg.Drive.FolderID,
		Markdown: markdown,
		Output:   output,
	})
}
