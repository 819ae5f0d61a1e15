package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/kernel/jobprep/internal/auth"
	"github.com/kernel/jobprep/pkg/util"
)

// SessionService is the subset of auth.Authenticator the commands use.
type SessionService interface {
	SignIn(ctx context.Context, in auth.SignInOptions) (*auth.Session, error)
	Resume(ctx context.Context) (*auth.Session, error)
	SignOut(ctx context.Context, sess *auth.Session) error
	Forget() error
}

// AuthCmd handles Google sign-in independent of cobra.
type AuthCmd struct {
	sessions SessionService
}

type LoginInput struct {
	NoBrowser bool
}

type WhoamiInput struct {
	Output string
}

type whoamiView struct {
	SignedIn bool       `json:"signed_in"`
	Email    string     `json:"email,omitempty"`
	Expiry   *time.Time `json:"expiry,omitempty"`
}

const loginTimeout = 5 * time.Minute

func (c AuthCmd) Login(ctx context.Context, in LoginInput) error {
	if sess, err := c.sessions.Resume(ctx); err == nil && sess.SignedIn() {
		pterm.Info.Printf("Already signed in%s\n", asEmail(sess.Email))
		return nil
	}

	sess, err := c.sessions.SignIn(ctx, auth.SignInOptions{
		NoBrowser: in.NoBrowser,
		Notify: func(authURL string, openErr error) {
			switch {
			case openErr == nil:
				pterm.Info.Println("Opening your browser to sign in to Google...")
			case errors.Is(openErr, auth.ErrBrowserSkipped):
				pterm.Info.Println("Open this URL in a browser to sign in:")
			default:
				pterm.Warning.Printf("Could not open browser: %v\n", openErr)
				pterm.Info.Println("Open this URL in a browser to sign in:")
			}
			pterm.Println(authURL)
		},
	})
	switch {
	case errors.Is(err, auth.ErrCancelled):
		pterm.Error.Println("Authentication cancelled or failed.")
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("timed out waiting for sign-in")
	case err != nil:
		return err
	}

	if sess.Email != "" {
		pterm.Success.Printf("Signed in as: %s\n", sess.Email)
	} else {
		pterm.Success.Println("Signed in to Google Drive.")
	}
	return nil
}

func (c AuthCmd) Logout(ctx context.Context) error {
	sess, err := c.sessions.Resume(ctx)
	if errors.Is(err, auth.ErrNotSignedIn) {
		pterm.Info.Println("Not signed in")
		return nil
	}
	if err != nil {
		// The token cannot be refreshed or read, so there is nothing to revoke.
		pterm.Debug.Printf("Could not resume session: %v\n", err)
		if err := c.sessions.Forget(); err != nil {
			return err
		}
		pterm.Success.Println("Signed out")
		return nil
	}

	if err := c.sessions.SignOut(ctx, sess); err != nil {
		return err
	}
	pterm.Success.Println("Signed out")
	return nil
}

func (c AuthCmd) Whoami(ctx context.Context, in WhoamiInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}

	sess, err := c.sessions.Resume(ctx)
	if err != nil && !errors.Is(err, auth.ErrNotSignedIn) && !errors.Is(err, auth.ErrSessionExpired) {
		return util.CleanedUpAPIError{Err: err}
	}

	view := whoamiView{}
	if err == nil && sess.SignedIn() {
		view.SignedIn = true
		view.Email = sess.Email
		if !sess.Token.Expiry.IsZero() {
			expiry := sess.Token.Expiry
			view.Expiry = &expiry
		}
	}

	if in.Output == "json" {
		return util.PrintPrettyJSON(view)
	}

	if !view.SignedIn {
		if errors.Is(err, auth.ErrSessionExpired) {
			pterm.Warning.Println("Session expired. Run 'jobprep login' to sign in again.")
		} else {
			pterm.Info.Println("Not signed in. Run 'jobprep login' to save listings to Google Drive.")
		}
		return nil
	}

	var expiry string
	if view.Expiry != nil {
		expiry = util.FormatLocal(*view.Expiry)
	}
	PrintTableNoPad(pterm.TableData{
		{"Property", "Value"},
		{"Email", util.OrDash(view.Email)},
		{"Token Expires", util.OrDash(expiry)},
	}, true)
	return nil
}

func asEmail(email string) string {
	if email == "" {
		return ""
	}
	return " as " + email
}

// --- Cobra wiring ---

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to Google to save listings to Drive",
	Args:  cobra.NoArgs,
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the Google session and forget it",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in Google account",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

func init() {
	loginCmd.Flags().Bool("no-browser", false, "Print the sign-in URL instead of opening a browser")
	whoamiCmd.Flags().StringP("output", "o", "", "Output format: json")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	noBrowser, _ := cmd.Flags().GetBool("no-browser")

	ctx, cancel := context.WithTimeout(cmd.Context(), loginTimeout)
	defer cancel()

	c := AuthCmd{sessions: newAuthenticator(getConfig(cmd))}
	return c.Login(ctx, LoginInput{NoBrowser: noBrowser})
}

func runLogout(cmd *cobra.Command, args []string) error {
	c := AuthCmd{sessions: newAuthenticator(getConfig(cmd))}
	return c.Logout(cmd.Context())
}

func runWhoami(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	c := AuthCmd{sessions: newAuthenticator(getConfig(cmd))}
	return c.Whoami(cmd.Context(), WhoamiInput{Output: output})
}
