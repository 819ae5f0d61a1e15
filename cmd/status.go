package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/kernel/jobprep/internal/auth"
	"github.com/kernel/jobprep/pkg/util"
)

type statusComponent struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type statusGroup struct {
	Name       string            `json:"name"`
	Status     string            `json:"status"`
	Components []statusComponent `json:"components"`
}

type statusResponse struct {
	Status string        `json:"status"`
	Groups []statusGroup `json:"groups"`
}

const (
	statusOK            = "ok"
	statusNotConfigured = "not_configured"
	statusSignedOut     = "signed_out"
	statusExpired       = "expired"
	statusUnreachable   = "unreachable"
	statusUnknown       = "unknown"
)

// statusSeverity orders statuses from healthy to broken.
var statusSeverity = map[string]int{
	statusOK:            0,
	statusSignedOut:     1,
	statusNotConfigured: 2,
	statusExpired:       2,
	statusUnknown:       3,
	statusUnreachable:   4,
}

// StatusCmd reports whether jobprep is ready to suggest and save.
type StatusCmd struct {
	keys       auth.Store
	sessions   SessionService
	httpClient *http.Client
	geminiURL  string
	// configuredKey is the API key from flags, env or config, if any.
	configuredKey string
	oauthClient   bool
}

type StatusInput struct {
	Output string
}

func (c StatusCmd) Run(ctx context.Context, in StatusInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}

	resp := statusResponse{
		Groups: []statusGroup{
			newGroup("Gemini", c.apiKeyStatus(), c.endpointStatus(ctx)),
			newGroup("Google Drive", c.oauthClientStatus(), c.sessionStatus(ctx)),
		},
	}
	resp.Status = worstStatus(resp.Groups[0].Status, resp.Groups[1].Status)

	if in.Output == "json" {
		return util.PrintPrettyJSON(resp)
	}
	printStatus(resp)
	return nil
}

func newGroup(name string, comps ...statusComponent) statusGroup {
	g := statusGroup{Name: name, Status: statusOK, Components: comps}
	for _, comp := range comps {
		g.Status = worstStatus(g.Status, comp.Status)
	}
	return g
}

func worstStatus(a, b string) string {
	if statusSeverity[b] > statusSeverity[a] {
		return b
	}
	return a
}

func (c StatusCmd) apiKeyStatus() statusComponent {
	comp := statusComponent{Name: "API Key"}
	if c.configuredKey != "" {
		comp.Status, comp.Detail = statusOK, "from flag, env or config"
		return comp
	}
	key, err := c.keys.Get(auth.KeyGeminiAPIKey)
	switch {
	case err == nil && key != "":
		comp.Status, comp.Detail = statusOK, "from keyring"
	case err != nil && !errors.Is(err, auth.ErrNotFound):
		comp.Status, comp.Detail = statusUnknown, err.Error()
	default:
		comp.Status, comp.Detail = statusNotConfigured, "run 'jobprep config set-key'"
	}
	return comp
}

// endpointStatus treats any HTTP response as reachable. Authentication is
// not checked.
func (c StatusCmd) endpointStatus(ctx context.Context) statusComponent {
	comp := statusComponent{Name: "Endpoint", Detail: c.geminiURL}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.geminiURL, nil)
	if err != nil {
		comp.Status = statusUnknown
		return comp
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		pterm.Debug.Printf("Gemini endpoint check failed: %v\n", err)
		comp.Status = statusUnreachable
		return comp
	}
	resp.Body.Close()
	comp.Status = statusOK
	return comp
}

func (c StatusCmd) oauthClientStatus() statusComponent {
	if c.oauthClient {
		return statusComponent{Name: "OAuth Client", Status: statusOK}
	}
	return statusComponent{
		Name:   "OAuth Client",
		Status: statusNotConfigured,
		Detail: "set JOBPREP_GOOGLE_CLIENT_ID and JOBPREP_GOOGLE_CLIENT_SECRET",
	}
}

func (c StatusCmd) sessionStatus(ctx context.Context) statusComponent {
	comp := statusComponent{Name: "Session"}
	sess, err := c.sessions.Resume(ctx)
	switch {
	case err == nil && sess.SignedIn():
		comp.Status, comp.Detail = statusOK, util.OrDash(sess.Email)
	case err == nil, errors.Is(err, auth.ErrNotSignedIn):
		comp.Status, comp.Detail = statusSignedOut, "run 'jobprep login'"
	case errors.Is(err, auth.ErrSessionExpired):
		comp.Status, comp.Detail = statusExpired, "run 'jobprep login'"
	default:
		comp.Status, comp.Detail = statusUnknown, err.Error()
	}
	return comp
}

var statusDisplay = map[string]struct {
	label string
	rgb   pterm.RGB
}{
	statusOK:            {label: "OK", rgb: pterm.NewRGB(31, 163, 130)},
	statusSignedOut:     {label: "Signed Out", rgb: pterm.NewRGB(36, 99, 235)},
	statusNotConfigured: {label: "Not Configured", rgb: pterm.NewRGB(245, 158, 11)},
	statusExpired:       {label: "Expired", rgb: pterm.NewRGB(242, 85, 51)},
	statusUnreachable:   {label: "Unreachable", rgb: pterm.NewRGB(239, 68, 68)},
	statusUnknown:       {label: "Unknown", rgb: pterm.NewRGB(128, 128, 128)},
}

func getStatusDisplay(status string) (string, pterm.RGB) {
	if d, ok := statusDisplay[status]; ok {
		return d.label, d.rgb
	}
	return "Unknown", pterm.NewRGB(128, 128, 128)
}

func coloredDot(rgb pterm.RGB) string {
	return rgb.Sprint("●")
}

func printStatus(resp statusResponse) {
	label, rgb := getStatusDisplay(resp.Status)
	pterm.Println()
	pterm.Println("  " + fmt.Sprintf("jobprep Status: %s", rgb.Sprint(label)))

	for _, group := range resp.Groups {
		pterm.Println()
		pterm.Println("  " + pterm.Bold.Sprint(group.Name))
		for _, comp := range group.Components {
			compLabel, compColor := getStatusDisplay(comp.Status)
			line := fmt.Sprintf("    %s %-14s %s", coloredDot(compColor), comp.Name, compLabel)
			if comp.Detail != "" {
				line += "  " + pterm.Gray(comp.Detail)
			}
			pterm.Println(line)
		}
	}
	pterm.Println()
}

// --- Cobra wiring ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check that jobprep is ready to suggest projects and save to Drive",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringP("output", "o", "", "Output format (json)")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := getConfig(cmd)
	output, _ := cmd.Flags().GetString("output")

	c := StatusCmd{
		keys:          auth.NewKeyringStore(),
		sessions:      newAuthenticator(cfg),
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		geminiURL:     cfg.Gemini.BaseURL,
		configuredKey: cfg.Gemini.APIKey,
		oauthClient:   cfg.OAuthConfigured(),
	}
	return c.Run(cmd.Context(), StatusInput{Output: output})
}
