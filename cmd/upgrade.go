package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/kernel/jobprep/pkg/update"
)

// UpgradeCmd replaces the running binary with the latest release, independent of cobra.
type UpgradeCmd struct {
	current string
	latest  func(ctx context.Context) (tag, releaseURL string, err error)
	detect  func() (update.InstallMethod, string)
	run     func(ctx context.Context, argv []string) error
}

type UpgradeInput struct {
	DryRun bool
	// Check only reports whether a newer release exists.
	Check bool
}

func (c UpgradeCmd) Run(ctx context.Context, in UpgradeInput) error {
	pterm.Info.Println("Checking for updates...")

	latestTag, releaseURL, err := c.latest(ctx)
	if err != nil {
		return fmt.Errorf("failed to check for updates: %w", err)
	}

	current := strings.TrimPrefix(c.current, "v")
	latest := strings.TrimPrefix(latestTag, "v")

	isNewer, err := update.IsNewerVersion(c.current, latestTag)
	switch {
	case err != nil:
		// dev builds carry no version; let them upgrade to a release.
		pterm.Warning.Printf("Could not compare versions (%s vs %s): %v\n", current, latest, err)
	case !isNewer:
		pterm.Success.Printf("You are already on the latest version (%s)\n", current)
		return nil
	default:
		pterm.Info.Printf("New version available: %s → %s\n", current, latest)
	}
	if releaseURL != "" {
		pterm.Info.Printf("Release notes: %s\n", releaseURL)
	}

	method, binaryPath := c.detect()
	pterm.Debug.Printf("Install method %s for %s\n", method, binaryPath)

	if method == update.InstallMethodUnknown {
		printManualUpgradeInstructions(latestTag, releaseURL, binaryPath)
		if in.Check {
			return nil
		}
		return fmt.Errorf("could not detect installation method")
	}

	argv := update.UpgradeCommand(method)
	if in.Check {
		pterm.Info.Printf("Run '%s' to upgrade\n", update.UpgradeCommandLine(method))
		return nil
	}
	if in.DryRun {
		pterm.Info.Printf("Would run: %s\n", update.UpgradeCommandLine(method))
		return nil
	}

	pterm.Info.Printf("Upgrading via %s...\n", method)
	if err := c.run(ctx, argv); err != nil {
		return fmt.Errorf("%s failed: %w", argv[0], err)
	}
	pterm.Success.Printf("Upgraded jobprep to %s\n", latest)
	return nil
}

func printManualUpgradeInstructions(tag, releaseURL, binaryPath string) {
	pterm.Warning.Println("Could not detect how jobprep was installed.")
	pterm.Info.Println("Upgrade with one of:")
	fmt.Printf("  %s\n", update.UpgradeCommandLine(update.InstallMethodGo))
	fmt.Printf("  %s\n", update.UpgradeCommandLine(update.InstallMethodBrew))
	if releaseURL != "" {
		fmt.Printf("  or download %s from %s\n", tag, releaseURL)
	}
	if binaryPath != "" {
		pterm.Info.Printf("The running binary is %s\n", binaryPath)
	}
}

// --- Cobra wiring ---

var upgradeCmd = &cobra.Command{
	Use:     "upgrade",
	Aliases: []string{"update"},
	Short:   "Upgrade jobprep to the latest version",
	Long: `Upgrade jobprep to the latest release.

Homebrew and go install installations are upgraded in place. For anything else
the commands to run by hand are printed.`,
	Args: cobra.NoArgs,
	RunE: runUpgrade,
}

func init() {
	upgradeCmd.Flags().Bool("dry-run", false, "Show what would be executed without running")
	upgradeCmd.Flags().Bool("check", false, "Only report whether a newer version is available")

	rootCmd.AddCommand(upgradeCmd)
}

func runUpgrade(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	check, _ := cmd.Flags().GetBool("check")

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	c := UpgradeCmd{
		current: metadata.Version,
		latest:  update.FetchLatest,
		detect:  update.DetectInstallMethod,
		run: func(_ context.Context, argv []string) error {
			// The install itself may outlive the release lookup timeout.
			ec := exec.CommandContext(cmd.Context(), argv[0], argv[1:]...)
			ec.Stdout = os.Stdout
			ec.Stderr = os.Stderr
			ec.Stdin = os.Stdin
			return ec.Run()
		},
	}
	return c.Run(ctx, UpgradeInput{DryRun: dryRun, Check: check})
}
