package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Masterminds/semver/v3"
	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"
)

func (c *CLI) newUpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Self-update to the latest version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.selfUpdate(cmd.Context())
		},
	}
}

// releaseSlug is the GitHub repository releases are published to.
const releaseSlug = "happyhackingspace/splitmerge"

func (c *CLI) selfUpdate(ctx context.Context) error {
	updater, err := selfupdate.NewUpdater(selfupdate.Config{})
	if err != nil {
		return err
	}
	latest, found, err := updater.DetectLatest(ctx, selfupdate.ParseSlug(releaseSlug))
	if err != nil {
		return fmt.Errorf("detect latest version: %w", err)
	}
	if !found {
		return fmt.Errorf("no release found for %s", releaseSlug)
	}
	if !c.outdated(latest.Version()) {
		fmt.Printf("Already up to date (%s)\n", c.version)
		return nil
	}

	slog.Info("Updating", "from", c.version, "to", latest.Version())

	exe, err := os.Executable()
	if err != nil {
		return err
	}

	if err := updater.UpdateTo(ctx, latest, exe); err != nil {
		return fmt.Errorf("update: %w", err)
	}

	fmt.Printf("Updated to %s\n", latest.Version())
	return nil
}

// outdated reports whether latest is newer than the running version. Local
// builds report "dev" and are always outdated.
func (c *CLI) outdated(latest string) bool {
	if c.version == "dev" {
		return true
	}
	current, err := semver.NewVersion(c.version)
	if err != nil {
		slog.Debug("Unparseable version, updating anyway", "version", c.version, "error", err)
		return true
	}
	next, err := semver.NewVersion(latest)
	if err != nil {
		return false
	}
	return next.GreaterThan(current)
}
