package cmd

import (
	"context"
	"fmt"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"

	"github.com/smazurov/pcileds/internal/version"
)

const updateRepository = "smazurov/pcileds"

// CreateUpdateCmd creates the update command.
func CreateUpdateCmd() *cobra.Command {
	var checkOnly bool
	var prerelease bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update the binary to the latest release",
		RunE: func(c *cobra.Command, _ []string) error {
			ctx := context.Background()

			source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
			if err != nil {
				return fmt.Errorf("create release source: %w", err)
			}
			updater, err := selfupdate.NewUpdater(selfupdate.Config{
				Source:     source,
				Prerelease: prerelease,
			})
			if err != nil {
				return fmt.Errorf("create updater: %w", err)
			}

			repo := selfupdate.ParseSlug(updateRepository)
			release, found, err := updater.DetectLatest(ctx, repo)
			if err != nil {
				return fmt.Errorf("check for updates: %w", err)
			}
			if !found {
				return fmt.Errorf("no releases found for %s", updateRepository)
			}

			current := version.Version
			// Dev builds always count as outdated.
			if current != "dev" && !release.GreaterThan(current) {
				fmt.Printf("already up to date (%s)\n", current)
				return nil
			}

			fmt.Printf("update available: %s -> %s\n", current, release.Version())
			if checkOnly {
				return nil
			}

			exe, err := selfupdate.ExecutablePath()
			if err != nil {
				return fmt.Errorf("locate executable: %w", err)
			}
			if err := updater.UpdateTo(ctx, release, exe); err != nil {
				return fmt.Errorf("apply update: %w", err)
			}

			fmt.Printf("updated to %s\n", release.Version())
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkOnly, "check", false, "Only check whether an update is available")
	cmd.Flags().BoolVar(&prerelease, "prerelease", false, "Include prerelease versions")
	return cmd
}
