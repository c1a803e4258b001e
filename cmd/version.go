package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kensar/kiosk/internal/output"
	"github.com/kensar/kiosk/internal/update"
)

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Show version and check for updates",
	GroupID: "system",
	Run: func(cmd *cobra.Command, args []string) {
		short, _ := cmd.Flags().GetBool("short")
		if short {
			fmt.Print(version)
			return
		}

		fmt.Printf("kiosk version %s\n", version)

		if c := runningClient(cmd.Context()); c != nil {
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
			snap, err := c.UpdateStatus(ctx)
			cancel()
			if err == nil {
				fmt.Printf("running instance: %s\n", output.FormatSnapshot(snap))
			}
		}

		// Development builds never self-update, so there is nothing to check.
		checkUpdates, _ := cmd.Flags().GetBool("check")
		if !checkUpdates || !cfg.Packaged {
			return
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		feed := &update.ReleaseFeed{URL: cfg.UpdateFeedURL, CurrentVersion: version}
		release, newer, err := feed.Latest(ctx)
		if err != nil {
			logger.Debug("update check failed", "err", err)
			return
		}
		if !newer {
			return
		}

		fmt.Printf("\nUpdate available: %s → %s\n", version, release.TagName)
		if notes := output.ReleaseNotes(&update.Info{
			Version:      release.TagName,
			ReleaseName:  release.Name,
			ReleaseNotes: release.Body,
		}, output.TerminalWidth(80), ""); notes != "" {
			fmt.Println(notes)
		}
		if release.HTMLURL != "" {
			fmt.Printf("Release: %s\n", release.HTMLURL)
		}
	},
}

func init() {
	versionCmd.Flags().Bool("check", true, "Check for updates")
	versionCmd.Flags().Bool("short", false, "Output only version string")
	rootCmd.AddCommand(versionCmd)
}
