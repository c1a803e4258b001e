package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kensar/kiosk/internal/dateparse"
	"github.com/kensar/kiosk/internal/journal"
	"github.com/kensar/kiosk/internal/output"
)

var journalCmd = &cobra.Command{
	Use:     "journal",
	Short:   "Show recent administrative and update events",
	Long:    `Shows the local audit trail: PIN changes and rejections, configuration resets, station logins and update status changes.`,
	GroupID: "admin",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.EnsureDataDir(); err != nil {
			return err
		}
		j, err := journal.Open(cfg.DataDir)
		if err != nil {
			output.Error("open journal: %v", err)
			return err
		}
		defer j.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		if limit <= 0 {
			return errors.New("--limit must be positive")
		}
		var entries []journal.Entry
		if since, _ := cmd.Flags().GetString("since"); since != "" {
			from, perr := dateparse.ParseSince(since)
			if perr != nil {
				output.Error("invalid --since: %v", perr)
				return perr
			}
			entries, err = j.Since(cmd.Context(), from, limit)
		} else {
			entries, err = j.Recent(cmd.Context(), limit)
		}
		if err != nil {
			output.Error("read journal: %v", err)
			return err
		}

		if wantJSON(cmd) {
			if entries == nil {
				entries = []journal.Entry{}
			}
			return output.JSON(entries)
		}
		if len(entries) == 0 {
			fmt.Println("No journal entries")
			return nil
		}
		width := output.TerminalWidth(100)
		for _, e := range entries {
			fmt.Println(output.FormatEntry(e, width))
		}
		return nil
	},
}

func init() {
	jsonFlag(journalCmd)
	journalCmd.Flags().IntP("limit", "n", 20, "Number of entries to show")
	journalCmd.Flags().String("since", "", "Only entries newer than this (e.g. 2h, 3d, today, 2026-03-01)")
	rootCmd.AddCommand(journalCmd)
}
