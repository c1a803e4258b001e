package cmd

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/kensar/kiosk/internal/client"
	"github.com/kensar/kiosk/internal/console"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Watch the running kiosk live",
	Long: `Open a live view of the running instance: update phase, download progress,
the restart countdown with release notes, and zoom changes. The console only
observes; it never takes over the kiosk surface.`,
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		m := console.NewModel(cmd.Context(), client.New(cfg.ListenAddr))
		p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}
