package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kensar/kiosk/internal/output"
)

var deviceCmd = &cobra.Command{
	Use:     "device",
	Short:   "Show the device identity",
	Long:    `Show the device id and label, creating the identity on first use.`,
	GroupID: "core",
	RunE: func(cmd *cobra.Command, args []string) error {
		// The identity is created on first use, which writes the document.
		ctx := cmd.Context()
		o, err := openOwner(ctx)
		if err != nil {
			return err
		}
		defer o.Close()

		info, err := o.DeviceInfo(ctx)
		if err != nil {
			output.Error("device identity: %v", err)
			return err
		}
		if wantJSON(cmd) {
			return output.JSON(info)
		}
		fmt.Println(output.SectionHeader("Device"))
		fmt.Printf("  id:    %s\n", info.DeviceID)
		fmt.Printf("  label: %s\n", info.DeviceLabel)
		if doc, err := o.Config(ctx); err == nil && doc.StationLabel() != "" {
			fmt.Printf("  station: %s\n", doc.StationLabel())
		}
		return nil
	},
}

func init() {
	jsonFlag(deviceCmd)
	rootCmd.AddCommand(deviceCmd)
}
