package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kensar/kiosk/internal/output"
)

var zoomCmd = &cobra.Command{
	Use:     "zoom",
	Short:   "Show or change the display zoom factor",
	GroupID: "core",
}

var zoomGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the effective zoom factor",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, done, err := openApp()
		if err != nil {
			return err
		}
		defer done()

		factor := a.GetZoom()
		if wantJSON(cmd) {
			return output.JSON(map[string]float64{"factor": factor})
		}
		fmt.Println(output.FormatZoom(factor))
		return nil
	},
}

var zoomSetCmd = &cobra.Command{
	Use:   "set <factor>",
	Short: "Set the zoom factor (clamped to 0.5-1.2)",
	Long: `Set the zoom factor. Values are clamped to the range 0.5 to 1.2. When a
kiosk instance is running the factor is applied to its surface immediately;
otherwise it is stored for the next start.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			output.Error("invalid zoom factor %q", args[0])
			return fmt.Errorf("invalid zoom factor %q: %w", args[0], err)
		}

		o, err := openOwner(cmd.Context())
		if err != nil {
			return err
		}
		defer o.Close()

		factor, err := o.SetZoom(cmd.Context(), v)
		if err != nil {
			output.Error("save zoom: %v", err)
			return err
		}
		live := o.Live()

		if wantJSON(cmd) {
			return output.JSON(map[string]any{"factor": factor, "applied": live})
		}
		if live {
			output.Success("zoom set to %s", output.FormatZoom(factor))
		} else {
			output.Success("zoom stored as %s (applies on next start)", output.FormatZoom(factor))
		}
		return nil
	},
}

func init() {
	jsonFlag(zoomGetCmd)
	jsonFlag(zoomSetCmd)
	zoomCmd.AddCommand(zoomGetCmd, zoomSetCmd)
	rootCmd.AddCommand(zoomCmd)
}
