package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kensar/kiosk/internal/app"
	"github.com/kensar/kiosk/internal/input"
	"github.com/kensar/kiosk/internal/output"
)

// cliPinKey is the attempt-limiter key for PINs entered on the command line.
const cliPinKey = "cli"

var pinCmd = &cobra.Command{
	Use:     "pin",
	Short:   "Manage the admin PIN",
	GroupID: "admin",
}

var pinStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether an admin PIN is configured",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, done, err := openApp()
		if err != nil {
			return err
		}
		defer done()

		configured := a.HasAdminPin()
		if wantJSON(cmd) {
			return output.JSON(map[string]bool{"configured": configured})
		}
		if configured {
			output.Success("admin PIN is configured")
		} else {
			output.Warning("no admin PIN is configured")
		}
		return nil
	},
}

var pinSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set or replace the admin PIN",
	Long: `Set the admin PIN (4 to 8 digits). Replacing an existing PIN requires the
current one, given with --current or entered at the prompt.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		o, err := openOwner(ctx)
		if err != nil {
			return err
		}
		defer o.Close()

		pin, _ := cmd.Flags().GetString("pin")
		current, _ := cmd.Flags().GetString("current")
		if pin, err = input.Secret(pin, cmd.InOrStdin()); err != nil {
			return err
		}
		if current, err = input.Secret(current, cmd.InOrStdin()); err != nil {
			return err
		}
		interactive := output.IsTerminal()
		configured, err := o.HasAdminPin(ctx)
		if err != nil {
			return err
		}

		if configured && current == "" {
			if !interactive {
				return errNoPin
			}
			if current, err = promptPin("Current admin PIN", false); err != nil {
				return err
			}
		}
		if pin == "" {
			if !interactive {
				return errors.New("new PIN required: pass --pin or run in a terminal")
			}
			if pin, err = promptNewPin(); err != nil {
				return err
			}
		}

		res, err := o.SetAdminPin(ctx, pin, current)
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return output.JSON(res)
		}
		if !res.OK {
			output.Error("%s", res.Error)
			return errors.New(res.Error)
		}
		output.Success("admin PIN saved")
		return nil
	},
}

var pinVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check a PIN against the stored admin PIN",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, done, err := openApp()
		if err != nil {
			return err
		}
		defer done()

		if !a.HasAdminPin() {
			return fmt.Errorf("no admin PIN is configured")
		}
		err = withPin(cmd, "Admin PIN", func(pin string) (bool, error) {
			return a.VerifyAdminPin(cmd.Context(), cliPinKey, pin), nil
		})
		if errors.Is(err, app.ErrAdminRequired) && wantJSON(cmd) {
			return output.JSON(map[string]bool{"valid": false})
		}
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return output.JSON(map[string]bool{"valid": true})
		}
		output.Success("PIN accepted")
		return nil
	},
}

func init() {
	jsonFlag(pinStatusCmd)
	jsonFlag(pinSetCmd)
	jsonFlag(pinVerifyCmd)
	pinSetCmd.Flags().String("pin", "", "New admin PIN, - for stdin or @file (prompted when omitted)")
	pinSetCmd.Flags().String("current", "", "Current admin PIN when replacing one")
	pinVerifyCmd.Flags().String("pin", "", "PIN to check, - for stdin or @file (prompted when omitted)")

	pinCmd.AddCommand(pinStatusCmd, pinSetCmd, pinVerifyCmd)
	rootCmd.AddCommand(pinCmd)
}
