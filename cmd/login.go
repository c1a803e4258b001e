package cmd

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/kensar/kiosk/internal/app"
	"github.com/kensar/kiosk/internal/input"
	"github.com/kensar/kiosk/internal/output"
	"github.com/kensar/kiosk/internal/stationauth"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Register this terminal with a POS station",
	Long: `Authenticate the terminal against the station backend and store the
station identity. When no admin PIN exists yet and the command runs in a
terminal, a PIN is set up afterwards.`,
	GroupID: "core",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		password, err := input.Secret(password, cmd.InOrStdin())
		if err != nil {
			return err
		}
		interactive := output.IsTerminal()

		if email == "" || password == "" {
			if !interactive {
				return app.ErrMissingCredentials
			}
			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("Station email").
						Value(&email).
						Validate(func(s string) error {
							if strings.TrimSpace(s) == "" {
								return errors.New("email is required")
							}
							return nil
						}),
					huh.NewInput().
						Title("Station password").
						EchoMode(huh.EchoModePassword).
						Value(&password),
				),
			)
			if err := form.Run(); err != nil {
				return err
			}
		}

		ctx := cmd.Context()
		o, err := openOwner(ctx)
		if err != nil {
			return err
		}
		defer o.Close()

		doc, err := o.StationLogin(ctx, email, password)
		var rejected *stationauth.RejectedError
		switch {
		case errors.As(err, &rejected):
			output.Error("%s", rejected.Detail)
			return err
		case err != nil:
			output.Error("station login: %v", err)
			return err
		}

		if wantJSON(cmd) {
			url, err := o.LoginURL(ctx)
			if err != nil {
				return err
			}
			return output.JSON(map[string]string{
				"stationId":    doc.StationID(),
				"stationLabel": doc.StationLabel(),
				"url":          url,
			})
		}
		output.Success("terminal registered to %s", doc.StationLabel())

		skipPin, _ := cmd.Flags().GetBool("skip-pin")
		if skipPin || !interactive {
			return nil
		}
		if configured, err := o.HasAdminPin(ctx); err != nil || configured {
			return err
		}
		output.Info("No admin PIN is configured yet.")
		pin, err := promptNewPin()
		if err != nil {
			return err
		}
		res, err := o.SetAdminPin(ctx, pin, "")
		if err != nil {
			return err
		}
		if !res.OK {
			output.Error("%s", res.Error)
			return errors.New(res.Error)
		}
		output.Success("admin PIN saved")
		return nil
	},
}

func init() {
	jsonFlag(loginCmd)
	loginCmd.Flags().String("email", "", "Station email")
	loginCmd.Flags().String("password", "", "Station password, - for stdin or @file")
	loginCmd.Flags().Bool("skip-pin", false, "Do not offer to set up an admin PIN")
	rootCmd.AddCommand(loginCmd)
}
