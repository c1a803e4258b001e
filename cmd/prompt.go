package cmd

import (
	"errors"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/kensar/kiosk/internal/admingate"
	"github.com/kensar/kiosk/internal/app"
	"github.com/kensar/kiosk/internal/input"
	"github.com/kensar/kiosk/internal/output"
)

const pinPromptAttempts = 3

var errNoPin = errors.New("admin PIN required: pass --pin or run in a terminal")

// promptPin asks for a PIN with hidden input. When validate is set, input
// that is not a well-formed PIN is refused in place.
func promptPin(title string, validate bool) (string, error) {
	var pin string
	in := huh.NewInput().
		Title(title).
		EchoMode(huh.EchoModePassword).
		Value(&pin)
	if validate {
		in = in.Validate(func(s string) error {
			_, err := admingate.ValidatePin(s)
			return err
		})
	}
	if err := in.Run(); err != nil {
		return "", err
	}
	return pin, nil
}

// promptNewPin asks for a new PIN twice until both entries match.
func promptNewPin() (string, error) {
	for i := 0; i < pinPromptAttempts; i++ {
		pin, err := promptPin("New admin PIN (4-8 digits)", true)
		if err != nil {
			return "", err
		}
		again, err := promptPin("Repeat the PIN", false)
		if err != nil {
			return "", err
		}
		if pin == again {
			return pin, nil
		}
		output.Warning("PINs do not match")
	}
	return "", errors.New("PIN entries did not match")
}

// withPin calls try with PIN candidates: the --pin flag once (which may be
// - or @file), or up to three interactive prompts. try reports whether the PIN was accepted.
func withPin(c *cobra.Command, title string, try func(pin string) (bool, error)) error {
	if pin, _ := c.Flags().GetString("pin"); pin != "" {
		pin, err := input.Secret(pin, c.InOrStdin())
		if err != nil {
			return err
		}
		ok, err := try(pin)
		if err != nil {
			return err
		}
		if !ok {
			return app.ErrAdminRequired
		}
		return nil
	}
	if !output.IsTerminal() {
		return errNoPin
	}
	for i := 1; i <= pinPromptAttempts; i++ {
		pin, err := promptPin(title, false)
		if err != nil {
			return err
		}
		ok, err := try(pin)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		output.Warning("wrong PIN (%d of %d)", i, pinPromptAttempts)
	}
	return app.ErrAdminRequired
}
