package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kensar/kiosk/internal/app"
	"github.com/kensar/kiosk/internal/output"
	"github.com/kensar/kiosk/internal/store"
	"github.com/kensar/kiosk/internal/suggest"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Inspect and edit the terminal configuration",
	GroupID: "admin",
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Show the configuration document or one key",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, done, err := openApp()
		if err != nil {
			return err
		}
		defer done()

		doc := a.GetConfig()
		if len(args) == 1 {
			v, ok := doc[args[0]]
			if args[0] == store.KeyAdminPinHash && ok {
				v = "********"
			}
			if wantJSON(cmd) {
				return output.JSON(v)
			}
			if !ok {
				if hints := suggest.Keys(args[0], knownKeys(doc)); len(hints) > 0 {
					output.Info("Did you mean: %s?", strings.Join(hints, ", "))
				}
				return fmt.Errorf("key %q is not set", args[0])
			}
			fmt.Println(formatValue(v))
			return nil
		}

		if wantJSON(cmd) {
			if doc != nil {
				doc = doc.Clone()
				if _, ok := doc[store.KeyAdminPinHash]; ok {
					doc[store.KeyAdminPinHash] = "********"
				}
			}
			return output.JSON(doc)
		}
		fmt.Print(output.FormatDocument(doc))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one configuration key",
	Long: `Set one configuration key. The value is parsed as JSON when it is valid JSON
(numbers, true/false, null, objects) and stored as a plain string otherwise.
Setting a key to null removes it. The device id and admin PIN hash cannot be
set this way.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if isProtectedKey(key) {
			output.Warning("%s is managed by the terminal and was not changed", key)
			return nil
		}

		ctx := cmd.Context()
		o, err := openOwner(ctx)
		if err != nil {
			return err
		}
		defer o.Close()

		current, err := o.Config(ctx)
		if err != nil {
			return err
		}
		if known := knownKeys(current); !slices.Contains(known, key) {
			if hints := suggest.Keys(key, known); len(hints) > 0 {
				output.Warning("%s is a new key; did you mean %s?", key, strings.Join(hints, ", "))
			}
		}

		doc, err := o.SetConfig(ctx, store.Document{key: parseValue(args[1])})
		if err != nil {
			output.Error("save config: %v", err)
			return err
		}
		if wantJSON(cmd) {
			return output.JSON(doc)
		}
		output.Success("%s updated", key)
		return nil
	},
}

var configClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Reset the configuration, keeping identity, PIN and zoom",
	Long: `Reset the configuration document. The device identity, admin PIN hash and
zoom factor survive; station credentials and everything else are removed.
Requires the admin PIN.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := openOwner(cmd.Context())
		if err != nil {
			return err
		}
		defer o.Close()

		var doc store.Document
		err = withPin(cmd, "Admin PIN", func(pin string) (bool, error) {
			var err error
			doc, err = o.ClearConfig(cmd.Context(), pin)
			if errors.Is(err, app.ErrAdminRequired) {
				return false, nil
			}
			return err == nil, err
		})
		if err != nil {
			if wantJSON(cmd) && errors.Is(err, app.ErrAdminRequired) {
				output.JSONError(output.ErrCodeAdminRequired, err.Error())
			}
			return err
		}

		if wantJSON(cmd) {
			return output.JSON(doc)
		}
		output.Success("configuration cleared for device %s", doc.DeviceID())
		return nil
	},
}

// knownKeys lists the well-known document keys plus those already stored.
func knownKeys(doc store.Document) []string {
	keys := []string{
		store.KeyDeviceID, store.KeyDeviceLabel,
		store.KeyStationID, store.KeyStationLabel, store.KeyStationEmail,
		store.KeyAdminPinHash, store.KeyUIZoomFactor,
	}
	for k := range doc {
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	return keys
}

func isProtectedKey(key string) bool {
	return key == store.KeyDeviceID || key == store.KeyAdminPinHash
}

// parseValue reads a command-line value as JSON, falling back to the raw
// string.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func init() {
	jsonFlag(configGetCmd)
	jsonFlag(configSetCmd)
	jsonFlag(configClearCmd)
	configClearCmd.Flags().String("pin", "", "Admin PIN (prompted when omitted)")

	configCmd.AddCommand(configGetCmd, configSetCmd, configClearCmd)
	rootCmd.AddCommand(configCmd)
}
