package cmd

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kensar/kiosk/internal/config"
)

var (
	version string
	cfg     config.Config
	logger  = slog.Default()
)

// SetVersion sets the version string
func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "kiosk",
	Short: "Control plane for a point-of-sale kiosk terminal",
	Long: `kiosk runs the local control plane of a point-of-sale terminal: the persisted
configuration, device identity, admin PIN, display zoom policy and the
self-update lifecycle.

Run "kiosk serve" on the terminal; the other commands inspect and administer
the same data directory.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "core", Title: "Core Commands:"},
		&cobra.Group{ID: "admin", Title: "Admin Commands:"},
		&cobra.Group{ID: "system", Title: "System Commands:"},
	)
	rootCmd.SetHelpCommandGroupID("system")
	rootCmd.SetCompletionCommandGroupID("system")

	pf := rootCmd.PersistentFlags()
	pf.String("data-dir", "", "Data directory (default: KIOSK_DATA_DIR or the user config dir)")
	pf.String("listen", "", "Control API address (default: KIOSK_LISTEN_ADDR or 127.0.0.1:47615)")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-format", "", "Log format: json or text")
}

// loadConfig resolves the configuration from .env files, the environment
// and flags, in increasing precedence.
func loadConfig(cmd *cobra.Command, args []string) error {
	loaded := config.LoadEnvFiles()

	var err error
	cfg, err = config.Load(version)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	overrideString(flags, "data-dir", &cfg.DataDir)
	overrideString(flags, "listen", &cfg.ListenAddr)
	overrideString(flags, "log-level", &cfg.LogLevel)
	overrideString(flags, "log-format", &cfg.LogFormat)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)

	logger = newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	if len(loaded) > 0 {
		logger.Debug("loaded env files", "files", loaded)
	}
	return nil
}

// overrideString copies a non-empty flag value over *dst.
func overrideString(fs *pflag.FlagSet, name string, dst *string) {
	if !fs.Changed(name) {
		return
	}
	if v, _ := fs.GetString(name); v != "" {
		*dst = v
	}
}

// newLogger builds the process logger.
func newLogger(w io.Writer, levelName, format string) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(levelName) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(format) == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// jsonFlag registers --json on c.
func jsonFlag(c *cobra.Command) {
	c.Flags().Bool("json", false, "Output as JSON")
}

func wantJSON(c *cobra.Command) bool {
	v, _ := c.Flags().GetBool("json")
	return v
}
