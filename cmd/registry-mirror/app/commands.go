// Package app provides the commands of the registry-mirror CLI.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/registry-mirror/internal/config"
	"github.com/stacklok/registry-mirror/internal/logging"
	"github.com/stacklok/registry-mirror/internal/versions"
)

// NewRootCmd creates the root command with all subcommands attached.
// Each call returns an independent command tree.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:               "registry-mirror",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Koishi plugin registry mirror aggregator",
		Long: `registry-mirror fetches the plugin catalogs of several Koishi registry mirrors,
merges them into one deduplicated catalog, prepends a status record and writes
the result as a single JSON document.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupLogging(cmd, v)
		},
		Run: func(cmd *cobra.Command, _ []string) {
			// If no subcommand is provided, print help
			if err := cmd.Help(); err != nil {
				slog.Error("Error displaying help", "error", err)
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to configuration file (YAML format, optional)")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-format", logging.FormatConsole, "Log format (console, json)")
	mustBind(v, flags.Lookup("config"), flags.Lookup("log-level"), flags.Lookup("log-format"))

	rootCmd.AddCommand(newGenerateCmd(v))
	rootCmd.AddCommand(newServeCmd(v))
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// setupLogging installs the default logger. Logs go to stderr to keep stdout
// clean for command output such as version --format json.
func setupLogging(cmd *cobra.Command, v *viper.Viper) error {
	levelStr := v.GetString("log-level")
	// Fall back to LOG_LEVEL without prefix
	if levelStr == "" {
		levelStr = os.Getenv("LOG_LEVEL")
	}

	level, levelErr := logging.ParseLevel(levelStr)
	if _, err := logging.Setup(logging.Options{
		Level:  level,
		Format: v.GetString("log-format"),
		Output: cmd.ErrOrStderr(),
	}); err != nil {
		return err
	}
	if levelErr != nil {
		slog.Warn("Invalid log level, using INFO", "value", levelStr)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.GetVersionInfo()
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("failed to read format flag: %w", err)
			}

			if format == "json" {
				output, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to format version info as JSON: %w", err)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(output))
				return nil
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "registry-mirror %s (commit %s, built %s, %s, %s)\n",
				info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
			return nil
		},
	}
	versionCmd.Flags().String("format", "", "Output format (json)")
	return versionCmd
}
