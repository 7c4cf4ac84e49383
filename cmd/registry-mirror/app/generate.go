package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/registry-mirror/internal/sync"
	"github.com/stacklok/registry-mirror/internal/telemetry"
)

const telemetryShutdownTimeout = 5 * time.Second

func newGenerateCmd(v *viper.Viper) *cobra.Command {
	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the aggregated registry once",
		Long: `Fetch every configured source, merge the catalogs, prepend the status record
and write the registry file. Unreachable sources are skipped; the command only
fails when the registry cannot be built or written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, v, nil)
		},
	}

	flags := generateCmd.Flags()
	flags.String("output", "", "Path of the generated registry file (default \"index.json\")")
	flags.String("branch", "", "Branch the registry is published from (default \"master\")")
	flags.String("repository", "", "GitHub repository as owner/repo (default $GITHUB_REPOSITORY)")
	flags.StringSlice("source", nil, "Registry feed URL or file path; repeat to fetch several")
	flags.String("timeout", "", "Timeout of each source request (default 15s)")
	mustBind(v,
		flags.Lookup("output"),
		flags.Lookup("branch"),
		flags.Lookup("repository"),
		flags.Lookup("source"),
		flags.Lookup("timeout"),
	)

	return generateCmd
}

// runGenerate performs one run. A nil manager is built from the config.
func runGenerate(cmd *cobra.Command, v *viper.Viper, manager sync.Manager) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	cfg, err := configLoader(v)()
	if err != nil {
		_, _ = fmt.Fprintln(out, "❌ Registry generation failed")
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if manager == nil {
		tel, err := newTelemetry(ctx, cfg, telemetry.ModeGenerate)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
			defer cancel()
			if err := tel.Shutdown(shutdownCtx); err != nil {
				slog.Warn("Failed to shut down telemetry", "error", err)
			}
		}()

		manager, err = newSyncManager(tel)
		if err != nil {
			return err
		}
	}

	result, runErr := manager.Run(ctx, cfg)
	if runErr != nil {
		slog.Error("Registry generation failed", "stage", runErr.Stage, "error", runErr.Err)
		_, _ = fmt.Fprintln(out, "❌ Registry generation failed")
		return runErr
	}

	_, _ = fmt.Fprintf(out, "✅ Successfully generated registry with %d plugins in %.1fs\n",
		result.Unique, result.Duration.Seconds())
	_, _ = fmt.Fprintf(out, "Output file: %s\n", result.OutputPath)
	if result.RawURL != "" {
		_, _ = fmt.Fprintf(out, "RAW URL: %s\n", result.RawURL)
	}
	return nil
}
