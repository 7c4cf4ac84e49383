package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stacklok/registry-mirror/internal/registry"
	"github.com/stacklok/registry-mirror/internal/status"
	"github.com/stacklok/registry-mirror/internal/versions"
	"github.com/stacklok/registry-mirror/internal/writer"
)

const pathPackageVersion = "package.version"

func newValidateCmd() *cobra.Command {
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a generated registry file",
		Long: `Check that a registry file has a well-formed envelope and starts with a valid
status record. Records with a package version that is not semantic versioning
are reported as warnings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := cmd.Flags().GetString("file")
			if err != nil {
				return fmt.Errorf("failed to read file flag: %w", err)
			}
			return runValidate(cmd, path)
		},
	}
	validateCmd.Flags().String("file", "index.json", "Path of the registry file to check")
	return validateCmd
}

func runValidate(cmd *cobra.Command, path string) error {
	env, err := writer.ReadEnvelope(path)
	if err != nil {
		return err
	}

	if err := validateEnvelope(env); err != nil {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "❌ %s is not a valid registry\n", path)
		return err
	}

	if invalid := invalidVersions(env.Objects); len(invalid) > 0 {
		slog.Warn("Records with non-semver package versions", "count", len(invalid), "plugins", invalid)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✅ %s is a valid registry with %d records\n", path, env.Total)
	return nil
}

// validateEnvelope reports every structural problem of env
func validateEnvelope(env *writer.Envelope) error {
	var errs []error
	if env.Version != writer.FormatVersion {
		errs = append(errs, fmt.Errorf("version: expected %d, got %d", writer.FormatVersion, env.Version))
	}
	if env.Total != len(env.Objects) {
		errs = append(errs, fmt.Errorf("total: %d does not match %d objects", env.Total, len(env.Objects)))
	}
	if len(env.Objects) == 0 {
		errs = append(errs, errors.New("objects: status record is missing"))
	} else if err := status.ValidateStatus(env.Objects[0]); err != nil {
		errs = append(errs, fmt.Errorf("objects[0]: %w", err))
	}
	return errors.Join(errs...)
}

// invalidVersions returns the keys of records whose package.version is set
// but is not a strict semantic version
func invalidVersions(records []registry.Record) []string {
	var invalid []string
	for _, rec := range records {
		version := rec.Get(pathPackageVersion)
		if !version.Exists() {
			continue
		}
		if _, err := versions.ParsePackageVersion(version.String()); err != nil {
			key, _ := rec.Key()
			invalid = append(invalid, key)
		}
	}
	return invalid
}
