package versions

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// ParsePackageVersion parses an npm package version strictly
func ParsePackageVersion(v string) (*semver.Version, error) {
	parsed, err := semver.StrictNewVersion(v)
	if err != nil {
		return nil, fmt.Errorf("invalid package version %q: %w", v, err)
	}
	return parsed, nil
}
