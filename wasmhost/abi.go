package wasmhost

import (
	"github.com/Masterminds/semver/v3"

	"github.com/wippyai/nativeguard/errors"
)

// ABIVersion is the version of the host module's import surface.
const ABIVersion = "0.1.0"

// CheckABI reports whether ABIVersion satisfies constraint, e.g. "^0.1".
// An empty constraint accepts any version.
func CheckABI(constraint string) error {
	if constraint == "" {
		return nil
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return errors.Wrap(errors.PhaseGuest, errors.KindInvalidInput, err, "abi constraint "+constraint)
	}
	v := semver.MustParse(ABIVersion)
	if !c.Check(v) {
		return errors.Unsupported(errors.PhaseGuest, "abi "+ABIVersion+" does not satisfy "+constraint)
	}
	return nil
}
