package manifest

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// SupportedABIConstraint is this build's compatible engine_abi range —
// an instrumenter built against an incompatible engine is rejected at
// load time rather than producing silently-wrong transitions.
const SupportedABIConstraint = "^1.0.0"

// checkABICompatible is grounded on the teacher's own
// trust.PackLoader.enforceMonotonicVersion: parse with semver.NewVersion,
// compare with the typed API rather than string equality.
func checkABICompatible(abi string) error {
	v, err := semver.NewVersion(abi)
	if err != nil {
		return fmt.Errorf("manifest: invalid engine_abi %q: %w", abi, err)
	}

	c, err := semver.NewConstraint(SupportedABIConstraint)
	if err != nil {
		return fmt.Errorf("manifest: invalid ABI constraint %q: %w", SupportedABIConstraint, err)
	}

	if !c.Check(v) {
		return fmt.Errorf("manifest: engine_abi %s does not satisfy %s", abi, SupportedABIConstraint)
	}
	return nil
}
