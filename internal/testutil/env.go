package testutil

import (
	"fmt"
	"os"
)

// UnsetEpochEnv clears the epoch-control variables so tests start from a
// known environment regardless of the CI runner's settings.
func UnsetEpochEnv() error {
	envVars := []string{
		"SOURCE_DATE_EPOCH",
		"ZERO_AR_DATE",
	}
	for _, name := range envVars {
		if err := os.Unsetenv(name); err != nil {
			return fmt.Errorf("unset %s: %w", name, err)
		}
	}
	return nil
}
