package version

import "testing"

func TestFullVersion(t *testing.T) {
	origVersion, origCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = origVersion, origCommit })

	Version, Commit = "v1.2.0", ""
	if got := FullVersion(); got != "v1.2.0" {
		t.Errorf("FullVersion() = %q", got)
	}

	Commit = "abc1234"
	if got := FullVersion(); got != "v1.2.0 (commit abc1234)" {
		t.Errorf("FullVersion() = %q", got)
	}
}
