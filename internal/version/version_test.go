package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	orig := Version
	t.Cleanup(func() { Version = orig })
	Version = "v1.2.3"

	if got := Short(); got != "v1.2.3" {
		t.Errorf("Short() = %q, want %q", got, "v1.2.3")
	}
	if got := Info(); !strings.HasPrefix(got, "leasetrace v1.2.3 (") {
		t.Errorf("Info() = %q, want leasetrace v1.2.3 prefix", got)
	}
	if got := Map()["version"]; got != "v1.2.3" {
		t.Errorf("Map()[version] = %q", got)
	}
}
