package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	out := String()
	if !strings.HasPrefix(out, "patient-monitor dev") {
		t.Fatalf("unexpected version line: %q", out)
	}
	if !strings.Contains(out, "commit: unknown") {
		t.Fatalf("commit missing: %q", out)
	}
}
