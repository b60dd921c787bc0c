package buildinfo

import (
	"strings"
	"testing"
)

func TestStringUsesInjectedValues(t *testing.T) {
	prevV, prevC, prevD := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = prevV, prevC, prevD })

	Version, Commit, Date = "v1.2.3", "abcdef0", "2026-10-01T12:00:00Z"
	if got := String(); got != "v1.2.3 (abcdef0, 2026-10-01T12:00:00Z)" {
		t.Fatalf("String() = %q", got)
	}
}

func TestResolveKeepsDefaultsShape(t *testing.T) {
	version, commit, _ := Resolve()
	if version == "" || commit == "" || strings.Contains(commit, " ") {
		t.Fatalf("Resolve() = %q, %q", version, commit)
	}
}
