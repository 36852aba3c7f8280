package buildinfo

import (
	"runtime/debug"
	"testing"
)

func stub(t *testing.T, version, commit string, info *debug.BuildInfo) {
	t.Helper()
	oldV, oldC, oldR := Version, Commit, readBuildInfo
	t.Cleanup(func() { Version, Commit, readBuildInfo = oldV, oldC, oldR })
	Version, Commit = version, commit
	readBuildInfo = func() (*debug.BuildInfo, bool) { return info, info != nil }
}

func TestShortPrefersVersion(t *testing.T) {
	stub(t, "v1.2.0", "abc", nil)
	if got := Short(); got != "v1.2.0" {
		t.Fatalf("Short() = %q, want %q", got, "v1.2.0")
	}
}

func TestShortFallsBackToVCSRevision(t *testing.T) {
	stub(t, "dev", "unknown", &debug.BuildInfo{Settings: []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef"},
	}})
	if got := Short(); got != "0123456789ab" {
		t.Fatalf("Short() = %q, want %q", got, "0123456789ab")
	}
}

func TestLongWithoutCommit(t *testing.T) {
	stub(t, "dev", "unknown", nil)
	if got := Long(); got != "dev (unknown, "+Date+")" {
		t.Fatalf("Long() = %q", got)
	}
	if got := Short(); got != "dev" {
		t.Fatalf("Short() = %q, want dev", got)
	}
}
