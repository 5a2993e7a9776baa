package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestFillFromBuildInfo(t *testing.T) {
	tests := []struct {
		name        string
		info        *debug.BuildInfo
		wantVersion string
		wantCommit  string
	}{
		{
			name: "tagged module",
			info: &debug.BuildInfo{
				Main: debug.Module{Version: "v1.4.0"},
			},
			wantVersion: "v1.4.0",
		},
		{
			name: "dirty checkout",
			info: &debug.BuildInfo{
				Main: debug.Module{Version: "(devel)"},
				Settings: []debug.BuildSetting{
					{Key: "vcs.revision", Value: "0123456789abcdef"},
					{Key: "vcs.modified", Value: "true"},
					{Key: "vcs.time", Value: "2024-01-31T10:00:00Z"},
				},
			},
			wantVersion: "dev-20240131",
			wantCommit:  "0123456-dirty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			savedVersion, savedCommit := Version, Commit
			defer func() { Version, Commit = savedVersion, savedCommit }()
			Version, Commit = "", ""

			fillFromBuildInfo(tt.info)

			if Version != tt.wantVersion {
				t.Errorf("Version = %q, want %q", Version, tt.wantVersion)
			}
			if Commit != tt.wantCommit {
				t.Errorf("Commit = %q, want %q", Commit, tt.wantCommit)
			}
		})
	}
}

func TestFillFromBuildInfo_KeepsLdflags(t *testing.T) {
	savedVersion, savedCommit := Version, Commit
	defer func() { Version, Commit = savedVersion, savedCommit }()
	Version, Commit = "v9.9.9", "abc1234"

	fillFromBuildInfo(&debug.BuildInfo{
		Main:     debug.Module{Version: "v1.0.0"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "fffffffffff"}},
	})

	if Version != "v9.9.9" || Commit != "abc1234" {
		t.Errorf("ldflags values were overwritten: %s %s", Version, Commit)
	}
}

func TestFull(t *testing.T) {
	full := Full()
	if !strings.Contains(full, Version) || !strings.Contains(full, "commit: "+Commit) {
		t.Errorf("Full() = %q", full)
	}
}
