package safety

import (
	"testing"

	"github.com/hadronmedia/recompress/internal/errors"
)

func TestValidatePathRejectsMetacharacters(t *testing.T) {
	tests := []string{
		"/tmp/evil; rm -rf /",
		"/tmp/$(whoami)",
		"/tmp/`id`",
		"/tmp/a|b",
		"/tmp/a&b",
		"/tmp/a<b>c",
		"/tmp/a{b}",
	}
	for _, p := range tests {
		if err := ValidatePath(p); err == nil {
			t.Errorf("ValidatePath(%q) = nil, want error", p)
		} else if !errors.IsKind(err, errors.KindPathSafety) {
			t.Errorf("ValidatePath(%q) kind = %v, want KindPathSafety", p, err)
		}
	}
}

func TestValidatePathAcceptsOrdinaryPaths(t *testing.T) {
	tests := []string{"/home/user/video.mp4", "C:\\Users\\me\\clip.mov", "./relative/path.jpg"}
	for _, p := range tests {
		if err := ValidatePath(p); err != nil {
			t.Errorf("ValidatePath(%q) = %v, want nil", p, err)
		}
	}
}

func TestCheckDangerousRoot(t *testing.T) {
	if err := CheckDangerousRoot("/"); err == nil {
		t.Error("CheckDangerousRoot(\"/\") = nil, want error")
	}
	if err := CheckDangerousRoot("/home/user/videos"); err != nil {
		t.Errorf("CheckDangerousRoot(ordinary path) = %v, want nil", err)
	}
}

func TestCheckAliasing(t *testing.T) {
	if err := CheckAliasing("/a/video.mp4", "/a/video.mp4"); err == nil {
		t.Error("CheckAliasing(same path) = nil, want error")
	}
	if err := CheckAliasing("/a/video.mp4", "/b/video.mp4"); err != nil {
		t.Errorf("CheckAliasing(different paths) = %v, want nil", err)
	}
}
