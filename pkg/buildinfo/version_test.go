package buildinfo

import (
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	old := [3]string{Version, Commit, Date}
	t.Cleanup(func() { Version, Commit, Date = old[0], old[1], old[2] })

	Version, Commit, Date = "v0.3.0", "abc1234", "2026-01-02T03:04:05Z"
	info := Get()
	if info.Version != "v0.3.0" || info.Commit != "abc1234" || info.Date != "2026-01-02T03:04:05Z" {
		t.Fatalf("Get() = %+v", info)
	}
	if got, want := info.String(), "flowtrim v0.3.0 (abc1234, 2026-01-02T03:04:05Z)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if tmpl := Template(); !strings.Contains(tmpl, "version v0.3.0") || !strings.Contains(tmpl, "commit: abc1234") {
		t.Errorf("Template() = %q", tmpl)
	}
}
