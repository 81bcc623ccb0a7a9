package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheDir(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		name string
		xdg  string
		want string
	}{
		{"default", "", filepath.Join(home, ".cache", appName)},
		{"xdg", "/tmp/custom-cache", filepath.Join("/tmp/custom-cache", appName)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("XDG_CACHE_HOME", tt.xdg)
			dir, err := cacheDir()
			require.NoError(t, err)
			assert.Equal(t, tt.want, dir)
		})
	}
}

func TestLocalCacheDir(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", xdg)
	dir := t.TempDir()

	tests := []struct {
		name    string
		config  string
		want    string
		wantErr bool
	}{
		{"no config", "", filepath.Join(xdg, appName), false},
		{"configured dir", "[cache]\nbackend = \"file\"\ndir = \"" + filepath.ToSlash(filepath.Join(dir, "c")) + "\"\n", filepath.Join(dir, "c"), false},
		{"remote backend", "[cache]\nbackend = \"redis\"\nredis_addr = \"localhost:6379\"\n", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(os.Stderr, LogInfo)
			if tt.config != "" {
				c.configPath = filepath.Join(t.TempDir(), "flowtrim.toml")
				require.NoError(t, os.WriteFile(c.configPath, []byte(tt.config), 0o644))
			}
			got, err := c.localCacheDir()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.Clean(tt.want), filepath.Clean(got))
		})
	}
}
