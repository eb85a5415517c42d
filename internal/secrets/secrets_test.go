// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
		want  map[string]string
	}{
		{
			name: "reads key files and trims whitespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, ArchiveToken, "  tok_abc123  \n")
				writeFile(t, dir, "redis-password", "hunter2")
				return dir
			},
			want: map[string]string{ArchiveToken: "tok_abc123", "redis-password": "hunter2"},
		},
		{
			name: "missing directory is empty",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
			want: map[string]string{},
		},
		{
			name: "skips empty files, dotfiles, and directories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, ArchiveToken, "tok")
				writeFile(t, dir, "blank", "  \n\t")
				writeFile(t, dir, ".gitkeep", "")
				writeFile(t, dir, ".hidden", "secret")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
				return dir
			},
			want: map[string]string{ArchiveToken: "tok"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.setup(t), io.Discard)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}
	dir := t.TempDir()
	writeFile(t, dir, ArchiveToken, "tok")
	bad := filepath.Join(dir, "bad-key")
	require.NoError(t, os.WriteFile(bad, []byte("secret"), 0o000))
	t.Cleanup(func() { os.Chmod(bad, 0o644) })

	var warn bytes.Buffer
	got, err := Load(dir, &warn)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{ArchiveToken: "tok"}, got)
	assert.Contains(t, warn.String(), "bad-key")
}

func TestLookupPrefersEnvironment(t *testing.T) {
	s := map[string]string{ArchiveToken: "from-file"}

	v, ok := Lookup(s, ArchiveToken, "EVAL_ENGINE_TEST_TOKEN")
	require.True(t, ok)
	assert.Equal(t, "from-file", v)

	t.Setenv("EVAL_ENGINE_TEST_TOKEN", "from-env")
	v, ok = Lookup(s, ArchiveToken, "EVAL_ENGINE_TEST_TOKEN")
	require.True(t, ok)
	assert.Equal(t, "from-env", v)

	_, ok = Lookup(map[string]string{}, ArchiveToken, "")
	assert.False(t, ok)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
