package command

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odvcencio/myedit/modules/internal/modtest"
	"github.com/odvcencio/myedit/protocol"
)

func TestShouldSkipFinderDir(t *testing.T) {
	cases := []struct {
		name string
		skip bool
	}{
		{name: ".git", skip: true},
		{name: "node_modules", skip: true},
		{name: "vendor", skip: true},
		{name: "src", skip: false},
	}

	for _, tc := range cases {
		got := shouldSkipFinderDir(tc.name)
		if got != tc.skip {
			t.Errorf("shouldSkipFinderDir(%q) = %v, want %v", tc.name, got, tc.skip)
		}
	}
}

func writeTree(t *testing.T, root string, rel ...string) {
	t.Helper()
	for _, r := range rel {
		path := filepath.Join(root, filepath.FromSlash(r))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(r), 0o644))
	}
}

func TestCollectFinderFiles(t *testing.T) {
	tmp := t.TempDir()
	writeTree(t, tmp, "a.txt", "nested/B.txt", "node_modules/skip.txt", "vendor/skip2.txt", ".git/skip3.txt")

	files, err := collectFinderFiles(tmp)
	require.NoError(t, err)

	var got []string
	for _, f := range files {
		got = append(got, f.Rel)
		for _, skip := range []string{"node_modules", "vendor", ".git"} {
			if strings.Contains(f.Abs, string(filepath.Separator)+skip+string(filepath.Separator)) {
				t.Errorf("collectFinderFiles should skip %s: %q", skip, f.Abs)
			}
		}
	}
	require.Equal(t, []string{"a.txt", "nested/B.txt"}, got, "sorted ignoring case")
}

func TestMatchFile(t *testing.T) {
	files := []finderFile{
		{Rel: "cmd/main/app.go"},
		{Rel: "internal/mainloop.go"},
		{Rel: "main.go"},
		{Rel: "x/main.go"},
	}
	tests := []struct {
		pattern, want string
	}{
		{"main.go", "main.go"},
		{"MAINLOOP", "internal/mainloop.go"},
		{"cmd/main", "cmd/main/app.go"},
		{"loop", "internal/mainloop.go"},
	}
	for _, tt := range tests {
		got, ok := matchFile(files, tt.pattern)
		require.True(t, ok, tt.pattern)
		require.Equal(t, tt.want, got.Rel, tt.pattern)
	}

	_, ok := matchFile(files, "nothing")
	require.False(t, ok)
}

func TestFindFileOpensMatch(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "docs/readme.md", "src/editor.go")
	t.Chdir(root)

	env := modtest.New(t, Module())
	env.Send(FindFile{Pattern: "editor"})
	cmds := env.Emitted()
	require.Len(t, cmds, 1)
	load, ok := cmds[0].(protocol.LoadFile)
	require.True(t, ok)
	require.Equal(t, "editor.go", filepath.Base(load.Path))
	require.True(t, filepath.IsAbs(load.Path))

	env.Send(FindFile{Pattern: "missing"})
	require.Empty(t, env.Emitted())
	require.Equal(t, "no file matches", env.Hook.LastEntry().Message)
}

func TestFindIsRegistered(t *testing.T) {
	require.Contains(t, protocol.Kinds(), FindFile{}.Kind())
}
