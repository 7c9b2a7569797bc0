package tpa

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte{0}, 0o644))
	return path
}

// entries splits a built list into its path entries.
func entries(list string) []string {
	list = strings.TrimSuffix(list, ListSeparator)
	if list == "" {
		return nil
	}
	return strings.Split(list, ListSeparator)
}

func TestLogicalName(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"foo.dll", "foo"},
		{"FOO.DLL", "foo"},
		{"foo.ni.dll", "foo"},
		{"foo.ni.exe", "foo"},
		{"foo.exe", "foo"},
		{"my.lib.dll", "my.lib"},
		{"my.lib.ni.dll", "my.lib"},
		{"a.ni", "a"},
		{".ni", ".ni"}, // too short to carry the marker
		{"noext", "noext"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LogicalName(tt.file), "file %q", tt.file)
	}
}

func TestBuilder_EachNameOnce(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "alpha.dll")
	touch(t, dir, "alpha.ni.dll")
	touch(t, dir, "alpha.exe")
	touch(t, dir, "beta.dll")

	list := NewBuilder([]string{dir}).List()

	names := map[string]int{}
	for _, e := range entries(list) {
		names[LogicalName(filepath.Base(e))]++
	}
	for name, n := range names {
		assert.Equal(t, 1, n, "logical name %q appears %d times", name, n)
	}
	assert.Len(t, names, 2)
}

func TestBuilder_OptimizedImageWins(t *testing.T) {
	dir := t.TempDir()
	plain := touch(t, dir, "alpha.dll")
	ni := touch(t, dir, "alpha.ni.dll")

	list := NewBuilder([]string{dir}).List()

	assert.Contains(t, entries(list), ni)
	assert.NotContains(t, entries(list), plain)
}

func TestBuilder_HigherPriorityDirectoryWins(t *testing.T) {
	override := t.TempDir()
	runtime := t.TempDir()
	winner := touch(t, override, "shared.dll")
	loser := touch(t, runtime, "shared.dll")
	runtimeOnly := touch(t, runtime, "system.dll")

	list := NewBuilder([]string{override, runtime}).List()

	got := entries(list)
	assert.Contains(t, got, winner)
	assert.NotContains(t, got, loser)
	assert.Contains(t, got, runtimeOnly)
}

func TestBuilder_MatchesExtensionsCaseInsensitively(t *testing.T) {
	dir := t.TempDir()
	upper := touch(t, dir, "Gamma.DLL")
	ni := touch(t, dir, "delta.NI.dll")

	b := NewBuilder([]string{dir})

	got := entries(b.List())
	assert.Contains(t, got, upper)
	assert.Contains(t, got, ni)

	path, ok := b.Resolve("gamma")
	require.True(t, ok)
	assert.Equal(t, upper, path)
}

func TestBuilder_MissingDirectoryContributesNothing(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "only.dll")

	list := NewBuilder([]string{filepath.Join(dir, "does-not-exist"), dir, ""}).List()

	assert.Len(t, entries(list), 1)
}

func TestBuilder_SkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.dll"), 0o755))
	real := touch(t, dir, "real.dll")

	list := NewBuilder([]string{dir}).List()

	assert.Equal(t, []string{real}, entries(list))
}

func TestBuilder_ListTerminatedAndCached(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "one.dll")

	b := NewBuilder([]string{dir})
	first := b.List()
	require.True(t, strings.HasSuffix(first, ListSeparator))

	// Later directory changes are not observed.
	touch(t, dir, "two.dll")
	assert.Equal(t, first, b.List())
}

func TestBuilder_Resolve(t *testing.T) {
	dir := t.TempDir()
	path := touch(t, dir, "mathlib.ni.dll")

	b := NewBuilder([]string{dir})

	got, ok := b.Resolve("MathLib")
	require.True(t, ok)
	assert.Equal(t, path, got)

	_, ok = b.Resolve("missing")
	assert.False(t, ok)
}

func TestBuilder_CustomExtensionOrder(t *testing.T) {
	dir := t.TempDir()
	exe := touch(t, dir, "tool.exe")
	touch(t, dir, "tool.dll")

	list := NewBuilder([]string{dir}, WithExtensions([]string{"*.exe", "*.dll"})).List()

	assert.Equal(t, []string{exe}, entries(list))
}
