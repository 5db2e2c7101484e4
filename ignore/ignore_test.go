package ignore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeIgnore(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))
}

func TestParseDropsCommentsAndBlanks(t *testing.T) {
	patterns, err := Parse(strings.NewReader("# build output\n\n*.log\r\nbuild/  \n   \n!keep.log\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"*.log", "build/", "!keep.log"}, patterns)
}

func TestReadFileMissingIsEmpty(t *testing.T) {
	patterns, err := ReadFile(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	assert.Empty(t, patterns)
}

func TestNewWithoutIgnoreFiles(t *testing.T) {
	src := t.TempDir()
	s, err := New(src, t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, s.Patterns())
	assert.False(t, s.IsIgnored(filepath.Join(src, "x.log")))
}

func TestNewUnionsBothRoots(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeIgnore(t, src, "*.log\n")
	writeIgnore(t, dst, "*.tmp\n")

	s, err := New(src, dst)
	require.NoError(t, err)
	assert.Equal(t, []string{"*.log", "*.tmp"}, s.Patterns())

	// 目标目录的规则按相对监控目录的路径匹配
	assert.True(t, s.IsIgnored(filepath.Join(src, "x.log")))
	assert.True(t, s.IsIgnored(filepath.Join(src, "sub", "y.tmp")))
	assert.False(t, s.IsIgnored(filepath.Join(src, "a.txt")))
}

func TestNewWatchOnlySkipsCopyRoot(t *testing.T) {
	src := t.TempDir()
	writeIgnore(t, src, "*.log\n")

	s, err := New(src, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"*.log"}, s.Patterns())
}

func TestIsIgnored(t *testing.T) {
	root := t.TempDir()
	s := FromPatterns(root, []string{"*.log", "!keep.log", "build/", "/secret.txt", "docs/**/*.tmp"})

	cases := []struct {
		path   string
		ignore bool
	}{
		{"x.log", true},
		{"deep/nested/x.log", true},
		{"keep.log", false},
		{"a.txt", false},
		{"build/out.o", true},
		{"secret.txt", true},
		{"sub/secret.txt", false},
		{"docs/a.tmp", true},
		{"docs/x/y/a.tmp", true},
		{"a.tmp", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ignore, s.IsIgnored(c.path), "relative %s", c.path)
		abs := filepath.Join(root, filepath.FromSlash(c.path))
		assert.Equal(t, c.ignore, s.IsIgnored(abs), "absolute %s", abs)
	}
}

func TestIsIgnoredDir(t *testing.T) {
	root := t.TempDir()
	s := FromPatterns(root, []string{"build/"})

	assert.True(t, s.IsIgnoredDir(filepath.Join(root, "build")))
	assert.False(t, s.IsIgnored(filepath.Join(root, "build")))
	assert.True(t, s.Match(filepath.Join(root, "build"), true))
	assert.False(t, s.Match(filepath.Join(root, "build"), false))
}

func TestRootAndOutsidePathsNeverIgnored(t *testing.T) {
	root := t.TempDir()
	s := FromPatterns(root, []string{"*"})

	assert.False(t, s.IsIgnored(root))
	assert.False(t, s.IsIgnoredDir(root))
	assert.False(t, s.IsIgnored(filepath.Join(filepath.Dir(root), "other.txt")))
	assert.True(t, s.IsIgnored(filepath.Join(root, "any.txt")))
}
