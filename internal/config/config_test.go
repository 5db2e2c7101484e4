package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseShortAndLongFlags(t *testing.T) {
	poll := t.TempDir()
	dest := t.TempDir()

	cfg, err := Parse([]string{"-p", poll, "--copy=" + dest}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, poll, cfg.Poll)
	assert.Equal(t, dest, cfg.Copy)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 50*time.Millisecond, cfg.DebounceDuration)
}

func TestParseWatchOnly(t *testing.T) {
	cfg, err := Parse([]string{"--poll", t.TempDir()}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Empty(t, cfg.Copy)
}

func TestParseRelativePollIsResolved(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(base, "src"), 0o755))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(base))
	defer os.Chdir(wd)

	cfg, err := Parse([]string{"-p", "src"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(cfg.Poll))
	assert.Equal(t, "src", filepath.Base(cfg.Poll))
}

func TestParseRequiresPoll(t *testing.T) {
	_, err := Parse([]string{"-c", t.TempDir()}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--poll is required")
}

func TestParseRejectsBadPoll(t *testing.T) {
	base := t.TempDir()

	_, err := Parse([]string{"-p", filepath.Join(base, "missing")}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	file := filepath.Join(base, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = Parse([]string{"-p", file}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestParseRejectsCopyInsidePoll(t *testing.T) {
	poll := t.TempDir()

	_, err := Parse([]string{"-p", poll, "-c", filepath.Join(poll, "mirror")}, &bytes.Buffer{})
	require.Error(t, err)

	_, err = Parse([]string{"-p", poll, "-c", poll}, &bytes.Buffer{})
	require.Error(t, err)

	// 名字以 ".." 开头的兄弟目录是允许的
	_, err = Parse([]string{"-p", poll, "-c", filepath.Join(filepath.Dir(poll), "..mirror")}, &bytes.Buffer{})
	require.NoError(t, err)
}

func TestParseRejectsBadLevelAndDebounce(t *testing.T) {
	poll := t.TempDir()

	_, err := Parse([]string{"-p", poll, "--log-level", "loud"}, &bytes.Buffer{})
	assert.Error(t, err)

	_, err = Parse([]string{"-p", poll, "--debounce", "soon"}, &bytes.Buffer{})
	assert.Error(t, err)

	_, err = Parse([]string{"-p", poll, "--debounce", "0s"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestParseHelpAndVersion(t *testing.T) {
	var out bytes.Buffer
	_, err := Parse([]string{"--help"}, &out)
	assert.True(t, errors.Is(err, ErrHelp))
	assert.Contains(t, out.String(), "--poll")

	cfg, err := Parse([]string{"-V"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.True(t, cfg.ShowVersion)
}

func TestParseRejectsPositionalArgs(t *testing.T) {
	_, err := Parse([]string{"-p", t.TempDir(), "extra"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestParseConfigFileWithFlagOverride(t *testing.T) {
	poll := t.TempDir()
	fileDest := t.TempDir()
	flagDest := t.TempDir()

	path := filepath.Join(t.TempDir(), "dirmirror.yaml")
	content := "poll: " + poll + "\ncopy: " + fileDest + "\nlog_level: debug\ndebounce: 200ms\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Parse([]string{"--config", path}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, poll, cfg.Poll)
	assert.Equal(t, fileDest, cfg.Copy)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 200*time.Millisecond, cfg.DebounceDuration)

	cfg, err = Parse([]string{"--config", path, "-c", flagDest, "--log-level", "warn"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, flagDest, cfg.Copy)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 200*time.Millisecond, cfg.DebounceDuration)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("poll: [unclosed"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}
