package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer 供日志和报告两个写入方并发使用
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// TestRunVersion 测试 --version
func TestRunVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--version"}, &stdout, &stderr)
	assert.Equal(t, 0, code)
	assert.Equal(t, version+"\n", stdout.String())
}

// TestRunHelp 测试 -h
func TestRunHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-h"}, &stdout, &stderr)
	assert.Equal(t, 0, code)
	assert.Contains(t, stderr.String(), "--poll")
}

// TestRunConfigErrors 测试配置错误时退出码为 1
func TestRunConfigErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run(context.Background(), nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "--poll is required")

	stderr.Reset()
	missing := filepath.Join(t.TempDir(), "missing")
	assert.Equal(t, 1, run(context.Background(), []string{"-p", missing}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "does not exist")
}

// TestRunMirrorsUntilCanceled 测试完整流程：启动、同步一个新文件、取消后退出码为 0
func TestRunMirrorsUntilCanceled(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	src, dst := t.TempDir(), t.TempDir()
	out := &syncBuffer{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan int, 1)
	go func() {
		done <- run(ctx, []string{"-p", src, "-c", dst, "--debounce", "20ms"}, out, out)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Initial scan complete")
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("hello"), 0o644))
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(filepath.Join(dst, "a.txt"))
		return err == nil && string(data) == "hello"
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "+ a.txt")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case code := <-done:
		assert.Equal(t, 0, code)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
	assert.Contains(t, out.String(), "Polling directory: "+src)
	assert.Contains(t, out.String(), "Copy to directory: "+dst)
}

// TestRunCanceledBeforeStart 测试启动前已收到退出信号时正常退出
func TestRunCanceledBeforeStart(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan int, 1)
	go func() {
		done <- run(ctx, []string{"-p", t.TempDir()}, &syncBuffer{}, &syncBuffer{})
	}()
	select {
	case code := <-done:
		assert.Equal(t, 0, code)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return")
	}
}
