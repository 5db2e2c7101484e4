// Package logger 初始化 log/slog：文本格式输出到标准输出，可选同时追加写入日志文件。
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ParseLevel 把 "debug"、"info"、"warn"/"warning"、"error" 转换为日志级别，空字符串视为 info
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// Setup 创建写入 out 的文本日志；logPath 不为空时同时追加写入该文件
//
// 返回的 logger 会被设置为 slog 默认 logger，debug 级别时附带源码位置。
// 调用方负责关闭返回的 closer。
func Setup(levelStr, logPath string, out io.Writer) (*slog.Logger, io.Closer, error) {
	level, ok := ParseLevel(levelStr)
	if !ok {
		return nil, nil, fmt.Errorf("unknown log level %q", levelStr)
	}
	if out == nil {
		out = os.Stdout
	}

	var closer io.Closer = nopCloser{}
	writer := out
	if logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		writer = io.MultiWriter(out, file)
		closer = file
	}

	logger := slog.New(slog.NewTextHandler(writer, &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}))
	slog.SetDefault(logger)
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
