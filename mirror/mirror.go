// Package mirror 把监控目录中的变更同步到目标目录。
//
// 目标路径由相对路径换算得到：rel(watchRoot, src) 拼接到 copyRoot 之后。
// 新增和修改时先创建父目录再整体复制，删除时删除目标文件。目标目录为空时什么都不做。
package mirror

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/shuakami/dirmirror/ledger"
)

const copyBufferSize = 256 * 1024

// ErrOutsideRoot 表示源路径不在监控根目录之下
var ErrOutsideRoot = errors.New("path is outside the watch root")

// IOError 表示某个目标路径同步失败，失败的事件不会重试
type IOError struct {
	Op   string // "mkdir"、"copy" 或 "remove"
	Path string // 目标路径
	Err  error  // 底层错误
}

func (e *IOError) Error() string {
	return fmt.Sprintf("mirror %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Option 用于配置 Mirror
type Option func(*Mirror)

// WithLogger 设置日志
func WithLogger(logger *slog.Logger) Option {
	return func(m *Mirror) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Mirror 根据 watchRoot 下的变更复制或删除 copyRoot 下的文件
type Mirror struct {
	watchRoot string       // 监控根目录(绝对路径)
	copyRoot  string       // 目标根目录，为空表示只监控不同步
	logger    *slog.Logger // 日志
	buffers   sync.Pool    // 复制用的缓冲区池
}

// New 返回把 watchRoot 下的路径映射到 copyRoot 下的 Mirror
func New(watchRoot, copyRoot string, opts ...Option) *Mirror {
	m := &Mirror{
		watchRoot: cleanAbs(watchRoot),
		logger:    slog.Default(),
	}
	if copyRoot != "" {
		m.copyRoot = cleanAbs(copyRoot)
	}
	m.buffers.New = func() any {
		b := make([]byte, copyBufferSize)
		return &b
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func cleanAbs(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// Enabled 表示是否配置了目标目录
func (m *Mirror) Enabled() bool {
	return m.copyRoot != ""
}

// Destination 返回源路径在目标目录下对应的路径，相对路径视为相对监控根目录
func (m *Mirror) Destination(sourcePath string) (string, error) {
	if !filepath.IsAbs(sourcePath) {
		sourcePath = filepath.Join(m.watchRoot, sourcePath)
	}
	rel, err := filepath.Rel(m.watchRoot, filepath.Clean(sourcePath))
	if err != nil {
		return "", fmt.Errorf("%s: %w", sourcePath, ErrOutsideRoot)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", sourcePath, ErrOutsideRoot)
	}
	return filepath.Join(m.copyRoot, rel), nil
}

// Apply 对 sourcePath 的目标路径执行 kind 对应的操作
//
// Added/Changed：创建父目录后复制(覆盖)；创建目录失败时不再复制。
// Removed：删除目标文件；目标不存在时返回 nil。
func (m *Mirror) Apply(sourcePath string, kind ledger.Kind) error {
	if !m.Enabled() {
		return nil
	}
	if !filepath.IsAbs(sourcePath) {
		sourcePath = filepath.Join(m.watchRoot, sourcePath)
	}
	dest, err := m.Destination(sourcePath)
	if err != nil {
		return err
	}

	switch kind {
	case ledger.Added, ledger.Changed:
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return &IOError{Op: "mkdir", Path: filepath.Dir(dest), Err: err}
		}
		if err := m.copyFile(sourcePath, dest); err != nil {
			return &IOError{Op: "copy", Path: dest, Err: err}
		}
		m.logger.Debug("mirrored file", "src", sourcePath, "dst", dest, "kind", kind.String())
		return nil
	case ledger.Removed:
		err := os.Remove(dest)
		if errors.Is(err, fs.ErrNotExist) {
			m.logger.Debug("nothing to remove", "dst", dest)
			return nil
		}
		if err != nil {
			return &IOError{Op: "remove", Path: dest, Err: err}
		}
		m.logger.Debug("removed mirrored file", "dst", dest)
		return nil
	default:
		return fmt.Errorf("mirror %s: unsupported kind %s", sourcePath, kind)
	}
}

func (m *Mirror) copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}

	bufPtr := m.buffers.Get().(*[]byte)
	defer m.buffers.Put(bufPtr)

	if _, err := io.CopyBuffer(out, in, *bufPtr); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
