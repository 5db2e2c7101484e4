// Package engine 消费 watcher 事件，维护变更记录，并驱动同步和报告。
//
// 处理流程：
//  1. 收到 Ready 之前的文件事件一律丢弃（启动时已存在的文件不同步）
//  2. 被忽略的路径直接跳过
//  3. 记录到 Ledger，再交给 Mirror 同步；同步失败只记日志，记录保留
//  4. 每记录一次就打印一次完整的变更列表
//
// 目录事件只记日志。
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/shuakami/dirmirror/ledger"
	"github.com/shuakami/dirmirror/watcher"
)

// State 表示引擎所处的生命周期阶段
type State int32

const (
	Initializing State = iota // 已创建，尚未开始消费
	Scanning                  // 正在消费，等待 Ready
	Watching                  // 已收到 Ready，处理变更
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Scanning:
		return "scanning"
	case Watching:
		return "watching"
	default:
		return fmt.Sprintf("unknown_state(%d)", int32(s))
	}
}

// Filter 判断路径是否被忽略
type Filter interface {
	IsIgnored(path string) bool
}

// Applier 对一次变更执行同步
type Applier interface {
	Apply(sourcePath string, kind ledger.Kind) error
}

// Reporter 在每次记录变更后展示完整的变更列表
type Reporter interface {
	Report(records []ledger.Record)
}

// Options 用于组装 Engine
//
// 为空的协作者使用什么都不做的默认实现，为空的 Ledger 使用一个新的空 Ledger。
type Options struct {
	Root     string         // 监控根目录，Ledger 的键是相对它的路径
	Ignore   Filter         // 忽略规则
	Ledger   *ledger.Ledger // 变更记录
	Mirror   Applier        // 同步
	Reporter Reporter       // 报告
	Logger   *slog.Logger   // 日志，默认 slog.Default()
}

// Engine 是 watcher 事件唯一的消费者
type Engine struct {
	root     string         // 监控根目录(绝对路径)
	ignore   Filter         // 忽略规则
	ledger   *ledger.Ledger // 变更记录
	mirror   Applier        // 同步
	reporter Reporter       // 报告
	logger   *slog.Logger   // 日志
	state    atomic.Int32   // 当前阶段(State)，可以在其它goroutine中读取
}

type nopFilter struct{}

func (nopFilter) IsIgnored(string) bool { return false }

type nopApplier struct{}

func (nopApplier) Apply(string, ledger.Kind) error { return nil }

type nopReporter struct{}

func (nopReporter) Report([]ledger.Record) {}

// New 返回处于 Initializing 阶段的 Engine
func New(opts Options) *Engine {
	e := &Engine{
		ignore:   opts.Ignore,
		ledger:   opts.Ledger,
		mirror:   opts.Mirror,
		reporter: opts.Reporter,
		logger:   opts.Logger,
	}
	if opts.Root != "" {
		if abs, err := filepath.Abs(opts.Root); err == nil {
			e.root = abs
		} else {
			e.root = filepath.Clean(opts.Root)
		}
	}
	if e.ignore == nil {
		e.ignore = nopFilter{}
	}
	if e.ledger == nil {
		e.ledger = ledger.New()
	}
	if e.mirror == nil {
		e.mirror = nopApplier{}
	}
	if e.reporter == nil {
		e.reporter = nopReporter{}
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// State 返回当前阶段
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Ledger 返回引擎写入的变更记录
func (e *Engine) Ledger() *ledger.Ledger {
	return e.ledger
}

// Run 按投递顺序处理事件，直到 ctx 结束或 events 被关闭，两种情况都返回 nil
func (e *Engine) Run(ctx context.Context, events <-chan watcher.Event) error {
	e.state.CompareAndSwap(int32(Initializing), int32(Scanning))
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			e.HandleEvent(ev)
		}
	}
}

// HandleEvent 完整处理一个事件后返回
func (e *Engine) HandleEvent(ev watcher.Event) {
	switch ev.Kind {
	case watcher.Ready:
		e.state.Store(int32(Watching))
		e.logger.Info("Initial scan complete. Ready for changes.")
	case watcher.Added:
		e.handleChange(ev.Path, ledger.Added)
	case watcher.Changed:
		e.handleChange(ev.Path, ledger.Changed)
	case watcher.Removed:
		e.handleChange(ev.Path, ledger.Removed)
	case watcher.AddedDir:
		e.logger.Info(fmt.Sprintf("Directory %s has been added", ev.Path))
	case watcher.RemovedDir:
		// 目标目录及其中残留的文件保留
		e.logger.Info(fmt.Sprintf("Directory %s has been removed", ev.Path))
	case watcher.Error:
		e.logger.Error("Error happened", "path", ev.Path, "err", ev.Err)
	default:
		e.logger.Warn("unknown event", "kind", ev.Kind.String(), "path", ev.Path)
	}
}

func (e *Engine) handleChange(path string, kind ledger.Kind) {
	if e.State() != Watching {
		e.logger.Debug("event before ready dropped", "path", path, "kind", kind.String())
		return
	}
	if e.ignore.IsIgnored(path) {
		e.logger.Debug("ignored", "path", path)
		return
	}

	e.ledger.Record(e.key(path), kind)
	if err := e.mirror.Apply(path, kind); err != nil {
		e.logger.Error("mirror failed", "path", path, "kind", kind.String(), "err", err)
	}
	e.reporter.Report(e.ledger.Snapshot())
}

// key 返回 path 在 Ledger 中的键：位于根目录之下时为相对路径，统一用 / 分隔
func (e *Engine) key(path string) string {
	if e.root == "" || !filepath.IsAbs(path) {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(e.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
