package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	defaultDebounce = 50 * time.Millisecond
	defaultBuffer   = 1024
)

var (
	errStarted = errors.New("watcher already started")
	errStopped = errors.New("watcher already stopped")
)

// Config 用于配置 Watcher
//
// Root：需要监控的根目录，递归监控其下所有目录
// Filter：排除规则，在事件入队之前生效；被排除的目录根本不会被监控
// Debounce：事件合并的时间窗口, 默认 50ms
// Buffer：Events 通道的容量, 默认 1024
// Logger：日志输出，为空时使用 slog.Default()
type Config struct {
	Root     string        // 监控根目录
	Filter   Filter        // 排除规则(可为空)
	Debounce time.Duration // 事件合并窗口, 默认 50ms
	Buffer   int           // 事件通道容量, 默认 1024
	Logger   *slog.Logger  // 日志
}

// Watcher 负责递归监控 Root，并把 fsnotify 的原始事件整理成统一的事件流
//
// fsWatcher：底层使用github.com/fsnotify/fsnotify进行文件系统事件捕捉
// stopChan：用于停止所有后台goroutine
// dirs, files：已知存在的目录和文件，用来区分"新增"和"修改"、"删除文件"和"删除目录"
// gone：已经报告过删除的目录
// aggChan, aggOrder, aggMap, aggTicker：用于事件合并（Debounce），保持路径首次出现的顺序
// events：向外部暴露的事件通道，只有一个goroutine写入
type Watcher struct {
	cfg       Config
	root      string
	logger    *slog.Logger
	fsWatcher *fsnotify.Watcher

	// 生命周期
	startMu  sync.Mutex
	started  bool
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// 已知路径
	knownMu sync.Mutex
	dirs    map[string]struct{}
	files   map[string]struct{}
	// inotify 会对同一个被删除的目录报告两次：父目录一次，目录自身的 watch 一次
	gone map[string]struct{}

	// 事件合并(防抖)
	aggChan   chan fsnotify.Event
	errChan   chan error
	aggOrder  []string
	aggMap    map[string]fsnotify.Op
	aggTicker *time.Ticker

	events chan Event
}

// NewWatcher 根据给定配置创建一个新的 Watcher
//
// 若 cfg.Debounce <= 0，则默认使用 50ms；若 cfg.Buffer <= 0，则默认使用 1024。
// 在调用 Start 之前不会监控任何目录。
func NewWatcher(cfg Config) (*Watcher, error) {
	if cfg.Root == "" {
		return nil, errors.New("watcher: empty root")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultBuffer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", cfg.Root, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		cfg:       cfg,
		root:      filepath.Clean(root),
		logger:    logger,
		fsWatcher: fsw,
		stopChan:  make(chan struct{}),
		dirs:      make(map[string]struct{}),
		files:     make(map[string]struct{}),
		gone:      make(map[string]struct{}),
		aggChan:   make(chan fsnotify.Event, 4096),
		errChan:   make(chan error, 16),
		aggMap:    make(map[string]fsnotify.Op),
		events:    make(chan Event, cfg.Buffer),
	}, nil
}

// Root 返回监控根目录的绝对路径
func (w *Watcher) Root() string { return w.root }

// Events 返回事件通道，Stop 之后关闭
func (w *Watcher) Events() <-chan Event { return w.events }

// Start 开始监控
//
// 只有 Root 本身无法监控时才返回错误；Root 之下的问题以 Error 事件的形式投递。
// 启动前已经存在的文件不会产生事件。Start 可以与 Stop 并发调用：
// 扫描途中被 Stop 打断时直接返回，不再启动后台goroutine。
func (w *Watcher) Start() error {
	w.startMu.Lock()
	defer w.startMu.Unlock()
	if w.started {
		return errStarted
	}
	w.started = true
	if w.stopped() {
		return errStopped
	}

	// 1) 检查并监控根目录
	info, err := os.Stat(w.root)
	if err != nil {
		return fmt.Errorf("failed to stat watch root %s: %w", w.root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch root %s is not a directory", w.root)
	}
	if err := w.fsWatcher.Add(w.root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.root, err)
	}
	w.rememberDir(w.root)

	// 2) 递归添加子目录，记住已有文件，然后通知 Ready
	w.scan(w.root, false)
	if w.stopped() {
		return nil
	}
	w.emit(Event{Kind: Ready})

	// 3) 启动事件合并goroutine 和 fsnotify 事件读取goroutine
	w.aggTicker = time.NewTicker(w.cfg.Debounce)
	w.wg.Add(2)
	go w.runFsNotify()
	go w.runAggregator()
	return nil
}

// Stop 停止监控
//
// 关闭 stopChan 和底层 fsnotify.Watcher，等待后台goroutine退出，最后关闭 Events。
// 合并窗口中尚未处理的事件会被丢弃。可以重复调用。
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		_ = w.fsWatcher.Close()

		// 等待进行中的 Start 结束，它之后不会再写 events
		w.startMu.Lock()
		if w.aggTicker != nil {
			w.aggTicker.Stop()
		}
		w.startMu.Unlock()

		w.wg.Wait()
		close(w.events)
	})
}

func (w *Watcher) stopped() bool {
	select {
	case <-w.stopChan:
		return true
	default:
		return false
	}
}

// scan 遍历 dir，监控并记住找到的目录和文件
// announce 为 true 时，每个条目同时作为新增事件发出
func (w *Watcher) scan(dir string, announce bool) {
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if w.stopped() {
			return filepath.SkipAll
		}
		if err != nil {
			if p == dir {
				return err
			}
			w.emit(Event{Kind: Error, Path: p, Err: err})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if p == dir {
			return nil
		}
		if d.IsDir() {
			if w.isIgnored(p, true) {
				return filepath.SkipDir
			}
			if err := w.fsWatcher.Add(p); err != nil {
				w.emit(Event{Kind: Error, Path: p, Err: fmt.Errorf("cannot watch dir: %w", err)})
			} else {
				w.logger.Debug("watch added", "path", p)
			}
			if w.rememberDir(p) && announce {
				w.emit(Event{Kind: AddedDir, Path: p})
			}
			return nil
		}
		if w.isIgnored(p, false) {
			return nil
		}
		if w.rememberFile(p) && announce {
			w.emit(Event{Kind: Added, Path: p})
		}
		return nil
	})
	if err != nil {
		w.emit(Event{Kind: Error, Path: dir, Err: err})
	}
}

// runFsNotify 读取 fsnotify 事件，丢弃被排除的路径，其余投递到合并队列
func (w *Watcher) runFsNotify() {
	defer w.wg.Done()
	for {
		select {
		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if w.isIgnored(ev.Name, w.looksLikeDir(ev.Name)) {
				continue
			}
			select {
			case w.aggChan <- ev:
			case <-w.stopChan:
				return
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errChan <- err:
			case <-w.stopChan:
				return
			}

		case <-w.stopChan:
			return
		}
	}
}

// runAggregator 按路径合并事件，每个 tick 统一 flush
// Start 之后它是唯一写 events 的goroutine
func (w *Watcher) runAggregator() {
	defer w.wg.Done()
	for {
		select {
		case ev := <-w.aggChan:
			op, ok := w.aggMap[ev.Name]
			if !ok {
				w.aggOrder = append(w.aggOrder, ev.Name)
			}
			w.aggMap[ev.Name] = op | ev.Op

		case err := <-w.errChan:
			w.emit(Event{Kind: Error, Err: err})

		case <-w.aggTicker.C:
			w.flushAgg()

		case <-w.stopChan:
			return
		}
	}
}

// flushAgg 按首次出现的顺序处理合并队列中的路径
func (w *Watcher) flushAgg() {
	if len(w.aggOrder) == 0 {
		return
	}
	order, ops := w.aggOrder, w.aggMap
	w.aggOrder = nil
	w.aggMap = make(map[string]fsnotify.Op, len(ops))

	for _, p := range order {
		w.handleFileChange(p, ops[p])
	}
}

// handleFileChange 根据合并后的 op 和磁盘上的当前状态，为 path 发出零个或多个事件
func (w *Watcher) handleFileChange(path string, op fsnotify.Op) {
	info, statErr := os.Lstat(path)
	if statErr != nil {
		if !errors.Is(statErr, fs.ErrNotExist) {
			w.emit(Event{Kind: Error, Path: path, Err: statErr})
			return
		}
		// 只报告曾经知道的路径；同一窗口内创建又删除的文件不产生事件
		wasDir, wasFile, _ := w.forget(path)
		switch {
		case wasDir:
			w.emit(Event{Kind: RemovedDir, Path: path})
		case wasFile:
			w.emit(Event{Kind: Removed, Path: path})
		}
		return
	}

	if info.IsDir() {
		if w.isKnownDir(path) {
			return
		}
		if err := w.fsWatcher.Add(path); err != nil {
			w.emit(Event{Kind: Error, Path: path, Err: fmt.Errorf("cannot watch dir: %w", err)})
		} else {
			w.logger.Debug("watch added", "path", path)
		}
		w.rememberDir(path)
		w.emit(Event{Kind: AddedDir, Path: path})
		// 补上 watch 生效之前已经创建的内容
		w.scan(path, true)
		return
	}

	if op == fsnotify.Chmod {
		return
	}
	if w.rememberFile(path) {
		w.emit(Event{Kind: Added, Path: path})
		return
	}
	w.emit(Event{Kind: Changed, Path: path})
}

// emit 投递一个事件，通道满时阻塞，直到 Stop
func (w *Watcher) emit(ev Event) {
	select {
	case w.events <- ev:
	case <-w.stopChan:
	}
}

func (w *Watcher) isIgnored(path string, isDir bool) bool {
	if w.cfg.Filter == nil || path == w.root {
		return false
	}
	return w.cfg.Filter.Match(path, isDir)
}

// looksLikeDir 判断 path 是已知目录，或者当前磁盘上是一个目录
func (w *Watcher) looksLikeDir(path string) bool {
	if w.isKnownDir(path) {
		return true
	}
	fi, err := os.Lstat(path)
	return err == nil && fi.IsDir()
}

func (w *Watcher) isKnownDir(path string) bool {
	w.knownMu.Lock()
	defer w.knownMu.Unlock()
	_, ok := w.dirs[path]
	return ok
}

// rememberDir 记住目录，之前不知道时返回 true
func (w *Watcher) rememberDir(path string) bool {
	w.knownMu.Lock()
	defer w.knownMu.Unlock()
	if _, ok := w.dirs[path]; ok {
		return false
	}
	w.dirs[path] = struct{}{}
	delete(w.files, path)
	delete(w.gone, path)
	return true
}

// rememberFile 记住文件，之前不知道时返回 true
func (w *Watcher) rememberFile(path string) bool {
	w.knownMu.Lock()
	defer w.knownMu.Unlock()
	if _, ok := w.files[path]; ok {
		return false
	}
	w.files[path] = struct{}{}
	delete(w.dirs, path)
	delete(w.gone, path)
	return true
}

// forget 删除 path 的记录；如果是目录，连同其下所有记录一起删除
// seen 为 true 表示该目录的删除已经报告过
func (w *Watcher) forget(path string) (wasDir, wasFile, seen bool) {
	w.knownMu.Lock()
	defer w.knownMu.Unlock()
	if _, seen = w.gone[path]; seen {
		delete(w.gone, path)
		return false, false, true
	}
	if _, wasFile = w.files[path]; wasFile {
		delete(w.files, path)
	}
	if _, wasDir = w.dirs[path]; !wasDir {
		return wasDir, wasFile, false
	}
	delete(w.dirs, path)
	w.gone[path] = struct{}{}
	prefix := path + string(filepath.Separator)
	for d := range w.dirs {
		if strings.HasPrefix(d, prefix) {
			delete(w.dirs, d)
		}
	}
	for f := range w.files {
		if strings.HasPrefix(f, prefix) {
			delete(w.files, f)
		}
	}
	return wasDir, wasFile, false
}
