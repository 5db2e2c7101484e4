package watcher

import "fmt"

// EventKind 表示整理后的文件系统事件类型
type EventKind int

const (
	Added      EventKind = iota // 新增文件
	AddedDir                    // 新增目录
	Changed                     // 文件内容修改
	Removed                     // 删除文件
	RemovedDir                  // 删除目录
	Error                       // 监控出错
	Ready                       // 初始扫描结束
)

func (k EventKind) String() string {
	switch k {
	case Added:
		return "add"
	case AddedDir:
		return "addDir"
	case Changed:
		return "change"
	case Removed:
		return "unlink"
	case RemovedDir:
		return "unlinkDir"
	case Error:
		return "error"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Event 表示 Watcher 投递给外部的事件
//
// Kind：事件类型
// Path：文件或目录的绝对路径，Ready 时为空
// Err：仅 Error 事件有值
type Event struct {
	Kind EventKind
	Path string
	Err  error
}

func (e Event) String() string {
	if e.Kind == Error {
		return fmt.Sprintf("%s %s: %v", e.Kind, e.Path, e.Err)
	}
	if e.Path == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s %s", e.Kind, e.Path)
}

// Filter 决定哪些路径在订阅边界就被排除，返回 true 表示排除
type Filter interface {
	Match(path string, isDir bool) bool
}

// FilterFunc 把普通函数适配成 Filter
type FilterFunc func(path string, isDir bool) bool

func (f FilterFunc) Match(path string, isDir bool) bool { return f(path, isDir) }
