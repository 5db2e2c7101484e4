// Package ledger 记录一次运行期间在监控根目录下观察到的所有变更，按路径首次出现的顺序保存。
package ledger

import (
	"fmt"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind 表示某个路径最近一次的变更类型
type Kind int

const (
	Added   Kind = iota // 新增
	Changed             // 修改
	Removed             // 删除
)

func (k Kind) String() string {
	switch k {
	case Added:
		return "added"
	case Changed:
		return "changed"
	case Removed:
		return "removed"
	default:
		return fmt.Sprintf("unknown_kind(%d)", int(k))
	}
}

// Record 表示某个路径当前的记录
type Record struct {
	Path string // 相对监控根目录的路径
	Kind Kind   // 最近一次的变更类型
}

// Ledger 保存 路径 -> 最近一次变更类型 的映射
//
// mu：对 entries 的读写上锁，允许在引擎之外的goroutine读取
// entries：有序映射，Set 已存在的键只更新值、不改变位置
//
// 记录只增不删。
type Ledger struct {
	mu      sync.RWMutex
	entries *orderedmap.OrderedMap[string, Kind]
}

// New 返回一个空的 Ledger
func New() *Ledger {
	return &Ledger{entries: orderedmap.New[string, Kind]()}
}

// Record 设置 path 的变更类型；已存在的路径保持原来的位置，只覆盖类型
func (l *Ledger) Record(path string, kind Kind) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries.Set(path, kind)
}

// Get 返回 path 当前的变更类型
func (l *Ledger) Get(path string) (Kind, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries.Get(path)
}

// Len 返回记录过的不同路径数量
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries.Len()
}

// Snapshot 按首次出现的顺序返回所有记录，不会清空 Ledger
func (l *Ledger) Snapshot() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Record, 0, l.entries.Len())
	for pair := l.entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, Record{Path: pair.Key, Kind: pair.Value})
	}
	return out
}
