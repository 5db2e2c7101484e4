// Package report 把变更记录打印到终端。
package report

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/shuakami/dirmirror/ledger"
)

// Option 用于配置 Console
type Option func(*Console)

// WithColor 强制开启或关闭颜色
func WithColor(enabled bool) Option {
	return func(c *Console) { c.color = enabled }
}

// Console 每次打印完整的记录列表，每条一行
//
// 彩色模式下新增为绿色、修改为黄色、删除为红色；
// 否则用 "+ "、"~ "、"- " 前缀区分。
type Console struct {
	mu    sync.Mutex
	out   io.Writer
	color bool                         // 是否输出 ANSI 颜色
	paint map[ledger.Kind]*color.Color // 每种变更类型对应的颜色
}

// NewConsole 返回写入 out 的 Console；out 是终端时默认开启颜色
func NewConsole(out io.Writer, opts ...Option) *Console {
	c := &Console{out: out, color: isTerminal(out)}
	for _, opt := range opts {
		opt(c)
	}
	c.paint = map[ledger.Kind]*color.Color{
		ledger.Added:   color.New(color.FgHiGreen),
		ledger.Changed: color.New(color.FgHiYellow),
		ledger.Removed: color.New(color.FgHiRed),
	}
	for _, p := range c.paint {
		if c.color {
			p.EnableColor()
		} else {
			p.DisableColor()
		}
	}
	return c
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Report 先打印一个空行，再逐条打印记录
func (c *Console) Report(records []ledger.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintln(c.out)
	for _, r := range records {
		fmt.Fprintln(c.out, c.format(r))
	}
}

func (c *Console) format(r ledger.Record) string {
	if c.color {
		return c.painter(r.Kind).Sprint(r.Path)
	}
	return marker(r.Kind) + r.Path
}

func (c *Console) painter(k ledger.Kind) *color.Color {
	if p, ok := c.paint[k]; ok {
		return p
	}
	return c.paint[ledger.Removed]
}

func marker(k ledger.Kind) string {
	switch k {
	case ledger.Added:
		return "+ "
	case ledger.Changed:
		return "~ "
	default:
		return "- "
	}
}
