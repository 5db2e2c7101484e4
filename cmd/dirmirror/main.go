// dirmirror 监控一个目录，把其中文件的新增、修改、删除实时同步到另一个目录，并在终端打印累计的变更列表。
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/shuakami/dirmirror/engine"
	"github.com/shuakami/dirmirror/ignore"
	"github.com/shuakami/dirmirror/internal/config"
	"github.com/shuakami/dirmirror/internal/logger"
	"github.com/shuakami/dirmirror/ledger"
	"github.com/shuakami/dirmirror/mirror"
	"github.com/shuakami/dirmirror/report"
	"github.com/shuakami/dirmirror/watcher"
)

// 通过 -ldflags "-X main.version=..." 设置
var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run 运行到 ctx 结束，返回进程退出码
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	// 1) 解析配置
	cfg, err := config.Parse(args, stderr)
	if err != nil {
		if errors.Is(err, config.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	if cfg.ShowVersion {
		fmt.Fprintln(stdout, version)
		return 0
	}

	// 2) 初始化日志
	log, closer, err := logger.Setup(cfg.LogLevel, cfg.LogFile, stdout)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	defer closer.Close()

	fmt.Fprintln(stdout, "Polling directory: "+cfg.Poll)
	fmt.Fprintln(stdout, "Copy to directory: "+cfg.Copy)

	// 3) 加载忽略规则，创建 watcher 和引擎
	set, err := ignore.New(cfg.Poll, cfg.Copy)
	if err != nil {
		log.Error("failed to load ignore files", "err", err)
		return 1
	}
	log.Info("Ignored patterns", "root", cfg.Poll, "patterns", set.Patterns())

	w, err := watcher.NewWatcher(watcher.Config{
		Root:     cfg.Poll,
		Filter:   set,
		Debounce: cfg.DebounceDuration,
		Logger:   log,
	})
	if err != nil {
		log.Error("failed to create watcher", "err", err)
		return 1
	}
	defer w.Stop()

	eng := engine.New(engine.Options{
		Root:     cfg.Poll,
		Ignore:   set,
		Ledger:   ledger.New(),
		Mirror:   mirror.New(cfg.Poll, cfg.Copy, mirror.WithLogger(log)),
		Reporter: report.NewConsole(stdout),
		Logger:   log,
	})

	// 4) 先启动消费者和退出处理，再开始扫描：Start 会同步投递 Ready，
	// 扫描途中收到信号时也要能通过 Stop 打断
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eng.Run(gctx, w.Events())
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		w.Stop()
		return nil
	})

	// 5) 开始监控，直到 ctx 结束
	if err := w.Start(); err != nil {
		interrupted := ctx.Err() != nil
		cancel()
		_ = g.Wait()
		if interrupted {
			return 0
		}
		log.Error("failed to start watching", "root", cfg.Poll, "err", err)
		return 1
	}

	if err := g.Wait(); err != nil {
		log.Error("engine stopped", "err", err)
		return 1
	}
	return 0
}
