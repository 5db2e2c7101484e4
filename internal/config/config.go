// Package config 解析命令行参数和可选的 YAML 配置文件，并校验运行配置。
//
// 命令行中显式给出的参数优先于配置文件。
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/shuakami/dirmirror/internal/logger"
)

const defaultDebounce = "50ms"

// ErrHelp 表示用户请求了 -h/--help
var ErrHelp = pflag.ErrHelp

// Config 表示一次运行的配置，Validate 之后 Poll 和 Copy 都是绝对路径
type Config struct {
	Poll     string `yaml:"poll"`      // 监控目录(必填)
	Copy     string `yaml:"copy"`      // 目标目录，为空表示只监控
	LogLevel string `yaml:"log_level"` // 日志级别
	LogFile  string `yaml:"log_file"`  // 日志文件，为空表示只输出到标准输出
	Debounce string `yaml:"debounce"`  // 事件合并窗口，如 "50ms"

	DebounceDuration time.Duration `yaml:"-"` // 由 Debounce 解析得到
	ShowVersion      bool          `yaml:"-"` // -V/--version
}

// Load 读取 YAML 配置文件
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &cfg, nil
}

// Parse 解析命令行参数(不含程序名)
//
// 给出 --config 时先读取配置文件，再用命令行中显式给出的参数覆盖。
// 除 --version 外，返回前都会调用 Validate。
func Parse(args []string, stderr io.Writer) (*Config, error) {
	fs := pflag.NewFlagSet("dirmirror", pflag.ContinueOnError)
	if stderr != nil {
		fs.SetOutput(stderr)
	}

	var flags Config
	var configPath string
	fs.StringVarP(&flags.Poll, "poll", "p", "", "Polling directory (required)")
	fs.StringVarP(&flags.Copy, "copy", "c", "", "Copy to directory; omit to only report changes")
	fs.StringVar(&configPath, "config", "", "YAML config file")
	fs.StringVar(&flags.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.StringVar(&flags.LogFile, "log-file", "", "Also append logs to this file")
	fs.StringVar(&flags.Debounce, "debounce", defaultDebounce, "Window for merging bursts of filesystem events")
	fs.BoolVarP(&flags.ShowVersion, "version", "V", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if flags.ShowVersion {
		return &flags, nil
	}

	cfg := &flags
	if configPath != "" {
		fileCfg, err := Load(configPath)
		if err != nil {
			return nil, err
		}
		overlay(fileCfg, &flags, fs)
		cfg = fileCfg
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlay 把显式给出的参数覆盖到 dst，配置文件中为空的项使用参数默认值
func overlay(dst, flags *Config, fs *pflag.FlagSet) {
	pick := func(name string, target *string, value string) {
		if fs.Changed(name) || *target == "" {
			*target = value
		}
	}
	pick("poll", &dst.Poll, flags.Poll)
	pick("copy", &dst.Copy, flags.Copy)
	pick("log-level", &dst.LogLevel, flags.LogLevel)
	pick("log-file", &dst.LogFile, flags.LogFile)
	pick("debounce", &dst.Debounce, flags.Debounce)
}

// Validate 校验配置并把两个目录转换为绝对路径
//
// 监控目录必须存在且是目录；目标目录不能等于或位于监控目录之内；
// 日志级别必须可识别；Debounce 必须是正的时间间隔。
func (c *Config) Validate() error {
	if c.Poll == "" {
		return errors.New("--poll is required")
	}
	poll, err := filepath.Abs(c.Poll)
	if err != nil {
		return fmt.Errorf("resolve poll directory: %w", err)
	}
	info, err := os.Stat(poll)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("poll directory %s does not exist", poll)
		}
		return fmt.Errorf("cannot stat poll directory %s: %w", poll, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("poll path %s is not a directory", poll)
	}
	c.Poll = poll

	if c.Copy != "" {
		cp, err := filepath.Abs(c.Copy)
		if err != nil {
			return fmt.Errorf("resolve copy directory: %w", err)
		}
		rel, err := filepath.Rel(poll, cp)
		if err == nil && (rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))) {
			return fmt.Errorf("copy directory %s must not be inside poll directory %s", cp, poll)
		}
		c.Copy = cp
	}

	if _, ok := logger.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}

	if c.Debounce == "" {
		c.Debounce = defaultDebounce
	}
	d, err := time.ParseDuration(c.Debounce)
	if err != nil {
		return fmt.Errorf("invalid debounce %q: %w", c.Debounce, err)
	}
	if d <= 0 {
		return fmt.Errorf("debounce must be positive, got %s", d)
	}
	c.DebounceDuration = d
	return nil
}
