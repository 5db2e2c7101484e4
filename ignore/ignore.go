// Package ignore 根据监控目录和目标目录下的 .gitignore 判断路径是否被忽略。
//
// 两个文件的规则合并在一起（监控目录在前），统一按相对监控根目录的路径匹配。
// 文件不存在时视为没有规则。
package ignore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// FileName 是每个根目录下读取的忽略文件名
const FileName = ".gitignore"

// Set 保存两个根目录的规则并集
type Set struct {
	root     string               // 监控根目录(绝对路径)
	patterns []string             // 合并后的规则，监控目录在前
	matcher  *gitignore.GitIgnore // 编译后的匹配器
}

// New 读取 watchRoot 下的 FileName；copyRoot 不为空时也读取 copyRoot 下的。
// 文件不存在不算错误。
func New(watchRoot, copyRoot string) (*Set, error) {
	patterns, err := ReadFile(filepath.Join(watchRoot, FileName))
	if err != nil {
		return nil, err
	}
	if copyRoot != "" {
		more, err := ReadFile(filepath.Join(copyRoot, FileName))
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, more...)
	}
	return FromPatterns(watchRoot, patterns), nil
}

// FromPatterns 用已经解析好的规则创建 Set
func FromPatterns(watchRoot string, patterns []string) *Set {
	root, err := filepath.Abs(watchRoot)
	if err != nil {
		root = watchRoot
	}
	return &Set{
		root:     filepath.Clean(root),
		patterns: patterns,
		matcher:  gitignore.CompileIgnoreLines(patterns...),
	}
}

// ReadFile 解析一个忽略文件，文件不存在时返回空列表
func ReadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	patterns, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return patterns, nil
}

// Parse 返回 r 中的规则行，去掉空行和 # 注释
func Parse(r io.Reader) ([]string, error) {
	var patterns []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return patterns, nil
}

// Patterns 返回规则列表的副本
func (s *Set) Patterns() []string {
	out := make([]string, len(s.patterns))
	copy(out, s.patterns)
	return out
}

// IsIgnored 判断 path 是否被忽略
//
// path 可以是绝对路径，也可以是相对监控根目录的路径。根目录本身和根目录之外的路径永远不会被忽略。
func (s *Set) IsIgnored(path string) bool {
	rel, ok := s.rel(path)
	if !ok {
		return false
	}
	return s.matcher.MatchesPath(rel)
}

// IsIgnoredDir 是针对目录的 IsIgnored，"build/" 这类只匹配目录的规则也会生效
func (s *Set) IsIgnoredDir(path string) bool {
	rel, ok := s.rel(path)
	if !ok {
		return false
	}
	return s.matcher.MatchesPath(rel) || s.matcher.MatchesPath(rel+"/")
}

// Match 实现 watcher.Filter
func (s *Set) Match(path string, isDir bool) bool {
	if isDir {
		return s.IsIgnoredDir(path)
	}
	return s.IsIgnored(path)
}

func (s *Set) rel(path string) (string, bool) {
	if s == nil || s.matcher == nil || len(s.patterns) == 0 {
		return "", false
	}
	if filepath.IsAbs(path) {
		r, err := filepath.Rel(s.root, path)
		if err != nil {
			return "", false
		}
		path = r
	}
	path = filepath.ToSlash(filepath.Clean(path))
	if path == "." || path == ".." || strings.HasPrefix(path, "../") {
		return "", false
	}
	return path, true
}
