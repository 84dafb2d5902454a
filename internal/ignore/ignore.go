// Package ignore filters bulk-ingest directory walks with
// gitignore-style rules.
package ignore

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DefaultFiles are the rule files read from a walk root, in order.
// Later files append to earlier ones.
var DefaultFiles = []string{".tierdignore", ".gitignore"}

// rule is one compiled pattern. Anchored rules match from the walk
// root; unanchored rules match the base name at any depth. dirOnly
// rules only match directories, and through them everything beneath.
type rule struct {
	segs     []string
	anchored bool
	dirOnly  bool
}

// Ruleset decides which paths a walk skips.
type Ruleset struct {
	rules []rule
}

// Load reads the rule files present in dir and appends the extra
// patterns. Missing rule files are fine; an unreadable one is an error.
func Load(dir string, extra []string) (*Ruleset, error) {
	var lines []string
	for _, name := range DefaultFiles {
		fileLines, err := readLines(filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		lines = append(lines, fileLines...)
	}
	lines = append(lines, extra...)
	return Compile(lines), nil
}

// Compile builds a Ruleset from raw pattern lines. Blank lines,
// comments, and negations are dropped; negation support is not worth
// its complexity for corpus walks.
func Compile(lines []string) *Ruleset {
	rs := &Ruleset{}
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}

		r := rule{}
		if strings.HasSuffix(line, "/") {
			r.dirOnly = true
			line = strings.TrimSuffix(line, "/")
		}
		if strings.HasPrefix(line, "/") {
			r.anchored = true
			line = strings.TrimPrefix(line, "/")
		}
		if line == "" {
			continue
		}
		// A separator anywhere anchors the pattern to the walk root.
		if strings.Contains(line, "/") {
			r.anchored = true
		}
		r.segs = strings.Split(line, "/")

		rs.rules = append(rs.rules, r)
	}
	return rs
}

// Match reports whether rel, a slash- or OS-separated path relative to
// the walk root, is ignored. A rule matching a directory ignores
// everything beneath it, so callers can prune whole subtrees on the
// directory itself.
func (rs *Ruleset) Match(rel string, isDir bool) bool {
	if rs == nil || len(rs.rules) == 0 {
		return false
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	for _, r := range rs.rules {
		// Try the path and each of its ancestors: ignoring a directory
		// ignores its contents.
		for i := 1; i <= len(parts); i++ {
			dirAt := i < len(parts) || isDir
			if r.dirOnly && !dirAt {
				continue
			}
			if r.matches(parts[:i]) {
				return true
			}
		}
	}
	return false
}

func (r rule) matches(parts []string) bool {
	if !r.anchored {
		return matchSegment(r.segs[0], parts[len(parts)-1])
	}
	return matchSegs(r.segs, parts)
}

// matchSegs matches pattern segments against path segments, with "**"
// spanning any number of them.
func matchSegs(segs, parts []string) bool {
	if len(segs) == 0 {
		return len(parts) == 0
	}
	if segs[0] == "**" {
		for i := 0; i <= len(parts); i++ {
			if matchSegs(segs[1:], parts[i:]) {
				return true
			}
		}
		return false
	}
	if len(parts) == 0 {
		return false
	}
	if !matchSegment(segs[0], parts[0]) {
		return false
	}
	return matchSegs(segs[1:], parts[1:])
}

// matchSegment matches one segment. A malformed glob matches nothing.
func matchSegment(pattern, name string) bool {
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}

func readLines(p string) ([]string, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
