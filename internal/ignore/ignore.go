// Package ignore matches paths below a watch root against gitignore-style
// exclusion rules.
//
// Rules come from two places: the watch.ignore list in the configuration,
// which applies to every root, and an optional .mcpvectorignore file at the
// top of each root. Later rules win, and a leading ! re-includes a path an
// earlier rule excluded.
//
//	*.log          any .log file at any depth
//	/drafts        drafts at the top of the root only
//	build/         the build directory and everything in it
//	archive/**     everything below archive
//	!keep.log      re-include keep.log
package ignore

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// FileName is the per-root rules file.
const FileName = ".mcpvectorignore"

// Matcher is an ordered list of compiled rules. It is not safe to add
// rules while matching; build it first, then share it.
type Matcher struct {
	rules []rule
}

type rule struct {
	source   string // as written, for error messages
	re       *regexp.Regexp
	negate   bool
	dirOnly  bool
	anchored bool
}

// New compiles patterns. Invalid patterns are reported together; the
// valid ones are kept.
func New(patterns ...string) (*Matcher, error) {
	m := &Matcher{}
	var errs []error
	for _, p := range patterns {
		if err := m.Add(p); err != nil {
			errs = append(errs, err)
		}
	}
	return m, errors.Join(errs...)
}

// Validate reports the first problem in patterns, if any.
func Validate(patterns []string) error {
	_, err := New(patterns...)
	return err
}

// ForRoot builds the matcher for one watch root: patterns first, then the
// root's rules file when present.
func ForRoot(root string, patterns []string) (*Matcher, error) {
	m, err := New(patterns...)
	if fileErr := m.AddFile(filepath.Join(root, FileName)); fileErr != nil {
		err = errors.Join(err, fileErr)
	}
	return m, err
}

// Add compiles one line. Blank lines and comments are accepted and
// ignored.
func (m *Matcher) Add(line string) error {
	r, ok, err := compile(line)
	if err != nil {
		return err
	}
	if ok {
		m.rules = append(m.rules, r)
	}
	return nil
}

// AddFile adds every line of the file at path. A missing file adds
// nothing.
func (m *Matcher) AddFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var errs []error
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		if err := m.Add(sc.Text()); err != nil {
			errs = append(errs, fmt.Errorf("%s:%d: %w", path, n, err))
		}
	}
	if err := sc.Err(); err != nil {
		errs = append(errs, fmt.Errorf("read %s: %w", path, err))
	}
	return errors.Join(errs...)
}

// Len returns the number of rules.
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.rules)
}

// Match reports whether rel, a slash or OS separated path relative to the
// root, is excluded. As with git, a path below an excluded directory is
// excluded whatever later rules say. A nil matcher excludes nothing.
func (m *Matcher) Match(rel string, isDir bool) bool {
	if m == nil || len(m.rules) == 0 {
		return false
	}
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "" || rel == "." {
		return false
	}

	parts := strings.Split(rel, "/")
	for i := 1; i < len(parts); i++ {
		if m.excluded(parts[:i], true) {
			return true
		}
	}
	return m.excluded(parts, isDir)
}

// excluded applies every rule to one path; the last matching rule decides.
func (m *Matcher) excluded(parts []string, isDir bool) bool {
	path := strings.Join(parts, "/")
	base := parts[len(parts)-1]

	out := false
	for _, r := range m.rules {
		if r.dirOnly && !isDir {
			continue
		}
		if r.re.MatchString(path) || (!r.anchored && r.re.MatchString(base)) {
			out = !r.negate
		}
	}
	return out
}

// compile turns one gitignore line into a rule. ok is false for blank
// lines and comments.
func compile(line string) (r rule, ok bool, err error) {
	escapedSpace := strings.HasSuffix(line, `\ `)
	p := strings.TrimSpace(line)
	if p == "" || strings.HasPrefix(p, "#") {
		return rule{}, false, nil
	}
	r.source = p

	switch {
	case strings.HasPrefix(p, `\#`), strings.HasPrefix(p, `\!`):
		p = p[1:]
	case strings.HasPrefix(p, "!"):
		r.negate = true
		p = p[1:]
	}
	if escapedSpace && strings.HasSuffix(p, `\`) {
		p = strings.TrimSuffix(p, `\`) + " "
	}

	if strings.HasSuffix(p, "/") {
		r.dirOnly = true
		p = strings.TrimSuffix(p, "/")
	}
	if strings.HasPrefix(p, "/") {
		r.anchored = true
		p = strings.TrimPrefix(p, "/")
	}
	// "doc/frotz" is relative to the root, like "/doc/frotz"
	if strings.Contains(p, "/") && !strings.HasPrefix(p, "**/") && !strings.HasPrefix(p, "*") {
		r.anchored = true
	}
	if p == "" {
		return rule{}, false, fmt.Errorf("pattern %q matches nothing", r.source)
	}

	re, err := regexp.Compile("^" + translate(p) + "$")
	if err != nil {
		return rule{}, false, fmt.Errorf("pattern %q: %w", r.source, err)
	}
	r.re = re
	return r, true, nil
}

// translate rewrites glob syntax as a regular expression body.
func translate(glob string) string {
	var b strings.Builder
	for i := 0; i < len(glob); i++ {
		c := glob[i]
		switch c {
		case '*':
			if i+1 < len(glob) && glob[i+1] == '*' {
				if i+2 < len(glob) && glob[i+2] == '/' {
					b.WriteString("(?:.*/)?")
					i += 2
					continue
				}
				if i == 0 || glob[i-1] == '/' {
					b.WriteString(".*")
					i++
					continue
				}
			}
			b.WriteString("[^/]*")
		case '?':
			b.WriteString("[^/]")
		case '[':
			end := strings.IndexByte(glob[i+1:], ']')
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			class := glob[i+1 : i+1+end]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("[" + class + "]")
			i += end + 1
		case '\\':
			if i+1 < len(glob) {
				i++
				b.WriteString(regexp.QuoteMeta(string(glob[i])))
			} else {
				b.WriteString(`\\`)
			}
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return b.String()
}
