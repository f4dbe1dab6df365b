package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Aman-CERP/mcpvector/internal/ignore"
)

// Filter decides which paths belong to the watched set: files under a
// watch root whose extension is supported and that no ignore rule
// excludes.
type Filter struct {
	roots    []string
	exts     map[string]struct{}
	patterns []string
	ignores  map[string]*ignore.Matcher
	warnings []error
}

// FilterOption configures a Filter.
type FilterOption func(*Filter)

// WithIgnore applies gitignore-style patterns below every root, ahead of
// each root's own ignore file.
func WithIgnore(patterns []string) FilterOption {
	return func(f *Filter) {
		f.patterns = patterns
	}
}

// NewFilter resolves roots and returns the filter together with the roots
// that do not exist or are not directories. Those are left out of the
// filter; callers log them. An empty extension list accepts every file.
func NewFilter(roots []string, extensions []string, opts ...FilterOption) (*Filter, []string) {
	f := &Filter{
		exts:    make(map[string]struct{}, len(extensions)),
		ignores: make(map[string]*ignore.Matcher),
	}
	for _, opt := range opts {
		opt(f)
	}

	var missing []string
	seen := make(map[string]bool)
	for _, r := range roots {
		if strings.TrimSpace(r) == "" {
			continue
		}
		resolved, err := ResolvePath(r)
		if err != nil {
			missing = append(missing, r)
			continue
		}
		info, err := os.Stat(resolved)
		if err != nil || !info.IsDir() {
			missing = append(missing, r)
			continue
		}
		if !seen[resolved] {
			seen[resolved] = true
			f.roots = append(f.roots, resolved)
		}
	}
	sort.Strings(f.roots)

	for _, root := range f.roots {
		m, err := ignore.ForRoot(root, f.patterns)
		if err != nil {
			f.warnings = append(f.warnings, err)
		}
		if m.Len() > 0 {
			f.ignores[root] = m
		}
	}

	for _, ext := range extensions {
		if ext = NormalizeExtension(ext); ext != "" {
			f.exts[ext] = struct{}{}
		}
	}

	return f, missing
}

// NormalizeExtension lower-cases ext and ensures a leading dot.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || ext == "." {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// ResolvePath returns the absolute, symlink-free form of path. A path that
// no longer exists is resolved through its nearest existing parent, so
// deleted files still map to the same name they had.
func ResolvePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}

	dir, base := filepath.Split(abs)
	dir = filepath.Clean(dir)
	if dir == abs {
		return abs, nil
	}
	parent, err := ResolvePath(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(parent, base), nil
}

// Roots returns the resolved watch roots.
func (f *Filter) Roots() []string {
	out := make([]string, len(f.roots))
	copy(out, f.roots)
	return out
}

// Warnings returns the problems met while loading ignore rules. The
// rules that did load are in effect.
func (f *Filter) Warnings() []error {
	return f.warnings
}

// Extensions returns the supported extensions, sorted. Empty means all.
func (f *Filter) Extensions() []string {
	out := make([]string, 0, len(f.exts))
	for ext := range f.exts {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Within reports whether the resolved path lies under a watch root. The
// comparison is by path components: /data/docs2 is not under /data/docs.
func (f *Filter) Within(resolved string) bool {
	for _, root := range f.roots {
		if isUnder(root, resolved) {
			return true
		}
	}
	return false
}

func isUnder(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// SupportsExtension reports whether the file name has a supported extension.
func (f *Filter) SupportsExtension(path string) bool {
	if len(f.exts) == 0 {
		return true
	}
	_, ok := f.exts[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Ignored reports whether a base name is skipped regardless of extension:
// hidden entries and editor scratch files.
func Ignored(name string) bool {
	if name == "" {
		return true
	}
	if strings.HasPrefix(name, ".") {
		return true
	}
	if strings.HasSuffix(name, "~") {
		return true
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".swp", ".swx", ".tmp", ".part", ".crdownload":
		return true
	}
	return false
}

// hasIgnoredComponent reports whether any component of path below its
// watch root is ignored, e.g. files inside .git, or the root's ignore
// rules exclude it.
func (f *Filter) hasIgnoredComponent(resolved string) bool {
	root, rel, ok := f.relative(resolved)
	if !ok || rel == "." {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if Ignored(part) {
			return true
		}
	}
	return f.ignores[root].Match(rel, false)
}

// relative returns the root holding resolved and the path relative to it.
func (f *Filter) relative(resolved string) (root, rel string, ok bool) {
	for _, root := range f.roots {
		if !isUnder(root, resolved) {
			continue
		}
		rel, err := filepath.Rel(root, resolved)
		if err != nil {
			return "", "", false
		}
		return root, rel, true
	}
	return "", "", false
}

// Skip reports whether a walk should not descend into or report path, an
// entry found below a root. Only the entry itself is checked; walkers
// have already skipped its ancestors.
func (f *Filter) Skip(path string, isDir bool) bool {
	if Ignored(filepath.Base(path)) {
		return true
	}
	root, rel, ok := f.relative(path)
	if !ok || rel == "." {
		return false
	}
	return f.ignores[root].Match(rel, isDir)
}

// AcceptFile reports whether path, a regular file, belongs to the watched
// set. It returns the resolved path to use as the document identity.
func (f *Filter) AcceptFile(path string) (string, bool) {
	resolved, err := ResolvePath(path)
	if err != nil {
		return "", false
	}
	if !f.Within(resolved) || f.hasIgnoredComponent(resolved) {
		return "", false
	}
	if !f.SupportsExtension(resolved) {
		return "", false
	}
	return resolved, true
}

// Accept stats path and applies AcceptFile to regular files only.
func (f *Filter) Accept(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return f.AcceptFile(path)
}

// AcceptRemoved is the check for paths that no longer exist. Whether the
// path was a file or a directory is unknown, so only root containment and
// ignore rules apply.
func (f *Filter) AcceptRemoved(path string) (string, bool) {
	resolved, err := ResolvePath(path)
	if err != nil {
		return "", false
	}
	if !f.Within(resolved) || f.hasIgnoredComponent(resolved) {
		return "", false
	}
	return resolved, true
}
