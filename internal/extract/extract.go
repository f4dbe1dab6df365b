// Package extract turns files into plain text plus descriptive metadata.
//
// A Registry maps lower-case file extensions to Extractors. Each
// registration carries a size limit; files above it are rejected before
// any parsing happens. Every result carries the base metadata keys
// filename, extension, size_bytes and modified_time; extractors add
// format-specific keys such as page_count or title.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	verrors "github.com/Aman-CERP/mcpvector/internal/errors"
	"github.com/Aman-CERP/mcpvector/internal/store"
)

const mb = 1024 * 1024

// Size limits per format family.
const (
	MaxTextSize = 5 * mb
	MaxPDFSize  = 20 * mb
	MaxDOCXSize = 10 * mb
	MaxXLSXSize = 10 * mb
	MaxPPTXSize = 15 * mb
)

// Result is the output of an extraction.
type Result struct {
	Text     string
	Metadata store.Metadata
}

// Extractor pulls text out of one file format.
type Extractor interface {
	Extract(ctx context.Context, path string) (Result, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, path string) (Result, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, path string) (Result, error) {
	return f(ctx, path)
}

type registration struct {
	extractor Extractor
	maxSize   int64
}

// Registry dispatches extraction by file extension.
type Registry struct {
	byExt map[string]registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]registration)}
}

// Register binds ext to e. maxSize <= 0 means unlimited.
func (r *Registry) Register(ext string, e Extractor, maxSize int64) {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	r.byExt[ext] = registration{extractor: e, maxSize: maxSize}
}

// Supports reports whether path has a registered extension.
func (r *Registry) Supports(path string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extensions returns the registered extensions, sorted.
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Extract validates path and runs the matching extractor. Symlinks,
// non-regular files and oversized files are rejected.
func (r *Registry) Extract(ctx context.Context, path string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	reg, ok := r.byExt[ext]
	if !ok {
		return Result{}, verrors.New(verrors.ErrCodeUnsupportedFile,
			fmt.Sprintf("no extractor for %q", ext), nil).WithDetail("path", path)
	}

	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, verrors.New(verrors.ErrCodeFileNotFound, "file not found", err).WithDetail("path", path)
		}
		if os.IsPermission(err) {
			return Result{}, verrors.New(verrors.ErrCodeFilePermission, "permission denied", err).WithDetail("path", path)
		}
		return Result{}, verrors.New(verrors.ErrCodeExtractionFailed, "stat failed", err).WithDetail("path", path)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return Result{}, verrors.New(verrors.ErrCodeUnsupportedFile, "symlinks are not indexed", nil).WithDetail("path", path)
	}
	if !info.Mode().IsRegular() {
		return Result{}, verrors.New(verrors.ErrCodeUnsupportedFile, "not a regular file", nil).WithDetail("path", path)
	}
	if reg.maxSize > 0 && info.Size() > reg.maxSize {
		return Result{}, verrors.New(verrors.ErrCodeFileTooLarge,
			fmt.Sprintf("file is %d bytes, limit for %s is %d", info.Size(), ext, reg.maxSize), nil).
			WithDetail("path", path)
	}

	res, err := reg.extractor.Extract(ctx, path)
	if err != nil {
		if _, ok := verrors.As(err); ok {
			return Result{}, err
		}
		return Result{}, verrors.New(verrors.ErrCodeExtractionFailed, "extraction failed", err).WithDetail("path", path)
	}

	res.Metadata = BaseMetadata(path, info).Merge(res.Metadata)
	return res, nil
}

// BaseMetadata returns the keys every document carries.
func BaseMetadata(path string, info os.FileInfo) store.Metadata {
	return store.Metadata{
		"filename":      store.String(filepath.Base(path)),
		"extension":     store.String(strings.ToLower(filepath.Ext(path))),
		"size_bytes":    store.Int(info.Size()),
		"modified_time": store.String(info.ModTime().UTC().Format(time.RFC3339)),
	}
}

// TextExtensions is the plain-text family handled by TextExtractor.
var TextExtensions = []string{
	".txt", ".log", ".json", ".xml", ".yaml", ".yml",
	".py", ".js", ".ts", ".java", ".c", ".cpp", ".cs", ".go", ".rb", ".php", ".sh",
	".css", ".sql",
}

// Default returns a registry with every built-in extractor.
func Default() *Registry {
	r := NewRegistry()
	text := &TextExtractor{}
	for _, ext := range TextExtensions {
		r.Register(ext, text, MaxTextSize)
	}
	r.Register(".md", &MarkdownExtractor{}, MaxTextSize)
	r.Register(".html", &HTMLExtractor{}, MaxTextSize)
	r.Register(".pdf", &PDFExtractor{}, MaxPDFSize)
	r.Register(".docx", &DOCXExtractor{}, MaxDOCXSize)
	r.Register(".xlsx", &XLSXExtractor{}, MaxXLSXSize)
	r.Register(".pptx", &PPTXExtractor{}, MaxPPTXSize)
	return r
}
