package extract

import (
	"bytes"
	"context"
	"os"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// MarkdownExtractor renders Markdown to HTML and keeps the visible text,
// so link targets, emphasis markers and table pipes do not reach the
// embedder.
type MarkdownExtractor struct{}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Table, extension.Strikethrough),
)

func (e *MarkdownExtractor) Extract(ctx context.Context, path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, err
	}
	source, _, err := DecodeText(data)
	if err != nil {
		return Result{}, err
	}

	var buf bytes.Buffer
	if err := markdown.Convert([]byte(source), &buf); err != nil {
		return Result{}, err
	}
	return htmlResult(&buf)
}
