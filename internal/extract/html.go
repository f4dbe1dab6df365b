package extract

import (
	"context"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Aman-CERP/mcpvector/internal/store"
)

// HTMLExtractor returns the visible text of an HTML page.
type HTMLExtractor struct{}

func (e *HTMLExtractor) Extract(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	return htmlResult(f)
}

const blockSelector = "p, div, br, hr, li, tr, td, th, h1, h2, h3, h4, h5, h6, " +
	"blockquote, pre, table, section, article, header, footer"

var (
	spaceRun   = regexp.MustCompile(`[ \t\r\f\v]+`)
	newlineRun = regexp.MustCompile(`\n{3,}`)
)

func htmlResult(r io.Reader) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Result{}, err
	}

	meta := store.Metadata{}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		meta["title"] = store.String(title)
	} else if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		meta["title"] = store.String(h1)
	}

	doc.Find("script, style, noscript, svg, template, head").Remove()
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	return Result{Text: tidyText(doc.Text()), Metadata: meta}, nil
}

// tidyText collapses horizontal whitespace and blank line runs.
func tidyText(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = newlineRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
