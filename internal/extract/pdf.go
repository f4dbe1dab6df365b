package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/Aman-CERP/mcpvector/internal/store"
)

// PDFExtractor reads page count and document info with pdfcpu and
// recovers text from the page content streams.
type PDFExtractor struct{}

var contentPage = regexp.MustCompile(`Content_page_(\d+)`)

func (e *PDFExtractor) Extract(ctx context.Context, path string) (Result, error) {
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read pdf: %w", err)
	}

	meta := store.Metadata{"page_count": store.Int(int64(pdfCtx.PageCount))}
	if t := strings.TrimSpace(pdfCtx.Title); t != "" {
		meta["title"] = store.String(t)
	}
	if a := strings.TrimSpace(pdfCtx.Author); a != "" {
		meta["author"] = store.String(a)
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	outDir, err := os.MkdirTemp("", "mcpvector-pdf-")
	if err != nil {
		return Result{}, err
	}
	defer os.RemoveAll(outDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(path, outDir, nil, conf); err != nil {
		return Result{}, fmt.Errorf("extract pdf content: %w", err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return Result{}, err
	}

	type page struct {
		num  int
		text string
	}
	var pages []page
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := contentPage.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		raw, err := os.ReadFile(filepath.Join(outDir, entry.Name()))
		if err != nil {
			continue
		}
		pages = append(pages, page{num: num, text: ContentStreamText(raw)})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].num < pages[j].num })

	var b strings.Builder
	for _, p := range pages {
		if p.text == "" {
			continue
		}
		b.WriteString(p.text)
		b.WriteString("\n\n")
	}

	return Result{Text: strings.TrimSpace(b.String()), Metadata: meta}, nil
}

// ContentStreamText pulls the literal strings shown by text operators
// (Tj, TJ, ' and ") out of a decoded page content stream. Line-moving
// operators become newlines. Hex strings are skipped since they usually
// hold glyph ids rather than characters.
func ContentStreamText(stream []byte) string {
	var (
		out     strings.Builder
		pending strings.Builder
		token   strings.Builder
	)

	flushToken := func() {
		if token.Len() == 0 {
			return
		}
		switch token.String() {
		case "Tj", "TJ":
			out.WriteString(pending.String())
			pending.Reset()
		case "'", "\"":
			out.WriteString("\n")
			out.WriteString(pending.String())
			pending.Reset()
		case "Td", "TD", "T*", "ET":
			if out.Len() > 0 && !strings.HasSuffix(out.String(), "\n") {
				out.WriteString("\n")
			}
			pending.Reset()
		}
		token.Reset()
	}

	for i := 0; i < len(stream); i++ {
		c := stream[i]
		switch {
		case c == '(':
			flushToken()
			s, next := readLiteral(stream, i)
			pending.WriteString(s)
			i = next
		case c == '<' && i+1 < len(stream) && stream[i+1] != '<':
			flushToken()
			for i < len(stream) && stream[i] != '>' {
				i++
			}
		case c == '[' || c == ']':
			flushToken()
		case c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f':
			flushToken()
		case c == '%':
			flushToken()
			for i < len(stream) && stream[i] != '\n' && stream[i] != '\r' {
				i++
			}
		default:
			token.WriteByte(c)
		}
	}
	flushToken()

	return tidyText(out.String())
}

// readLiteral decodes the PDF literal string starting at stream[start],
// which must be '('. It returns the text and the index of the closing ')'.
func readLiteral(stream []byte, start int) (string, int) {
	var b strings.Builder
	depth := 0
	for i := start; i < len(stream); i++ {
		c := stream[i]
		switch c {
		case '(':
			if depth > 0 {
				b.WriteRune('(')
			}
			depth++
		case ')':
			depth--
			if depth == 0 {
				return b.String(), i
			}
			b.WriteRune(')')
		case '\\':
			i++
			if i >= len(stream) {
				return b.String(), i
			}
			switch e := stream[i]; e {
			case 'n':
				b.WriteByte('\n')
			case 'r', 'f', 'b':
			case 't':
				b.WriteByte('\t')
			case '\r', '\n':
				// line continuation
			default:
				if e >= '0' && e <= '7' {
					n := 0
					j := 0
					for ; j < 3 && i+j < len(stream) && stream[i+j] >= '0' && stream[i+j] <= '7'; j++ {
						n = n*8 + int(stream[i+j]-'0')
					}
					i += j - 1
					b.WriteRune(rune(n & 0xff))
				} else {
					b.WriteRune(rune(e))
				}
			}
		default:
			// PDFDocEncoding agrees with Latin-1 for printable text.
			b.WriteRune(rune(c))
		}
	}
	return b.String(), len(stream) - 1
}
