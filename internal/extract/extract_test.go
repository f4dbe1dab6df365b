package extract

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/Aman-CERP/mcpvector/internal/errors"
	"github.com/Aman-CERP/mcpvector/internal/store"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func writeZip(t *testing.T, dir, name string, parts map[string]string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for n, body := range parts {
		w, err := zw.Create(n)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return p
}

func TestRegistry_Extensions(t *testing.T) {
	exts := Default().Extensions()

	for _, want := range []string{".txt", ".md", ".html", ".pdf", ".docx", ".xlsx", ".pptx", ".go", ".sql"} {
		assert.Contains(t, exts, want)
	}
	assert.IsIncreasing(t, exts)
}

func TestRegistry_Extract_AddsBaseMetadata(t *testing.T) {
	// Given: a plain text file
	dir := t.TempDir()
	p := writeFile(t, dir, "Notes.TXT", []byte("hello world"))

	// When: extracted through the registry
	res, err := Default().Extract(context.Background(), p)

	// Then: text and base metadata are present
	require.NoError(t, err)
	assert.Equal(t, "hello world", res.Text)
	assert.Equal(t, "Notes.TXT", res.Metadata["filename"].Text())
	assert.Equal(t, ".txt", res.Metadata["extension"].Text())
	assert.Equal(t, store.Int(11), res.Metadata["size_bytes"])
	assert.NotEmpty(t, res.Metadata["modified_time"].Text())
	assert.Equal(t, "utf-8", res.Metadata["encoding"].Text())
}

func TestRegistry_Extract_Rejections(t *testing.T) {
	dir := t.TempDir()
	bin := writeFile(t, dir, "a.exe", []byte("x"))
	target := writeFile(t, dir, "real.txt", []byte("x"))
	link := filepath.Join(dir, "link.txt")
	require.NoError(t, os.Symlink(target, link))

	r := Default()
	ctx := context.Background()

	_, err := r.Extract(ctx, bin)
	assert.Equal(t, verrors.ErrCodeUnsupportedFile, verrors.GetCode(err))

	_, err = r.Extract(ctx, link)
	assert.Equal(t, verrors.ErrCodeUnsupportedFile, verrors.GetCode(err))

	_, err = r.Extract(ctx, filepath.Join(dir, "gone.txt"))
	assert.Equal(t, verrors.ErrCodeFileNotFound, verrors.GetCode(err))
}

func TestRegistry_Extract_SizeLimit(t *testing.T) {
	// Given: a registry with a tiny limit for .txt
	dir := t.TempDir()
	p := writeFile(t, dir, "big.txt", []byte(strings.Repeat("a", 100)))
	r := NewRegistry()
	r.Register("txt", &TextExtractor{}, 10)

	// When: the file is extracted
	_, err := r.Extract(context.Background(), p)

	// Then: it is rejected as too large
	assert.Equal(t, verrors.ErrCodeFileTooLarge, verrors.GetCode(err))
}

func TestRegistry_Extract_WrapsExtractorErrors(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "a.pdf", []byte("not a pdf"))

	_, err := Default().Extract(context.Background(), p)

	assert.Equal(t, verrors.ErrCodeExtractionFailed, verrors.GetCode(err))
}

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name     string
		in       []byte
		want     string
		encoding string
	}{
		{"utf8", []byte("caf\xc3\xa9"), "café", "utf-8"},
		{"bom", []byte("\xef\xbb\xbfhi"), "hi", "utf-8"},
		{"latin1", []byte("caf\xe9"), "café", "latin-1"},
		{"cp1252", []byte("\x93quoted\x94"), "“quoted”", "cp1252"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, enc, err := DecodeText(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.encoding, enc)
		})
	}
}

func TestHTMLExtractor(t *testing.T) {
	// Given: a page with scripts, styles and blocks
	dir := t.TempDir()
	p := writeFile(t, dir, "page.html", []byte(`<html><head><title> Report </title>
<style>body{color:red}</style></head>
<body><h1>Quarterly</h1><p>Revenue   grew.</p><script>alert(1)</script><ul><li>One</li><li>Two</li></ul></body></html>`))

	// When: extracted
	res, err := (&HTMLExtractor{}).Extract(context.Background(), p)

	// Then: only visible text remains, one block per line
	require.NoError(t, err)
	assert.Equal(t, "Report", res.Metadata["title"].Text())
	assert.Contains(t, res.Text, "Quarterly")
	assert.Contains(t, res.Text, "Revenue grew.")
	assert.Contains(t, res.Text, "One\nTwo")
	assert.NotContains(t, res.Text, "alert")
	assert.NotContains(t, res.Text, "color")
}

func TestMarkdownExtractor(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "doc.md", []byte("# Setup Guide\n\nInstall with **care** and see [docs](https://example.com).\n\n| a | b |\n|---|---|\n| 1 | 2 |\n"))

	res, err := (&MarkdownExtractor{}).Extract(context.Background(), p)

	require.NoError(t, err)
	assert.Equal(t, "Setup Guide", res.Metadata["title"].Text())
	assert.Contains(t, res.Text, "Install with care and see docs.")
	assert.NotContains(t, res.Text, "**")
	assert.NotContains(t, res.Text, "https://example.com")
	assert.NotContains(t, res.Text, "|")
}

func TestDOCXExtractor(t *testing.T) {
	// Given: a minimal docx with a paragraph and a table
	dir := t.TempDir()
	p := writeZip(t, dir, "memo.docx", map[string]string{
		"word/document.xml": `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:t xml:space="preserve"> world</w:t></w:r></w:p>
<w:tbl><w:tr><w:tc><w:p><w:r><w:t>A1</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>B1</w:t></w:r></w:p></w:tc></w:tr></w:tbl>
</w:body></w:document>`,
		"docProps/core.xml": `<?xml version="1.0"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/">
<dc:title>Memo</dc:title><dc:creator>Jo Doe</dc:creator></cp:coreProperties>`,
	})

	// When: extracted
	res, err := (&DOCXExtractor{}).Extract(context.Background(), p)

	// Then: paragraphs, cells and core properties are read
	require.NoError(t, err)
	assert.Contains(t, res.Text, "Hello world")
	assert.Contains(t, res.Text, "A1")
	assert.Contains(t, res.Text, "B1")
	assert.Equal(t, "Memo", res.Metadata["title"].Text())
	assert.Equal(t, "Jo Doe", res.Metadata["author"].Text())
}

func TestXLSXExtractor(t *testing.T) {
	dir := t.TempDir()
	p := writeZip(t, dir, "book.xlsx", map[string]string{
		"xl/workbook.xml": `<?xml version="1.0"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
<sheets><sheet name="Budget" sheetId="1" r:id="rId1"/><sheet name="Notes" sheetId="2" r:id="rId2"/></sheets></workbook>`,
		"xl/_rels/workbook.xml.rels": `<?xml version="1.0"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Target="worksheets/sheet1.xml"/><Relationship Id="rId2" Target="worksheets/sheet2.xml"/></Relationships>`,
		"xl/sharedStrings.xml": `<?xml version="1.0"?>
<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><si><t>Item</t></si><si><t>Cost</t></si><si><r><t>Rent</t></r><r><t>al</t></r></si></sst>`,
		"xl/worksheets/sheet1.xml": `<?xml version="1.0"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>
<row r="1"><c r="A1" t="s"><v>0</v></c><c r="B1" t="s"><v>1</v></c></row>
<row r="2"><c r="A2" t="s"><v>2</v></c><c r="B2"><v>1200</v></c></row>
<row r="3"></row>
</sheetData></worksheet>`,
		"xl/worksheets/sheet2.xml": `<?xml version="1.0"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>
<row r="1"><c r="A1" t="inlineStr"><is><t>remember</t></is></c></row>
</sheetData></worksheet>`,
	})

	res, err := (&XLSXExtractor{}).Extract(context.Background(), p)

	require.NoError(t, err)
	assert.Equal(t, "Budget,Notes", res.Metadata["sheet_names"].Text())
	assert.Contains(t, res.Text, "Sheet: Budget\nItem | Cost\nRental | 1200")
	assert.Contains(t, res.Text, "Sheet: Notes\nremember")
}

func TestPPTXExtractor(t *testing.T) {
	dir := t.TempDir()
	slide := func(text string) string {
		return `<?xml version="1.0"?>
<p:sld xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">
<p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` + text + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`
	}
	p := writeZip(t, dir, "deck.pptx", map[string]string{
		"ppt/slides/slide10.xml": slide("Last"),
		"ppt/slides/slide2.xml":  slide("Middle"),
		"ppt/slides/slide1.xml":  slide("First"),
	})

	res, err := (&PPTXExtractor{}).Extract(context.Background(), p)

	require.NoError(t, err)
	assert.Equal(t, store.Int(3), res.Metadata["slide_count"])
	first := strings.Index(res.Text, "First")
	middle := strings.Index(res.Text, "Middle")
	last := strings.Index(res.Text, "Last")
	assert.True(t, first < middle && middle < last, "slides in numeric order: %q", res.Text)
	assert.Contains(t, res.Text, "Slide 1:\nFirst")
}

func TestContentStreamText(t *testing.T) {
	stream := []byte(`BT
/F1 12 Tf
72 712 Td
(Hello, \(PDF\) world) Tj
0 -14 Td
[(Ker) -120 (ning)] TJ
<0041> Tj
% comment (ignored) Tj
ET
BT (caf\351) Tj ET`)

	got := ContentStreamText(stream)

	assert.Equal(t, "Hello, (PDF) world\nKerning\ncafé", got)
}
