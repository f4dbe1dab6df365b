package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Aman-CERP/mcpvector/internal/store"
)

// Office Open XML containers are zip archives of XML parts. The three
// extractors below stream the parts they need with encoding/xml.

// DOCXExtractor reads body paragraphs and table cells of a Word document.
type DOCXExtractor struct{}

func (e *DOCXExtractor) Extract(ctx context.Context, p string) (Result, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return Result{}, fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()

	f := findPart(&zr.Reader, "word/document.xml")
	if f == nil {
		return Result{}, fmt.Errorf("docx has no word/document.xml")
	}
	text, err := partText(f, "p", "tc")
	if err != nil {
		return Result{}, err
	}

	return Result{Text: text, Metadata: coreProperties(&zr.Reader)}, nil
}

// PPTXExtractor reads the text frames of every slide in order.
type PPTXExtractor struct{}

var slidePart = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func (e *PPTXExtractor) Extract(ctx context.Context, p string) (Result, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return Result{}, fmt.Errorf("open pptx: %w", err)
	}
	defer zr.Close()

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		if m := slidePart.FindStringSubmatch(f.Name); m != nil {
			n, _ := strconv.Atoi(m[1])
			slides = append(slides, slide{num: n, file: f})
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var b strings.Builder
	for i, s := range slides {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		text, err := partText(s.file, "p", "")
		if err != nil {
			return Result{}, err
		}
		fmt.Fprintf(&b, "Slide %d:\n%s\n\n", i+1, text)
	}

	meta := coreProperties(&zr.Reader)
	meta["slide_count"] = store.Int(int64(len(slides)))
	return Result{Text: strings.TrimSpace(b.String()), Metadata: meta}, nil
}

// XLSXExtractor renders each worksheet as "Sheet: name" followed by its
// non-empty rows, cells joined with " | ".
type XLSXExtractor struct{}

func (e *XLSXExtractor) Extract(ctx context.Context, p string) (Result, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return Result{}, fmt.Errorf("open xlsx: %w", err)
	}
	defer zr.Close()

	shared, err := sharedStrings(&zr.Reader)
	if err != nil {
		return Result{}, err
	}
	sheets, err := workbookSheets(&zr.Reader)
	if err != nil {
		return Result{}, err
	}

	var b strings.Builder
	names := make([]string, 0, len(sheets))
	for _, sh := range sheets {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		names = append(names, sh.name)
		f := findPart(&zr.Reader, sh.part)
		if f == nil {
			continue
		}
		rows, err := sheetRows(f, shared)
		if err != nil {
			return Result{}, err
		}
		fmt.Fprintf(&b, "Sheet: %s\n", sh.name)
		for _, row := range rows {
			b.WriteString(strings.Join(row, " | "))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	meta := coreProperties(&zr.Reader)
	meta["sheet_names"] = store.String(strings.Join(names, ","))
	return Result{Text: strings.TrimSpace(b.String()), Metadata: meta}, nil
}

func findPart(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// partText collects the character data of every <t> element in the part.
// A newline ends each para element; a space ends each cell element.
func partText(f *zip.File, para, cell string) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var (
		b      strings.Builder
		inText bool
	)
	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", f.Name, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case para:
				b.WriteByte('\n')
			case cell:
				b.WriteByte(' ')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return tidyText(b.String()), nil
}

// coreProperties reads title and author from docProps/core.xml.
func coreProperties(zr *zip.Reader) store.Metadata {
	meta := store.Metadata{}
	f := findPart(zr, "docProps/core.xml")
	if f == nil {
		return meta
	}
	rc, err := f.Open()
	if err != nil {
		return meta
	}
	defer rc.Close()

	var core struct {
		Title   string `xml:"title"`
		Creator string `xml:"creator"`
	}
	if err := xml.NewDecoder(rc).Decode(&core); err != nil {
		return meta
	}
	if t := strings.TrimSpace(core.Title); t != "" {
		meta["title"] = store.String(t)
	}
	if a := strings.TrimSpace(core.Creator); a != "" {
		meta["author"] = store.String(a)
	}
	return meta
}

func decodePart(zr *zip.Reader, name string, v any) (bool, error) {
	f := findPart(zr, name)
	if f == nil {
		return false, nil
	}
	rc, err := f.Open()
	if err != nil {
		return false, err
	}
	defer rc.Close()
	if err := xml.NewDecoder(rc).Decode(v); err != nil {
		return false, fmt.Errorf("parse %s: %w", name, err)
	}
	return true, nil
}

func sharedStrings(zr *zip.Reader) ([]string, error) {
	var sst struct {
		Items []struct {
			T    string `xml:"t"`
			Runs []struct {
				T string `xml:"t"`
			} `xml:"r"`
		} `xml:"si"`
	}
	if _, err := decodePart(zr, "xl/sharedStrings.xml", &sst); err != nil {
		return nil, err
	}
	out := make([]string, len(sst.Items))
	for i, it := range sst.Items {
		if len(it.Runs) == 0 {
			out[i] = it.T
			continue
		}
		var b strings.Builder
		for _, r := range it.Runs {
			b.WriteString(r.T)
		}
		out[i] = b.String()
	}
	return out, nil
}

type sheetRef struct {
	name string
	part string
}

// workbookSheets lists sheets in workbook order, resolving each sheet's
// part through the workbook relationships.
func workbookSheets(zr *zip.Reader) ([]sheetRef, error) {
	var wb struct {
		Sheets []struct {
			Name string `xml:"name,attr"`
			RID  string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
		} `xml:"sheets>sheet"`
	}
	ok, err := decodePart(zr, "xl/workbook.xml", &wb)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("xlsx has no xl/workbook.xml")
	}

	var rels struct {
		Items []struct {
			ID     string `xml:"Id,attr"`
			Target string `xml:"Target,attr"`
		} `xml:"Relationship"`
	}
	if _, err := decodePart(zr, "xl/_rels/workbook.xml.rels", &rels); err != nil {
		return nil, err
	}
	targets := make(map[string]string, len(rels.Items))
	for _, r := range rels.Items {
		t := strings.TrimPrefix(r.Target, "/")
		if !strings.HasPrefix(t, "xl/") {
			t = path.Join("xl", t)
		}
		targets[r.ID] = t
	}

	out := make([]sheetRef, 0, len(wb.Sheets))
	for i, s := range wb.Sheets {
		part, ok := targets[s.RID]
		if !ok {
			part = fmt.Sprintf("xl/worksheets/sheet%d.xml", i+1)
		}
		out = append(out, sheetRef{name: s.Name, part: part})
	}
	return out, nil
}

func sheetRows(f *zip.File, shared []string) ([][]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var ws struct {
		Rows []struct {
			Cells []struct {
				Type   string `xml:"t,attr"`
				Value  string `xml:"v"`
				Inline struct {
					T string `xml:"t"`
				} `xml:"is"`
			} `xml:"c"`
		} `xml:"sheetData>row"`
	}
	if err := xml.NewDecoder(rc).Decode(&ws); err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.Name, err)
	}

	var rows [][]string
	for _, r := range ws.Rows {
		var row []string
		for _, c := range r.Cells {
			v := c.Value
			switch c.Type {
			case "s":
				idx, err := strconv.Atoi(v)
				if err != nil || idx < 0 || idx >= len(shared) {
					continue
				}
				v = shared[idx]
			case "inlineStr":
				v = c.Inline.T
			}
			if v = strings.TrimSpace(v); v != "" {
				row = append(row, v)
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows, nil
}
