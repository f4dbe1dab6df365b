package extract

import (
	"bytes"
	"context"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/Aman-CERP/mcpvector/internal/store"
)

// TextExtractor reads plain text files. Content that is not valid UTF-8
// is decoded as Latin-1, or as Windows-1252 when it uses the 0x80-0x9F
// range that Latin-1 reserves for control codes.
type TextExtractor struct{}

func (e *TextExtractor) Extract(ctx context.Context, path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, err
	}
	text, encoding, err := DecodeText(data)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Text:     text,
		Metadata: store.Metadata{"encoding": store.String(encoding)},
	}, nil
}

// DecodeText returns data as a UTF-8 string and the name of the encoding
// it was decoded from.
func DecodeText(data []byte) (string, string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data), "utf-8", nil
	}

	cm, name := charmap.ISO8859_1, "latin-1"
	if hasC1Controls(data) {
		cm, name = charmap.Windows1252, "cp1252"
	}
	out, err := cm.NewDecoder().Bytes(data)
	if err != nil {
		return "", "", err
	}
	return string(out), name, nil
}

func hasC1Controls(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 && b <= 0x9f {
			return true
		}
	}
	return false
}
