package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"precheck/internal/util"
)

var (
	ErrUnsupportedMime   = errors.New("unsupported mime type")
	ErrNoExtractableText = errors.New("no extractable text found")
)

type Result struct {
	Text  string
	Pages int
}

// Parse extracts plain text from contract bytes based on MIME type.
func Parse(data []byte, mime string) (Result, error) {
	switch mime {
	case "text/plain", "text/markdown":
		return parseText(data)
	case "application/pdf":
		return parsePDF(data)
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedMime, mime)
	}
}

func SupportedMimeTypes() []string {
	return []string{"text/plain", "text/markdown", "application/pdf"}
}

func IsSupported(mime string) bool {
	for _, m := range SupportedMimeTypes() {
		if m == mime {
			return true
		}
	}
	return false
}

func parseText(data []byte) (Result, error) {
	text := util.SanitizeText(string(data))
	if text == "" {
		return Result{}, ErrNoExtractableText
	}
	return Result{Text: text}, nil
}

func parsePDF(data []byte) (Result, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, fmt.Errorf("open pdf: %w", err)
	}
	reader, err := r.GetPlainText()
	if err != nil {
		return Result{}, fmt.Errorf("extract pdf text: %w", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return Result{}, fmt.Errorf("read extracted text: %w", err)
	}
	text := util.SanitizeText(buf.String())
	if text == "" {
		return Result{}, ErrNoExtractableText
	}
	return Result{Text: text, Pages: r.NumPage()}, nil
}
