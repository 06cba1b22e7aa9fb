// Package pdftext pulls plain text and page counts out of PDF bytes.
package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

var ErrNotPDF = errors.New("not a PDF document")

// Document is what could be read from a PDF.
type Document struct {
	Pages int
	Text  string
}

// Extract parses data and returns its page count and up to maxChars of
// plain text (all of it when maxChars <= 0).
func Extract(data []byte, maxChars int) (doc Document, err error) {
	if !LooksLikePDF(data) {
		return Document{}, ErrNotPDF
	}
	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			doc = Document{}
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Document{}, fmt.Errorf("open pdf: %w", err)
	}
	doc.Pages = r.NumPage()

	tr, err := r.GetPlainText()
	if err != nil {
		return doc, fmt.Errorf("read text: %w", err)
	}
	var src io.Reader = tr
	if maxChars > 0 {
		src = io.LimitReader(tr, int64(maxChars))
	}
	b, err := io.ReadAll(src)
	if err != nil {
		return doc, fmt.Errorf("read text: %w", err)
	}
	doc.Text = strings.TrimSpace(string(b))
	return doc, nil
}

// LooksLikePDF checks the %PDF- magic header.
func LooksLikePDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}
