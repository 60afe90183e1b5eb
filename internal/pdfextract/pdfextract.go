// Package pdfextract pulls plain text out of uploaded PDF study material so
// it can be pasted into a prompt. Extraction is delegated to a pure-Go PDF
// reader; this package adds validation, the word/character statistics the
// client displays, and human-readable size formatting.
package pdfextract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dslipak/pdf"
)

// ErrNotPDF is returned when the payload does not start with the PDF magic.
var ErrNotPDF = errors.New("pdfextract: not a pdf document")

// ErrNoText is returned when a structurally valid PDF yields no extractable
// text (scanned images, empty documents).
var ErrNoText = errors.New("pdfextract: no extractable text")

// Result is the extraction outcome plus the metadata surfaced to clients.
type Result struct {
	Text             string `json:"text"`
	Pages            int    `json:"pages"`
	WordCount        int    `json:"wordCount"`
	CharCount        int    `json:"charCount"`
	FileSize         string `json:"fileSize"`
	ExtractionTimeMs int64  `json:"extractionTimeMs"`
}

// Extract parses data as a PDF and returns its plain text with statistics.
func Extract(data []byte) (*Result, error) {
	start := time.Now()

	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, ErrNotPDF
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("pdfextract: open: %w", err)
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("pdfextract: read text: %w", err)
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return nil, fmt.Errorf("pdfextract: read text: %w", err)
	}

	text := normalize(string(raw))
	if text == "" {
		return nil, ErrNoText
	}

	return &Result{
		Text:             text,
		Pages:            r.NumPage(),
		WordCount:        len(strings.Fields(text)),
		CharCount:        utf8.RuneCountInString(text),
		FileSize:         FormatFileSize(int64(len(data))),
		ExtractionTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// normalize collapses runs of whitespace so counts are stable across PDF
// producers that differ only in layout spacing.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FormatFileSize renders a byte count in the usual B/KB/MB steps.
func FormatFileSize(n int64) string {
	switch {
	case n < 1<<10:
		return fmt.Sprintf("%d B", n)
	case n < 1<<20:
		return fmt.Sprintf("%.1f KB", float64(n)/float64(1<<10))
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/float64(1<<20))
	}
}
