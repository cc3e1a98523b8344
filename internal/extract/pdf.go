// Package extract pulls plain text out of the supported document sources:
// uploaded PDFs and YouTube transcripts.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/mindspool/recall/internal/domain"
	"github.com/mindspool/recall/internal/service"
)

const (
	// MaxPDFBytes bounds uploads; anything larger is rejected before
	// parsing.
	MaxPDFBytes = 20 << 20
	// minExtractedChars rejects scanned or image-only PDFs whose text
	// layer is effectively empty.
	minExtractedChars = 100
)

var pdfMagic = []byte("%PDF")

// PDFExtractor parses uploaded PDF bytes into plain text.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// ExtractPDF validates and extracts the text layer of a PDF. The document
// title is the filename without its extension.
func (e *PDFExtractor) ExtractPDF(ctx context.Context, data []byte, filename string) (*service.ExtractedSource, error) {
	if len(data) == 0 || !bytes.HasPrefix(data, pdfMagic) {
		return nil, domain.NewDomainError(domain.ErrCodeIngestion, "file is not a valid PDF")
	}
	if len(data) > MaxPDFBytes {
		return nil, domain.NewDomainError(domain.ErrCodeIngestion,
			fmt.Sprintf("PDF exceeds the %dMB size limit", MaxPDFBytes>>20))
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeIngestion,
			"failed to parse PDF", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeIngestion,
			"failed to extract PDF text", err)
	}

	buf := new(strings.Builder)
	if _, err := io.Copy(buf, plain); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeIngestion,
			"failed to read extracted text", err)
	}

	text := sanitizeText(buf.String())
	if len([]rune(text)) < minExtractedChars {
		return nil, domain.ErrSourceTooShort
	}

	return &service.ExtractedSource{
		Title:     titleFromFilename(filename),
		Text:      text,
		PageCount: reader.NumPage(),
	}, nil
}

func titleFromFilename(filename string) string {
	name := filename
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[:idx]
	}
	name = strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
	if name == "" {
		return "Untitled document"
	}
	return name
}

// sanitizeText collapses whitespace runs left behind by PDF text layers.
func sanitizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
