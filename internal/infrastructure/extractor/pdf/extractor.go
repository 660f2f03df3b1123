package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/mhxia/finsight/internal/core/domain"
)

// Extractor reads narrative text out of a PDF report, one entry per page.
// Tables inside PDFs are not reconstructed; the table channel is fed from
// spreadsheet uploads.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Parse(ctx context.Context, filename string, data io.Reader) (*domain.ParsedReport, error) {
	raw, err := io.ReadAll(data)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	reader, err := pdflib.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", filename, err)
	}

	parsed := &domain.ParsedReport{}
	for num := 1; num <= reader.NumPage(); num++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(num)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Scanned or damaged pages yield no text; keep the rest.
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		parsed.Pages = append(parsed.Pages, domain.PageText{
			PageNumber: num,
			Text:       text,
		})
	}
	return parsed, nil
}
