package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"pdfrag/internal/rag"
)

// PDF extracts plain text from PDF documents, page by page in document order.
type PDF struct{}

func NewPDF() *PDF {
	return &PDF{}
}

// Extract returns the text of every page joined with "\n". Pages without
// extractable text contribute an empty string.
func (x *PDF) Extract(ctx context.Context, data []byte) (string, error) {
	r, err := openReader(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", rag.ErrUnreadablePDF, err)
	}

	n := r.NumPage()
	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		pages = append(pages, pageText(ctx, r, i))
	}

	slog.DebugContext(ctx, "pdf text extracted", "pages", n)
	return strings.Join(pages, "\n"), nil
}

func (x *PDF) ExtractFile(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- path comes from the upload dir or the CLI operator
	if err != nil {
		return "", err
	}
	return x.Extract(ctx, data)
}

func openReader(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r, err = nil, fmt.Errorf("parser panic: %v", rec)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

func pageText(ctx context.Context, r *pdf.Reader, num int) (text string) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.WarnContext(ctx, "page text extraction panicked", "page", num, "error", rec)
			text = ""
		}
	}()

	p := r.Page(num)
	if p.V.IsNull() || p.V.Key("Contents").IsNull() {
		return ""
	}
	s, err := p.GetPlainText(nil)
	if err != nil {
		slog.WarnContext(ctx, "page has no extractable text", "page", num, "error", err)
		return ""
	}
	return s
}
