package extract

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFResult carries the extracted document text plus the flags the
// pipeline uses to mark a result as clean or degraded.
type PDFResult struct {
	Text       string
	TotalPages int
	Processed  int
	PageErrors int
	Truncated  bool
}

// PDF extracts text from a PDF page by page. Processing stops at maxPages;
// a page whose extraction fails contributes an inline placeholder instead
// of aborting the document. Each page's text is capped at pageLimit runes
// so one pathological page cannot crowd out the rest, and the assembled
// text is cut at lengthCeiling with a visible marker.
func PDF(path string, maxPages, pageLimit, lengthCeiling int) (PDFResult, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return PDFResult{}, fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	result := PDFResult{TotalPages: reader.NumPage()}

	result.Processed = result.TotalPages
	if result.Processed > maxPages {
		result.Processed = maxPages
	}

	var pages []string
	for num := 1; num <= result.Processed; num++ {
		page := reader.Page(num)
		if page.V.IsNull() {
			result.PageErrors++
			pages = append(pages, fmt.Sprintf("--- Page %d ---\n[text extraction failed]", num))
			continue
		}

		text, err := extractPageText(page)
		if err != nil {
			result.PageErrors++
			pages = append(pages, fmt.Sprintf("--- Page %d ---\n[text extraction failed]", num))
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, fmt.Sprintf("--- Page %d ---\n%s", num, capRunes(text, pageLimit, " [truncated]")))
	}

	body := "no text found in PDF"
	if len(pages) > 0 {
		body = strings.Join(pages, "\n\n")
	}

	header := fmt.Sprintf("PDF document, %d pages", result.TotalPages)
	if result.TotalPages > maxPages {
		header += fmt.Sprintf(" (processed first %d)", maxPages)
		result.Truncated = true
	}
	result.Text = header + "\n\n" + body

	if capped := capRunes(result.Text, lengthCeiling, "\n\n... [truncated to fit length limit]"); capped != result.Text {
		result.Text = capped
		result.Truncated = true
	}

	return result, nil
}

// capRunes cuts text at limit runes and appends the marker; zero or
// negative limits mean no cap.
func capRunes(text string, limit int, marker string) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + marker
}

// extractPageText isolates the library call so a panic inside malformed
// content streams degrades to a per-page placeholder.
func extractPageText(page pdf.Page) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page parser panic: %v", r)
		}
	}()
	return page.GetPlainText(nil)
}
