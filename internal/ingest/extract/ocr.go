package extract

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ocrLanguages is the fixed language preference order for OCR. The empty
// entry means tesseract's default.
var ocrLanguages = []string{"rus+eng", "eng", ""}

// OCR wraps the system tesseract binary. Availability is probed once at
// startup; when the binary is missing, image fallback degrades to a named
// error instead of blocking startup.
type OCR struct {
	binary string
}

// DetectOCR looks for tesseract on PATH. Returns an OCR whose Available
// reports whether the capability exists.
func DetectOCR() *OCR {
	path, err := exec.LookPath("tesseract")
	if err != nil {
		return &OCR{}
	}
	return &OCR{binary: path}
}

// Available reports whether OCR can run.
func (o *OCR) Available() bool {
	return o.binary != ""
}

// Image runs OCR over an image file, trying each language setting in order
// and returning the first non-empty result.
func (o *OCR) Image(ctx context.Context, path string) (string, error) {
	if !o.Available() {
		return "", fmt.Errorf("ocr unavailable: tesseract binary not found")
	}

	var lastErr error
	for _, lang := range ocrLanguages {
		args := []string{path, "stdout"}
		if lang != "" {
			args = append(args, "-l", lang)
		}

		var out, stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, o.binary, args...)
		cmd.Stdout = &out
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			lastErr = fmt.Errorf("tesseract (%s): %v: %s", langLabel(lang), err, strings.TrimSpace(stderr.String()))
			continue
		}

		if text := strings.TrimSpace(out.String()); text != "" {
			return text, nil
		}
	}

	if lastErr != nil {
		return "", lastErr
	}
	return "", fmt.Errorf("no text recognized in image")
}

func langLabel(lang string) string {
	if lang == "" {
		return "default"
	}
	return lang
}
