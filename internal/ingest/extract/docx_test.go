package extract

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeDocx builds a minimal .docx archive with the given document.xml
// body, or without the part entirely when body is empty.
func writeDocx(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.docx")

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	if body != "" {
		part, err := w.Create("word/document.xml")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

const docxBody = `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph</w:t></w:r></w:p>
    <w:p></w:p>
    <w:p><w:r><w:t>Third</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestDOCX(t *testing.T) {
	t.Run("Extracts_Paragraphs", func(t *testing.T) {
		text, count, err := DOCX(writeDocx(t, docxBody))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 3 {
			t.Errorf("expected 3 non-empty paragraphs, got %d", count)
		}

		lines := strings.Split(text, "\n")
		if len(lines) != 3 {
			t.Fatalf("expected 3 lines, got %d", len(lines))
		}
		if lines[0] != "First paragraph" {
			t.Errorf("line 0: %q", lines[0])
		}
		if lines[1] != "Second paragraph" {
			t.Errorf("split runs not joined: %q", lines[1])
		}
	})

	t.Run("Empty_Document", func(t *testing.T) {
		body := `<w:document xmlns:w="ns"><w:body><w:p></w:p></w:body></w:document>`
		text, count, err := DOCX(writeDocx(t, body))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 0 || text != "no text found in DOCX" {
			t.Errorf("got count=%d text=%q", count, text)
		}
	})

	t.Run("Missing_Document_Part", func(t *testing.T) {
		if _, _, err := DOCX(writeDocx(t, "")); err == nil {
			t.Error("expected error for archive without word/document.xml")
		}
	})

	t.Run("Not_A_Zip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "fake.docx")
		if err := os.WriteFile(path, []byte("plain text pretending"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, _, err := DOCX(path); err == nil {
			t.Error("expected error for non-zip input")
		}
	})
}
