package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// DOCX extracts paragraph text from a Word document. A .docx file is a
// zip archive whose word/document.xml carries paragraphs as <w:p>
// elements with runs of <w:t> text. Empty paragraphs are skipped; there is
// no page concept.
func DOCX(path string) (string, int, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", 0, fmt.Errorf("opening docx archive: %w", err)
	}
	defer archive.Close()

	var document *zip.File
	for _, f := range archive.File {
		if f.Name == "word/document.xml" {
			document = f
			break
		}
	}
	if document == nil {
		return "", 0, fmt.Errorf("not a docx file: word/document.xml missing")
	}

	reader, err := document.Open()
	if err != nil {
		return "", 0, fmt.Errorf("opening document.xml: %w", err)
	}
	defer reader.Close()

	paragraphs, err := docxParagraphs(reader)
	if err != nil {
		return "", 0, err
	}

	if len(paragraphs) == 0 {
		return "no text found in DOCX", 0, nil
	}
	return strings.Join(paragraphs, "\n"), len(paragraphs), nil
}

// docxParagraphs streams the XML token-wise, flushing accumulated run text
// at each paragraph close.
func docxParagraphs(r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)

	var paragraphs []string
	var current strings.Builder
	inText := false

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing document.xml: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if text := strings.TrimSpace(current.String()); text != "" {
					paragraphs = append(paragraphs, text)
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}

	return paragraphs, nil
}
