// Package extract holds the format-specific converters that turn staged
// files into plain text.
package extract

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// textEncoding is one rung of the decoding ladder.
type textEncoding struct {
	name string
	enc  encoding.Encoding
}

// textEncodings is the fixed ordered list of encodings tried for plain
// text files. UTF-8 first; Cyrillic Windows codepage next since most
// legacy uploads come from Windows machines; Latin-1 as the catch-all.
var textEncodings = []textEncoding{
	{"utf-8", unicode.UTF8},
	{"windows-1251", charmap.Windows1251},
	{"iso-8859-1", charmap.ISO8859_1},
}

// ErrUnsupportedEncoding is returned when no ladder entry decodes the file
// to non-empty text.
var ErrUnsupportedEncoding = fmt.Errorf("unsupported text encoding")

// Text reads a plain-text file, trying each supported encoding in order
// until one decodes cleanly and yields non-empty content. Returns the
// decoded text and the encoding name that succeeded.
func Text(path string) (string, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("reading text file: %w", err)
	}

	for _, cand := range textEncodings {
		decoded, err := decodeStrict(raw, cand)
		if err != nil {
			continue
		}
		if strings.TrimSpace(decoded) == "" {
			continue
		}
		return decoded, cand.name, nil
	}

	return "", "", ErrUnsupportedEncoding
}

// decodeStrict decodes raw with the candidate encoding, treating any
// replacement rune in the output as a failed decode. The charmap decoders
// substitute U+FFFD for unmapped bytes instead of erroring, so the
// replacement check is what makes the ladder actually advance.
func decodeStrict(raw []byte, cand textEncoding) (string, error) {
	if cand.enc == unicode.UTF8 {
		if !utf8.Valid(raw) {
			return "", fmt.Errorf("invalid utf-8")
		}
		return string(raw), nil
	}

	decoded, err := cand.enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	if strings.ContainsRune(string(decoded), utf8.RuneError) {
		return "", fmt.Errorf("unmapped bytes for %s", cand.name)
	}
	return string(decoded), nil
}

// SupportedTextEncodings lists the ladder's encoding names in order.
func SupportedTextEncodings() []string {
	names := make([]string, len(textEncodings))
	for i, e := range textEncodings {
		names[i] = e.name
	}
	return names
}
