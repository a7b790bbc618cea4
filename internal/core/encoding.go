package core

// encoding.go turns CSV bytes into UTF-8 text.
//
// Excel writes "CSV UTF-8" with a byte order mark and plain "CSV" in the
// system code page, which for Spanish-locale Windows is Windows-1252. A file
// that is valid UTF-8 is read as is. Any other file is decoded as
// Windows-1252, unless it also carries well-formed multi-byte UTF-8
// sequences or bytes that Windows-1252 leaves undefined: such a file is
// damaged and is rejected with ErrEncoding.

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Text encodings recognised in CSV uploads.
const (
	EncodingUTF8        = "utf-8"
	EncodingWindows1252 = "windows-1252"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DetectEncoding reports the encoding of data, which must not include the
// BOM. It returns an error wrapping ErrEncoding when the bytes fit neither
// encoding.
func DetectEncoding(data []byte) (string, error) {
	if utf8.Valid(data) {
		return EncodingUTF8, nil
	}

	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if size > 1 && r != utf8.RuneError {
			return "", fmt.Errorf("%w: byte %d: file mixes UTF-8 text with other bytes", ErrEncoding, i)
		}
		if undefined1252(data[i]) {
			return "", fmt.Errorf("%w: byte %d: 0x%02X is not a valid character", ErrEncoding, i, data[i])
		}
		i += size
	}
	return EncodingWindows1252, nil
}

// undefined1252 reports the five bytes Windows-1252 does not assign.
func undefined1252(b byte) bool {
	switch b {
	case 0x81, 0x8D, 0x8F, 0x90, 0x9D:
		return true
	}
	return false
}

// TextReader returns data as a UTF-8 reader with any BOM removed, along with
// the detected encoding.
func TextReader(data []byte) (io.Reader, string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	enc, err := DetectEncoding(data)
	if err != nil {
		return nil, "", err
	}
	if enc == EncodingWindows1252 {
		return transform.NewReader(bytes.NewReader(data), charmap.Windows1252.NewDecoder()), enc, nil
	}
	return bytes.NewReader(data), enc, nil
}
