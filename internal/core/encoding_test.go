package core

import (
	"errors"
	"io"
	"testing"
)

// =============================================================================
// DetectEncoding / TextReader
// =============================================================================

func TestTextReader(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantEnc string
		wantErr bool
	}{
		{name: "ascii", input: "serie,nombre", want: "serie,nombre", wantEnc: EncodingUTF8},
		{name: "utf-8", input: "Balanza analítica", want: "Balanza analítica", wantEnc: EncodingUTF8},
		{name: "bom stripped", input: "\xEF\xBB\xBFserie", want: "serie", wantEnc: EncodingUTF8},
		{name: "windows-1252", input: "Proyecci\xF3n da\xF1ado", want: "Proyección dañado", wantEnc: EncodingWindows1252},
		{name: "windows-1252 euro and quotes", input: "\x80 900 \x93nuevo\x94", want: "€ 900 “nuevo”", wantEnc: EncodingWindows1252},
		{name: "mixed utf-8 and windows-1252", input: "anal\xC3\xADtica Proyecci\xF3n", wantErr: true},
		{name: "undefined byte", input: "serie\x81", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, enc, err := TextReader([]byte(tt.input))
			if tt.wantErr {
				if !errors.Is(err, ErrEncoding) {
					t.Fatalf("error = %v, want ErrEncoding", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("TextReader() error = %v", err)
			}
			if enc != tt.wantEnc {
				t.Errorf("encoding = %q, want %q", enc, tt.wantEnc)
			}
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("text = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectEncoding_ReportsOffset(t *testing.T) {
	_, err := DetectEncoding([]byte("abc\x9D"))
	if err == nil || err.Error() != "encoding error: byte 3: 0x9D is not a valid character" {
		t.Errorf("error = %v", err)
	}
}
