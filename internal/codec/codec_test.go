package codec

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

const sample = `<ENVELOPE><VOUCHER><PARTYNAME>Acme</PARTYNAME></VOUCHER></ENVELOPE>`

func TestInflate_PlainPassThrough(t *testing.T) {
	got, err := Inflate(sample)
	if err != nil {
		t.Fatalf("inflate: %v", err)
	}
	if got != sample {
		t.Errorf("expected input unchanged, got %q", got)
	}
}

func TestInflate_Empty(t *testing.T) {
	for _, in := range []string{"", "   ", "\n"} {
		got, err := Inflate(in)
		if err != nil || got != "" {
			t.Errorf("Inflate(%q) = %q, %v; want empty", in, got, err)
		}
	}
}

func TestInflate_GzipBase64(t *testing.T) {
	enc, err := Deflate(sample)
	if err != nil {
		t.Fatalf("deflate: %v", err)
	}
	got, err := Inflate(enc)
	if err != nil {
		t.Fatalf("inflate: %v", err)
	}
	if got != sample {
		t.Errorf("expected %q, got %q", sample, got)
	}
}

func TestInflate_WrappedBase64(t *testing.T) {
	enc, _ := Deflate(sample)
	// Pushers sometimes wrap base64 at 76 columns.
	var b strings.Builder
	for i := 0; i < len(enc); i += 10 {
		end := i + 10
		if end > len(enc) {
			end = len(enc)
		}
		b.WriteString(enc[i:end])
		b.WriteString("\r\n")
	}
	got, err := Inflate(b.String())
	if err != nil {
		t.Fatalf("inflate: %v", err)
	}
	if got != sample {
		t.Errorf("expected %q, got %q", sample, got)
	}
}

func TestInflate_Base64PlainXML(t *testing.T) {
	// base64 of uncompressed XML falls back to the raw bytes.
	enc := base64.StdEncoding.EncodeToString([]byte(strings.ToLower(sample)))
	got, err := Inflate(enc)
	if err != nil {
		t.Fatalf("inflate: %v", err)
	}
	if got != strings.ToLower(sample) {
		t.Errorf("expected raw fallback, got %q", got)
	}
}

func TestInflate_Garbage(t *testing.T) {
	_, err := Inflate("!!!not base64!!!")
	if !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}

	notGzip := base64.StdEncoding.EncodeToString([]byte("hello world"))
	_, err = Inflate(notGzip)
	if !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrDecode for non-gzip payload, got %v", err)
	}
}

func TestDecode_NeverFails(t *testing.T) {
	if got := Decode("sales", "%%%"); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
	enc, _ := Deflate(sample)
	if got := Decode("sales", enc); got != sample {
		t.Errorf("expected decoded XML, got %q", got)
	}
}
