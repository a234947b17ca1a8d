// Package codec turns transport-encoded category fields into XML text.
package codec

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/gofiber/fiber/v2/log"
)

// Marker is the root element every Tally export carries.
const Marker = "<ENVELOPE"

// ErrDecode is returned when a field is neither plain XML nor base64 gzip.
var ErrDecode = errors.New("decode error")

// HasMarker reports whether s contains the envelope root element.
func HasMarker(s string) bool {
	return strings.Contains(strings.ToUpper(s), Marker)
}

// Decode returns the XML carried by field, or "" when it cannot be decoded.
// Failures are logged against category and never returned.
func Decode(category, field string) string {
	xml, err := Inflate(field)
	if err != nil {
		log.Warnw("category field not decodable, treating as empty", "category", category, "err", err)
		return ""
	}
	return xml
}

// Inflate decodes field: plain XML is returned as-is, otherwise the field is
// base64-decoded and gunzipped. When the gunzipped text lacks the envelope
// marker but the raw decoded bytes have it, the raw bytes win.
func Inflate(field string) (string, error) {
	if strings.TrimSpace(field) == "" {
		return "", nil
	}
	if HasMarker(field) {
		return field, nil
	}

	raw, err := decodeBase64(field)
	if err != nil {
		return "", fmt.Errorf("%w: base64: %v", ErrDecode, err)
	}

	text, gzErr := gunzip(raw)
	if gzErr != nil {
		if HasMarker(string(raw)) {
			return strings.ToValidUTF8(string(raw), "�"), nil
		}
		return "", fmt.Errorf("%w: gzip: %v", ErrDecode, gzErr)
	}
	if !HasMarker(text) && HasMarker(string(raw)) {
		return strings.ToValidUTF8(string(raw), "�"), nil
	}
	return text, nil
}

// Deflate is the inverse of Inflate for non-empty input.
func Deflate(xml string) (string, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(xml)); err != nil {
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	var firstErr error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

func gunzip(b []byte) (string, error) {
	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(out), "�"), nil
}
