// Package chunker splits serialized documents into fixed-size parts for
// storage under a per-value size ceiling.
package chunker

import (
	"strings"
	"unicode/utf8"
)

const DefaultSize = 6_000_000

// Options configures chunking behavior.
type Options struct {
	// Size is the maximum number of bytes per chunk.
	Size int
}

// DefaultOptions returns default chunking options.
func DefaultOptions() Options {
	return Options{Size: DefaultSize}
}

// Split cuts text into consecutive chunks of at most opts.Size bytes.
// A cut never lands inside a UTF-8 sequence; when Size is smaller than the
// rune at the cut point, that rune is emitted whole, so a Size below
// utf8.UTFMax can yield chunks longer than Size. Joining the result in
// order yields text exactly. Empty text yields no chunks.
func Split(text string, opts Options) []string {
	if opts.Size <= 0 {
		opts = DefaultOptions()
	}
	if text == "" {
		return nil
	}

	chunks := make([]string, 0, len(text)/opts.Size+1)
	for len(text) > 0 {
		if len(text) <= opts.Size {
			chunks = append(chunks, text)
			break
		}
		cut := opts.Size
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			// Size is below the width of the leading rune.
			_, cut = utf8.DecodeRuneInString(text)
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	return chunks
}

// Join concatenates chunks in index order.
func Join(chunks []string) string {
	return strings.Join(chunks, "")
}
