// Package xmltree builds a generic element tree from loosely formed Tally XML
// and answers tag-name queries against it.
package xmltree

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// ErrParse marks a tokenizer failure. The tree built up to that point is
// still returned.
var ErrParse = errors.New("parse error")

// Element is one node of the tree. Text holds the element's own trimmed
// character data.
type Element struct {
	Name     string
	Attr     map[string]string
	Text     string
	Children []*Element
}

// RootName is the name of the synthetic element returned by Parse.
const RootName = "#document"

// Tally writes control characters as numeric references (e.g. &#4;), which
// are not legal XML characters.
var controlRef = regexp.MustCompile(`&#([xX][0-9a-fA-F]+|[0-9]+);`)

func sanitize(s string) string {
	s = controlRef.ReplaceAllStringFunc(s, func(ref string) string {
		body := ref[2 : len(ref)-1]
		var n uint64
		var err error
		if body[0] == 'x' || body[0] == 'X' {
			n, err = strconv.ParseUint(body[1:], 16, 32)
		} else {
			n, err = strconv.ParseUint(body, 10, 32)
		}
		if err != nil || (n < 0x20 && n != '\t' && n != '\n' && n != '\r') {
			return ""
		}
		return ref
	})
	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// Parse tokenizes src into a tree under a synthetic root. A syntax error,
// including input that ends inside an open element, stops tokenizing; the
// open elements are closed and the partial tree is returned with an error
// wrapping ErrParse.
func Parse(src string) (*Element, error) {
	root := &Element{Name: RootName}
	if strings.TrimSpace(src) == "" {
		return root, nil
	}

	d := xml.NewDecoder(strings.NewReader(sanitize(src)))
	d.Strict = false
	d.Entity = xml.HTMLEntity
	d.CharsetReader = func(_ string, in io.Reader) (io.Reader, error) { return in, nil }

	stack := []*Element{root}
	texts := []*strings.Builder{{}}

	closeTop := func() {
		top := stack[len(stack)-1]
		top.Text = strings.TrimSpace(texts[len(texts)-1].String())
		stack = stack[:len(stack)-1]
		texts = texts[:len(texts)-1]
	}

	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			for len(stack) > 1 {
				closeTop()
			}
			root.Text = strings.TrimSpace(texts[0].String())
			return root, fmt.Errorf("%w: %v", ErrParse, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{Name: t.Name.Local}
			if len(t.Attr) > 0 {
				el.Attr = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					el.Attr[strings.ToUpper(a.Name.Local)] = a.Value
				}
			}
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, el)
			stack = append(stack, el)
			texts = append(texts, &strings.Builder{})
		case xml.EndElement:
			// Non-strict mode may hand us an end tag that does not match
			// the innermost open element; unwind to the nearest match.
			idx := -1
			for i := len(stack) - 1; i > 0; i-- {
				if strings.EqualFold(stack[i].Name, t.Name.Local) {
					idx = i
					break
				}
			}
			if idx < 0 {
				continue
			}
			for len(stack) > idx {
				closeTop()
			}
		case xml.CharData:
			texts[len(texts)-1].Write(t)
		}
	}

	for len(stack) > 1 {
		closeTop()
	}
	root.Text = strings.TrimSpace(texts[0].String())
	return root, nil
}

// Blocks returns the outermost descendants of el named name, in document
// order. Matching is case-insensitive and does not descend into a match, so
// same-named nested elements stay inside their enclosing block.
func Blocks(el *Element, name string) []*Element {
	if el == nil {
		return nil
	}
	var out []*Element
	var walk func(*Element)
	walk = func(e *Element) {
		for _, c := range e.Children {
			if strings.EqualFold(c.Name, name) {
				out = append(out, c)
				continue
			}
			walk(c)
		}
	}
	walk(el)
	return out
}

// Field returns the first non-empty text of a descendant named name.
// A name starting with "@" reads that attribute of el instead.
func Field(el *Element, name string) string {
	if el == nil {
		return ""
	}
	if strings.HasPrefix(name, "@") {
		return strings.TrimSpace(el.Attr[strings.ToUpper(name[1:])])
	}
	var found string
	var walk func(*Element) bool
	walk = func(e *Element) bool {
		for _, c := range e.Children {
			if strings.EqualFold(c.Name, name) && c.Text != "" {
				found = c.Text
				return true
			}
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(el)
	return found
}

// Any tries each name in order and returns the first non-empty Field.
func Any(el *Element, names ...string) string {
	for _, n := range names {
		if v := Field(el, n); v != "" {
			return v
		}
	}
	return ""
}

// Values returns the text of every descendant named name in document order,
// empty values included so parallel lists stay aligned.
func Values(el *Element, name string) []string {
	if el == nil {
		return nil
	}
	var out []string
	var walk func(*Element)
	walk = func(e *Element) {
		for _, c := range e.Children {
			if strings.EqualFold(c.Name, name) {
				out = append(out, c.Text)
			}
			walk(c)
		}
	}
	walk(el)
	return out
}
