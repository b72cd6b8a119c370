// Package xmlpart holds one XML part of a package as an editable tree.
//
// A Part can carry raw-text nodes: text that is written out verbatim,
// without XML escaping. They are how template tokens ({{ }} and {% %})
// survive serialization of the tree into the flat text handed to the
// template engine.
package xmlpart

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Raw text is stored in the tree as a private-use sentinel that the XML
// writer leaves untouched and that cannot appear in editor output.
const (
	rawOpen  = '\uE000'
	rawClose = '\uE001'
)

var rawRe = regexp.MustCompile(`\x{E000}([0-9]+)\x{E001}`)

// Part is a parsed XML part plus the raw-text table referenced from it.
type Part struct {
	doc  *etree.Document
	raws []string
}

// Parse reads an XML part.
func Parse(data []byte) (*Part, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.PreserveCData = true
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parse xml: %w", err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("parse xml: no root element")
	}
	return &Part{doc: doc}, nil
}

// New wraps a programmatically built tree.
func New(root *etree.Element) *Part {
	doc := etree.NewDocument()
	doc.SetRoot(root)
	return &Part{doc: doc}
}

// Root returns the document element.
func (p *Part) Root() *etree.Element { return p.doc.Root() }

// RawText creates an unattached text node that is serialized verbatim.
func (p *Part) RawText(s string) *etree.CharData {
	p.raws = append(p.raws, s)
	return etree.NewText(string(rawOpen) + strconv.Itoa(len(p.raws)-1) + string(rawClose))
}

// Raw reports whether c is a raw-text node and returns its content.
func (p *Part) Raw(c *etree.CharData) (string, bool) {
	m := rawRe.FindStringSubmatch(c.Data)
	if m == nil || m[0] != c.Data {
		return "", false
	}
	i, err := strconv.Atoi(m[1])
	if err != nil || i >= len(p.raws) {
		return "", false
	}
	return p.raws[i], true
}

// Text returns the rendered text content of e: all descendant text in
// document order with raw nodes expanded. Whitespace-only text nodes are
// skipped, so indentation between wrapper elements never counts as content.
func (p *Part) Text(e *etree.Element) string {
	var b strings.Builder
	p.collectText(e, &b)
	return b.String()
}

func (p *Part) collectText(e *etree.Element, b *strings.Builder) {
	for _, tok := range e.Child {
		switch t := tok.(type) {
		case *etree.Element:
			p.collectText(t, b)
		case *etree.CharData:
			if strings.TrimSpace(t.Data) == "" {
				continue
			}
			b.WriteString(p.expand(t.Data))
		}
	}
}

func (p *Part) expand(s string) string {
	if !strings.ContainsRune(s, rawOpen) {
		return s
	}
	return rawRe.ReplaceAllStringFunc(s, func(m string) string {
		i, err := strconv.Atoi(m[len(string(rawOpen)) : len(m)-len(string(rawClose))])
		if err != nil || i >= len(p.raws) {
			return m
		}
		return p.raws[i]
	})
}

// Elements returns every element of the part in document order. The slice
// is a snapshot, so callers may restructure the tree while ranging over it.
func (p *Part) Elements() []*etree.Element {
	var out []*etree.Element
	var walk func(*etree.Element)
	walk = func(e *etree.Element) {
		out = append(out, e)
		for _, c := range e.ChildElements() {
			walk(c)
		}
	}
	if root := p.Root(); root != nil {
		walk(root)
	}
	return out
}

// WriteTo serializes the part with raw nodes expanded.
func (p *Part) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	if _, err := p.doc.WriteTo(&buf); err != nil {
		return 0, err
	}
	out := buf.Bytes()
	if len(p.raws) > 0 {
		out = []byte(p.expand(buf.String()))
	}
	n, err := w.Write(out)
	return int64(n), err
}

// Bytes serializes the part.
func (p *Part) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := p.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// String is Bytes for tests and logs.
func (p *Part) String() string {
	b, err := p.Bytes()
	if err != nil {
		return ""
	}
	return string(b)
}

// IsTop reports whether e is the document element (or the document itself).
func IsTop(e *etree.Element) bool {
	parent := e.Parent()
	return parent == nil || parent.Tag == ""
}

// Replace puts tok in the place of old. old is detached from the tree.
func Replace(old *etree.Element, tok etree.Token) {
	parent := old.Parent()
	if parent == nil {
		return
	}
	idx := old.Index()
	parent.RemoveChildAt(idx)
	parent.InsertChildAt(idx, tok)
}

// SetChildren drops every child of e and appends toks.
func SetChildren(e *etree.Element, toks ...etree.Token) {
	for len(e.Child) > 0 {
		e.RemoveChildAt(0)
	}
	for _, t := range toks {
		e.AddChild(t)
	}
}
