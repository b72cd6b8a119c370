package odtgen

import (
	"strings"

	"github.com/beevik/etree"

	"odtgen/xmlpart"
)

// NewDirectiveElement wraps directive markup ({% ... %}) into a synthetic
// element of part, ready to be placed in the tree and reduced.
func NewDirectiveElement(part *xmlpart.Part, directive string) (*etree.Element, error) {
	if directive == "" {
		return nil, &ArgumentError{Name: "directive", Reason: "empty directive"}
	}
	d := strings.TrimSpace(directive)
	if len(d) < 4 || !strings.HasPrefix(d, "{%") || !strings.HasSuffix(d, "%}") {
		return nil, &SyntaxError{Text: directive, Reason: "directive must be enclosed in {% %}"}
	}
	el := etree.NewElement(DirectiveTag)
	el.AddChild(part.RawText(d))
	return el, nil
}

// ReduceDirective replaces a directive element with its raw markup. On the
// way it climbs through every ancestor whose text is nothing but the
// directive: frames, anchors, paragraphs, cells and rows the editor wrapped
// around it go away together with it. The climb stops below the first
// ancestor holding any other text, and never takes the document element.
func ReduceDirective(part *xmlpart.Part, el *etree.Element) error {
	if el.Parent() == nil {
		return &ArgumentError{Name: "el", Reason: "directive element is not attached"}
	}
	directive := strings.TrimSpace(part.Text(el))

	cur := el
	for {
		parent := cur.Parent()
		if parent == nil || xmlpart.IsTop(parent) {
			break
		}
		if part.Text(parent) != directive {
			break
		}
		cur = parent
	}

	xmlpart.Replace(cur, part.RawText(directive))
	return nil
}

// SanitizeDirectives reduces every directive element left under root, in
// document order. It returns how many were reduced.
func SanitizeDirectives(part *xmlpart.Part, root *etree.Element) (int, error) {
	var markers []*etree.Element
	var walk func(*etree.Element)
	walk = func(e *etree.Element) {
		if e.Tag == DirectiveTag && e.Space == "" {
			markers = append(markers, e)
			return
		}
		for _, c := range e.ChildElements() {
			walk(c)
		}
	}
	walk(root)

	n := 0
	for _, m := range markers {
		if m.Parent() == nil {
			continue
		}
		if err := ReduceDirective(part, m); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
