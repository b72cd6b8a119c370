package odtgen

import (
	"strings"
	"unicode/utf8"

	"github.com/beevik/etree"

	"odtgen/xmlpart"
)

// PlaceholderKind tells value references from control-flow directives.
type PlaceholderKind int

const (
	Reference PlaceholderKind = iota // tlr://$expr
	Directive                        // tlr://@{% ... %}
)

func (k PlaceholderKind) String() string {
	switch k {
	case Reference:
		return "reference"
	case Directive:
		return "directive"
	default:
		return "unknown"
	}
}

// Placeholder is one hyperlink found by ScanPlaceholders.
type Placeholder struct {
	// Carrier is the element holding the token after the scan: the source
	// hyperlink for references, the synthetic directive element otherwise.
	Carrier *etree.Element
	Kind    PlaceholderKind
	// Expr is the value expression, or the full directive markup.
	Expr string
	// Link is the hyperlink target as authored.
	Link string
}

// Editors percent-encode some characters of hyperlink targets.
var linkUnescaper = strings.NewReplacer(
	"%20", " ",
	"%22", `"`,
	"%25", "%",
	"%7B", "{", "%7b", "{",
	"%7D", "}", "%7d", "}",
	"%7C", "|", "%7c", "|",
)

// ScanPlaceholders finds placeholder hyperlinks in document order and
// rewrites them in place. A reference keeps its element: the link target is
// dropped and the text becomes a value token. A directive element replaces
// the whole hyperlink and waits for ReduceDirective.
func ScanPlaceholders(part *xmlpart.Part, format Format) ([]Placeholder, error) {
	var found []Placeholder
	for _, e := range part.Elements() {
		if e.FullTag() != format.CarrierTag {
			continue
		}
		attr := e.SelectAttr(format.CarrierAttr)
		if attr == nil || !strings.HasPrefix(attr.Value, format.Scheme) {
			continue
		}

		link := attr.Value
		body := linkUnescaper.Replace(link[len(format.Scheme):])
		body = strings.TrimSpace(strings.Trim(body, "/"))
		if utf8.RuneCountInString(body) < 2 {
			return nil, &SyntaxError{Text: link, Reason: "placeholder is too short"}
		}

		sigil, _ := utf8.DecodeRuneInString(body)
		switch sigil {
		case ReferenceSigil:
			expr := strings.TrimSpace(body[1:])
			e.RemoveAttr(format.CarrierAttr)
			xmlpart.SetChildren(e, part.RawText(referenceToken(expr)))
			found = append(found, Placeholder{Carrier: e, Kind: Reference, Expr: expr, Link: link})

		case DirectiveSigil:
			directive := strings.TrimSpace(body[1:])
			if !strings.HasPrefix(directive, "{%") {
				directive = "{% " + directive + " %}"
			}
			marker, err := NewDirectiveElement(part, directive)
			if err != nil {
				return nil, err
			}
			xmlpart.Replace(e, marker)
			found = append(found, Placeholder{Carrier: marker, Kind: Directive, Expr: directive, Link: link})

		default:
			return nil, &SyntaxError{Text: link, Reason: "unknown placeholder sigil " + string(sigil)}
		}
	}
	return found, nil
}

// referenceToken wraps a value expression so the engine passes its result
// through the per-render value filter before it reaches the document.
func referenceToken(expr string) string {
	return "{{ " + ValueHook + "(" + expr + ") }}"
}
