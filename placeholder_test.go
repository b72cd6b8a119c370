package odtgen

import (
	"errors"
	"strings"
	"testing"

	"odtgen/xmlpart"
)

func parsePart(t *testing.T, body string) *xmlpart.Part {
	t.Helper()
	part, err := xmlpart.Parse([]byte(contentHead + body + contentTail))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return part
}

func TestScanReference(t *testing.T) {
	part := parsePart(t, `<text:p>Hi <text:a xlink:type="simple" xlink:href="tlr://$user.name%20|%20upper">name</text:a></text:p>`)
	found, err := ScanPlaceholders(part, OpenDocument)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("found %d placeholders, want 1", len(found))
	}
	p := found[0]
	if p.Kind != Reference || p.Expr != "user.name | upper" {
		t.Errorf("got %v %q", p.Kind, p.Expr)
	}
	if p.Carrier.SelectAttr(AttrHRef) != nil {
		t.Error("href kept on reference carrier")
	}
	want := `<text:a xlink:type="simple">{{ odf_value(user.name | upper) }}</text:a>`
	if got := part.String(); !strings.Contains(got, want) {
		t.Errorf("carrier not rewritten:\n%s", got)
	}
}

func TestScanDirectiveWrapsBareBody(t *testing.T) {
	cases := []struct {
		href string
		want string
	}{
		{"tlr://@for r in rows", "{% for r in rows %}"},
		{"tlr://@{% endfor %}", "{% endfor %}"},
		{"tlr://@%7B%25%20if%20x%20%25%7D", "{% if x %}"},
		{"tlr:///@endif/", "{% endif %}"},
	}
	for _, c := range cases {
		part := parsePart(t, `<text:p><text:a xlink:href="`+c.href+`">d</text:a></text:p>`)
		found, err := ScanPlaceholders(part, OpenDocument)
		if err != nil {
			t.Errorf("%s: %v", c.href, err)
			continue
		}
		if len(found) != 1 || found[0].Kind != Directive || found[0].Expr != c.want {
			t.Errorf("%s: got %+v, want directive %q", c.href, found, c.want)
			continue
		}
		if found[0].Carrier.Tag != DirectiveTag {
			t.Errorf("%s: carrier is %s", c.href, found[0].Carrier.Tag)
		}
		if strings.Contains(part.String(), "text:a") {
			t.Errorf("%s: hyperlink survived", c.href)
		}
	}
}

func TestScanMalformed(t *testing.T) {
	for _, href := range []string{"tlr://x", "tlr://#x", "tlr://$", "tlr://", "tlr://@ "} {
		part := parsePart(t, `<text:p><text:a xlink:href="`+href+`">bad</text:a></text:p>`)
		_, err := ScanPlaceholders(part, OpenDocument)
		var se *SyntaxError
		if !errors.As(err, &se) {
			t.Errorf("%s: err = %v, want *SyntaxError", href, err)
		}
	}
}

func TestScanUnknownSigilNamesRune(t *testing.T) {
	part := parsePart(t, `<text:p><text:a xlink:href="tlr://éx">bad</text:a></text:p>`)
	_, err := ScanPlaceholders(part, OpenDocument)
	var se *SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *SyntaxError", err)
	}
	if !strings.HasSuffix(se.Reason, "sigil é") {
		t.Errorf("reason = %q", se.Reason)
	}
}

func TestScanIgnoresOrdinaryLinks(t *testing.T) {
	part := parsePart(t, `<text:p><text:a xlink:href="https://example.com">site</text:a></text:p>`)
	found, err := ScanPlaceholders(part, OpenDocument)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("found %d placeholders in an ordinary link", len(found))
	}
}

func TestScanOrder(t *testing.T) {
	part := parsePart(t, `<text:p><text:a xlink:href="tlr://@if a">1</text:a>`+
		`<text:a xlink:href="tlr://$b">2</text:a><text:a xlink:href="tlr://@endif">3</text:a></text:p>`)
	found, err := ScanPlaceholders(part, OpenDocument)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	var got []string
	for _, p := range found {
		got = append(got, p.Kind.String()+":"+p.Expr)
	}
	want := "directive:{% if a %} reference:b directive:{% endif %}"
	if strings.Join(got, " ") != want {
		t.Errorf("order = %v", got)
	}
}
