package odtgen

import (
	"image"
	"image/color"
	"strings"
	"testing"
)

const contentHead = `<?xml version="1.0" encoding="UTF-8"?>` +
	`<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0"` +
	` xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0"` +
	` xmlns:table="urn:oasis:names:tc:opendocument:xmlns:table:1.0"` +
	` xmlns:draw="urn:oasis:names:tc:opendocument:xmlns:drawing:1.0"` +
	` xmlns:svg="urn:oasis:names:tc:opendocument:xmlns:svg-compatible:1.0"` +
	` xmlns:xlink="http://www.w3.org/1999/xlink">` +
	`<office:body><office:text>`

const contentTail = `</office:text></office:body></office:document-content>`

const testManifest = `<?xml version="1.0" encoding="UTF-8"?>` +
	`<manifest:manifest xmlns:manifest="urn:oasis:names:tc:opendocument:xmlns:manifest:1.0" manifest:version="1.2">` +
	`<manifest:file-entry manifest:full-path="/" manifest:media-type="application/vnd.oasis.opendocument.text"/>` +
	`<manifest:file-entry manifest:full-path="content.xml" manifest:media-type="text/xml"/>` +
	`</manifest:manifest>`

// packageBytes builds an .odt archive whose text body is body.
func packageBytes(t *testing.T, body string) []byte {
	t.Helper()
	doc := NewDocument(OpenDocument)
	doc.SetEntry(MimetypeEntry, []byte("application/vnd.oasis.opendocument.text"))
	doc.SetEntry(ContentEntry, []byte(contentHead+body+contentTail))
	doc.SetEntry("styles.xml", []byte(`<office:document-styles/>`))
	doc.SetEntry(ManifestEntry, []byte(testManifest))
	data, err := doc.Bytes()
	if err != nil {
		t.Fatalf("build package: %v", err)
	}
	return data
}

func loadPackage(t *testing.T, body string) *Document {
	t.Helper()
	doc, err := LoadBytes(packageBytes(t, body), OpenDocument)
	if err != nil {
		t.Fatalf("load package: %v", err)
	}
	return doc
}

func newTestTemplate(t *testing.T, body string, opts ...Option) *Template {
	t.Helper()
	tpl, err := NewTemplate(loadPackage(t, body), opts...)
	if err != nil {
		t.Fatalf("new template: %v", err)
	}
	return tpl
}

// renderBody renders and returns the text body of the result.
func renderBody(t *testing.T, tpl *Template, tc TemplateContext) (string, *Document) {
	t.Helper()
	out, err := tpl.Render(tc)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return bodyOf(t, out), out
}

func bodyOf(t *testing.T, doc *Document) string {
	t.Helper()
	data, ok := doc.Entry(ContentEntry)
	if !ok {
		t.Fatal("content entry missing")
	}
	s := string(data)
	start := strings.Index(s, "<office:text>")
	end := strings.LastIndex(s, "</office:text>")
	if start < 0 || end < start {
		t.Fatalf("no text body in %s", s)
	}
	return s[start+len("<office:text>") : end]
}

func entryMap(doc *Document) map[string]string {
	out := make(map[string]string)
	for _, name := range doc.EntryNames() {
		data, _ := doc.Entry(name)
		out[name] = string(data)
	}
	return out
}

func pngImage(t *testing.T, w, h int, c color.Color) *Image {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	data, err := encodePNG(img)
	if err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return NewImage(data, "png")
}
