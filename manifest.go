package odtgen

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/beevik/etree"
)

const (
	manifestRoot      = "manifest:manifest"
	manifestFileEntry = "manifest:file-entry"
	attrFullPath      = "manifest:full-path"
	attrMediaType     = "manifest:media-type"
)

// FileEntry is one file-entry row of META-INF/manifest.xml.
type FileEntry struct {
	FullPath  string
	MediaType string
}

// Manifest is the editable META-INF/manifest.xml of a package. Rows and
// attributes it does not know about are kept as they are.
type Manifest struct {
	doc *etree.Document
}

// NewManifest returns a manifest holding only the package root row, listed
// with the package media type.
func NewManifest(mediaType string) *Manifest {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement(manifestRoot)
	root.CreateAttr("xmlns:manifest", ManifestNS)
	root.CreateAttr("manifest:version", "1.2")
	m := &Manifest{doc: doc}
	m.Append("/", mediaType)
	return m
}

// ParseManifest reads manifest XML.
func ParseManifest(data []byte) (*Manifest, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, err
	}
	root := doc.Root()
	if root == nil || root.FullTag() != manifestRoot {
		return nil, fmt.Errorf("root element is not %s", manifestRoot)
	}
	return &Manifest{doc: doc}, nil
}

func (m *Manifest) rows() []*etree.Element {
	var out []*etree.Element
	for _, e := range m.doc.Root().ChildElements() {
		if e.FullTag() == manifestFileEntry {
			out = append(out, e)
		}
	}
	return out
}

func (m *Manifest) find(fullPath string) *etree.Element {
	for _, e := range m.rows() {
		if e.SelectAttrValue(attrFullPath, "") == fullPath {
			return e
		}
	}
	return nil
}

// Append adds a row. It returns false when the path is already listed.
func (m *Manifest) Append(fullPath, mediaType string) bool {
	if m.find(fullPath) != nil {
		return false
	}
	e := m.doc.Root().CreateElement(manifestFileEntry)
	e.CreateAttr(attrFullPath, fullPath)
	e.CreateAttr(attrMediaType, mediaType)
	return true
}

// Remove drops the row for fullPath. It reports whether one was found.
func (m *Manifest) Remove(fullPath string) bool {
	e := m.find(fullPath)
	if e == nil {
		return false
	}
	m.doc.Root().RemoveChild(e)
	return true
}

// MediaType returns the media type listed for fullPath.
func (m *Manifest) MediaType(fullPath string) (string, bool) {
	e := m.find(fullPath)
	if e == nil {
		return "", false
	}
	return e.SelectAttrValue(attrMediaType, ""), true
}

// Entries lists the rows in document order.
func (m *Manifest) Entries() []FileEntry {
	rows := m.rows()
	out := make([]FileEntry, 0, len(rows))
	for _, e := range rows {
		out = append(out, FileEntry{
			FullPath:  e.SelectAttrValue(attrFullPath, ""),
			MediaType: e.SelectAttrValue(attrMediaType, ""),
		})
	}
	return out
}

// Bytes serializes the manifest.
func (m *Manifest) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := m.doc.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var mimeMap = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"svg":  "image/svg+xml",
	"webp": "image/webp",
}

// MediaType maps a file extension (with or without the dot) to its media
// type, falling back to application/octet-stream.
func MediaType(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(path.Ext("x."+strings.TrimPrefix(ext, ".")), "."))
	if mt, ok := mimeMap[ext]; ok {
		return mt
	}
	return "application/octet-stream"
}
