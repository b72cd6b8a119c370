package odtgen

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
)

// Document is an ODF package: a set of named entries with a lazily loaded
// manifest and the images added to it during a render.
//
// A Document is not safe for concurrent mutation. Concurrent readers are
// fine as long as nobody writes, which is how a template document is used.
type Document struct {
	format   Format
	entries  map[string][]byte // entry name -> content
	order    []string          // load/insert order, used by Save
	manifest *Manifest         // nil until first use
	blobs    []*BlobEntry
	blobByID map[string]*BlobEntry
	isNew    bool
	log      *slog.Logger
}

// NewDocument creates an empty package of the given format.
func NewDocument(format Format) *Document {
	return &Document{
		format:   format,
		entries:  make(map[string][]byte),
		blobByID: make(map[string]*BlobEntry),
		isNew:    true,
		log:      slog.Default(),
	}
}

// Open reads a package from disk.
func Open(path string, format Format) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return LoadBytes(data, format)
}

// LoadBytes reads a package held in memory.
func LoadBytes(data []byte, format Format) (*Document, error) {
	return Load(bytes.NewReader(data), int64(len(data)), format)
}

// Load reads every entry of the archive into memory.
func Load(r io.ReaderAt, size int64, format Format) (*Document, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, &FormatError{Reason: "unreadable archive", Err: err}
	}

	doc := NewDocument(format)
	doc.isNew = false
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, &FormatError{Entry: f.Name, Reason: "open entry", Err: err}
		}
		buf, err := io.ReadAll(rc)
		_ = rc.Close() // read-only, close error carries nothing useful
		if err != nil {
			return nil, &FormatError{Entry: f.Name, Reason: "read entry", Err: err}
		}
		doc.SetEntry(f.Name, buf)
	}

	if format.RequireMarker && !doc.HasEntry(format.MarkerEntry) {
		return nil, &FormatError{Entry: format.MarkerEntry, Reason: "marker entry is missing"}
	}
	return doc, nil
}

// Format returns the package format.
func (d *Document) Format() Format { return d.format }

// IsNew reports whether the document was created empty and never loaded.
func (d *Document) IsNew() bool { return d.isNew }

// SetLogger replaces the logger used for debug output.
func (d *Document) SetLogger(l *slog.Logger) {
	if l != nil {
		d.log = l
	}
}

// HasEntry reports whether name exists.
func (d *Document) HasEntry(name string) bool {
	_, ok := d.entries[normalizeName(name)]
	return ok
}

// Entry returns the content of an entry.
func (d *Document) Entry(name string) ([]byte, bool) {
	data, ok := d.entries[normalizeName(name)]
	return data, ok
}

// EntryNames returns entry names in stable order.
func (d *Document) EntryNames() []string {
	return append([]string(nil), d.order...)
}

// SetEntry creates or replaces an entry.
func (d *Document) SetEntry(name string, data []byte) {
	name = normalizeName(name)
	if name == "" {
		return
	}
	if _, ok := d.entries[name]; !ok {
		d.order = append(d.order, name)
	}
	d.entries[name] = data
	d.isNew = false
}

// RemoveEntry deletes an entry. It reports whether the entry existed.
func (d *Document) RemoveEntry(name string) bool {
	name = normalizeName(name)
	if _, ok := d.entries[name]; !ok {
		return false
	}
	delete(d.entries, name)
	for i, n := range d.order {
		if n == name {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	return true
}

// RemoveManifestedEntry deletes an entry together with its manifest row.
func (d *Document) RemoveManifestedEntry(name string) error {
	m, err := d.Manifest()
	if err != nil {
		return err
	}
	m.Remove(name)
	d.RemoveEntry(name)
	for i, b := range d.blobs {
		if b.Path == name {
			delete(d.blobByID, b.Image.ID)
			d.blobs = append(d.blobs[:i], d.blobs[i+1:]...)
			break
		}
	}
	return nil
}

// OpenEntry gives read access to an entry.
func (d *Document) OpenEntry(name string) (io.ReadCloser, error) {
	data, ok := d.Entry(name)
	if !ok {
		return nil, &FormatError{Entry: name, Reason: "entry not found"}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// CreateEntry returns a writer whose content replaces the entry on Close.
func (d *Document) CreateEntry(name string) io.WriteCloser {
	return &entryWriter{doc: d, name: name}
}

// ReadEntry calls fn with the content of an entry. The reader is closed on
// every path out of ReadEntry.
func (d *Document) ReadEntry(name string, fn func(io.Reader) error) (err error) {
	rc, err := d.OpenEntry(name)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rc.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	return fn(rc)
}

// WriteEntry calls fn with a writer for an entry. The entry is replaced only
// when fn succeeds.
func (d *Document) WriteEntry(name string, fn func(io.Writer) error) (err error) {
	w := &entryWriter{doc: d, name: name}
	defer func() {
		if err != nil {
			w.abort()
			return
		}
		err = w.Close()
	}()
	return fn(w)
}

// Manifest returns the package manifest, reading it on first use.
func (d *Document) Manifest() (*Manifest, error) {
	if d.manifest != nil {
		return d.manifest, nil
	}
	data, ok := d.Entry(d.format.ManifestEntry)
	if !ok {
		d.manifest = NewManifest(d.mediaType())
		return d.manifest, nil
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, &FormatError{Entry: d.format.ManifestEntry, Reason: "malformed manifest", Err: err}
	}
	d.manifest = m
	return m, nil
}

// mediaType is the package media type held by the marker entry, text
// documents when there is none.
func (d *Document) mediaType() string {
	if data, ok := d.Entry(d.format.MarkerEntry); ok {
		if mt := strings.TrimSpace(string(data)); mt != "" {
			return mt
		}
	}
	return "application/vnd.oasis.opendocument.text"
}

// Flush writes the manifest back to its entry if it was ever loaded.
func (d *Document) Flush() error {
	if d.manifest == nil {
		return nil
	}
	data, err := d.manifest.Bytes()
	if err != nil {
		return fmt.Errorf("flush manifest: %w", err)
	}
	d.SetEntry(d.format.ManifestEntry, data)
	return nil
}

// Save flushes the manifest and writes the package. The marker entry goes
// first and uncompressed, everything else follows in stable order.
func (d *Document) Save(w io.Writer) error {
	if err := d.Flush(); err != nil {
		return err
	}
	marker, ok := d.entries[d.format.MarkerEntry]
	if !ok {
		return &FormatError{Entry: d.format.MarkerEntry, Reason: "marker entry is missing"}
	}

	zw := zip.NewWriter(w)
	modified := time.Now().UTC()

	if err := writeZipEntry(zw, d.format.MarkerEntry, marker, zip.Store, modified); err != nil {
		return err
	}
	for _, name := range d.order {
		if name == d.format.MarkerEntry {
			continue
		}
		if err := writeZipEntry(zw, name, d.entries[name], zip.Deflate, modified); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

// SaveFile writes the package to path.
func (d *Document) SaveFile(path string) error {
	var buf bytes.Buffer
	if err := d.Save(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// Bytes is Save into memory.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Save(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CopyStructureTo makes other an independent deep copy of d. d is never
// modified: a loaded manifest is serialized into the copy only. The copy
// starts with its own lazy manifest and no images.
func (d *Document) CopyStructureTo(other *Document) error {
	other.format = d.format
	other.entries = make(map[string][]byte, len(d.entries))
	other.order = make([]string, 0, len(d.order))
	for _, name := range d.order {
		other.entries[name] = bytes.Clone(d.entries[name])
		other.order = append(other.order, name)
	}
	if d.manifest != nil {
		data, err := d.manifest.Bytes()
		if err != nil {
			return fmt.Errorf("copy manifest: %w", err)
		}
		if _, ok := other.entries[d.format.ManifestEntry]; !ok {
			other.order = append(other.order, d.format.ManifestEntry)
		}
		other.entries[d.format.ManifestEntry] = data
	}
	other.manifest = nil
	other.blobs = nil
	other.blobByID = make(map[string]*BlobEntry)
	other.isNew = d.isNew
	if other.log == nil {
		other.log = d.log
	}
	return nil
}

// Clone returns a deep copy of d.
func (d *Document) Clone() (*Document, error) {
	c := &Document{log: d.log}
	if err := d.CopyStructureTo(c); err != nil {
		return nil, err
	}
	return c, nil
}

// BlobEntries returns the images added to this document, in insertion order.
func (d *Document) BlobEntries() []*BlobEntry {
	return append([]*BlobEntry(nil), d.blobs...)
}

// AddOrGetImage stores img under the images directory and registers it in
// the manifest. Adding an image with a known ID returns the existing entry.
func (d *Document) AddOrGetImage(img *Image) (*BlobEntry, error) {
	if img == nil {
		return nil, &ArgumentError{Name: "img", Reason: "nil image"}
	}
	if b, ok := d.blobByID[img.ID]; ok {
		return b, nil
	}
	name := strings.TrimSpace(img.FileName)
	if name == "" || strings.HasSuffix(name, "/") {
		return nil, &ArgumentError{Name: "img", Reason: "image has no file name"}
	}
	path := d.format.ImagesDir + name
	if old, ok := d.Entry(path); ok && !bytes.Equal(old, img.Data) {
		return nil, &ArgumentError{Name: "img", Reason: "entry " + path + " already holds other data"}
	}

	m, err := d.Manifest()
	if err != nil {
		return nil, err
	}

	d.SetEntry(path, img.Data)
	m.Append(path, MediaType(img.Extension))

	b := &BlobEntry{Image: img, Path: path}
	d.blobs = append(d.blobs, b)
	d.blobByID[img.ID] = b
	d.log.Debug("image added", "path", path, "size", len(img.Data))
	return b, nil
}

func writeZipEntry(zw *zip.Writer, name string, data []byte, method uint16, modified time.Time) error {
	// LibreOffice and Word refuse entries with a zero timestamp
	h := &zip.FileHeader{
		Name:     name,
		Method:   method,
		Modified: modified,
	}
	f, err := zw.CreateHeader(h)
	if err != nil {
		return fmt.Errorf("create entry %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}
	return nil
}

// normalizeName makes entry names zip friendly: no leading slash, forward
// slashes only.
func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	return strings.TrimPrefix(name, "/")
}

// entryWriter buffers an entry until Close.
type entryWriter struct {
	doc    *Document
	name   string
	buf    bytes.Buffer
	closed bool
}

func (w *entryWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("write to closed entry %s", w.name)
	}
	return w.buf.Write(p)
}

func (w *entryWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.doc.SetEntry(w.name, bytes.Clone(w.buf.Bytes()))
	return nil
}

func (w *entryWriter) abort() {
	w.closed = true
	w.buf.Reset()
}
