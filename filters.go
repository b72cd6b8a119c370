package odtgen

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"odtgen/engine"
)

// Category is the runtime kind of a value substituted into a document.
type Category int

const (
	CategoryOther Category = iota
	CategoryText
	CategoryNumber
	CategoryImage
)

func (c Category) String() string {
	switch c {
	case CategoryText:
		return "text"
	case CategoryNumber:
		return "number"
	case CategoryImage:
		return "image"
	default:
		return "other"
	}
}

// Markup is document markup produced by the caller. It is inserted as is.
type Markup string

// ValueFilter encodes one value for insertion into the content part.
type ValueFilter func(v any) (any, error)

// CategoryOf classifies v. Named string and number types follow their kind;
// Markup is never text.
func CategoryOf(v any) Category {
	switch v.(type) {
	case nil, Markup:
		return CategoryOther
	case string:
		return CategoryText
	case *Image, Image:
		return CategoryImage
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.String:
		return CategoryText
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return CategoryNumber
	}
	return CategoryOther
}

// filterRegistry maps value categories to encoders for one render call.
// It writes images into doc, so it must never outlive that call.
type filterRegistry struct {
	doc     *Document
	decimal string
	filters map[Category]ValueFilter
	log     *slog.Logger
}

func newFilterRegistry(doc *Document, locale language.Tag, log *slog.Logger) *filterRegistry {
	if log == nil {
		log = slog.Default()
	}
	r := &filterRegistry{
		doc:     doc,
		decimal: decimalSeparator(locale),
		log:     log,
	}
	r.filters = map[Category]ValueFilter{
		CategoryText:   r.text,
		CategoryNumber: r.number,
		CategoryImage:  r.image,
	}
	return r
}

// Apply runs the filter registered for the category of v. Values of a
// category without a filter come back unmodified.
func (r *filterRegistry) Apply(v any) (any, error) {
	f, ok := r.filters[CategoryOf(v)]
	if !ok {
		return v, nil
	}
	return f(v)
}

// Render applies the filter and returns the text to insert.
func (r *filterRegistry) Render(v any) (string, error) {
	out, err := r.Apply(v)
	if err != nil {
		return "", err
	}
	switch s := out.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	case Markup:
		return string(s), nil
	default:
		return fmt.Sprint(s), nil
	}
}

// hook is the ValueHook callable every reference token goes through.
func (r *filterRegistry) hook() engine.Func {
	return func(args ...any) (any, error) {
		if len(args) == 0 {
			return "", nil
		}
		return r.Render(args[0])
	}
}

// ODF keeps line breaks, tabs and space runs as elements; the escaper below
// has already turned them into character references.
var textControls = strings.NewReplacer(
	"&#xD;&#xA;", lineBreak,
	"&#xD;", lineBreak,
	"&#xA;", lineBreak,
	"&#x9;", tabStop,
)

func (r *filterRegistry) text(v any) (any, error) {
	return escapeText(fmt.Sprint(v)), nil
}

// escapeText makes s safe as ODF paragraph content.
func escapeText(s string) string {
	if s == "" {
		return ""
	}
	var buf bytes.Buffer
	// xml.EscapeText only fails on writer errors; bytes.Buffer has none
	_ = xml.EscapeText(&buf, []byte(s))
	return collapseSpaces(textControls.Replace(buf.String()))
}

// collapseSpaces rewrites runs of spaces as one space plus <text:s/>,
// since consumers fold consecutive spaces in character data.
func collapseSpaces(s string) string {
	if !strings.Contains(s, "  ") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); {
		if s[i] != ' ' {
			b.WriteByte(s[i])
			i++
			continue
		}
		j := i
		for j < len(s) && s[j] == ' ' {
			j++
		}
		b.WriteByte(' ')
		if n := j - i - 1; n > 0 {
			b.WriteString(`<text:s text:c="` + strconv.Itoa(n) + `"/>`)
		}
		i = j
	}
	return b.String()
}

func (r *filterRegistry) number(v any) (any, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32:
		return r.localize(strconv.FormatFloat(rv.Float(), 'f', -1, 32)), nil
	case reflect.Float64:
		return r.localize(strconv.FormatFloat(rv.Float(), 'f', -1, 64)), nil
	}
	return fmt.Sprint(v), nil
}

func (r *filterRegistry) localize(s string) string {
	if r.decimal == "." {
		return s
	}
	return strings.Replace(s, ".", r.decimal, 1)
}

// decimalSeparator asks the locale printer how it writes 1.5.
func decimalSeparator(tag language.Tag) string {
	s := message.NewPrinter(tag).Sprintf("%.1f", 1.5)
	sep := strings.TrimSuffix(strings.TrimPrefix(s, "1"), "5")
	if utf8.RuneCountInString(sep) != 1 {
		return "."
	}
	return sep
}

func (r *filterRegistry) image(v any) (any, error) {
	var img *Image
	switch x := v.(type) {
	case *Image:
		img = x
	case Image:
		img = &x
	}
	if img == nil {
		return "", nil
	}

	blob, err := r.doc.AddOrGetImage(img)
	if err != nil {
		return nil, fmt.Errorf("insert image: %w", err)
	}
	w, h, ok := img.SizeCM()
	if !ok {
		w, h = 2, 2
		r.log.Debug("image size unknown, using default", "path", blob.Path)
	}
	name := "Image_" + img.ID
	if len(img.ID) > 8 {
		name = "Image_" + img.ID[:8]
	}
	return Markup(fmt.Sprintf(imageMarkup, escapeAttr(name), w, h, escapeAttr(blob.Path))), nil
}

func escapeAttr(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
