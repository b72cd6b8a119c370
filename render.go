package odtgen

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/text/language"

	"odtgen/engine"
	"odtgen/modifiers"
	"odtgen/xmlpart"
)

// TemplateContext is the data of one render call.
type TemplateContext struct {
	Values map[string]any
	// Locale drives number formatting and the plural, money and
	// date_format modifiers. The zero value formats numbers like "en" and
	// words in Russian.
	Locale language.Tag
}

// RenderResult is what RenderAsync delivers.
type RenderResult struct {
	Document *Document
	Err      error
}

// Option configures a Template.
type Option func(*Template)

// WithEngine replaces the default Jinja engine. The engine must provide
// its own value filters: only ValueHook and the context functions are
// supplied per call.
func WithEngine(e engine.Engine) Option {
	return func(t *Template) { t.engine = e }
}

// WithLogger sets the logger for debug output of the render pipeline.
func WithLogger(l *slog.Logger) Option {
	return func(t *Template) {
		if l != nil {
			t.log = l
		}
	}
}

// WithFormat overrides how placeholders are found in the content part.
// By default the format the document was loaded with is used.
func WithFormat(f Format) Option {
	return func(t *Template) { t.format = f }
}

// WithModifiers adds custom filters to the default engine.
func WithModifiers(m map[string]modifiers.ModifierMeta) Option {
	return func(t *Template) {
		for name, meta := range m {
			t.modifiers[name] = meta
		}
	}
}

// WithAssetDir is where the image filter resolves relative paths. Paths
// never escape it.
func WithAssetDir(dir string) Option {
	return func(t *Template) { t.assetDir = dir }
}

// WithStrictUndefined makes undefined variables fail the render.
func WithStrictUndefined(strict bool) Option {
	return func(t *Template) { t.strict = strict }
}

// Template is a loaded source document ready to be rendered any number of
// times, from any number of goroutines. The source is never modified.
type Template struct {
	source    *Document
	format    Format
	engine    engine.Engine
	log       *slog.Logger
	modifiers map[string]modifiers.ModifierMeta
	assetDir  string
	strict    bool

	// Result of the preparation pass. Read-only after NewTemplate.
	flat         string
	compiled     engine.Compiled
	placeholders []Placeholder
}

// NewTemplate validates doc and prepares it for rendering. Malformed
// placeholders and directives are reported here as *SyntaxError, before any
// data is involved.
func NewTemplate(doc *Document, opts ...Option) (*Template, error) {
	if doc == nil {
		return nil, &ArgumentError{Name: "doc", Reason: "nil document"}
	}
	if doc.IsNew() {
		return nil, &ArgumentError{Name: "doc", Reason: "document is empty"}
	}

	t := &Template{
		source:    doc,
		format:    doc.Format(),
		log:       slog.Default(),
		modifiers: make(map[string]modifiers.ModifierMeta),
	}
	for _, opt := range opts {
		opt(t)
	}
	if !doc.HasEntry(t.format.ContentEntry) {
		return nil, &ArgumentError{Name: "doc", Reason: "no content entry " + t.format.ContentEntry}
	}
	if t.engine == nil {
		t.engine = engine.NewGonja(
			engine.WithFilters(t.filters()),
			engine.WithScopedFilters(t.localizedFilters()),
			engine.WithStrictUndefined(t.strict),
		)
	}

	content, _ := doc.Entry(t.format.ContentEntry)
	part, found, err := t.prepare(content)
	if err != nil {
		return nil, err
	}
	t.flat = part.String()
	t.compiled, err = t.compile(t.flat)
	if err != nil {
		return nil, err
	}

	t.placeholders = make([]Placeholder, len(found))
	for i, p := range found {
		p.Carrier = nil
		t.placeholders[i] = p
	}
	t.log.Debug("template prepared", "placeholders", len(found), "size", len(t.flat))
	return t, nil
}

// Placeholders lists what the preparation pass found, in document order.
// Carrier is always nil: the prepared tree is not kept.
func (t *Template) Placeholders() []Placeholder {
	return append([]Placeholder(nil), t.placeholders...)
}

// Source returns the document the template was built from.
func (t *Template) Source() *Document { return t.source }

// prepare turns a content part into flat template text: placeholders become
// engine tokens and directives lose their wrappers.
func (t *Template) prepare(content []byte) (*xmlpart.Part, []Placeholder, error) {
	part, err := xmlpart.Parse(content)
	if err != nil {
		return nil, nil, &FormatError{Entry: t.format.ContentEntry, Reason: "content is not well-formed XML", Err: err}
	}
	found, err := ScanPlaceholders(part, t.format)
	if err != nil {
		return nil, nil, err
	}
	if _, err := SanitizeDirectives(part, part.Root()); err != nil {
		return nil, nil, err
	}
	return part, found, nil
}

func (t *Template) compile(flat string) (engine.Compiled, error) {
	c, err := t.engine.Compile(t.format.ContentEntry, flat)
	if err != nil {
		return nil, &SyntaxError{Text: t.format.ContentEntry, Reason: "template does not compile", Err: err}
	}
	return c, nil
}

// Render renders tc into a new document.
func (t *Template) Render(tc TemplateContext) (*Document, error) {
	return t.RenderContext(context.Background(), tc)
}

// RenderContext is Render with cancellation. The context is checked before
// every entry access and before the engine runs.
func (t *Template) RenderContext(ctx context.Context, tc TemplateContext) (*Document, error) {
	r := &renderRun{tpl: t, tc: tc, log: t.log}
	return r.run(ctx)
}

// RenderAsync runs a render on its own goroutine. The channel receives
// exactly one result and is closed.
func (t *Template) RenderAsync(ctx context.Context, tc TemplateContext) <-chan RenderResult {
	ch := make(chan RenderResult, 1)
	go func() {
		defer close(ch)
		doc, err := t.RenderContext(ctx, tc)
		ch <- RenderResult{Document: doc, Err: err}
	}()
	return ch
}

type renderState int

const (
	stateStart renderState = iota
	stateScanned
	stateReduced
	stateEvaluated
	stateReassembled
	stateDone
	stateFailed
)

func (s renderState) String() string {
	switch s {
	case stateStart:
		return "start"
	case stateScanned:
		return "scanned"
	case stateReduced:
		return "reduced"
	case stateEvaluated:
		return "evaluated"
	case stateReassembled:
		return "reassembled"
	case stateDone:
		return "done"
	case stateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// renderRun is one render call. Nothing in it is shared with other calls.
type renderRun struct {
	tpl   *Template
	tc    TemplateContext
	log   *slog.Logger
	state renderState

	out      *Document
	part     *xmlpart.Part
	found    int
	rendered bytes.Buffer
}

func (r *renderRun) run(ctx context.Context) (*Document, error) {
	steps := []struct {
		next renderState
		fn   func(context.Context) error
	}{
		{stateScanned, r.scan},
		{stateReduced, r.reduce},
		{stateEvaluated, r.evaluate},
		{stateReassembled, r.reassemble},
		{stateDone, r.finish},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			r.log.Debug("render failed", "state", r.state, "err", err)
			r.state = stateFailed
			return nil, err
		}
		r.transition(s.next)
	}
	return r.out, nil
}

func (r *renderRun) transition(next renderState) {
	r.log.Debug("render state", "from", r.state, "to", next)
	r.state = next
}

func (r *renderRun) scan(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	out, err := r.tpl.source.Clone()
	if err != nil {
		return fmt.Errorf("copy source: %w", err)
	}
	out.SetLogger(r.log)
	r.out = out

	name := r.tpl.format.ContentEntry
	return out.ReadEntry(name, func(rd io.Reader) error {
		data, err := io.ReadAll(rd)
		if err != nil {
			return &FormatError{Entry: name, Reason: "read content", Err: err}
		}
		part, err := xmlpart.Parse(data)
		if err != nil {
			return &FormatError{Entry: name, Reason: "content is not well-formed XML", Err: err}
		}
		found, err := ScanPlaceholders(part, r.tpl.format)
		if err != nil {
			return err
		}
		r.part = part
		r.found = len(found)
		r.log.Debug("placeholders scanned", "count", r.found)
		return nil
	})
}

func (r *renderRun) reduce(context.Context) error {
	n, err := SanitizeDirectives(r.part, r.part.Root())
	if err != nil {
		return err
	}
	r.log.Debug("directives reduced", "count", n)
	return nil
}

func (r *renderRun) evaluate(ctx context.Context) error {
	flat := r.part.String()
	compiled := r.tpl.compiled
	if flat != r.tpl.flat {
		var err error
		if compiled, err = r.tpl.compile(flat); err != nil {
			return err
		}
	}

	registry := newFilterRegistry(r.out, r.tc.Locale, r.log)
	funcs := make(map[string]engine.Func)
	for name, fn := range modifiers.ContextFuncs(r.tc.Values) {
		funcs[name] = fn
	}
	funcs[ValueHook] = registry.hook()

	if err := ctx.Err(); err != nil {
		return err
	}
	data := engine.Context{
		Values: r.tc.Values,
		Funcs:  funcs,
		Scope:  engine.Scope{localeKey: r.tc.Locale},
	}
	if err := r.tpl.engine.Evaluate(ctx, compiled, data, &r.rendered); err != nil {
		return &TemplateError{Msg: "Render template failed", Err: err}
	}
	return nil
}

func (r *renderRun) reassemble(ctx context.Context) error {
	name := r.tpl.format.ContentEntry
	part, err := xmlpart.Parse(r.rendered.Bytes())
	if err != nil {
		return &FormatError{Entry: name, Reason: "rendered content is not well-formed XML", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.out.WriteEntry(name, func(w io.Writer) error {
		_, err := part.WriteTo(w)
		return err
	})
}

func (r *renderRun) finish(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.out.Flush()
}

// filters are the engine filters of the default engine.
func (t *Template) filters() map[string]engine.Filter {
	out := modifiers.Filters(t.modifiers)
	out["image"] = t.imageFilter
	out["qrcode"] = func(in any, args ...any) (any, error) {
		return QrCode(fmt.Sprint(in), stringArgs(args)...)
	}
	out["barcode"] = func(in any, args ...any) (any, error) {
		return Barcode(fmt.Sprint(in), stringArgs(args)...)
	}
	return out
}

// localeKey holds the render locale in the engine Scope.
const localeKey = "locale"

// localizedFilters adapts the locale-dependent modifiers. Custom modifiers
// of the same name win.
func (t *Template) localizedFilters() map[string]engine.ScopedFilter {
	out := make(map[string]engine.ScopedFilter)
	for name, fn := range modifiers.Localized() {
		if _, ok := t.modifiers[name]; ok {
			continue
		}
		out[name] = func(scope engine.Scope, in any, args ...any) (any, error) {
			tag, _ := scope[localeKey].(language.Tag)
			return fn(tag, in, args...)
		}
	}
	return out
}

// imageFilter turns a path or bytes into an image value. Optional
// arguments set the printed width and height in cm:
//
//	{{ odf_value(logo | image(4, 2)) }}
func (t *Template) imageFilter(in any, args ...any) (any, error) {
	var img *Image
	switch v := in.(type) {
	case nil:
		return nil, nil
	case *Image:
		c := *v
		img = &c
	case []byte:
		img = NewImage(v, "")
	case string:
		if t.assetDir == "" {
			return nil, &ArgumentError{Name: "image", Reason: "no asset directory configured"}
		}
		var err error
		if img, err = LoadImage(t.assetDir, v); err != nil {
			return nil, err
		}
	default:
		return nil, &ArgumentError{Name: "image", Reason: fmt.Sprintf("unsupported value %T", in)}
	}

	if len(args) >= 2 {
		w, okW := toFloat(args[0])
		h, okH := toFloat(args[1])
		if okW && okH && w > 0 && h > 0 {
			img.Width, img.Height = w, h
		}
	}
	return img, nil
}

func stringArgs(args []any) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = fmt.Sprint(a)
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}
