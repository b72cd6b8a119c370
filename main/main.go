// Command odtgen renders ODF templates with JSON data: once, for every item
// of a batch, on every change of the inputs, or as an HTTP daemon.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"odtgen"
	"odtgen/modifiers"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "odtgen: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	cfg, err := loadConfig(os.Args[1:], os.Getenv)
	if err != nil {
		return err
	}
	setupLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case cfg.Serve:
		return serve(ctx, cfg)
	case cfg.Batch:
		return renderBatch(ctx, cfg)
	}

	if err := renderOnce(ctx, cfg); err != nil {
		return err
	}
	if cfg.Watch {
		return watch(ctx, cfg)
	}
	return nil
}

func setupLogger(level string) {
	ll := &slog.LevelVar{}
	if err := ll.UnmarshalText([]byte(level)); err != nil {
		ll.Set(slog.LevelInfo)
	}
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)
}

// commonModifiers are filters the command adds on top of the library ones.
func commonModifiers() map[string]modifiers.ModifierMeta {
	return map[string]modifiers.ModifierMeta{
		"wrap": {Fn: func(v, l, r string) string { return l + v + r }, Count: 2},
		"gender_select": {
			Fn:    genderSelect,
			Count: 0,
		},
	}
}

// genderSelect picks a form by gender, given either as a marker (m, ж,
// женский ...) or guessed from a full name.
//
//	{{ odf_value(fio | gender_select("Уважаемый", "Уважаемая")) }}
func genderSelect(v any, forms ...string) string {
	male, female, neutral := "Уважаемый", "Уважаемая", "Уважаемый(ая)"
	if len(forms) >= 1 && strings.TrimSpace(forms[0]) != "" {
		male = forms[0]
	}
	if len(forms) >= 2 && strings.TrimSpace(forms[1]) != "" {
		female = forms[1]
	}
	if len(forms) >= 3 && strings.TrimSpace(forms[2]) != "" {
		neutral = forms[2]
	}

	name := strings.ToLower(strings.TrimSpace(fmt.Sprint(v)))
	switch name {
	case "m", "м", "муж", "мужской":
		return male
	case "f", "ж", "жен", "женский":
		return female
	case "", "<nil>":
		return neutral
	}

	switch modifiers.GuessGender(name) {
	case modifiers.GenderMale:
		return male
	case modifiers.GenderFemale:
		return female
	}
	return neutral
}

// ---------- общий пайплайн ----------

// loadTemplate opens an ODF file and prepares it.
func loadTemplate(path string, cfg *config) (*odtgen.Template, error) {
	doc, err := odtgen.Open(path, odtgen.OpenDocument)
	if err != nil {
		return nil, err
	}
	return newTemplate(doc, cfg, filepath.Dir(path))
}

func newTemplate(doc *odtgen.Document, cfg *config, assets string) (*odtgen.Template, error) {
	if cfg.Assets != "" {
		assets = cfg.Assets
	}
	tpl, err := odtgen.NewTemplate(doc,
		odtgen.WithLogger(slog.Default()),
		odtgen.WithModifiers(commonModifiers()),
		odtgen.WithAssetDir(assets),
		odtgen.WithStrictUndefined(cfg.Strict),
	)
	if err != nil {
		return nil, fmt.Errorf("template: %w", err)
	}
	return tpl, nil
}

func parseLocale(s string) language.Tag {
	if s == "" {
		return language.Und
	}
	tag, err := language.Parse(s)
	if err != nil {
		slog.Warn("unknown locale, numbers use defaults", "locale", s, "err", err)
		return language.Und
	}
	return tag
}

func readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read data: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("parse data %s: %w", path, err)
	}
	return nil
}

// ---------- CLI рендер ----------

func renderOnce(ctx context.Context, cfg *config) error {
	var data map[string]any
	if err := readJSON(cfg.Data, &data); err != nil {
		return err
	}
	tpl, err := loadTemplate(cfg.In, cfg)
	if err != nil {
		return err
	}
	out, err := tpl.RenderContext(ctx, odtgen.TemplateContext{Values: data, Locale: parseLocale(cfg.Locale)})
	if err != nil {
		return err
	}

	if cfg.Stdout {
		return writeTo(os.Stdout, out)
	}
	dst := cfg.output()
	if err := out.SaveFile(dst); err != nil {
		return fmt.Errorf("save %s: %w", dst, err)
	}
	slog.Info("rendered", "out", dst, "images", len(out.BlobEntries()))
	return nil
}

func writeTo(w io.Writer, doc *odtgen.Document) error {
	if err := doc.Save(w); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

// renderBatch renders one document per element of the data array. The
// template is prepared once and shared by all workers.
func renderBatch(ctx context.Context, cfg *config) error {
	var items []map[string]any
	if err := readJSON(cfg.Data, &items); err != nil {
		return err
	}
	tpl, err := loadTemplate(cfg.In, cfg)
	if err != nil {
		return err
	}

	dir := cfg.OutDir
	if dir == "" {
		dir = filepath.Dir(cfg.In)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	ext := fileExt(cfg.In)
	base := strings.TrimSuffix(filepath.Base(cfg.In), ext)
	locale := parseLocale(cfg.Locale)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Jobs)
	for i, item := range items {
		g.Go(func() error {
			out, err := tpl.RenderContext(ctx, odtgen.TemplateContext{Values: item, Locale: locale})
			if err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			dst := filepath.Join(dir, fmt.Sprintf("%s_%03d%s", base, i+1, ext))
			if err := out.SaveFile(dst); err != nil {
				return fmt.Errorf("item %d: save %s: %w", i, dst, err)
			}
			slog.Debug("rendered", "item", i, "out", dst)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("batch rendered", "items", len(items), "dir", dir)
	return nil
}

// ---------- вспомогательные ----------

func fileExt(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return ".odt"
	}
	return ext
}
