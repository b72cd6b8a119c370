package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"odtgen"
)

const fakeContent = `<?xml version="1.0" encoding="UTF-8"?>` +
	`<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0"` +
	` xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0" xmlns:xlink="http://www.w3.org/1999/xlink">` +
	`<office:body><office:text><text:p>Привет, <text:a xlink:href="tlr://$name%20|%20wrap(%22«%22,%20%22»%22)">name</text:a></text:p>` +
	`</office:text></office:body></office:document-content>`

// makeFakeODT создаёт минимальный ODT с одной ссылкой-подстановкой
func makeFakeODT(t *testing.T) []byte {
	t.Helper()
	doc := odtgen.NewDocument(odtgen.OpenDocument)
	doc.SetEntry(odtgen.MimetypeEntry, []byte("application/vnd.oasis.opendocument.text"))
	doc.SetEntry(odtgen.ContentEntry, []byte(fakeContent))
	data, err := doc.Bytes()
	if err != nil {
		t.Fatalf("build odt: %v", err)
	}
	return data
}

func post(t *testing.T, h http.Handler, body any) *http.Response {
	t.Helper()
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/generate", bytes.NewReader(raw))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w.Result()
}

// TestHTTPGenerate_MemoryOnly — endpoint /generate без файлов на диске
func TestHTTPGenerate_MemoryOnly(t *testing.T) {
	cfg := defaultConfig()
	h := (&server{cfg: &cfg}).routes()

	resp := post(t, h, map[string]any{
		"template": base64.StdEncoding.EncodeToString(makeFakeODT(t)),
		"data":     map[string]any{"name": "Оленька"},
		"format":   "xml",
	})
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("unexpected status: %d %s", resp.StatusCode, b)
	}
	xml, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(xml, []byte("<text:a>«Оленька»</text:a>")) {
		t.Fatalf("XML не содержит подстановку:\n%s", xml)
	}
}

func TestHTTPGenerate_PackageFromRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "letter.odt"), makeFakeODT(t), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := defaultConfig()
	cfg.Root = root
	h := (&server{cfg: &cfg}).routes()

	resp := post(t, h, map[string]any{
		"template": "letter.odt",
		"data":     map[string]any{"name": "Bob"},
	})
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/vnd.oasis.opendocument.text" {
		t.Errorf("content type %q", ct)
	}
	raw, _ := io.ReadAll(resp.Body)
	doc, err := odtgen.LoadBytes(raw, odtgen.OpenDocument)
	if err != nil {
		t.Fatalf("result is not a package: %v", err)
	}
	content, _ := doc.Entry(odtgen.ContentEntry)
	if !strings.Contains(string(content), "«Bob»") {
		t.Errorf("content:\n%s", content)
	}
}

func TestHTTPGenerate_Errors(t *testing.T) {
	root := t.TempDir()
	cfg := defaultConfig()
	cfg.Root = root
	h := (&server{cfg: &cfg}).routes()

	broken := odtgen.NewDocument(odtgen.OpenDocument)
	broken.SetEntry(odtgen.MimetypeEntry, []byte("application/vnd.oasis.opendocument.text"))
	broken.SetEntry(odtgen.ContentEntry, []byte(strings.Replace(fakeContent, "tlr://$name", "tlr://?name", 1)))
	brokenBytes, err := broken.Bytes()
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		body any
		want int
	}{
		{"no template", map[string]any{}, http.StatusBadRequest},
		{"bad base64", map[string]any{"template": "%%%"}, http.StatusBadRequest},
		{"not a package", map[string]any{"template": base64.StdEncoding.EncodeToString([]byte("zip?"))}, http.StatusUnprocessableEntity},
		{"bad placeholder", map[string]any{"template": base64.StdEncoding.EncodeToString(brokenBytes)}, http.StatusUnprocessableEntity},
		{"missing file", map[string]any{"template": "../../etc/nothing.odt"}, http.StatusNotFound},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			resp := post(t, h, c.body)
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode != c.want {
				t.Errorf("status %d, want %d", resp.StatusCode, c.want)
			}
			var e map[string]string
			if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e["error"] == "" {
				t.Errorf("no json error body: %v %v", e, err)
			}
		})
	}
}

func TestRenderBatch(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "letter.odt")
	if err := os.WriteFile(in, makeFakeODT(t), 0o644); err != nil {
		t.Fatal(err)
	}
	data := filepath.Join(dir, "people.json")
	if err := os.WriteFile(data, []byte(`[{"name":"Аня"},{"name":"Боря"},{"name":"Вера"}]`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := defaultConfig()
	cfg.In, cfg.Data, cfg.Batch, cfg.Jobs = in, data, true, 2
	cfg.OutDir = filepath.Join(dir, "out")
	if err := renderBatch(t.Context(), &cfg); err != nil {
		t.Fatalf("batch: %v", err)
	}

	for i, name := range []string{"Аня", "Боря", "Вера"} {
		path := filepath.Join(cfg.OutDir, "letter_00"+string(rune('1'+i))+".odt")
		doc, err := odtgen.Open(path, odtgen.OpenDocument)
		if err != nil {
			t.Fatalf("open %s: %v", path, err)
		}
		content, _ := doc.Entry(odtgen.ContentEntry)
		if !strings.Contains(string(content), "«"+name+"»") {
			t.Errorf("%s lacks %s", path, name)
		}
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "odtgen.yaml")
	yml := "in: from-file.odt\ndata: from-file.json\nlocale: de\njobs: 8\ndebounce: 1s\n"
	if err := os.WriteFile(file, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	env := map[string]string{
		"ODTGEN_LOCALE": "en",
		"ODTGEN_JOBS":   "3",
	}
	cfg, err := loadConfig([]string{"--config", file, "--jobs", "5"}, func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := defaultConfig()
	want.ConfigFile = file
	want.In = "from-file.odt"
	want.Data = "from-file.json"
	want.Locale = "en"
	want.Jobs = 5
	want.Debounce = time.Second
	if diff := cmp.Diff(&want, cfg); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	none := func(string) string { return "" }
	for _, args := range [][]string{
		{},
		{"--in", "a.odt"},
		{"--in", "a.odt", "--data", "d.json", "--jobs", "0"},
		{"--in", "a.odt", "--data", "d.json", "--batch", "--stdout"},
		{"--serve", "--log-level", "loud"},
		{"extra"},
	} {
		if _, err := loadConfig(args, none); err == nil {
			t.Errorf("%v accepted", args)
		}
	}
	if _, err := loadConfig([]string{"--serve"}, none); err != nil {
		t.Errorf("--serve rejected: %v", err)
	}
}

func TestGenderSelect(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{"м", "Уважаемый"},
		{"женский", "Уважаемая"},
		{"Иванов Иван Иванович", "Уважаемый"},
		{"Петрова Анна Сергеевна", "Уважаемая"},
		{"Смирнова", "Уважаемая"},
		{"Ким", "Уважаемый(ая)"},
		{nil, "Уважаемый(ая)"},
	}
	for _, c := range cases {
		if got := genderSelect(c.in); got != c.want {
			t.Errorf("genderSelect(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestOutputName(t *testing.T) {
	cfg := config{In: "dir/letter.odt"}
	if got := cfg.output(); got != "dir/letter_out.odt" {
		t.Errorf("output = %q", got)
	}
	cfg.Out = "x.odt"
	if got := cfg.output(); got != "x.odt" {
		t.Errorf("output = %q", got)
	}
}
