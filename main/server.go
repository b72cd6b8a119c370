package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"

	"odtgen"
)

// generateRequest is the body of POST /generate. Template is either a path
// below the daemon root or a base64 encoded package.
type generateRequest struct {
	Template string         `json:"template"`
	Data     map[string]any `json:"data,omitempty"`
	Locale   string         `json:"locale,omitempty"`
	Format   string         `json:"format,omitempty"` // "xml" returns content.xml only
}

type server struct {
	cfg *config
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /generate", s.generate)
	return mux
}

func (s *server) generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<20)).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid json: %v", err)
		return
	}
	if strings.TrimSpace(req.Template) == "" {
		jsonErr(w, http.StatusBadRequest, "template is required: pass a path or a base64 package")
		return
	}

	doc, assets, err := s.openTemplate(req.Template)
	if err != nil {
		jsonErr(w, statusFor(err), "%v", err)
		return
	}
	tpl, err := newTemplate(doc, s.cfg, assets)
	if err != nil {
		jsonErr(w, statusFor(err), "%v", err)
		return
	}

	locale := s.cfg.Locale
	if req.Locale != "" {
		locale = req.Locale
	}
	out, err := tpl.RenderContext(r.Context(), odtgen.TemplateContext{Values: req.Data, Locale: parseLocale(locale)})
	if err != nil {
		jsonErr(w, statusFor(err), "%v", err)
		return
	}

	if strings.EqualFold(req.Format, "xml") {
		content, _ := out.Entry(odtgen.ContentEntry)
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		_, _ = w.Write(content)
		return
	}

	data, err := out.Bytes()
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "save: %v", err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.oasis.opendocument.text")
	w.Header().Set("Content-Disposition", `attachment; filename="result.odt"`)
	_, _ = w.Write(data)
}

// openTemplate resolves a template given as a path below the root or as
// base64 data. Paths cannot leave the root.
func (s *server) openTemplate(ref string) (*odtgen.Document, string, error) {
	low := strings.ToLower(ref)
	if strings.HasSuffix(low, ".odt") || strings.HasSuffix(low, ".ods") || strings.HasSuffix(low, ".ott") {
		full, err := securejoin.SecureJoin(s.cfg.Root, ref)
		if err != nil {
			return nil, "", &odtgen.ArgumentError{Name: "template", Reason: err.Error()}
		}
		doc, err := odtgen.Open(full, odtgen.OpenDocument)
		if err != nil {
			return nil, "", err
		}
		return doc, filepath.Dir(full), nil
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(ref))
	if err != nil {
		return nil, "", &odtgen.ArgumentError{Name: "template", Reason: "not a path and not base64"}
	}
	doc, err := odtgen.LoadBytes(raw, odtgen.OpenDocument)
	if err != nil {
		return nil, "", err
	}
	return doc, s.cfg.Root, nil
}

// statusFor maps render errors to HTTP statuses: problems with the request
// or its template are the client's, engine failures are ours.
func statusFor(err error) int {
	var (
		se *odtgen.SyntaxError
		fe *odtgen.FormatError
		ae *odtgen.ArgumentError
		te *odtgen.TemplateError
	)
	switch {
	case errors.As(err, &ae):
		return http.StatusBadRequest
	case errors.As(err, &se), errors.As(err, &fe):
		return http.StatusUnprocessableEntity
	case errors.As(err, &te):
		return http.StatusInternalServerError
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func jsonErr(w http.ResponseWriter, code int, format string, a ...any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": fmt.Sprintf(format, a...)})
}

// serve runs the daemon until ctx is done.
func serve(ctx context.Context, cfg *config) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           (&server{cfg: cfg}).routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		slog.Info("daemon listening", "addr", cfg.Addr, "root", cfg.Root)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdown); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
