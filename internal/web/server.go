// Package web serves the scrape form: GET shows it, POST runs a scrape and
// shows the form again with the outcome.
package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/scrapdoc/internal/app"
)

// Runner executes one scrape request.
type Runner interface {
	Run(ctx context.Context, req app.Request) (app.Report, error)
}

// Form field names.
const (
	FieldURL       = "domain_url"
	FieldContainer = "container_tag"
	FieldTags      = "tags"
	FieldOutput    = "output_filename"
)

var page = template.Must(template.New("index").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>scrapdoc</title></head>
<body>
<h1>Web scraping to document</h1>
{{- if .Error}}
<p class="error">{{.Error}}</p>
{{- end}}
{{- if .Report}}
<p class="success">Wrote {{.Report.OutputPath}} ({{.Report.Blocks}} blocks{{if .Report.Skipped}}, {{.Report.Skipped}} images skipped{{end}})</p>
{{- end}}
<form method="post" action="/">
  <p><label for="domain_url">Enter your website url</label>
  <input id="domain_url" name="domain_url" value="{{.Form.URL}}" placeholder="http://makes.org.in" required></p>
  <p><label for="container_tag">Enter your container tag</label>
  <input id="container_tag" name="container_tag" value="{{.Form.Container}}" placeholder="body" required></p>
  <p><label for="tags">Enter your tags</label>
  <input id="tags" name="tags" value="{{.Form.Tags}}" placeholder="p, table, img, etc..." required></p>
  <p><label for="output_filename">Enter your output filename</label>
  <input id="output_filename" name="output_filename" value="{{.Form.Output}}" placeholder="makes_webscrapper_document" required></p>
  <p><button type="submit">Scrape</button></p>
</form>
</body>
</html>
`))

type formValues struct {
	URL, Container, Tags, Output string
}

type pageData struct {
	Form   formValues
	Error  string
	Report *app.Report
}

// Server renders the form and runs submitted requests.
type Server struct {
	runner Runner
}

// New returns a Server that runs requests with r.
func New(r Runner) *Server {
	return &Server{runner: r}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		render(w, http.StatusOK, pageData{})
	case http.MethodPost:
		s.handleSubmit(w, r)
	default:
		w.Header().Set("Allow", "GET, HEAD, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		render(w, http.StatusBadRequest, pageData{Error: "could not read form"})
		return
	}
	form := formValues{
		URL:       r.PostForm.Get(FieldURL),
		Container: r.PostForm.Get(FieldContainer),
		Tags:      r.PostForm.Get(FieldTags),
		Output:    r.PostForm.Get(FieldOutput),
	}
	req, err := app.ParseRequest(form.URL, form.Container, form.Tags, form.Output)
	if err != nil {
		render(w, http.StatusBadRequest, pageData{Form: form, Error: err.Error()})
		return
	}
	log.Info().Str("url", req.SourceURL).Str("container", req.ContainerTag).Strs("tags", req.ContentTags).Msg("form submitted")

	rep, err := s.runner.Run(r.Context(), req)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, app.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		log.Warn().Err(err).Str("url", req.SourceURL).Msg("scrape failed")
		render(w, status, pageData{Form: form, Error: fmt.Sprintf("scrape failed: %v", err)})
		return
	}
	render(w, http.StatusOK, pageData{Form: form, Report: &rep})
}

func render(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := page.Execute(w, data); err != nil {
		log.Error().Err(err).Msg("render form")
	}
}

// ListenAndServe serves h on addr until ctx is canceled, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("listening")
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}
