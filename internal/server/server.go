package server

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/Quantify/internal/config"
	"github.com/TobiSchelling/Quantify/internal/database"
	"github.com/TobiSchelling/Quantify/internal/ingest"
	"github.com/TobiSchelling/Quantify/internal/pipeline"
	"github.com/TobiSchelling/Quantify/internal/posts"
	"github.com/TobiSchelling/Quantify/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// shutdownTimeout bounds how long in-flight requests get on shutdown.
const shutdownTimeout = 5 * time.Second

// Server is the HTTP server for the analytics dashboard.
type Server struct {
	cfg   *config.Config
	db    *database.DB
	pipe  *pipeline.Pipeline
	sess  *session.Session
	pages map[string]*template.Template
	mux   *http.ServeMux
	now   func() time.Time
}

// New creates a new Server. db may be nil, in which case reports are not
// archived and the history page is empty.
func New(cfg *config.Config, db *database.DB, pipe *pipeline.Pipeline, sess *session.Session) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"label":    func(t posts.PostType) string { return t.Label() },
		"upper":    strings.ToUpper,
		"rate":     func(f float64) string { return fmt.Sprintf("%.2f%%", f) },
		"join":     strings.Join,
		"clock":    func(t time.Time) string { return t.Format("15:04") },
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of base with its "title" and "content".
	pageNames := []string{"index.html", "reports.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{
		cfg:   cfg,
		db:    db,
		pipe:  pipe,
		sess:  sess,
		pages: pages,
		mux:   http.NewServeMux(),
		now:   time.Now,
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	// Static files
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// Dashboard
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /upload", s.handleUpload)
	s.mux.HandleFunc("POST /posts", s.handleAddPost)
	s.mux.HandleFunc("POST /reset", s.handleReset)
	s.mux.HandleFunc("POST /chat", s.handleChat)

	// JSON API
	s.mux.HandleFunc("POST /api/chat", s.handleAPIChat)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)

	// Reports
	s.mux.HandleFunc("GET /report.txt", s.handleReport)
	s.mux.HandleFunc("GET /reports", s.handleReports)
	s.mux.HandleFunc("GET /reports/{id}", s.handleArchivedReport)
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// acceptAttr is the file input accept attribute for the upload form.
func acceptAttr() string {
	return strings.Join(ingest.AcceptedExtensions, ",")
}

// Serve runs the HTTP server on the given port until ctx is cancelled, then
// shuts it down gracefully.
func Serve(ctx context.Context, s *Server, port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("Server listening on http://%s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
