// Package web provides the HTTP surface of the date-slicer daemon: the status
// page, the presentation callback, capture/restore and bookmarks.
package web

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sweeney/date-slicer/internal/daterange"
	"github.com/sweeney/date-slicer/internal/reconcile"
	"github.com/sweeney/date-slicer/internal/status"
	"github.com/sweeney/date-slicer/internal/store/sqlite"
	"github.com/sweeney/date-slicer/internal/widget"
)

// Slicer is the widget as driven from HTTP.
type Slicer interface {
	OnChange(ctx context.Context, r daterange.Range) (reconcile.Result, error)
	CaptureState() reconcile.Snapshot
	RestoreState(ctx context.Context, snap reconcile.Snapshot) (reconcile.Result, error)
	Status() widget.Status
}

// Bookmarks persists named snapshots.
type Bookmarks interface {
	Save(ctx context.Context, name string, snap reconcile.Snapshot) error
	Get(ctx context.Context, name string) (sqlite.Bookmark, error)
	List(ctx context.Context) ([]sqlite.Bookmark, error)
	Delete(ctx context.Context, name string) error
}

// StatePublisher announces captured snapshots to the host.
type StatePublisher interface {
	PublishState(snap reconcile.Snapshot) error
}

// Options holds the collaborators of a Server. Slicer and Bookmarks may be
// nil; their routes then answer 503.
type Options struct {
	Tracker        *status.Tracker
	Slicer         Slicer
	Bookmarks      Bookmarks
	States         StatePublisher
	Location       *time.Location
	AllowedOrigins []string
	Logger         *slog.Logger
}

// Server serves the status page and the widget API over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	slicer     Slicer
	bookmarks  Bookmarks
	states     StatePublisher
	loc        *time.Location
	logger     *slog.Logger
}

// New creates a Server listening on addr.
func New(addr string, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		tracker:   opts.Tracker,
		slicer:    opts.Slicer,
		bookmarks: opts.Bookmarks,
		states:    opts.States,
		loc:       opts.Location,
		logger:    opts.Logger,
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(opts.AllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes(origins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/", s.handleIndex)
	r.Get("/index.html", s.handleIndex)
	r.Get("/index.json", s.handleJSON)

	r.Route("/api", func(r chi.Router) {
		r.Post("/selection", s.handleSelection)

		r.Route("/state", func(r chi.Router) {
			r.Get("/", s.handleCapture)
			r.Post("/", s.handleRestore)
		})

		r.Route("/bookmarks", func(r chi.Router) {
			r.Get("/", s.handleListBookmarks)
			r.Post("/", s.handleSaveBookmark)
			r.Post("/{name}/apply", s.handleApplyBookmark)
			r.Delete("/{name}", s.handleDeleteBookmark)
		})
	})

	return r
}

// Handler returns the root handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// refresh copies the widget state into the tracker after a mutating call.
func (s *Server) refresh() {
	if s.tracker != nil && s.slicer != nil {
		s.tracker.Update(s.slicer.Status())
	}
}
