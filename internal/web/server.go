package web

import (
	"context"
	"io/fs"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cjeanneret/GoSnap/internal/storage/catalog"
	"github.com/cjeanneret/GoSnap/internal/storage/photostore"
)

// Deps are the services the HTTP layer exposes.
type Deps struct {
	Broadcaster     *StatusBroadcaster
	Screen          *Screen
	Store           *photostore.Store
	Catalog         *catalog.Catalog // nil when the catalog is disabled
	ThumbnailMaxDim int
}

// Server wraps the HTTP server and handlers.
type Server struct {
	addr     string
	handlers *Handlers
}

// NewServer creates a server configured for the given address and handler dependencies.
func NewServer(addr string, deps Deps) *Server {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("web: failed to sub static fs: %v", err)
	}

	return &Server{
		addr:     addr,
		handlers: NewHandlers(deps.Broadcaster, deps.Screen, deps.Store, deps.Catalog, deps.ThumbnailMaxDim, subFS),
	}
}

// Mux returns an http.Handler with all routes registered.
func (s *Server) Mux() http.Handler {
	h := s.handlers
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", h.ServeIndex)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(h.staticFS))))

	r.Route("/session", func(r chi.Router) {
		r.Get("/", h.HandleGetSession)
		r.Post("/", h.HandleOpenSession)
		r.Delete("/", h.HandleCloseSession)
		r.Post("/alert/ack", h.HandleAckAlert)
	})
	r.Post("/capture", h.HandleCapture)

	r.Route("/photos", func(r chi.Router) {
		r.Get("/", h.HandleListPhotos)
		r.Get("/{name}", h.HandleGetPhoto)
		r.Get("/{name}/thumb", h.HandleGetThumbnail)
		r.Delete("/{name}", h.HandleDeletePhoto)
	})
	r.Get("/catalog", h.HandleCatalog)
	r.Get("/catalog/{name}", h.HandleCatalogEntry)

	r.Get("/status/stream", h.HandleStatusStream)
	r.Get("/ws", h.HandleWebSocket)
	return r
}

// Run starts the server and blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Mux()}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("web server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
