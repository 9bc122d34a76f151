package web

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/cjeanneret/GoSnap/internal/logic/capture"
	"github.com/cjeanneret/GoSnap/internal/storage/catalog"
	"github.com/cjeanneret/GoSnap/internal/storage/photostore"
)

// captureTimeout bounds how long POST /capture waits for a photo to be persisted.
const captureTimeout = 30 * time.Second

// SessionStatus is the JSON view of the camera screen.
type SessionStatus struct {
	Open         bool                  `json:"open"`
	State        string                `json:"state"`
	LastCaptured *photostore.PhotoFile `json:"last_captured,omitempty"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster     *StatusBroadcaster
	Screen          *Screen
	Store           *photostore.Store
	Catalog         *catalog.Catalog // optional
	ThumbnailMaxDim int
	staticFS        fs.FS
	upgrader        websocket.Upgrader
}

// NewHandlers creates handlers with the given dependencies.
// If screen is nil, session and capture routes return 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, screen *Screen, store *photostore.Store, cat *catalog.Catalog, thumbMaxDim int, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster:     broadcaster,
		Screen:          screen,
		Store:           store,
		Catalog:         cat,
		ThumbnailMaxDim: thumbMaxDim,
		staticFS:        staticFS,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handlers) status() SessionStatus {
	c := h.Screen.Current()
	if c == nil {
		return SessionStatus{State: capture.Closed.String()}
	}
	st := SessionStatus{Open: true, State: c.State().String()}
	if last := c.LastCaptured(); last != nil {
		f := last.File
		st.LastCaptured = &f
	}
	return st
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleOpenSession handles POST /session: the camera screen appears.
// It waits for the controller to settle (Ready or Blocked).
func (h *Handlers) HandleOpenSession(w http.ResponseWriter, r *http.Request) {
	if h.Screen == nil {
		http.Error(w, "camera not configured", http.StatusServiceUnavailable)
		return
	}
	// Activation outlives the request: a permission prompt may still be pending.
	_, settled := h.Screen.Open(context.WithoutCancel(r.Context()))
	select {
	case <-settled:
	case <-r.Context().Done():
		return
	}
	writeJSON(w, http.StatusOK, h.status())
}

// HandleGetSession handles GET /session.
func (h *Handlers) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	if h.Screen == nil {
		http.Error(w, "camera not configured", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, h.status())
}

// HandleCloseSession handles DELETE /session: the user closes the camera screen.
func (h *Handlers) HandleCloseSession(w http.ResponseWriter, r *http.Request) {
	if h.Screen == nil {
		http.Error(w, "camera not configured", http.StatusServiceUnavailable)
		return
	}
	h.Screen.Close()
	w.WriteHeader(http.StatusNoContent)
}

// HandleAckAlert handles POST /session/alert/ack: the user dismissed the alert.
func (h *Handlers) HandleAckAlert(w http.ResponseWriter, r *http.Request) {
	if h.Screen == nil {
		http.Error(w, "camera not configured", http.StatusServiceUnavailable)
		return
	}
	if c := h.Screen.Current(); c != nil {
		c.AckAlert()
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCapture handles POST /capture: take one photo and wait until it is saved.
func (h *Handlers) HandleCapture(w http.ResponseWriter, r *http.Request) {
	if h.Screen == nil {
		http.Error(w, "camera not configured", http.StatusServiceUnavailable)
		return
	}
	c := h.Screen.Current()
	if c == nil {
		http.Error(w, "camera session is not open", http.StatusConflict)
		return
	}

	pending, err := c.Capture(context.WithoutCancel(r.Context()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), captureTimeout)
	defer cancel()
	res, err := pending.Wait(ctx)
	switch {
	case err == nil:
	case errors.Is(err, capture.ErrNoPhotoData):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	case errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "capture timed out", http.StatusGatewayTimeout)
		return
	default:
		log.Printf("capture failed: %v", err)
		http.Error(w, "capture failed", http.StatusInternalServerError)
		return
	}

	h.Broadcaster.Publish(StatusEvent{Kind: "photo", Msg: res.File.Name, Data: res.File})
	writeJSON(w, http.StatusCreated, res.File)
}

// HandleListPhotos handles GET /photos.
func (h *Handlers) HandleListPhotos(w http.ResponseWriter, r *http.Request) {
	files, err := h.Store.List()
	if err != nil {
		log.Printf("list photos: %v", err)
		http.Error(w, "photo storage unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

// HandleGetPhoto handles GET /photos/{name}.
func (h *Handlers) HandleGetPhoto(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.Get(chi.URLParam(r, "name"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType(p.Format))
	w.Write(p.Data)
}

// HandleGetThumbnail handles GET /photos/{name}/thumb.
func (h *Handlers) HandleGetThumbnail(w http.ResponseWriter, r *http.Request) {
	data, err := h.Store.Thumbnail(chi.URLParam(r, "name"), h.ThumbnailMaxDim)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(data)
}

// HandleDeletePhoto handles DELETE /photos/{name}.
func (h *Handlers) HandleDeletePhoto(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.Store.Delete(name); err != nil {
		writeStoreError(w, err)
		return
	}
	if h.Catalog != nil {
		if err := h.Catalog.Remove(r.Context(), name); err != nil {
			log.Printf("catalog: %v", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCatalog handles GET /catalog.
func (h *Handlers) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	if h.Catalog == nil {
		http.Error(w, "catalog disabled", http.StatusNotFound)
		return
	}
	entries, err := h.Catalog.List(r.Context(), 0)
	if err != nil {
		log.Printf("catalog: %v", err)
		http.Error(w, "catalog unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// CatalogDetail is a catalog entry with the other captures sharing its bytes.
type CatalogDetail struct {
	catalog.Entry
	Duplicates []string `json:"duplicates"`
}

// HandleCatalogEntry handles GET /catalog/{name}.
func (h *Handlers) HandleCatalogEntry(w http.ResponseWriter, r *http.Request) {
	if h.Catalog == nil {
		http.Error(w, "catalog disabled", http.StatusNotFound)
		return
	}
	e, err := h.Catalog.Get(r.Context(), chi.URLParam(r, "name"))
	if errors.Is(err, catalog.ErrNotFound) {
		http.Error(w, "capture not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("catalog: %v", err)
		http.Error(w, "catalog unavailable", http.StatusInternalServerError)
		return
	}
	names, err := h.Catalog.FindByHash(r.Context(), e.SHA256)
	if err != nil {
		log.Printf("catalog: %v", err)
		http.Error(w, "catalog unavailable", http.StatusInternalServerError)
		return
	}
	detail := CatalogDetail{Entry: *e, Duplicates: []string{}}
	for _, n := range names {
		if n != e.Name {
			detail.Duplicates = append(detail.Duplicates, n)
		}
	}
	writeJSON(w, http.StatusOK, detail)
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, photostore.ErrInvalidName):
		http.Error(w, "invalid photo name", http.StatusBadRequest)
	case errors.Is(err, photostore.ErrNotFound), errors.Is(err, photostore.ErrDecode):
		http.Error(w, "photo not found", http.StatusNotFound)
	default:
		log.Printf("photo store: %v", err)
		http.Error(w, "photo storage error", http.StatusInternalServerError)
	}
}

func contentType(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "heic":
		return "image/heic"
	default:
		return "application/octet-stream"
	}
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// HandleWebSocket handles GET /ws: the same events as /status/stream over a websocket.
// Client messages are ignored; the read loop only detects disconnects.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}
