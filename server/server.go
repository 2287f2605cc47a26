// Package server hosts compositor sessions over HTTP: page previews as SVG,
// state mutations, exports as downloads, and a websocket pushing fresh
// previews while the user drags.
package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	gocache "github.com/patrickmn/go-cache"

	"github.com/opd-ai/storybook/compositor"
	"github.com/opd-ai/storybook/export"
)

const (
	sessionTTL   = 24 * time.Hour
	sweepEvery   = 10 * time.Minute
	exportLimit  = 10 // exports per IP per window
	exportWindow = time.Minute
)

type sessionEntry struct {
	session  *compositor.Session
	exporter *export.Exporter
}

// CompositorUI is the HTTP surface over a set of editing sessions.
type CompositorUI struct {
	router    chi.Router
	sessions  map[string]*sessionEntry
	sessionsM sync.RWMutex
	lastSeen  *gocache.Cache
	quit      chan struct{}
	closeOnce sync.Once
}

// NewCompositorUI builds the router and starts the idle-session sweeper.
func NewCompositorUI() *CompositorUI {
	ui := &CompositorUI{
		router:   chi.NewRouter(),
		sessions: make(map[string]*sessionEntry),
		lastSeen: gocache.New(sessionTTL, time.Hour),
		quit:     make(chan struct{}),
	}
	ui.setupRoutes()
	ui.startCleanup()
	return ui
}

func (ui *CompositorUI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ui.router.ServeHTTP(w, r)
}

// Close stops the sweeper and releases every open session.
func (ui *CompositorUI) Close() {
	ui.closeOnce.Do(func() {
		close(ui.quit)
		ui.sessionsM.Lock()
		defer ui.sessionsM.Unlock()
		for id, entry := range ui.sessions {
			entry.session.Close()
			delete(ui.sessions, id)
		}
	})
}

func (ui *CompositorUI) startCleanup() {
	go func() {
		ticker := time.NewTicker(sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ui.cleanupIdleSessions()
			case <-ui.quit:
				return
			}
		}
	}()
}

// cleanupIdleSessions closes sessions whose TTL entry has lapsed from the
// cache.
func (ui *CompositorUI) cleanupIdleSessions() {
	ui.sessionsM.Lock()
	defer ui.sessionsM.Unlock()
	for id, entry := range ui.sessions {
		if _, alive := ui.lastSeen.Get(id); !alive {
			entry.session.Close()
			delete(ui.sessions, id)
			slog.Info("evicted idle session", "session", id)
		}
	}
}

func (ui *CompositorUI) touch(id string) {
	ui.lastSeen.Set(id, time.Now(), gocache.DefaultExpiration)
}

func (ui *CompositorUI) entry(id string) (*sessionEntry, bool) {
	ui.sessionsM.RLock()
	defer ui.sessionsM.RUnlock()
	e, ok := ui.sessions[id]
	if ok {
		ui.touch(id)
	}
	return e, ok
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Requested-With")
		w.Header().Set("Access-Control-Expose-Headers", "X-Session-Id")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (ui *CompositorUI) setupRoutes() {
	ui.router.Use(middleware.Logger)
	ui.router.Use(middleware.Recoverer)
	ui.router.Use(corsMiddleware)

	ui.router.Get("/health", handleHealth)
	ui.router.Post("/sessions", ui.handleCreateSession)

	ui.router.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/page", ui.handlePageSVG)
		r.Get("/spread", ui.handleSpreadSVG)
		r.Get("/grid", ui.handleGridSVG)
		r.Get("/list", ui.handleListItems)
		r.Get("/thumbnails", ui.handleThumbnails)
		r.Get("/ws", ui.handleWebSocket)

		r.Post("/template", ui.handleSetTemplate)
		r.Post("/customizations", ui.handleCustomizations)
		r.Post("/view", ui.handleViewState)
		r.Post("/snap", ui.handleSnap)
		r.Post("/apply-to-all", ui.handleApplyToAll)
		r.Post("/pages/{page}/frame", ui.handleSetFrame)
		r.Post("/pages/{page}/text", ui.handleSetText)
		r.Post("/pages/{page}/crop", ui.handleSetCrop)
		r.Post("/undo", ui.handleUndo)
		r.Post("/redo", ui.handleRedo)

		r.Get("/state", ui.handleGetState)
		r.Put("/state", ui.handlePutState)
		r.Post("/handback", ui.handleHandback)

		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(exportLimit, exportWindow))
			r.Get("/export/pdf", ui.handleExportPDF)
			r.Get("/export/images", ui.handleExportImages)
		})
	})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
