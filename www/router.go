package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"

	"slotrecycler/engine"
)

type Handlers struct {
	engine   *engine.Engine
	sessions *sessions.CookieStore
	eventHub *EventHub
}

func NewRouter(eng *engine.Engine) (http.Handler, func()) {
	hub := NewEventHub()
	hub.Start()
	hub.SetupEngineListeners(eng)

	h := &Handlers{
		engine:   eng,
		sessions: newSessionStore(eng.AppConfig().Web.SessionSecret),
		eventHub: hub,
	}

	h.ensureDefaultAdmin(eng.DB())

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/status", http.StatusSeeOther)
	})
	r.Get("/events", hub.SSEHandler)
	if m := eng.Metrics(); m != nil {
		r.Handle("/metrics", m.Handler())
	}

	r.Post("/login", h.handleLogin)
	r.Get("/logout", h.handleLogout)

	// Read-only API, no auth
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.apiHealthCheck)
		r.Get("/status", h.apiStatus)
		r.Get("/slots", h.apiListSlots)
		r.Get("/slots/reclaims", h.apiReclaimCount)
		r.Get("/reclamations", h.apiListReclamations)
		r.Get("/passes", h.apiListPasses)
		r.Get("/passes/{runID}", h.apiGetPass)
		r.Get("/audit", h.apiListAudit)
	})

	// Operator actions
	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Post("/api/recycler/start", h.apiRecyclerStart)
		r.Post("/api/recycler/stop", h.apiRecyclerStop)
		r.Post("/api/recycler/run", h.apiRecyclerRun)
		r.Post("/api/admin/password", h.apiChangePassword)
	})

	stopFn := func() {
		hub.Stop()
	}
	return r, stopFn
}
