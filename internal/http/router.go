// Package http exposes the service's REST API and the voice WebSocket
// endpoint.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ai-practice-session-service/internal/bridge"
	"ai-practice-session-service/internal/ledger"
	"ai-practice-session-service/internal/llm"
	"ai-practice-session-service/internal/observability"
	"ai-practice-session-service/internal/retrieval"
	"ai-practice-session-service/internal/store"
)

// Dependencies carries the collaborators the router dispatches to.
type Dependencies struct {
	Ledger    *ledger.Ledger
	Store     store.Store
	Retrieval *retrieval.Engine
	LLM       *llm.Service
	Bridge    *bridge.Bridge
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(deps Dependencies) http.Handler {
	h := &handlers{deps: deps}

	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observability.RequestLogger())

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", h.readiness)

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Post("/sessions", h.createSession)
		r.Get("/sessions/{sessionID}/progress", h.sessionProgress)
		r.Post("/sessions/{sessionID}/end", h.endSession)
		r.Get("/users/{userID}/analytics", h.userAnalytics)
		r.Get("/materials/grammar", h.grammarMaterials)
		r.Get("/materials/vocabulary", h.vocabularyMaterials)
		r.Post("/practice/text", h.textPractice)
		r.Post("/llm/think", h.think)
	})

	// Voice practice WebSocket
	r.Get("/ws/voice", h.voiceWebSocket)

	return r
}
