package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/deckforge/internal/api/handlers"
	"github.com/ramonehamilton/deckforge/internal/api/response"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check endpoint (no versioning)
	s.router.Get("/health", s.healthCheck)

	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		// Deck routes
		deckHandler := handlers.NewDeckHandler(s.backend)
		r.Route("/decks", func(r chi.Router) {
			r.Get("/", deckHandler.GetDecks)
			r.Post("/assemble", deckHandler.Assemble)
			r.Get("/{deckID}", deckHandler.GetDeck)
			r.Delete("/{deckID}", deckHandler.DeleteDeck)
			r.Post("/{deckID}/games", deckHandler.RecordGame)
		})

		// Collection routes
		collectionHandler := handlers.NewCollectionHandler(s.backend)
		r.Route("/collection", func(r chi.Router) {
			r.Get("/", collectionHandler.GetCollection)
			r.Post("/import", collectionHandler.Import)
		})

		// Analytics routes. Per-card reports take a card list, so they are POSTs.
		analyticsHandler := handlers.NewAnalyticsHandler(s.backend)
		r.Route("/analytics", func(r chi.Router) {
			r.Get("/trend", analyticsHandler.GetTrend)
			r.Get("/breakdown", analyticsHandler.GetBreakdown)
			r.Get("/roi", analyticsHandler.GetROI)
			r.Post("/cei", analyticsHandler.GetCEI)
			r.Post("/cost-to-win", analyticsHandler.GetCostToWin)
			r.Post("/volatility", analyticsHandler.GetVolatility)
		})

		// Chart routes
		chartHandler := handlers.NewChartHandler(s.backend)
		r.Route("/charts", func(r chi.Router) {
			r.Get("/trend", chartHandler.Trend)
			r.Get("/breakdown", chartHandler.Breakdown)
			r.Get("/prices", chartHandler.PriceHistory)
		})

		// Card routes
		cardHandler := handlers.NewCardHandler(s.backend)
		r.Get("/cards/search", cardHandler.SearchCards)
		r.Get("/cards/price", cardHandler.GetPrice)
		r.Get("/formats", cardHandler.GetFormats)

		// System routes
		systemHandler := handlers.NewSystemHandler(s.backend)
		r.Get("/status", systemHandler.GetStatus)
		r.Post("/prices/refresh", systemHandler.RefreshPrices)
		r.Post("/stats/inclusion/recompute", systemHandler.RecomputeInclusion)
	})
}

// healthCheck returns server health status.
func (s *Server) healthCheck(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "deckforge-api",
	})
}
