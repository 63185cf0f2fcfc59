package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/steeldragon666/abfi-platform-1-sub004/covenant"
	"github.com/steeldragon666/abfi-platform-1-sub004/lender"
	"github.com/steeldragon666/abfi-platform-1-sub004/temporal"
)

// Server handles HTTP requests for the platform API.
type Server struct {
	engine    *temporal.Engine
	covenants *covenant.Service
	lender    *lender.Service
	router    chi.Router
	addr      string
	log       *zap.SugaredLogger
}

// NewServer creates a new API server instance.
func NewServer(engine *temporal.Engine, covenants *covenant.Service, lenderSvc *lender.Service, addr string, log *zap.SugaredLogger) *Server {
	s := &Server{
		engine:    engine,
		covenants: covenants,
		lender:    lenderSvc,
		router:    chi.NewRouter(),
		addr:      addr,
		log:       log,
	}
	s.registerRoutes()
	return s
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/entities/{entityType}", func(r chi.Router) {
			r.Post("/", s.handleCreateEntity)
			r.Route("/{entityID}", func(r chi.Router) {
				r.Get("/", s.handleGetCurrent)
				r.Get("/history", s.handleGetHistory)
				r.Get("/asof", s.handleGetAsOf)
				r.Get("/compare", s.handleCompareVersions)
				r.Post("/versions", s.handleCreateVersion)
			})
		})

		r.Route("/projects/{projectID}", func(r chi.Router) {
			r.Post("/covenants/check", s.handleCovenantCheck)
			r.Post("/reports", s.handleGenerateReport)
			r.Get("/reports", s.handleListReports)
			r.Get("/reports/latest", s.handleLatestReport)
			r.Get("/alerts", s.handleGetAlerts)
			r.Get("/dashboard", s.handleGetDashboard)
		})

		r.Post("/breaches/{breachID}/resolve", s.handleResolveBreach)
		r.Post("/reports/{reportID}/finalize", s.handleFinalizeReport)
		r.Post("/reports/{reportID}/send", s.handleSendReport)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.log.Infow("starting web server", "addr", s.addr)
	return http.ListenAndServe(s.addr, s.router)
}

// Handler returns the HTTP handler for use with custom servers and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
