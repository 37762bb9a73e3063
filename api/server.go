package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"broker-calls/auth"
	"broker-calls/cache"
	"broker-calls/calls"
	"broker-calls/config"
	"broker-calls/market"
	"broker-calls/notifications"
	"broker-calls/realtime"
	"broker-calls/uploads"
	"broker-calls/watchlist"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// StockSearcher looks up symbols by free text
type StockSearcher interface {
	Search(ctx context.Context, q string) ([]market.SearchResult, error)
}

// Deps are the services the HTTP layer dispatches to
type Deps struct {
	Config        *config.Config
	Auth          *auth.Service
	Calls         *calls.Service
	Watchlist     *watchlist.Service
	Notifications *notifications.Service
	Market        StockSearcher
	Quotes        cache.QuoteSource
	Broker        *realtime.Broker
	Uploads       *uploads.Store
	Redis         *cache.RedisClient
	Health        func(ctx context.Context) error
	Logger        *zap.Logger
}

// Server handles HTTP API requests
type Server struct {
	cfg           *config.Config
	auth          *auth.Service
	calls         *calls.Service
	watchlist     *watchlist.Service
	notifications *notifications.Service
	market        StockSearcher
	quotes        cache.QuoteSource
	broker        *realtime.Broker
	uploads       *uploads.Store
	health        func(ctx context.Context) error
	upgrader      *websocket.Upgrader
	logger        *zap.Logger

	apiLimiter  *RateLimiter
	authLimiter *RateLimiter

	router  chi.Router
	httpSrv *http.Server
}

// NewServer creates a new API server instance
func NewServer(d Deps) *Server {
	s := &Server{
		cfg:           d.Config,
		auth:          d.Auth,
		calls:         d.Calls,
		watchlist:     d.Watchlist,
		notifications: d.Notifications,
		market:        d.Market,
		quotes:        d.Quotes,
		broker:        d.Broker,
		uploads:       d.Uploads,
		health:        d.Health,
		upgrader:      realtime.NewUpgrader(splitOrigins(d.Config.CORSOrigin)...),
		logger:        d.Logger,
	}

	rl := d.Config.RateLimit
	s.apiLimiter = NewRateLimiter("api", rl.APIMax, rl.APIWindow,
		"Too many requests from this IP, please try again later.", false, d.Redis, d.Logger)
	s.authLimiter = NewRateLimiter("auth", rl.AuthMax, rl.AuthWindow,
		"Too many failed login attempts, please try again later.", true, d.Redis, d.Logger)

	s.router = s.routes()
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", d.Config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Router exposes the handler for tests and embedding
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   splitOrigins(s.cfg.CORSOrigin),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle(uploads.URLPrefix+"*", s.uploads.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.apiLimiter.Middleware)

		r.Route("/auth", func(r chi.Router) {
			r.With(s.authLimiter.Middleware).Post("/register", s.handleRegister)
			r.With(s.authLimiter.Middleware).Post("/login", s.handleLogin)
			r.With(s.protect).Get("/me", s.handleMe)
			r.With(s.protect).Post("/logout", s.handleLogout)
		})

		r.Route("/calls", func(r chi.Router) {
			r.Get("/", s.handleListPublic)
			r.Get("/broker/{brokerName}", s.handleBrokerStats)
			r.Get("/{callId}/performance", s.handlePerformance)

			r.Group(func(r chi.Router) {
				r.Use(s.protect)
				r.Post("/", s.handleCreateCall)
				r.Get("/my", s.handleListMine)

				r.Group(func(r chi.Router) {
					r.Use(s.restrictTo(auth.RoleAdmin))
					r.Get("/pending", s.handleListPending)
					r.Post("/{id}/approve", s.handleApprove)
					r.Post("/{id}/reject", s.handleReject)
				})
			})
		})

		r.Route("/watchlists", func(r chi.Router) {
			r.Use(s.protect)
			r.Get("/", s.handleGetWatchlist)
			r.Post("/", s.handleSetWatchlist)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Use(s.protect)
			r.Get("/", s.handleListNotifications)
			r.Post("/{id}/read", s.handleMarkRead)
		})

		r.Route("/stocks", func(r chi.Router) {
			r.Get("/", s.handleListStocks)
			r.Get("/search", s.handleSearchStocks)
			r.Get("/price/{symbol}", s.handleStockPrice)
		})

		r.Route("/events", func(r chi.Router) {
			r.Use(s.protect)
			r.Get("/", s.handleEvents)
			r.Get("/ws", s.handleEventsWS)
		})
	})

	return r
}

func splitOrigins(v string) []string {
	var origins []string
	for _, o := range strings.Split(v, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Start listens on the configured port until Shutdown is called.
// After Shutdown it returns immediately.
func (s *Server) Start() error {
	s.logger.Info("🚀 API server starting", zap.String("addr", s.httpSrv.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
