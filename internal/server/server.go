package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/m-kus/testex/internal/config"
	"github.com/m-kus/testex/internal/handlers"
	"github.com/m-kus/testex/internal/services"
	"github.com/m-kus/testex/internal/validators"
	"github.com/m-kus/testex/pkg/feed"
)

type Server struct {
	Router   *chi.Mux
	Config   *config.Config
	Handlers *Handlers
}

type Handlers struct {
	BittrexHandler  *handlers.BittrexHandler
	PoloniexHandler *handlers.PoloniexHandler
	PagesHandler    *handlers.PagesHandler
	Feed            *feed.Hub
}

// NewServer wires the URL trees of both exchange dialects plus the
// auxiliary pages over an executor and its adapters.
func NewServer(cfg *config.Config, executor *services.Executor, h *Handlers) *Server {
	if h.PagesHandler == nil {
		h.PagesHandler = handlers.NewPagesHandler(executor, validators.New())
	}

	s := &Server{
		Router:   chi.NewRouter(),
		Config:   cfg,
		Handlers: h,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	// Standard middleware
	s.Router.Use(middleware.RequestID)
	s.Router.Use(middleware.RealIP)
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(middleware.CleanPath)
	s.Router.Use(middleware.Timeout(s.Config.RequestTimeout))

	// Logging middleware (conditional based on environment)
	if s.Config.IsDevelopment() {
		s.Router.Use(middleware.Logger)
	}

	// CORS configuration
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "apisign", "Key", "Sign"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	bittrex := s.Handlers.BittrexHandler
	poloniex := s.Handlers.PoloniexHandler
	pages := s.Handlers.PagesHandler

	// Health check endpoint
	s.Router.Get("/health", handlers.HealthCheck)

	// Auxiliary pages
	s.Router.Get("/", pages.Documentation())
	s.Router.Get("/deposit", pages.DepositForm())
	s.Router.Post("/deposit", pages.Deposit())

	if s.Handlers.Feed != nil {
		s.Router.Get("/ws", s.Handlers.Feed.ServeHTTP)
	}

	// Bittrex v1.1 URL tree
	s.Router.Route("/bittrex.com/api/v1.1", func(r chi.Router) {
		r.Route("/public", func(r chi.Router) {
			r.Get("/getmarkets", bittrex.GetMarkets())
			r.Get("/getcurrencies", bittrex.GetCurrencies())
			r.Get("/getticker", bittrex.GetTicker())
			r.Get("/getmarketsummaries", bittrex.GetMarketSummaries())
			r.Get("/getorderbook", bittrex.GetOrderBook())
			r.Get("/getmarketsummary", bittrex.GetMarketSummary())
			r.Get("/getmarkethistory", bittrex.GetMarketHistory())
		})

		r.Route("/market", func(r chi.Router) {
			r.Get("/buylimit", bittrex.BuyLimit())
			r.Get("/selllimit", bittrex.SellLimit())
			r.Get("/cancel", bittrex.Cancel())
			r.Get("/getopenorders", bittrex.GetOpenOrders())
		})

		r.Route("/account", func(r chi.Router) {
			r.Get("/getbalances", bittrex.GetBalances())
			r.Get("/getbalance", bittrex.GetBalance())
			r.Get("/getdepositaddress", bittrex.GetDepositAddress())
			r.Get("/withdraw", bittrex.Withdraw())
			r.Get("/getorder", bittrex.GetOrder())
			r.Get("/getorderhistory", bittrex.GetOrderHistory())
			r.Get("/getwithdrawalhistory", bittrex.GetWithdrawalHistory())
			r.Get("/getdeposithistory", bittrex.GetDepositHistory())
		})
	})

	// Poloniex URL tree
	s.Router.Route("/poloniex.com", func(r chi.Router) {
		r.Get("/public", poloniex.Public())
		r.Post("/tradingApi", poloniex.TradingAPI())
	})

	// Unknown routes redirect to the documentation
	s.Router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusFound)
	})
}

// Start starts the HTTP server with graceful shutdown
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         ":" + s.Config.Port,
		Handler:      s.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("server starting", "port", s.Config.Port, "environment", s.Config.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed to start", "err", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("server shutting down")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return err
	}

	log.Info("server exited")
	return nil
}
