package main

import (
	"github.com/charmbracelet/log"
	"github.com/m-kus/testex/internal/config"
	"github.com/m-kus/testex/internal/exchange/bittrex"
	"github.com/m-kus/testex/internal/exchange/poloniex"
	"github.com/m-kus/testex/internal/handlers"
	"github.com/m-kus/testex/internal/repository/postgres"
	"github.com/m-kus/testex/internal/server"
	"github.com/m-kus/testex/internal/services"
	"github.com/m-kus/testex/pkg/database"
	"github.com/m-kus/testex/pkg/feed"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration", "err", err)
	}

	// Initialize database connection
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect to database", "err", err)
	}
	defer db.Close()

	// Initialize repositories
	orderRepo := postgres.NewOrderRepository(db)
	tradeRepo := postgres.NewTradeRepository(db)
	transactionRepo := postgres.NewTransactionRepository(db)
	balanceRepo := postgres.NewBalanceRepository(db)

	// Initialize the executor and the exchange adapters
	executor := services.NewExecutor(orderRepo, tradeRepo, transactionRepo, balanceRepo, nil)
	executor.SetNonExecuteProb(cfg.NonExecuteProb)

	hub := feed.NewHub()
	executor.AttachFeed(hub)

	bittrexAdapter := bittrex.NewAdapter(executor, bittrex.NewProxy(cfg.BittrexUpstreamURL))
	poloniexAdapter := poloniex.NewAdapter(executor, poloniex.NewProxy(cfg.PoloniexUpstreamURL))

	// Create and start server
	srv := server.NewServer(cfg, executor, &server.Handlers{
		BittrexHandler:  handlers.NewBittrexHandler(bittrexAdapter, executor),
		PoloniexHandler: handlers.NewPoloniexHandler(poloniexAdapter, executor),
		Feed:            hub,
	})

	// Start server (this blocks until shutdown)
	if err := srv.Start(); err != nil {
		log.Fatal("server failed", "err", err)
	}
}
