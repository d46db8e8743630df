package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kiosk/internal/config"
	httpapi "kiosk/internal/http"
	"kiosk/internal/repository"
	"kiosk/internal/service"

	_ "kiosk/docs"
)

// @title Kiosk API
// @version 1.0
// @description Membership-funded kiosk: prepaid balances, quickbuy and product ledger.
// @BasePath /api/v1
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()

	store := repository.NewMemoryStore()
	members := repository.NewMemoryMembers(store)
	products := repository.NewMemoryProducts(store)
	rooms := repository.NewMemoryRooms(store)
	sales := repository.NewMemorySales(store)
	payments := repository.NewMemoryPayments(store)
	tx := repository.NewMemoryTx(store)

	productsSvc := service.NewProductService(products, sales)
	ordersSvc := service.NewOrderService(members, products, sales, tx)
	ledgerSvc := service.NewLedgerService(members, products, sales, payments, tx)
	membersSvc := service.NewMemberService(members, products, sales, payments)

	srv := httpapi.NewServer(productsSvc, ordersSvc, ledgerSvc, membersSvc, rooms)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Engine(),
	}

	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr, "env", cfg.Env)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
