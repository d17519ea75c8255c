// Package main serves the synthetic purchase-history API used by local
// pipeline runs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"custetl/internal/logger"
	"custetl/internal/purchaseapi"
)

func main() {
	addr := flag.String("addr", ":8000", "Listen address")
	seed := flag.Uint64("seed", 42, "Random seed for generated purchases")
	start := flag.String("start", "2023-01-01", "Earliest purchase date (YYYY-MM-DD)")
	end := flag.String("end", "2024-12-31", "Latest purchase date (YYYY-MM-DD)")
	level := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	log := logger.NewLogger(*level)

	from, err := time.Parse(time.DateOnly, *start)
	if err != nil {
		log.Error(fmt.Sprintf("❌ Invalid -start: %v", err))
		os.Exit(1)
	}

	to, err := time.Parse(time.DateOnly, *end)
	if err != nil || to.Before(from) {
		log.Error(fmt.Sprintf("❌ Invalid -end %q", *end))
		os.Exit(1)
	}

	gin.SetMode(gin.ReleaseMode)

	server := &http.Server{
		Addr:              *addr,
		Handler:           purchaseapi.NewRouter(purchaseapi.NewGenerator(*seed, from, to), log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown failed", "error", err)
		}
	}()

	log.Info("🚀 Purchase-history API listening", "addr", *addr, "seed", *seed)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error(fmt.Sprintf("❌ Server failed: %v", err))
		os.Exit(1)
	}

	log.Info("Server stopped")
}
