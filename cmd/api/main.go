package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/mhxia/finsight/internal/adapters/http"
	"github.com/mhxia/finsight/internal/bootstrap"
	"github.com/mhxia/finsight/internal/config"
	"github.com/mhxia/finsight/internal/observability/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	slog.SetDefault(logging.NewJSONLogger("api", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	// An empty or unreachable index is not fatal: retrieval degrades to
	// empty results until reports are processed.
	ready, err := app.AdminUC.LoadExistingIndex(ctx)
	switch {
	case err != nil:
		slog.Warn("hybrid index probe failed, starting degraded", "error", err)
	case !ready:
		slog.Warn("no populated hybrid index found, starting empty")
	default:
		slog.Info("attached to existing hybrid index")
	}

	router := httpadapter.NewRouter(
		cfg,
		app.IngestUC,
		app.RetrieveUC,
		app.AnswerUC,
		app.IndicatorUC,
		app.Reports,
		app.Jobs,
		app.AdminUC,
	)
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api shutdown error", "error", err)
	}
}
