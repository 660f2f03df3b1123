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

	"github.com/mhxia/finsight/internal/bootstrap"
	"github.com/mhxia/finsight/internal/config"
	"github.com/mhxia/finsight/internal/observability/logging"
	"github.com/mhxia/finsight/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	slog.SetDefault(logging.NewJSONLogger("worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: metricsMux,
	}
	go func() {
		slog.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker metrics server error", "error", err)
		}
	}()

	slog.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeReportUploaded(ctx, func(handlerCtx context.Context, reportID string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()

		workerMetrics.StartReport()
		start := time.Now()
		processErr := app.ProcessUC.ProcessByID(processCtx, reportID)
		workerMetrics.FinishReport("worker", time.Since(start), processErr)

		if processErr == nil {
			// Index stats land on the report row during processing.
			if report, err := app.Reports.GetByID(processCtx, reportID); err == nil {
				workerMetrics.ObserveIndexedCounts("worker", report.PageCount, report.TableCount)
			}
		}
		return processErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("worker metrics shutdown error", "error", err)
	}
}
