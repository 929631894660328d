package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"susu/internal/amqp"
	"susu/internal/cli"
	"susu/internal/log"
	"susu/internal/metrics"
	"susu/internal/sheets"
	gsheet "susu/internal/sheets/google"
	"susu/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker, "")
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(log.ComponentWorker, cfg.LogLevel)

	logger.Info("Starting susu-worker")
	if cfg.DataBackend != "sqlite" {
		logger.Warn("Worker is not sharing storage with the API; inbox messages stay local to this process",
			"backend", cfg.DataBackend)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res := cli.OpenStore(ctx, logger, cfg)

	// Google Sheets ledger export (optional)
	var ledger sheets.Ledger
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewClient(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			cli.Fatal(logger, "Failed to initialize Google Sheets client", err)
		}
		ledger = client
		logger.Info("Google Sheets ledger enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	if cfg.AMQPURL == "" {
		cli.Fatal(logger, "AMQP_URL is required", errors.New("the worker consumes events from a broker"))
	}
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}

	m := metrics.New()
	w := worker.NewNotificationWorker(res.Store, ledger)
	sl := log.NewStructuredLogger(logger)
	handler := func(ctx context.Context, e *amqp.Event) error {
		err := w.HandleEvent(ctx, e)
		m.ObserveEvent(string(e.Type), err)
		if err != nil {
			sl.LogError(ctx, "Event handling failed, requeueing", err, log.ComponentWorker, log.OpConsume,
				log.NewFields().WithSlot(e.GroupID, e.MemberID, e.Month))
		}
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	metricsSrv := &http.Server{Addr: cfg.Addr(), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", log.FieldError, err)
		}
	}()

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) error {
		cancel()
		return errors.Join(
			metricsSrv.Shutdown(ctx),
			amqpClient.Close(),
			res.Cleanup(),
		)
	})

	go func() {
		if err := amqpClient.Consume(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Event consumption failed", log.FieldError, err, log.FieldOperation, log.OpConsume)
			cancel()
		}
	}()

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Worker shutdown complete")
}
