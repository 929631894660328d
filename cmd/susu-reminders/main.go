package main

import (
	"context"
	"errors"
	"time"

	"susu/internal/amqp"
	"susu/internal/cli"
	"susu/internal/log"
	"susu/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentReminders, "")
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(log.ComponentReminders, cfg.LogLevel)

	logger.Info("Starting susu-reminders",
		"interval", cfg.ReminderInterval.String(),
		"lead_days", cfg.ReminderLeadDays)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res := cli.OpenStore(ctx, logger, cfg)

	// Reminders are published as events; the worker turns them into inbox messages.
	if cfg.AMQPURL == "" {
		cli.Fatal(logger, "AMQP_URL is required", errors.New("reminders need a broker"))
	}
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}

	processor := services.NewReminderProcessor(res.Store, amqpClient, services.ReminderProcessorConfig{
		Interval: cfg.ReminderInterval,
		LeadDays: cfg.ReminderLeadDays,
	})

	// Start scans once immediately, then every interval.
	if err := processor.Start(ctx); err != nil {
		cli.Fatal(logger, "Failed to start reminder processor", err)
	}

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) error {
		stopErr := processor.Stop(ctx)
		cancel()
		return errors.Join(stopErr, amqpClient.Close(), res.Cleanup())
	})

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Reminder processor shutdown complete")
}
