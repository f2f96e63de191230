package main

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"expenses/internal/amqp"
	"expenses/internal/backend"
	"expenses/internal/cli"
	"expenses/internal/config"
	"expenses/internal/log"
	"expenses/internal/worker"
)

func main() {
	envErr := cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(cli.SetupLogger("info", log.ComponentEvents), "Configuration validation failed", err,
			log.FieldErrorType, log.ErrorTypeConfiguration)
	}
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentEvents)
	if envErr != nil {
		logger.Warn("Ignoring .env file", log.FieldError, envErr)
	}
	if cfg.AMQPURL == "" {
		cli.Fatal(logger, "AMQP_URL is required", errors.New("no broker configured"),
			log.FieldErrorType, log.ErrorTypeConfiguration)
	}

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		stop()
		cli.Fatal(logger, "Event consumer stopped with error", err)
	}
	logger.Info("Event consumer stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	// The store is read only here; the consumer owns its own AMQP connection.
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return fmt.Errorf("backend config: %w", err)
	}
	backendCfg.AMQPURL = ""
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return fmt.Errorf("initialize backend: %w", err)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	defer client.Close()

	w := worker.NewEventWorker(res.Store, logger)

	logger.Info("Starting expenses-events",
		log.FieldOperation, log.OpStartup,
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue,
		"report_interval", cfg.EventsReportInterval.String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.ConsumeExpenseEvents(gctx, w.HandleEvent)
	})
	g.Go(func() error {
		w.RunReports(gctx, cfg.EventsReportInterval)
		return nil
	})
	return g.Wait()
}
