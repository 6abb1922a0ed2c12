// Command outboxrunner runs the transactional-outbox delivery worker
// as its own long-running process, separate from the HTTP server, the
// way the teacher splits its reminder worker into an independent
// goroutine lifecycle (service/reminder_worker.go) — here split all
// the way to a separate binary since outbox delivery has its own
// restart/scaling profile.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"televent/internal/config"
	"televent/internal/notify"
	"televent/internal/outbox"
	"televent/internal/repository"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPool, err := repository.OpenPool(ctx, cfg.Database.DSN, cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer dbPool.Close()

	outboxRepo := repository.NewOutboxRepository(dbPool)
	eventsRepo := repository.NewEventRepository(dbPool)
	gateway := notify.NewHTTPChatGateway(cfg.ChatGateway.BaseURL)
	mailer := notify.NewMailer(cfg.SMTP)

	runner := outbox.NewRunner(
		outboxRepo, eventsRepo, gateway, mailer, logger.Named("outbox"),
		time.Duration(cfg.Outbox.PollIntervalSeconds)*time.Second,
		time.Duration(cfg.Outbox.StatusLogIntervalSeconds)*time.Second,
		cfg.Outbox.BatchSize,
		cfg.Outbox.MaxRetryCount,
	)

	done := make(chan struct{})
	go func() {
		runner.Run(ctx)
		close(done)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down outbox runner...")
	runner.Stop()
	<-done
	cancel()
}
