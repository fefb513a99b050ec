package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/aerobound/config"
	"github.com/Domenick1991/aerobound/internal/email"
	"github.com/Domenick1991/aerobound/internal/kafka"
	"github.com/Domenick1991/aerobound/internal/logger"
	"github.com/Domenick1991/aerobound/internal/provider/pesapal"
	"github.com/Domenick1991/aerobound/internal/repository"
	"github.com/Domenick1991/aerobound/internal/service/payment"
	"github.com/Domenick1991/aerobound/internal/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var cfgPath string

	flagSet := pflag.NewFlagSet("aerobound-worker", pflag.ContinueOnError)
	flagSet.StringVar(&cfgPath, "config", "", "path to config file (default: $CONFIG_PATH or config.yaml)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	_ = godotenv.Load()

	if cfgPath == "" {
		cfgPath = os.Getenv("CONFIG_PATH")
	}
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Log, "aerobound-worker")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
	defer producer.Close()

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, log)
	defer consumer.Close()

	paymentOpts := []payment.PaymentServiceOption{
		payment.WithEvents(producer, cfg.Kafka.BookingEventsTopic, cfg.Kafka.NotificationsTopic),
	}
	if cfg.Payments.TerminalGuard {
		paymentOpts = append(paymentOpts, payment.WithTerminalGuard())
	}
	paymentService := payment.NewPaymentService(
		repository.NewBookingRepository(pool),
		pesapal.NewClient(cfg.Pesapal),
		log,
		paymentOpts...,
	)

	w := worker.New(
		consumer,
		email.NewSender(log),
		paymentService,
		time.Duration(cfg.Worker.SweepIntervalMinutes)*time.Minute,
		time.Duration(cfg.Worker.PendingAgeMinutes)*time.Minute,
		log,
	)

	log.Info("worker started")
	if err := w.Run(ctx); err != nil {
		return fmt.Errorf("worker stopped: %w", err)
	}
	log.Info("worker stopped")
	return nil
}
