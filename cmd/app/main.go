package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/aerobound/config"
	"github.com/Domenick1991/aerobound/internal/bootstrap"
	"github.com/Domenick1991/aerobound/internal/cache"
	"github.com/Domenick1991/aerobound/internal/email"
	"github.com/Domenick1991/aerobound/internal/kafka"
	"github.com/Domenick1991/aerobound/internal/logger"
	"github.com/Domenick1991/aerobound/internal/provider/amadeus"
	"github.com/Domenick1991/aerobound/internal/provider/pesapal"
	"github.com/Domenick1991/aerobound/internal/repository"
	"github.com/Domenick1991/aerobound/internal/service/booking"
	"github.com/Domenick1991/aerobound/internal/service/flights"
	"github.com/Domenick1991/aerobound/internal/service/payment"
	"github.com/Domenick1991/aerobound/internal/service/user"
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
	var cfgPath, registerIPN string

	flagSet := pflag.NewFlagSet("aerobound", pflag.ContinueOnError)
	flagSet.StringVar(&cfgPath, "config", "", "path to config file (default: $CONFIG_PATH or config.yaml)")
	flagSet.StringVar(&registerIPN, "register-ipn", "", "register this URL as the Pesapal IPN endpoint, print its id and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	// .env is optional; variables already set in the environment win.
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

	log, err := logger.New(cfg.Log, "aerobound-api")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	paymentClient := pesapal.NewClient(cfg.Pesapal)
	if registerIPN != "" {
		id, err := paymentClient.RegisterIPN(ctx, registerIPN)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	}

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if err := repository.InitSchema(ctx, pool); err != nil {
		return err
	}

	redisCache := cache.NewRedisCache(cfg.Redis)
	defer redisCache.Close()
	if err := redisCache.Ping(ctx); err != nil {
		log.WithError(err).Warn("redis unavailable, lookups will not be cached")
	}

	producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
	defer producer.Close()
	if err := producer.CheckConnection(ctx); err != nil {
		log.WithError(err).Warn("kafka unavailable, booking events may be lost")
	}

	flightClient := amadeus.NewClient(cfg.Amadeus)
	bookingRepo := repository.NewBookingRepository(pool)

	flightService := flights.NewFlightService(flightClient, redisCache, log)
	bookingService := booking.NewBookingService(
		bookingRepo,
		flightClient,
		producer,
		cfg.Kafka.BookingEventsTopic,
		log,
		booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		booking.WithCache(redisCache),
	)

	paymentOpts := []payment.PaymentServiceOption{
		payment.WithEvents(producer, cfg.Kafka.BookingEventsTopic, cfg.Kafka.NotificationsTopic),
		payment.WithFrontendURL(cfg.Payments.FrontendURL),
	}
	if cfg.Payments.TerminalGuard {
		paymentOpts = append(paymentOpts, payment.WithTerminalGuard())
	}
	paymentService := payment.NewPaymentService(bookingRepo, paymentClient, log, paymentOpts...)

	userService := user.NewUserService(
		repository.NewUserRepository(pool),
		email.NewSender(log),
		cfg.Auth.JWTSecret,
		cfg.Auth.TokenTTL(),
		log,
		user.WithFrontendURL(cfg.Payments.FrontendURL),
	)

	return bootstrap.Run(ctx, cfg, bootstrap.Services{
		Flights:  flightService,
		Bookings: bookingService,
		Payments: paymentService,
		Users:    userService,
	}, log)
}
