package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"marketplace/internal/api"
	"marketplace/internal/cart"
	cartdb "marketplace/internal/cart/db"
	"marketplace/internal/catalog"
	catalogdb "marketplace/internal/catalog/db"
	"marketplace/internal/checkout"
	checkoutdb "marketplace/internal/checkout/db"
	"marketplace/internal/config"
	"marketplace/internal/database/migrations"
	"marketplace/internal/events"
	"marketplace/internal/geo"
	"marketplace/internal/logger"
	"marketplace/internal/models"
	"marketplace/internal/moderation"
	moderationdb "marketplace/internal/moderation/db"
	"marketplace/internal/notify"
	notifydb "marketplace/internal/notify/db"
	"marketplace/internal/payment"
	paymentdb "marketplace/internal/payment/db"
	"marketplace/internal/returns"
	returnsdb "marketplace/internal/returns/db"
)

func connect(ctx context.Context, cfg *config.Config, log *logger.Logger) (*bun.DB, *redis.Client) {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Connecting to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb = sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN)))
		if err = sqldb.Ping(); err == nil {
			break
		}
		log.Error("DATABASE", fmt.Sprintf("PostgreSQL connection failed: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	log.Info("DATABASE", "PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("Redis connection successful to %s", cfg.Redis.Addr))

	return bunDB, redisClient
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting marketplace service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	cfg := config.Load()

	ctx := context.Background()
	bunDB, redisClient := connect(ctx, cfg, log)
	defer bunDB.Close()
	defer redisClient.Close()

	migrationOpts := migrations.DefaultOptions()
	runner := migrations.NewRunner(bunDB, migrationOpts, log)
	if migrationOpts.AutoMigrate {
		if err := runner.Up(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
		}
	}
	defer runner.Close()

	var publisher events.Publisher = events.Nop{}
	if cfg.Kafka.Enabled {
		if err := events.EnsureTopicsExist(cfg.Kafka.Brokers, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := events.NewProducer(cfg.Kafka.Brokers, log)
		defer producer.Close()
		publisher = producer
		log.Info("KAFKA", "Kafka producer initialized successfully")
	} else {
		log.Warn("KAFKA", "Kafka disabled; lifecycle events will not be published")
	}

	httpClient := &http.Client{Timeout: 10 * time.Second}

	gateways := map[string]payment.Gateway{}
	if stripeGW, err := payment.NewStripeGateway(cfg.Payment.Stripe, log); err != nil {
		log.Warn("PAYMENT", fmt.Sprintf("Stripe gateway unavailable: %v", err))
	} else {
		gateways[models.PaymentMethodCard] = stripeGW
	}
	gateways[models.PaymentMethodPayPal] = payment.NewPayPalGateway(cfg.Payment.PayPal, httpClient, log)

	notifyService := notify.NewService(
		&notifydb.DB{Bun: bunDB},
		notify.NewEmitter(),
		notify.NewRedisUnreadCache(redisClient),
		log,
	)

	catalogService := catalog.NewService(&catalogdb.DB{Bun: bunDB}, log)
	cartService := cart.NewService(&cartdb.DB{Bun: bunDB}, &catalogdb.DB{Bun: bunDB}, catalogService, log)
	checkoutService := checkout.NewService(
		&checkoutdb.DB{Bun: bunDB},
		cartService,
		&catalogdb.DB{Bun: bunDB},
		catalogService,
		publisher,
		log,
	)
	paymentService := payment.NewService(
		&paymentdb.DB{Bun: bunDB},
		gateways,
		payment.NewRedisCaptureLock(redisClient),
		cartService,
		notifyService,
		publisher,
		cfg.Payment.Currency,
		cfg.Payment.CallTimeout,
		log,
	)
	returnsService := returns.NewService(
		&returnsdb.DB{Bun: bunDB},
		gateways,
		notifyService,
		publisher,
		cfg.Payment.Currency,
		cfg.Payment.CallTimeout,
		log,
	)
	moderationService := moderation.NewService(
		&moderationdb.DB{Bun: bunDB},
		notifyService,
		publisher,
		log,
	)
	geocoder := geo.NewGeocoder(cfg.Geocoder, httpClient, log)

	handler := &api.Handler{
		Catalog:       catalogService,
		Cart:          cartService,
		Checkout:      checkoutService,
		Payment:       paymentService,
		Returns:       returnsService,
		Moderation:    moderationService,
		Notifications: notifyService,
		Geocoder:      geocoder,
		WebhookSecret: cfg.Payment.Stripe.WebhookSecret,
		Subscriptions: &paymentdb.DB{Bun: bunDB},
		Logger:        log,
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Marketplace service running on :%s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	}
	log.Info("APP", "Shutdown complete")
}
