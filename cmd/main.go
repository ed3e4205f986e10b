package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Vkt5451/Main-Street-2026-Backend/internal/cache"
	h "github.com/Vkt5451/Main-Street-2026-Backend/internal/http"
	"github.com/Vkt5451/Main-Street-2026-Backend/internal/provider"
	"github.com/Vkt5451/Main-Street-2026-Backend/internal/publisher"
	"github.com/Vkt5451/Main-Street-2026-Backend/internal/repository"
	"github.com/Vkt5451/Main-Street-2026-Backend/internal/service"
)

type Config struct {
	HTTPPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	DBHost         string
	DBPort         int
	DBUser         string
	DBPassword     string
	DBName         string
	MigrationsPath string

	RedisAddr    string
	KafkaBrokers []string

	ProviderBaseURL       string
	ProviderAPIKey        string
	ProviderWebhookSecret string
	CheckoutSuccessURL    string
	CheckoutCancelURL     string
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,

		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnvInt("DB_PORT", 5432),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", "postgres"),
		DBName:         getEnv("DB_NAME", "checkout"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "internal/repository/migrations"),

		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),

		ProviderBaseURL:       getEnv("PROVIDER_BASE_URL", "https://api.payment-provider.example.com"),
		ProviderAPIKey:        os.Getenv("PROVIDER_API_KEY"),
		ProviderWebhookSecret: os.Getenv("PROVIDER_WEBHOOK_SECRET"),
		CheckoutSuccessURL:    getEnv("CHECKOUT_SUCCESS_URL", "https://vkt5451.github.io/Main-Street-2026/"),
		CheckoutCancelURL:     getEnv("CHECKOUT_CANCEL_URL", "https://vkt5451.github.io/Main-Street-2026/menu-page.html"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()
	if cfg.ProviderAPIKey == "" || cfg.ProviderWebhookSecret == "" {
		log.Fatal("PROVIDER_API_KEY and PROVIDER_WEBHOOK_SECRET must be set")
	}

	creds := &repository.Credentials{
		Host:              cfg.DBHost,
		Port:              cfg.DBPort,
		User:              cfg.DBUser,
		Password:          cfg.DBPassword,
		DBName:            cfg.DBName,
		MigrationsDirPath: cfg.MigrationsPath,
	}
	repo, err := repository.NewRepository(creds)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	eventCache := cache.NewRedisEventCache(redisClient)

	providerClient := provider.NewHostedClient(
		cfg.ProviderBaseURL,
		cfg.ProviderAPIKey,
		cfg.ProviderWebhookSecret,
	)

	checkoutService := service.NewCheckoutService(repo, providerClient,
		cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL)
	webhookService := service.NewWebhookService(repo, providerClient, eventCache)

	checkoutHandler := h.NewCheckoutHandler(checkoutService, cfg.RequestTimeout)
	webhookHandler := h.NewWebhookHandler(webhookService, cfg.RequestTimeout)
	ordersHandler := h.NewOrdersHandler(repo, cfg.RequestTimeout)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(h.RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Post("/checkout", checkoutHandler.InitiateCheckout)
	r.Post("/webhook", webhookHandler.HandleWebhook)
	r.Get("/orders/{order_id}", ordersHandler.GetOrder)

	// outbox poller drains settled orders to Kafka
	pollerCtx, stopPoller := context.WithCancel(context.Background())
	poller := publisher.NewOutboxPoller(repo, cfg.KafkaBrokers...)
	go poller.Run(pollerCtx)
	defer poller.Close()

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(r, "checkout-backend"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("checkout backend starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	stopPoller()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("server exited")
}
