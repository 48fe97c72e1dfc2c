package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Harry808275/evertrust23-sub000/handlers"
	"github.com/Harry808275/evertrust23-sub000/internal/auth"
	"github.com/Harry808275/evertrust23-sub000/internal/catalog"
	"github.com/Harry808275/evertrust23-sub000/internal/consul"
	"github.com/Harry808275/evertrust23-sub000/internal/coupons"
	"github.com/Harry808275/evertrust23-sub000/internal/orders"
	"github.com/Harry808275/evertrust23-sub000/internal/payments"
	"github.com/Harry808275/evertrust23-sub000/internal/pricing"
	"github.com/Harry808275/evertrust23-sub000/internal/stores/kafka"
	"github.com/Harry808275/evertrust23-sub000/internal/stores/postgres"

	"github.com/joho/godotenv"
	"github.com/stripe/stripe-go/v81"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, relying on environment")
	}

	if err := startApp(); err != nil {
		slog.Error("failed to start service", slog.String("ERROR", err.Error()))
		os.Exit(1)
	}
}

func startApp() error {
	sKey := os.Getenv("STRIPE_TEST_KEY")
	if sKey == "" {
		return errors.New("STRIPE_TEST_KEY is not set")
	}
	stripe.Key = sKey

	webhookSecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	if webhookSecret == "" {
		return errors.New("STRIPE_WEBHOOK_SECRET is not set")
	}

	keys, err := auth.NewKeys(os.Getenv("TOKEN_SECRET"))
	if err != nil {
		return err
	}

	db, err := postgres.OpenDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.RunMigrations(db); err != nil {
		return err
	}

	orderConf, err := orders.NewConf(db)
	if err != nil {
		return err
	}
	couponConf, err := coupons.NewConf(db)
	if err != nil {
		return err
	}

	kafkaConf, err := kafka.NewConf(strings.Split(envOr("KAFKA_BROKERS", "localhost:9092"), ","))
	if err != nil {
		return err
	}
	defer kafkaConf.Close()

	consulClient, err := consul.NewClient()
	if err != nil {
		return err
	}
	catalogClient, err := catalog.NewClient(consulClient)
	if err != nil {
		return err
	}

	gateway := &payments.Gateway{
		Currency:   envOr("CHECKOUT_CURRENCY", "usd"),
		SuccessURL: envOr("CHECKOUT_SUCCESS_URL", "https://example.com/success"),
		CancelURL:  envOr("CHECKOUT_CANCEL_URL", "https://example.com/cancel"),
	}

	shipping := pricing.Rule{
		FlatFee:   envInt64("SHIPPING_FLAT_FEE", 500),
		FreeAbove: envInt64("SHIPPING_FREE_ABOVE", 10000),
	}

	h := handlers.NewHandler(orderConf, couponConf, catalogClient, gateway, kafkaConf, shipping, webhookSecret)
	api := handlers.API("/orders", keys, h)

	srv := &http.Server{
		Addr:         ":" + envOr("PORT", "8084"),
		Handler:      api,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("service started", slog.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case sig := <-shutdown:
		slog.Info("shutting down", slog.Any("signal", sig))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			return err
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		slog.Warn("bad integer in environment, using fallback", slog.String("key", key), slog.String("value", v))
		return fallback
	}
	return n
}
