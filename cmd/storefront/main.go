package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/config"
	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/localstore"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/orderapi"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/fjod/go_cart/storefront/internal/publisher"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := config.LoadDotEnv(); err != nil && !errors.Is(err, os.ErrNotExist) {
		os.Stderr.WriteString("failed to load .env: " + err.Error() + "\n")
	}
	cfg := config.Load()
	log := logger.New(cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Local storage, order log and outbox
	store, err := localstore.NewStore(cfg.StoreDriver, cfg.StoreDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer store.Close()
	if err := store.RunMigrations(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	log.Info().Str("driver", cfg.StoreDriver).Msg("store ready")

	// Carts
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	defer mongoDB.Client().Disconnect(context.Background())
	repo := repository.NewMongoRepository(mongoDB)
	if err := repository.EnsureIndexes(ctx, repo); err != nil {
		log.Fatal().Err(err).Msg("failed to create cart indexes")
	}
	log.Info().Str("uri", cfg.MongoURI).Msg("connected to MongoDB")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}

	carts := cart.NewService(repo, cache.NewRedisCache(redisClient))

	// Checkout event publishing
	if len(cfg.KafkaBrokers) > 0 {
		poller := publisher.NewOutboxPoller(store, publisher.NewKafkaWriter(cfg.KafkaTopic, cfg.KafkaBrokers...), log)
		defer poller.Close()
		go poller.Run(ctx)
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("outbox poller started")
	} else {
		log.Warn().Msg("KAFKA_BROKERS not set, checkout events stay in the outbox")
	}

	if cfg.StripeSecretKey == "" {
		log.Warn().Msg("STRIPE_SECRET_KEY not set, card payments will fail")
	}

	checkoutHandler := h.NewCheckoutHandler(
		h.NewRenderer(!cfg.IsProduction()),
		store,
		carts,
		orderapi.NewClient(cfg.OrderAPIURL, cfg.RequestTimeout, orderapi.WithLogger(log)),
		payment.NewStripeConfirmer(cfg.StripeSecretKey),
		checkout.ScreenConfig{
			APIURL:         cfg.APIURL,
			PublishableKey: cfg.StripePublicKey,
			Currency:       cfg.Currency,
		},
		cfg.PublicURL,
		cfg.RequestTimeout,
	)

	router := h.NewRouter(h.Handlers{
		Checkout: checkoutHandler,
		Cart:     h.NewCartHandler(carts, cfg.RequestTimeout),
		Orders:   h.NewOrdersHandler(store, cfg.RequestTimeout),
	}, h.RouterOptions{
		Logger:         log,
		JWTSecret:      []byte(cfg.JWTSecret),
		SecureCookies:  cfg.IsProduction(),
		RequestTimeout: cfg.RequestTimeout,
		SubmitLimiter:  h.NewSubmitLimiter(cfg.SubmitRate, cfg.SubmitBurst),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      http.MaxBytesHandler(router, cfg.MaxRequestBodySize),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("storefront starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	<-ctx.Done()

	log.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}
