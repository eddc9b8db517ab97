package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/internal/cache"
	"github.com/fjod/go_cart/internal/config"
	"github.com/fjod/go_cart/internal/events"
	carthttp "github.com/fjod/go_cart/internal/http"
	"github.com/fjod/go_cart/internal/inventory"
	"github.com/fjod/go_cart/internal/poller"
	"github.com/fjod/go_cart/internal/repository"
	"github.com/fjod/go_cart/internal/service"
	"github.com/fjod/go_cart/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serviceName = "cart-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("cart service stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer flush(logger, "tracing", shutdownTracing)

	var mongoDB *mongo.Database
	if cfg.CartStore == config.StoreMongo || cfg.Catalog.Source == config.CatalogMongo {
		mongoDB, err = repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return err
		}
		defer flush(logger, "mongo", mongoDB.Client().Disconnect)
		logger.Info("connected to MongoDB", "database", cfg.MongoDBName)
	}

	repo, closeRepo, err := newRepository(ctx, cfg, mongoDB)
	if err != nil {
		return err
	}
	defer closeRepo()

	oracle, closeOracle, err := newOracle(cfg, mongoDB, logger)
	if err != nil {
		return err
	}
	defer closeOracle()

	cartCache, closeCache, err := newCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.EventsEnabled() {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka.EventsTopic, cfg.Kafka.Brokers...)
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				logger.Error("error closing event writer", "error", err)
			}
		}()
		publisher = kafkaPublisher
	}

	carts := service.NewCartService(repo, oracle, cartCache,
		service.WithPublisher(publisher),
		service.WithLogger(logger),
		service.WithLookupTimeout(cfg.Catalog.Timeout),
	)

	if cfg.EventsEnabled() {
		checkoutPoller := poller.NewPoller(carts, logger, cfg.Kafka.CheckoutTopic, cfg.Kafka.GroupID, cfg.Kafka.Brokers...)
		defer checkoutPoller.Close()
		go checkoutPoller.Run(ctx)
		logger.Info("checkout consumer started", "topic", cfg.Kafka.CheckoutTopic)
	}

	router := carthttp.NewRouter(carts, carthttp.RouterConfig{
		Auth:               carthttp.AuthConfig{Secret: []byte(cfg.JWT.Secret), Issuer: cfg.JWT.Issuer},
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	}, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("cart service listening", "port", cfg.HTTPPort, "store", cfg.CartStore, "catalog", cfg.Catalog.Source)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down cart service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("cart service stopped")
	return nil
}

func newRepository(ctx context.Context, cfg *config.Config, mongoDB *mongo.Database) (repository.CartRepository, func(), error) {
	switch cfg.CartStore {
	case config.StoreMongo:
		repo := repository.NewMongoRepository(mongoDB)
		if err := repo.CreateIndexes(ctx); err != nil {
			return nil, nil, err
		}
		return repo, func() {}, nil
	case config.StorePostgres:
		pool, err := repository.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := repository.RunPostgresMigrations(pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repository.NewPostgresRepository(pool), pool.Close, nil
	default:
		return repository.NewMemoryRepository(), func() {}, nil
	}
}

func newOracle(cfg *config.Config, mongoDB *mongo.Database, logger *slog.Logger) (inventory.Oracle, func(), error) {
	switch cfg.Catalog.Source {
	case config.CatalogHTTP:
		client := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
		return inventory.NewHTTPOracle(cfg.Catalog.URL, client, logger), func() {}, nil
	case config.CatalogMongo:
		return inventory.NewMongoCatalog(mongoDB), func() {}, nil
	case config.CatalogSQLite:
		catalog, err := inventory.NewSQLiteCatalog(cfg.Catalog.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := catalog.RunMigrations(); err != nil {
			catalog.Close()
			return nil, nil, err
		}
		return catalog, func() {
			if err := catalog.Close(); err != nil {
				logger.Error("error closing catalog", "error", err)
			}
		}, nil
	default:
		logger.Warn("using an empty in-memory catalog")
		return inventory.NewMemoryCatalog(), func() {}, nil
	}
}

func newCache(ctx context.Context, cfg *config.Config) (cache.CartCache, func(), error) {
	if !cfg.Cache.Enabled {
		return cache.NopCache{}, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return cache.NewRedisCache(client, cfg.Cache.TTL), func() { client.Close() }, nil
}

func flush(logger *slog.Logger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		logger.Error("shutdown failed", "component", name, "error", err)
	}
}
