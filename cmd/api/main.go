package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace-core/internal/auth"
	"marketplace-core/internal/config"
	"marketplace-core/internal/db"
	"marketplace-core/internal/events"
	"marketplace-core/internal/httpserver"
	"marketplace-core/internal/metrics"
	"marketplace-core/internal/migrate"
	"marketplace-core/internal/repository/memory"
	orderrepo "marketplace-core/internal/repository/order"
	productrepo "marketplace-core/internal/repository/product"
	"marketplace-core/internal/repository/uow"
	analyticssvc "marketplace-core/internal/service/analytics"
	"marketplace-core/internal/service/inventory"
	ordersvc "marketplace-core/internal/service/order"
	productsvc "marketplace-core/internal/service/product"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type storage struct {
	pool     *pgxpool.Pool
	runner   uow.Runner
	orders   orderrepo.Repository
	products productrepo.Repository
}

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	taxRate, err := decimal.NewFromString(cfg.TaxRate)
	if err != nil {
		logger.Fatalf("parse TAX_RATE %q: %v", cfg.TaxRate, err)
	}

	ctx := context.Background()
	st, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("open storage: %v", err)
	}
	if st.pool != nil {
		defer st.pool.Close()
	}

	history, publishers, closers, err := openEvents(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("open event sinks: %v", err)
	}
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Printf("close event sink: %v", err)
			}
		}
	}()

	m := metrics.New()
	authz := auth.NewAuthorizer()
	inv := inventory.New(st.runner, authz, m, logger, cfg.MaxTransitionAttempts)
	orderService := ordersvc.New(ordersvc.Deps{
		Runner:     st.runner,
		Orders:     st.orders,
		Inventory:  inv,
		Authorizer: authz,
		Publisher:  publishers,
		History:    history,
		Metrics:    m,
		Logger:     logger,
		Pricing: ordersvc.Pricing{
			TaxRate:           taxRate,
			ShippingFlatCents: cfg.ShippingFlatCents,
			DefaultCurrency:   cfg.DefaultCurrency,
		},
		MaxAttempts: cfg.MaxTransitionAttempts,
	})

	srv, err := httpserver.New(cfg.HTTPAddr, logger, st.pool, httpserver.Deps{
		OrderSvc:     orderService,
		ProductSvc:   productsvc.New(st.products),
		InventorySvc: inv,
		AnalyticsSvc: analyticssvc.New(st.orders, st.products, authz, logger),
		Tokens:       auth.NewTokenParser(cfg.JWTSecret),
		Metrics:      m,
		CORSOrigins:  cfg.CORSOrigins,
	})
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("starting http server on %s storage=%s", cfg.HTTPAddr, cfg.StorageDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		logger.Printf("server error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	} else {
		logger.Printf("server stopped")
	}
}

func openStorage(ctx context.Context, cfg config.Config, logger *log.Logger) (storage, error) {
	switch cfg.StorageDriver {
	case "memory":
		logger.Printf("using in-memory storage, data is lost on restart")
		st := memory.New()
		return storage{runner: st, orders: st.Orders(), products: st.Products()}, nil
	case "postgres":
		pool, err := db.Connect(ctx, cfg.DBConnString)
		if err != nil {
			return storage{}, err
		}
		if err := migrate.Apply(ctx, pool, logger); err != nil {
			pool.Close()
			return storage{}, err
		}
		return storage{
			pool:     pool,
			runner:   uow.NewPostgres(pool, logger),
			orders:   orderrepo.NewPostgres(pool, logger),
			products: productrepo.NewPostgres(pool, logger),
		}, nil
	default:
		return storage{}, errors.New("unknown STORAGE_DRIVER " + cfg.StorageDriver + ", want postgres or memory")
	}
}

// openEvents builds the history store and the fan-out publisher. Every
// lifecycle event goes to the history store; RabbitMQ and Kafka are added
// when configured.
func openEvents(ctx context.Context, cfg config.Config, logger *log.Logger) (events.Recorder, events.Multi, []io.Closer, error) {
	var (
		history events.Recorder
		closers []io.Closer
	)
	if cfg.MongoURI != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, nil, err
		}
		rec := events.NewMongoRecorder(client.Database(cfg.MongoDBName))
		if err := rec.EnsureIndexes(connectCtx); err != nil {
			return nil, nil, nil, err
		}
		closers = append(closers, closerFunc(func() error { return client.Disconnect(context.Background()) }))
		history = rec
		logger.Printf("order history in mongo db=%s", cfg.MongoDBName)
	} else {
		history = events.NewMemoryRecorder()
		logger.Printf("order history in memory")
	}

	publishers := events.Multi{history}
	if cfg.RabbitURL != "" {
		p, err := events.NewRabbitPublisher(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			return nil, nil, nil, err
		}
		publishers = append(publishers, p)
		closers = append(closers, p)
		logger.Printf("publishing to rabbitmq exchange=%s", cfg.RabbitExchange)
	}
	if len(cfg.KafkaBrokers) > 0 {
		p := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		publishers = append(publishers, p)
		closers = append(closers, p)
		logger.Printf("publishing to kafka topic=%s", cfg.KafkaTopic)
	}
	return history, publishers, closers, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
