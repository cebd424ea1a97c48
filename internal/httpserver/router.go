package httpserver

import (
	"context"
	"errors"
	"log"
	"time"

	"marketplace-core/internal/domain"
	"marketplace-core/internal/metrics"
	analyticssvc "marketplace-core/internal/service/analytics"
	ordersvc "marketplace-core/internal/service/order"
	productsvc "marketplace-core/internal/service/product"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

type orderService interface {
	Place(ctx context.Context, in ordersvc.PlaceInput) (*domain.Order, error)
	Get(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error)
	List(ctx context.Context, actor domain.Actor, in ordersvc.ListInput) ([]domain.Order, error)
	Transition(ctx context.Context, in ordersvc.TransitionInput) (*domain.Order, error)
	History(ctx context.Context, actor domain.Actor, id string) ([]domain.LifecycleEvent, error)
}

type productService interface {
	List(ctx context.Context, in productsvc.ListInput) ([]domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
}

type inventoryService interface {
	AdjustAs(ctx context.Context, actor domain.Actor, productID, variantID string, delta int) (domain.StockLevel, error)
}

type analyticsService interface {
	Summary(ctx context.Context, actor domain.Actor, q analyticssvc.Query) (analyticssvc.Summary, error)
}

type tokenParser interface {
	Parse(raw string) (domain.Actor, error)
}

// Deps wires the services behind the API. Metrics may be nil.
type Deps struct {
	OrderSvc     orderService
	ProductSvc   productService
	InventorySvc inventoryService
	AnalyticsSvc analyticsService
	Tokens       tokenParser
	Metrics      *metrics.Metrics
	CORSOrigins  []string
}

func (d Deps) validate() error {
	switch {
	case d.OrderSvc == nil:
		return errors.New("httpserver: order service is required")
	case d.ProductSvc == nil:
		return errors.New("httpserver: product service is required")
	case d.InventorySvc == nil:
		return errors.New("httpserver: inventory service is required")
	case d.AnalyticsSvc == nil:
		return errors.New("httpserver: analytics service is required")
	case d.Tokens == nil:
		return errors.New("httpserver: token parser is required")
	}
	return nil
}

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, db *pgxpool.Pool, deps Deps) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery(), deps.Metrics.Middleware())
	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))
	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	h := &handlers{deps: deps, logger: logger}
	api := router.Group("/api", authMiddleware(deps.Tokens))
	{
		api.POST("/orders", h.placeOrder)
		api.GET("/orders", h.listOrders)
		api.GET("/orders/:id", h.getOrder)
		api.PATCH("/orders/:id/status", h.transitionOrder)
		api.GET("/orders/:id/history", h.orderHistory)

		api.GET("/products", h.listProducts)
		api.GET("/products/:id", h.getProduct)
		api.POST("/products/:id/inventory", h.adjustInventory)

		api.GET("/analytics/summary", h.analyticsSummary)
	}

	return router, nil
}

type handlers struct {
	deps   Deps
	logger *log.Logger
}
