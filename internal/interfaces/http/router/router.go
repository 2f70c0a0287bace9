package router

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/venda/backend/internal/infrastructure/config"
	"github.com/venda/backend/internal/infrastructure/logger"
	"github.com/venda/backend/internal/interfaces/http/dto"
	"github.com/venda/backend/internal/interfaces/http/handler"
	"github.com/venda/backend/internal/interfaces/http/middleware"
)

// Handlers bundles every handler the router mounts
type Handlers struct {
	Order  *handler.OrderHandler
	Token  *handler.TokenHandler
	Ledger *handler.LedgerHandler
	System *handler.SystemHandler
}

// New builds the gin engine with the full middleware chain and all
// API routes mounted under /api/v1
func New(cfg *config.Config, log *zap.Logger, handlers Handlers) *gin.Engine {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := dto.RegisterValidations(); err != nil {
		log.Warn("custom binding validations not registered", zap.Error(err))
	}

	engine := gin.New()
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.RequestID())
	engine.Use(middleware.CORSWithConfig(cfg.HTTP.CORSAllowOrigins))
	engine.Use(logger.GinMiddleware(log))
	if cfg.Telemetry.Enabled {
		engine.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	}

	engine.GET("/health", handlers.System.Health)
	engine.GET("/ready", handlers.System.Ready)

	api := engine.Group("/api/v1")

	orders := api.Group("/orders")
	{
		orders.POST("/commit", handlers.Order.Commit)
		orders.GET("", handlers.Order.List)
		orders.GET("/:id", handlers.Order.GetByID)
		orders.GET("/number/:number", handlers.Order.GetByNumber)
	}

	tokens := api.Group("/tokens")
	{
		tokens.POST("/configs", handlers.Token.CreateConfig)
		tokens.GET("/configs", handlers.Token.ListConfigs)
		tokens.GET("/configs/:id/pool", handlers.Token.PoolStatus)
		tokens.POST("/provision", handlers.Token.Provision)
		tokens.POST("/:id/disable", handlers.Token.Disable)
	}

	ledger := api.Group("/ledger")
	{
		ledger.GET("/balance", handlers.Ledger.Balance)
		ledger.GET("/transactions", handlers.Ledger.List)
		ledger.POST("/disbursements", handlers.Ledger.PostDisbursement)
	}

	return engine
}
