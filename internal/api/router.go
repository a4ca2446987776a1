package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/liliang-cn/leadchat/internal/api/admin"
	"github.com/liliang-cn/leadchat/internal/api/middleware"
	"github.com/liliang-cn/leadchat/internal/api/widget"
	"github.com/liliang-cn/leadchat/internal/metrics"
	"github.com/liliang-cn/leadchat/internal/service"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	APIKey       string
	AllowOrigins []string
	BaseURL      string
	// Metrics is served at /metrics when set
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// SetupRouter sets up the Gin router
func SetupRouter(
	adminService *service.AdminService,
	trainingService *service.TrainingService,
	widgetService *service.WidgetService,
	cfg RouterConfig,
) (*gin.Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(cfg.Logger))

	// CORS middleware
	r.Use(middleware.CORS(cfg.AllowOrigins))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	// Embed script and widget page
	if err := SetupStaticRoutes(r, cfg.BaseURL); err != nil {
		return nil, err
	}

	// Widget API (public, based on bot_id)
	widgetHandler := widget.NewHandler(widgetService)
	r.GET("/api/bot-config/:bot_id", widgetHandler.GetConfig)
	widgetGroup := r.Group("/api/widget")
	widgetHandler.RegisterRoutes(widgetGroup)

	// Admin API (requires API key)
	adminHandler := admin.NewHandler(adminService, trainingService)
	adminGroup := r.Group("/api/admin")
	adminGroup.Use(middleware.Auth(cfg.APIKey))
	adminHandler.RegisterRoutes(adminGroup)

	return r, nil
}
