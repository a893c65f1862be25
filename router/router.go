package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/Shiftline/shiftline-notify/config"
	"github.com/Shiftline/shiftline-notify/handlers"
	"github.com/Shiftline/shiftline-notify/middleware"
)

// Dependencies struct holds all dependencies required for setting up routes.
type Dependencies struct {
	Config              *config.Config
	NotificationHandler *handlers.NotificationHandler
	StreamHandler       *handlers.StreamHandler
	WSHandler           *handlers.WSHandler
	HealthHandler       *handlers.HealthHandler
	Logger              *zap.SugaredLogger
}

// SetupRouter configures and returns the main Gin engine with all routes defined.
func SetupRouter(deps Dependencies) *gin.Engine {
	r := gin.Default()

	// Global Middleware
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(&deps.Config.Server))

	// Health and Metrics Routes (no auth)
	r.GET("/health", deps.HealthHandler.DetailedHealth)
	r.GET("/health/liveness", deps.HealthHandler.LivenessCheck)
	r.GET("/health/readiness", deps.HealthHandler.ReadinessCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Swagger documentation
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Versioned API Group (v1)
	v1 := r.Group("/v1")
	{
		authMiddleware := middleware.AuthMiddleware(&deps.Config.Server)
		authRoutes := v1.Group("")
		authRoutes.Use(authMiddleware)
		{
			// WebSocket counter stream (token may arrive via ?token=)
			authRoutes.GET("/ws", deps.WSHandler.HandleWebSocket)

			notificationRoutes := authRoutes.Group("/notifications")
			{
				notificationRoutes.GET("", deps.NotificationHandler.GetFeed)
				notificationRoutes.PATCH("/read-all", deps.NotificationHandler.MarkAllNotificationsRead)
				notificationRoutes.GET("/unread-count", deps.NotificationHandler.GetUnreadCount)
				notificationRoutes.GET("/unread-count/stream",
					middleware.SSEMiddleware(middleware.SSEConfig{
						AllowedOrigins: deps.Config.Server.AllowedOrigins,
					}),
					deps.StreamHandler.StreamUnreadCount)
				notificationRoutes.PATCH("/:channel/:remoteId/read", deps.NotificationHandler.MarkNotificationRead)
			}
		}
	}

	return r
}
