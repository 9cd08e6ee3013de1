package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/cpportal-backend/config"
	"github.com/ikkim/cpportal-backend/internal/app/controller"
	"github.com/ikkim/cpportal-backend/internal/app/model"
	"github.com/ikkim/cpportal-backend/internal/metrics"
	"github.com/ikkim/cpportal-backend/internal/middleware"
)

type Router struct {
	authController          *controller.AuthController
	materialController      *controller.MaterialController
	adminMaterialController *controller.AdminMaterialController
	uploadController        *controller.UploadController
	notificationController  *controller.NotificationController
	wsController            *controller.WSController
	authMiddleware          *middleware.AuthMiddleware
	config                  *config.Config
}

func NewRouter(
	authController *controller.AuthController,
	materialController *controller.MaterialController,
	adminMaterialController *controller.AdminMaterialController,
	uploadController *controller.UploadController,
	notificationController *controller.NotificationController,
	wsController *controller.WSController,
	authMiddleware *middleware.AuthMiddleware,
	cfg *config.Config,
) *Router {
	return &Router{
		authController:          authController,
		materialController:      materialController,
		adminMaterialController: adminMaterialController,
		uploadController:        uploadController,
		notificationController:  notificationController,
		wsController:            wsController,
		authMiddleware:          authMiddleware,
		config:                  cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(metrics.GinMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": "CP Portal API is running",
		})
	})
	router.GET("/metrics", metrics.Handler())

	authenticated := r.authMiddleware.Authenticate()
	cpOnly := r.authMiddleware.RequireRole(model.RoleCP)
	adminOnly := r.authMiddleware.RequireRole(model.RoleAdmin)

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", r.authController.Register)
			auth.POST("/login", r.authController.Login)
			auth.POST("/refresh", r.authController.Refresh)
			auth.POST("/logout", authenticated, r.authController.Logout)
			auth.GET("/me", authenticated, r.authController.GetMe)
		}

		materials := v1.Group("/materials")
		{
			materials.GET("/statuses", r.materialController.ListStatuses)
			materials.POST("/validate", authenticated, cpOnly, r.materialController.ValidateMaterial)
		}

		cp := v1.Group("/cp", authenticated, cpOnly)
		{
			cp.GET("/material", r.materialController.GetMyMaterial)
			cp.POST("/material", r.materialController.CreateMaterial)
			cp.GET("/material/:id", r.materialController.GetMaterial)
			cp.PUT("/material/:id", r.materialController.UpdateMaterial)
			cp.GET("/material/:id/reviews", r.materialController.ListMyReviews)
		}

		admin := v1.Group("/admin", authenticated, adminOnly)
		{
			admin.GET("/materials", r.adminMaterialController.ListMaterials)
			admin.GET("/materials/export", r.adminMaterialController.ExportMaterials)
			admin.GET("/materials/:id", r.adminMaterialController.GetMaterial)
			admin.POST("/materials/:id/approve", r.adminMaterialController.ApproveMaterial)
			admin.POST("/materials/:id/reject", r.adminMaterialController.RejectMaterial)
		}

		upload := v1.Group("/upload", authenticated)
		{
			upload.POST("/image", r.uploadController.UploadImage)
			upload.POST("/presigned-url", r.uploadController.GeneratePresignedURL)
		}

		notifications := v1.Group("/notifications", authenticated)
		{
			notifications.GET("", r.notificationController.GetNotifications)
			notifications.GET("/unread-count", r.notificationController.GetUnreadCount)
			notifications.PUT("/read-all", r.notificationController.MarkAllAsRead)
			notifications.PUT("/:id/read", r.notificationController.MarkAsRead)
		}

		v1.GET("/ws", authenticated, r.wsController.HandleWebSocket)
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed && origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Vary", "Origin")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, Content-Disposition")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
