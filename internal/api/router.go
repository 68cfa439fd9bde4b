package api

import (
	"github.com/gin-gonic/gin"

	"github.com/globot/syncbot/middleware/jwt"
)

// RegisterRoutes mounts the admin API and the gateway ingest edge. Every
// admin route maps 1:1 to one ChannelGraph / WarningLedger / StatsAggregator
// operation.
func RegisterRoutes(r *gin.Engine, tm *jwt.TokenManager, admin *AdminHandler) {
	protected := r.Group("/api/v1")
	protected.Use(AuthMiddleware(tm))
	{
		channels := protected.Group("/channels")
		{
			channels.POST("", admin.AddChannel)
			channels.DELETE("/:id", admin.RemoveChannel)
		}

		guilds := protected.Group("/guilds")
		{
			guilds.PUT("/:id/logs-channel", admin.SetLogsChannel)
			guilds.GET("/:id/warnings/:user_id", admin.GetWarnings)
		}

		protected.GET("/stats", admin.GetStats)
		protected.POST("/ingest", admin.IngestMessage)
	}
}
