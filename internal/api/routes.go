package api

import (
	"net/http"

	"kairos/fitness-server/internal/domain"

	"github.com/gin-gonic/gin"
)

// SetupRoutes wires every handler onto the router. Authorization is
// enforced here (JWT + role gates); the services assume identity has
// already been validated.
func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandler *AuthHandler,
	assignmentHandler *AssignmentHandler,
	notificationHandler *NotificationHandler,
	streamHandler *StreamHandler,
) {
	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userIDStr, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			role, _ := getUserRoleFromContext(c)
			c.JSON(http.StatusOK, gin.H{"userId": userIDStr, "role": role})
		})

		// --- Assignment Routes ---
		// POST /api/v1/assignments - clients request a trainer
		protected.POST("/assignments", RoleMiddleware(domain.RoleClient), assignmentHandler.RequestAssignment)
		// DELETE /api/v1/assignments - client, owning trainer or admin closes
		protected.DELETE("/assignments", RoleMiddleware(domain.RoleClient, domain.RoleTrainer, domain.RoleAdmin), assignmentHandler.RemoveAssignment)

		// GET /api/v1/client/trainer - the client's current trainer
		protected.GET("/client/trainer", RoleMiddleware(domain.RoleClient), assignmentHandler.GetClientTrainer)

		trainerGroup := protected.Group("/trainer")
		trainerGroup.Use(RoleMiddleware(domain.RoleTrainer))
		{
			// GET /api/v1/trainer/clients - active roster with profiles
			trainerGroup.GET("/clients", assignmentHandler.GetTrainerClients)
			// PATCH /api/v1/trainer/settings - capacity and accepting flag
			trainerGroup.PATCH("/settings", assignmentHandler.UpdateTrainerSettings)
		}

		// --- Notification Routes ---
		notificationGroup := protected.Group("/notifications")
		{
			notificationGroup.GET("", notificationHandler.ListNotifications)
			notificationGroup.GET("/unread-count", notificationHandler.CountUnread)
			notificationGroup.POST("/:id/read", notificationHandler.MarkRead)
			notificationGroup.POST("/read-all", notificationHandler.MarkAllRead)
			// Long-lived SSE delivery channel.
			notificationGroup.GET("/stream", streamHandler.Stream)
		}
	}
}
