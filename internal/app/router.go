// internal/app/router.go
package app

import (
	batchHandler "fleetcheck-service/internal/handlers/batch"
	reviewHandler "fleetcheck-service/internal/handlers/review"
	ticketHandler "fleetcheck-service/internal/handlers/tickets"
	vehicleHandler "fleetcheck-service/internal/handlers/vehicles"
	wsHandler "fleetcheck-service/internal/handlers/ws"
	"fleetcheck-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	VehicleHandler *vehicleHandler.VehicleHandler
	BatchHandler   *batchHandler.BatchHandler
	TicketHandler  *ticketHandler.TicketHandler
	ReviewHandler  *reviewHandler.ReviewHandler
	WSHandler      *wsHandler.WebSocketHandler
	AuthMiddleware *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	// ==================== Health Check ====================
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== WebSocket ====================
	r.GET("/ws/events", h.WSHandler.HandleConnection)

	api := r.Group("/api/v1")
	api.Use(h.AuthMiddleware.Auth())

	// ==================== Vehicles ====================
	vehicles := api.Group("/vehicles")
	{
		vehicles.POST("/:reg/verify", h.VehicleHandler.Verify)
		vehicles.GET("/:reg/compliance", h.VehicleHandler.Compliance)
		vehicles.GET("/:reg/snapshot", h.VehicleHandler.Snapshot)
		vehicles.GET("/:reg/history", h.VehicleHandler.History)
		vehicles.GET("/:reg/flags", h.VehicleHandler.Flags)
	}

	// ==================== Flags ====================
	api.POST("/flags/:id/resolve", h.VehicleHandler.ResolveFlag)

	// ==================== Batch ====================
	api.POST("/batch/run", h.BatchHandler.Run)

	// ==================== Tickets ====================
	tickets := api.Group("/tickets")
	{
		tickets.GET("", h.TicketHandler.List)
		tickets.GET("/:id", h.TicketHandler.Get)
		tickets.PATCH("/:id/status", h.TicketHandler.UpdateStatus)
	}

	// ==================== Manual Review ====================
	api.POST("/review/complete", h.ReviewHandler.Complete)
}
