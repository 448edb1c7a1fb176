package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"droppers-api/handlers"
	"droppers-api/middleware"
	"droppers-api/models"
)

// Deps are the pieces the router mounts.
type Deps struct {
	Handler *handlers.Handler
	Tokens  middleware.TokenParser
	// Realtime serves the websocket endpoint; nil leaves it unmounted.
	Realtime gin.HandlerFunc
}

func SetupRoutes(r *gin.Engine, d Deps) {
	h := d.Handler
	authRequired := middleware.AuthRequired(d.Tokens)

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ── Public routes ──────────────────────────────────────────────
	public := r.Group("/api")
	{
		public.POST("/auth/register", h.Register)
		public.POST("/auth/login", h.Login)
		public.GET("/orders/state-machine", h.StateMachine)
		if d.Realtime != nil {
			public.GET("/ws", d.Realtime)
		}
	}

	// ── Authenticated routes ───────────────────────────────────────
	auth := r.Group("/api")
	auth.Use(authRequired)
	{
		auth.GET("/auth/profile", h.Profile)
		auth.GET("/orders/:id", h.GetOrder)
		auth.GET("/orders/:id/history", h.OrderHistory)
	}

	// ── Vendor routes ──────────────────────────────────────────────
	vendor := r.Group("/api/orders/vendor")
	vendor.Use(authRequired, middleware.RoleRequired(models.RoleVendor))
	{
		vendor.POST("/create", h.CreateOrder)
		vendor.GET("/my-orders", h.VendorOrders)
		vendor.GET("/stats", h.VendorStats)
		vendor.PATCH("/:id/status", h.UpdateVendorStatus)
		vendor.DELETE("/:id/cancel", h.CancelOrder)
	}

	// ── Delivery partner routes ────────────────────────────────────
	delivery := r.Group("/api/orders/delivery")
	delivery.Use(authRequired, middleware.RoleRequired(models.RoleDeliveryPartner))
	{
		delivery.GET("/available", h.AvailableOrders)
		delivery.GET("/my-deliveries", h.MyDeliveries)
		delivery.GET("/stats", h.DropperStats)
		delivery.POST("/:orderId/accept", h.AcceptOrder)
		delivery.PATCH("/:orderId/status", h.UpdateDeliveryStatus)
		delivery.POST("/:orderId/complete", h.CompleteDelivery)
	}

	// ── Admin routes ───────────────────────────────────────────────
	admin := r.Group("/api/admin")
	admin.Use(authRequired, middleware.RoleRequired(models.RoleAdmin))
	{
		admin.GET("/orders", h.AdminOrders)
		admin.GET("/users", h.AdminUsers)
		admin.PATCH("/users/:id/active", h.AdminSetUserActive)
	}
}
