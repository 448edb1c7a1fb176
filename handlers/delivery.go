package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"droppers-api/models"
)

// AvailableOrders shows PENDING orders that have no delivery partner yet
func (h *Handler) AvailableOrders(c *gin.Context) {
	orders, err := h.orders.AvailableOrders(c.Request.Context(), caller(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Available orders retrieved", listData("orders", orders))
}

// MyDeliveries returns all orders assigned to the logged-in partner
func (h *Handler) MyDeliveries(c *gin.Context) {
	orders, err := h.orders.DropperDeliveries(c.Request.Context(), caller(c), c.Query("status"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Deliveries retrieved", listData("orders", orders))
}

func (h *Handler) DropperStats(c *gin.Context) {
	stats, err := h.orders.DropperStats(c.Request.Context(), caller(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Stats retrieved", stats)
}

// AcceptOrder claims an available order; concurrent losers get 409
func (h *Handler) AcceptOrder(c *gin.Context) {
	order, err := h.orders.AcceptOrder(c.Request.Context(), caller(c), c.Param("orderId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Order accepted successfully", order)
}

// UpdateDeliveryStatus advances an assigned order one step
func (h *Handler) UpdateDeliveryStatus(c *gin.Context) {
	var req StatusRequest
	if !h.bind(c, &req) {
		return
	}
	order, err := h.orders.AdvanceStatus(c.Request.Context(), caller(c), c.Param("orderId"), normalizeStatus(req.Status))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Order status updated", order)
}

func (h *Handler) CompleteDelivery(c *gin.Context) {
	order, err := h.orders.CompleteDelivery(c.Request.Context(), caller(c), c.Param("orderId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Delivery completed", order)
}

func normalizeStatus(s models.OrderStatus) models.OrderStatus {
	return models.OrderStatus(strings.ToUpper(strings.TrimSpace(string(s))))
}
