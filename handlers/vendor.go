package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"droppers-api/models"
	"droppers-api/service"
)

type CreateOrderRequest struct {
	PickupAddress   string   `json:"pickupAddress" binding:"required"`
	DeliveryAddress string   `json:"deliveryAddress" binding:"required"`
	CustomerName    string   `json:"customerName" binding:"required"`
	CustomerPhone   string   `json:"customerPhone" binding:"required"`
	ItemDescription string   `json:"itemDescription" binding:"required"`
	OrderValue      *float64 `json:"orderValue" binding:"required"`
}

type StatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

// CreateOrder posts a new delivery request for the vendor
func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if !h.bind(c, &req) {
		return
	}
	order, err := h.orders.CreateOrder(c.Request.Context(), caller(c), service.CreateOrderInput{
		PickupAddress:   req.PickupAddress,
		DeliveryAddress: req.DeliveryAddress,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		ItemDescription: req.ItemDescription,
		OrderValue:      *req.OrderValue,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, "Order created successfully", order)
}

// VendorOrders lists the vendor's orders, optionally filtered by ?status=
func (h *Handler) VendorOrders(c *gin.Context) {
	orders, err := h.orders.VendorOrders(c.Request.Context(), caller(c), c.Query("status"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Orders retrieved", listData("orders", orders))
}

func (h *Handler) VendorStats(c *gin.Context) {
	stats, err := h.orders.VendorStats(c.Request.Context(), caller(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Stats retrieved", stats)
}

// UpdateVendorStatus lets a vendor move its order; only CANCELLED is allowed
func (h *Handler) UpdateVendorStatus(c *gin.Context) {
	var req StatusRequest
	if !h.bind(c, &req) {
		return
	}
	order, err := h.orders.UpdateVendorStatus(c.Request.Context(), caller(c), c.Param("id"), normalizeStatus(req.Status))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Order status updated", order)
}

func (h *Handler) CancelOrder(c *gin.Context) {
	order, err := h.orders.CancelOrder(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Order cancelled", order)
}
