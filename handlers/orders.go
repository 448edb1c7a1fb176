package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"droppers-api/models"
	"droppers-api/statemachine"
)

// GetOrder returns one order if the caller may see it
func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Order retrieved", order)
}

// OrderHistory returns the audit trail of status changes
func (h *Handler) OrderHistory(c *gin.Context) {
	history, err := h.orders.OrderHistory(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Order history retrieved", listData("history", history))
}

// StateMachine returns the full state machine for informational purposes
func (h *Handler) StateMachine(c *gin.Context) {
	var terminal []models.OrderStatus
	for _, s := range []models.OrderStatus{
		models.StatusPending, models.StatusAssigned, models.StatusPickedUp,
		models.StatusInTransit, models.StatusDelivered, models.StatusCancelled,
	} {
		if statemachine.IsTerminal(s) {
			terminal = append(terminal, s)
		}
	}
	ok(c, http.StatusOK, "Delivery order lifecycle", gin.H{
		"transitions":    statemachine.All(),
		"terminalStates": terminal,
	})
}

// AdminOrders lists every order with a per-status summary
func (h *Handler) AdminOrders(c *gin.Context) {
	overview, err := h.orders.AllOrders(c.Request.Context(), caller(c), c.Query("status"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Orders retrieved", overview)
}

func (h *Handler) AdminUsers(c *gin.Context) {
	users, err := h.auth.ListUsers(c.Request.Context(), caller(c), models.UserRole(c.Query("role")))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Users retrieved", listData("users", users))
}

type ActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

func (h *Handler) AdminSetUserActive(c *gin.Context) {
	var req ActiveRequest
	if !h.bind(c, &req) {
		return
	}
	user, err := h.auth.SetUserActive(c.Request.Context(), caller(c), c.Param("id"), *req.Active)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "User updated", user)
}

// Health is the liveness probe. It reports 503 when the database check fails.
func (h *Handler) Health(c *gin.Context) {
	data := gin.H{"status": "healthy", "service": "Droppers API", "database": "up"}
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			data["status"] = "degraded"
			data["database"] = "down"
			c.JSON(http.StatusServiceUnavailable, Envelope{Success: false, Message: "database unavailable", Data: data})
			return
		}
	}
	ok(c, http.StatusOK, "OK", data)
}
