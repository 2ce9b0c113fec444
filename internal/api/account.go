package api

import (
	"net/http"

	"maritime-marketplace/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.svc.Orders.ListOrders(c.Request.Context(), userID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	details, err := h.svc.Orders.GetOrder(c.Request.Context(), userID(c), orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

func (h *Handler) listAlerts(c *gin.Context) {
	unreadOnly := c.Query("unread") == "true"

	list, err := h.svc.Alerts.List(c.Request.Context(), userID(c), unreadOnly)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) createAlert(c *gin.Context) {
	var req service.CreateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	alert, err := h.svc.Alerts.Create(c.Request.Context(), userID(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, alert)
}

func (h *Handler) markAlertRead(c *gin.Context) {
	alertID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Alerts.MarkRead(c.Request.Context(), userID(c), alertID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": alertID, "read": true})
}

func (h *Handler) markAllAlertsRead(c *gin.Context) {
	n, err := h.svc.Alerts.MarkAllRead(c.Request.Context(), userID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

func (h *Handler) getCredits(c *gin.Context) {
	balance, err := h.svc.Payments.CreditBalance(c.Request.Context(), userID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

type topUpRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

func (h *Handler) topUpCredits(c *gin.Context) {
	var req topUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	balance, err := h.svc.Payments.TopUpCredits(c.Request.Context(), userID(c), req.Amount)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}
