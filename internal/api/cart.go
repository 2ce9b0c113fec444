package api

import (
	"net/http"

	"maritime-marketplace/internal/cart"
	"maritime-marketplace/internal/models"
	"maritime-marketplace/internal/service"
	"maritime-marketplace/internal/summary"

	"github.com/gin-gonic/gin"
)

type productQuery struct {
	Type   string `form:"type"`
	Search string `form:"search"`
	Page   int    `form:"page"`
	Limit  int    `form:"limit"`
}

func (h *Handler) listProducts(c *gin.Context) {
	var q productQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid query",
			"details": err.Error(),
		})
		return
	}

	page, err := h.svc.Catalog.ListProducts(c.Request.Context(), service.ProductQuery{
		Type:   models.ProductType(q.Type),
		Search: q.Search,
		Page:   q.Page,
		Limit:  q.Limit,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *Handler) getProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	product, err := h.svc.Catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

// cartView is the cart as rendered to clients
type cartView struct {
	Items          []models.CartItem `json:"items"`
	ItemCount      int               `json:"itemCount"`
	TotalPrice     string            `json:"totalPrice"`
	TotalCredits   int64             `json:"totalCredits"`
	FormattedTotal string            `json:"formattedTotal"`
}

func newCartView(state cart.State) cartView {
	total := state.TotalPrice()
	return cartView{
		Items:          state.Items(),
		ItemCount:      state.ItemCount(),
		TotalPrice:     total.StringFixed(2),
		TotalCredits:   state.TotalCredits(),
		FormattedTotal: summary.FormatUSD(total),
	}
}

func (h *Handler) respondCart(c *gin.Context, state cart.State, err error) {
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartView(state))
}

func (h *Handler) getCart(c *gin.Context) {
	state, err := h.svc.Carts.GetCart(c.Request.Context(), userID(c))
	h.respondCart(c, state, err)
}

func (h *Handler) addCartItem(c *gin.Context) {
	var req service.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	state, err := h.svc.Carts.AddItem(c.Request.Context(), userID(c), req)
	h.respondCart(c, state, err)
}

type updateQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required,lte=999"`
}

func (h *Handler) updateCartItem(c *gin.Context) {
	var req updateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	state, err := h.svc.Carts.UpdateQuantity(c.Request.Context(), userID(c), c.Param("itemId"), *req.Quantity)
	h.respondCart(c, state, err)
}

func (h *Handler) decrementCartItem(c *gin.Context) {
	state, err := h.svc.Carts.Decrement(c.Request.Context(), userID(c), c.Param("itemId"))
	h.respondCart(c, state, err)
}

func (h *Handler) removeCartItem(c *gin.Context) {
	state, err := h.svc.Carts.RemoveItem(c.Request.Context(), userID(c), c.Param("itemId"))
	h.respondCart(c, state, err)
}

func (h *Handler) clearCart(c *gin.Context) {
	if err := h.svc.Carts.Clear(c.Request.Context(), userID(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartView(cart.State{}))
}

// placeOrder submits the checkout form
func (h *Handler) placeOrder(c *gin.Context) {
	var req service.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	resp, err := h.svc.Checkout.PlaceOrder(c.Request.Context(), userID(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	status := http.StatusCreated
	if resp.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

func (h *Handler) checkoutStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Checkout.Status(userID(c)))
}
