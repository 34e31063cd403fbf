package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/middleware"
	"storefront/models"
	"storefront/services"
)

// OrderController drives the order lifecycle service from HTTP. Unlike the
// catalog and auth handlers it goes through a service rather than a
// collection, since ownership and lifecycle rules live there.
type OrderController struct {
	service services.OrderService
}

func NewOrderController(service services.OrderService) *OrderController {
	return &OrderController{service: service}
}

type checkoutItem struct {
	ProductID string  `json:"_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Image     string  `json:"image"`
	Quantity  int     `json:"quantity"`
}

type checkoutRequest struct {
	CartItems       []checkoutItem         `json:"cartItems"`
	TotalPrice      float64                `json:"totalPrice"`
	ShippingAddress models.ShippingAddress `json:"shippingAddress"`
}

// Checkout handles POST /api/payment/dummy.
func (oc *OrderController) Checkout(c *gin.Context) {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	items := make([]services.CheckoutItem, 0, len(req.CartItems))
	for _, item := range req.CartItems {
		items = append(items, services.CheckoutItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.Price,
			Image:     item.Image,
			Quantity:  item.Quantity,
		})
	}

	order, err := oc.service.CreateOrder(c.Request.Context(), principal, items, req.TotalPrice, req.ShippingAddress)
	if err != nil {
		respondOrderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"order":     order,
		"paymentId": order.PaymentInfo.ConfirmationID,
	})
}

// ListOrders handles GET /api/orders.
func (oc *OrderController) ListOrders(c *gin.Context) {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	orders, err := oc.service.ListOrders(c.Request.Context(), principal)
	if err != nil {
		respondOrderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "orders": orders})
}

// GetOrder handles GET /api/orders/:id.
func (oc *OrderController) GetOrder(c *gin.Context) {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	order, err := oc.service.GetOrder(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		respondOrderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "order": order})
}

func respondOrderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Not authorized to view this order"})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
	case errors.Is(err, services.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
	}
}
