// Shop HTTP handlers.
//
// This file exposes the read-only endpoints backed by the external shop:
//   - GET /api/get_purchased_products/:chat_id
//   - GET /api/get_last_order/:chat_id
//
// Both resolve the chat identity to its linked email first; an unlinked
// identity is a 404 before the shop is ever contacted. The shop session is
// released whatever the outcome (the client drains and closes per call).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/RAFOUgg/LaFoncedalleBot-sub000/internal/services"
)

// GetPurchasedProducts godoc
// @ID          getPurchasedProducts
// @Summary     The ratable products a linked customer has purchased
// @Description Returns the deduplicated product set, the order count, and the total spent.
// @Tags        Shop
// @Produce     json
// @Param       chat_id  path  string  true "Chat identity"
// @Success     200  {object} map[string]any "products, purchase_count, total_spent"
// @Failure     404  {object} handlers.ErrorResponse "Identity not linked"
// @Failure     500  {object} handlers.ErrorResponse "Shop unreachable"
// @Router      /api/get_purchased_products/{chat_id} [get]
func (h *Handlers) GetPurchasedProducts(c *gin.Context) {
	chatID := c.Param("chat_id")

	email, err := h.verSvc.LinkedEmail(c.Request.Context(), chatID)
	if err != nil {
		if errors.Is(err, services.ErrNotLinked) {
			fail(c, http.StatusNotFound, ErrKindNotLinked, "no account is linked to this identity")
			return
		}
		fail(c, http.StatusInternalServerError, ErrKindInternal, err.Error())
		return
	}

	purchases, err := h.shop.PurchasesByEmail(c.Request.Context(), email)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrKindShopError, "could not reach the shop")
		return
	}

	ok(c, http.StatusOK, gin.H{
		"products":       purchases.Products,
		"purchase_count": purchases.PurchaseCount,
		"total_spent":    purchases.TotalSpent,
	})
}

// GetLastOrder godoc
// @ID          getLastOrder
// @Summary     A linked customer's most recent order
// @Tags        Shop
// @Produce     json
// @Param       chat_id  path  string  true "Chat identity"
// @Success     200  {object} map[string]any "order"
// @Failure     404  {object} handlers.ErrorResponse "Not linked or no orders"
// @Router      /api/get_last_order/{chat_id} [get]
func (h *Handlers) GetLastOrder(c *gin.Context) {
	chatID := c.Param("chat_id")

	email, err := h.verSvc.LinkedEmail(c.Request.Context(), chatID)
	if err != nil {
		if errors.Is(err, services.ErrNotLinked) {
			fail(c, http.StatusNotFound, ErrKindNotLinked, "no account is linked to this identity")
			return
		}
		fail(c, http.StatusInternalServerError, ErrKindInternal, err.Error())
		return
	}

	order, err := h.shop.LastOrderByEmail(c.Request.Context(), email)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrKindShopError, "could not reach the shop")
		return
	}
	if order == nil {
		fail(c, http.StatusNotFound, ErrKindNotFound, "this customer has no orders yet")
		return
	}

	ok(c, http.StatusOK, gin.H{"order": order})
}
