package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/localstore"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/go-chi/chi/v5"
)

type OrderLog interface {
	ListOrders(ctx context.Context, ownerKey string) ([]domain.PlacedOrder, error)
	FindOrder(ctx context.Context, ownerKey string, id domain.OrderID) (*domain.PlacedOrder, error)
}

type OrdersHandler struct {
	orders  OrderLog
	timeout time.Duration
}

func NewOrdersHandler(orders OrderLog, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
	}
}

// GET /api/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := ownerKey(r.Context())
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}

	orders, err := h.orders.ListOrders(ctx, owner)
	if err != nil {
		logger.FromContext(ctx).Error().Err(err).Msg("failed to list orders")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondJSON(w, http.StatusOK, orders)
}

// GET /api/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := ownerKey(r.Context())
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}

	id := chi.URLParam(r, "order_id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id is required")
		return
	}

	order, err := h.orders.FindOrder(ctx, owner, domain.OrderID(id))
	if errors.Is(err, localstore.ErrOrderNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "order not found")
		return
	}
	if err != nil {
		logger.FromContext(ctx).Error().Err(err).Str("order_id", id).Msg("failed to load order")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondJSON(w, http.StatusOK, order)
}
