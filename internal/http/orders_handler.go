package http

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Vkt5451/Main-Street-2026-Backend/domain"
	r "github.com/Vkt5451/Main-Street-2026-Backend/internal/repository"
)

// OrderReader is the slice of the repository the read endpoint needs.
type OrderReader interface {
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
}

type OrdersHandler struct {
	orders  OrderReader
	timeout time.Duration
}

func NewOrdersHandler(orders OrderReader, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
	}
}

type OrderItemDTO struct {
	Name           string   `json:"name"`
	UnitPriceCents int64    `json:"unitPriceCents"`
	Quantity       int32    `json:"quantity"`
	Options        []string `json:"options,omitempty"`
	Note           string   `json:"note,omitempty"`
}

type OrderDTO struct {
	ID            string         `json:"id"`
	CustomerEmail string         `json:"customerEmail,omitempty"`
	Items         []OrderItemDTO `json:"items"`
	TotalCents    int64          `json:"totalCents"`
	Currency      string         `json:"currency"`
	Status        string         `json:"status"`
	FailureReason string         `json:"failureReason,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// GET /orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), h.timeout)
	defer cancel()

	id, err := uuid.Parse(chi.URLParam(req, "order_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order id must be a UUID")
		return
	}

	order, err := h.orders.GetOrderByID(ctx, id)
	if errors.Is(err, r.ErrOrderNotFound) {
		respondError(w, http.StatusNotFound, "order_not_found", "no order with that id")
		return
	}
	if err != nil {
		log.Printf("failed to load order %v: %v", id, err)
		respondError(w, http.StatusInternalServerError, "internal_error", "could not load order")
		return
	}

	respondJSON(w, http.StatusOK, toOrderDTO(order))
}

func toOrderDTO(order *domain.Order) OrderDTO {
	items := make([]OrderItemDTO, len(order.Items))
	for i, item := range order.Items {
		items[i] = OrderItemDTO{
			Name:           item.Name,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
			Options:        item.Options,
			Note:           item.Note,
		}
	}
	return OrderDTO{
		ID:            order.ID.String(),
		CustomerEmail: order.CustomerEmail,
		Items:         items,
		TotalCents:    order.TotalCents,
		Currency:      order.Currency,
		Status:        order.Status.String(),
		FailureReason: order.FailureReason,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
}
