package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/Vkt5451/Main-Street-2026-Backend/internal/cart"
	"github.com/Vkt5451/Main-Street-2026-Backend/internal/provider"
	"github.com/Vkt5451/Main-Street-2026-Backend/internal/service"
)

type CheckoutHandler struct {
	checkout service.CheckoutService
	timeout  time.Duration
}

func NewCheckoutHandler(checkout service.CheckoutService, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		timeout:  timeout,
	}
}

type CheckoutRequestDTO struct {
	Cart          []cart.RawItem `json:"cart"`
	CustomerEmail string         `json:"customerEmail"`
}

type CheckoutResponseDTO struct {
	CheckoutURL string `json:"checkoutUrl"`
	OrderID     string `json:"orderId"`
}

// POST /checkout
func (h *CheckoutHandler) InitiateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CheckoutRequestDTO
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	// keep numeric prices in decimal form so cents come out exact
	decoder.UseNumber()
	if err := decoder.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	resp, err := h.checkout.InitiateCheckout(ctx, &service.CheckoutRequest{
		Items:          req.Cart,
		CustomerEmail:  req.CustomerEmail,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.respondCheckoutError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, CheckoutResponseDTO{
		CheckoutURL: resp.CheckoutURL,
		OrderID:     resp.OrderID,
	})
}

func (h *CheckoutHandler) respondCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cart.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", "cart must contain at least one item")
	case errors.Is(err, cart.ErrBadItem):
		respondError(w, http.StatusBadRequest, "bad_item", err.Error())
	case errors.Is(err, provider.ErrUnavailable), errors.Is(err, provider.ErrSessionRejected):
		log.Printf("checkout failed against provider (request %v): %v", getRequestID(r.Context()), err)
		respondError(w, http.StatusBadGateway, "provider_error", "payment provider is unavailable, try again")
	default:
		log.Printf("checkout failed (request %v): %v", getRequestID(r.Context()), err)
		respondError(w, http.StatusInternalServerError, "internal_error", "checkout failed")
	}
}
